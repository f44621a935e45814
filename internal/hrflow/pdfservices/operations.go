package pdfservices

import (
	"context"
	"fmt"

	e "github.com/gartstein/hrflow/internal/hrflow/errors"
)

// Operation names double as the path segment under /api.
const (
	OpMerge      = "merge"
	OpCompress   = "compress"
	OpSecurity   = "security"
	OpWatermark  = "watermark"
	OpPageNumber = "pagenumber"
	OpSplit      = "split"
	OpPDFA       = "pdfa"
	OpFlatten    = "flatten"
	OpLinearize  = "linearize"
	OpCompare    = "compare"
)

type CompressionLevel string

const (
	CompressionLow    CompressionLevel = "LOW"
	CompressionMedium CompressionLevel = "MEDIUM"
	CompressionHigh   CompressionLevel = "HIGH"
)

const (
	DefaultWatermarkOpacity  = 30
	DefaultWatermarkPosition = "CENTER"
	DefaultPageNumberPos     = "BOTTOM_CENTER"
	DefaultPDFAConformance   = "PDFA2B"
)

// Conversion is a format conversion to or from PDF.
type Conversion string

const (
	PDFToWord  Conversion = "pdf-to-word"
	PDFToExcel Conversion = "pdf-to-excel"
	PDFToPPT   Conversion = "pdf-to-ppt"
	PDFToImage Conversion = "pdf-to-image"
	PDFToHTML  Conversion = "pdf-to-html"
	WordToPDF  Conversion = "word-to-pdf"
	ExcelToPDF Conversion = "excel-to-pdf"
	PPTToPDF   Conversion = "ppt-to-pdf"
	ImageToPDF Conversion = "image-to-pdf"
	HTMLToPDF  Conversion = "html-to-pdf"
)

var conversions = map[Conversion]bool{
	PDFToWord: true, PDFToExcel: true, PDFToPPT: true, PDFToImage: true, PDFToHTML: true,
	WordToPDF: true, ExcelToPDF: true, PPTToPDF: true, ImageToPDF: true, HTMLToPDF: true,
}

func (c Conversion) Valid() bool { return conversions[c] }

type documentInfo struct {
	DocumentID Handle `json:"documentId"`
}

// Merge combines the documents in the given order.
func (c *Client) Merge(ctx context.Context, handles []Handle) (Handle, error) {
	if len(handles) == 0 {
		return "", fmt.Errorf("%w: merge needs at least one document", e.ErrInvalidInput)
	}
	infos := make([]documentInfo, len(handles))
	for i, h := range handles {
		infos[i] = documentInfo{DocumentID: h}
	}
	return c.run(ctx, OpMerge, map[string]any{"documentInfos": infos})
}

// Compress shrinks the document. An empty level means CompressionMedium.
func (c *Client) Compress(ctx context.Context, h Handle, level CompressionLevel) (Handle, error) {
	if level == "" {
		level = CompressionMedium
	}
	return c.run(ctx, OpCompress, map[string]any{
		"documentId":       h,
		"compressionLevel": level,
	})
}

// Protect sets password as both the user and the owner password.
func (c *Client) Protect(ctx context.Context, h Handle, password string) (Handle, error) {
	if password == "" {
		return "", fmt.Errorf("%w: empty password", e.ErrInvalidInput)
	}
	return c.run(ctx, OpSecurity, map[string]any{
		"documentId": h,
		"passwordProtection": map[string]string{
			"userPassword":  password,
			"ownerPassword": password,
		},
	})
}

// Watermark describes a text watermark. Zero Opacity and empty Position take
// the package defaults.
type Watermark struct {
	Text     string
	Opacity  int
	Position string
}

// Watermark stamps wm.Text on every page.
func (c *Client) Watermark(ctx context.Context, h Handle, wm Watermark) (Handle, error) {
	if wm.Text == "" {
		return "", fmt.Errorf("%w: empty watermark text", e.ErrInvalidInput)
	}
	if wm.Opacity <= 0 {
		wm.Opacity = DefaultWatermarkOpacity
	}
	if wm.Position == "" {
		wm.Position = DefaultWatermarkPosition
	}
	return c.run(ctx, OpWatermark, map[string]any{
		"documentId": h,
		"text":       wm.Text,
		"opacity":    wm.Opacity,
		"position":   wm.Position,
	})
}

// AddPageNumbers numbers every page at DefaultPageNumberPos.
func (c *Client) AddPageNumbers(ctx context.Context, h Handle) (Handle, error) {
	return c.run(ctx, OpPageNumber, map[string]any{
		"documentId": h,
		"position":   DefaultPageNumberPos,
	})
}

// Split breaks the document after pageCount pages.
func (c *Client) Split(ctx context.Context, h Handle, pageCount int) (Handle, error) {
	if pageCount <= 0 {
		return "", fmt.Errorf("%w: split page count must be positive", e.ErrInvalidInput)
	}
	return c.run(ctx, OpSplit, map[string]any{
		"documentId": h,
		"pageCount":  pageCount,
	})
}

func (c *Client) ConvertToPDFA(ctx context.Context, h Handle, conformance string) (Handle, error) {
	if conformance == "" {
		conformance = DefaultPDFAConformance
	}
	return c.run(ctx, OpPDFA, map[string]any{
		"documentId":  h,
		"conformance": conformance,
	})
}

func (c *Client) Flatten(ctx context.Context, h Handle) (Handle, error) {
	return c.run(ctx, OpFlatten, map[string]any{"documentId": h})
}

func (c *Client) Linearize(ctx context.Context, h Handle) (Handle, error) {
	return c.run(ctx, OpLinearize, map[string]any{"documentId": h})
}

// Compare produces a comparison report of two documents.
func (c *Client) Compare(ctx context.Context, first, second Handle) (Handle, error) {
	return c.run(ctx, OpCompare, map[string]any{
		"documentId1": first,
		"documentId2": second,
	})
}

func (c *Client) Convert(ctx context.Context, h Handle, conv Conversion) (Handle, error) {
	if !conv.Valid() {
		return "", fmt.Errorf("%w: unknown conversion %q", e.ErrInvalidInput, conv)
	}
	return c.run(ctx, string(conv), map[string]any{"documentId": h})
}
