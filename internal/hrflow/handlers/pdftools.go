package handlers

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	e "github.com/gartstein/hrflow/internal/hrflow/errors"
	"github.com/gartstein/hrflow/internal/hrflow/pdfservices"
	"github.com/go-chi/render"
	"go.uber.org/zap"
)

// Form defaults of the standalone PDF tools.
const (
	defaultToolPassword  = "password123"
	defaultToolWatermark = "CONFIDENTIAL"
)

// PDFTools is the PDF services surface behind /api/pdf-services.
type PDFTools interface {
	Upload(ctx context.Context, data []byte, filename, contentType string) (pdfservices.Handle, error)
	Download(ctx context.Context, h pdfservices.Handle) ([]byte, error)
	Merge(ctx context.Context, handles []pdfservices.Handle) (pdfservices.Handle, error)
	Compress(ctx context.Context, h pdfservices.Handle, level pdfservices.CompressionLevel) (pdfservices.Handle, error)
	Split(ctx context.Context, h pdfservices.Handle, pageCount int) (pdfservices.Handle, error)
	Protect(ctx context.Context, h pdfservices.Handle, password string) (pdfservices.Handle, error)
	Watermark(ctx context.Context, h pdfservices.Handle, wm pdfservices.Watermark) (pdfservices.Handle, error)
	AddPageNumbers(ctx context.Context, h pdfservices.Handle) (pdfservices.Handle, error)
	Flatten(ctx context.Context, h pdfservices.Handle) (pdfservices.Handle, error)
	Linearize(ctx context.Context, h pdfservices.Handle) (pdfservices.Handle, error)
	ConvertToPDFA(ctx context.Context, h pdfservices.Handle, conformance string) (pdfservices.Handle, error)
	Compare(ctx context.Context, first, second pdfservices.Handle) (pdfservices.Handle, error)
	Convert(ctx context.Context, h pdfservices.Handle, conv pdfservices.Conversion) (pdfservices.Handle, error)
}

// toolForm is the parsed multipart request of one tool invocation.
type toolForm struct {
	operation string
	first     []byte
	firstName string
	firstType string
	second    []byte
	secondNm  string
	splitAt   int
	password  string
	text      string
}

type toolFunc func(ctx context.Context, pdf PDFTools, f *toolForm, first pdfservices.Handle) (pdfservices.Handle, error)

// paired tools need the second file uploaded as well.
func paired(fn func(ctx context.Context, pdf PDFTools, first, second pdfservices.Handle) (pdfservices.Handle, error)) toolFunc {
	return func(ctx context.Context, pdf PDFTools, f *toolForm, first pdfservices.Handle) (pdfservices.Handle, error) {
		second, err := pdf.Upload(ctx, f.second, nameOr(f.secondNm, "input2.pdf"), contentTypePDF)
		if err != nil {
			return "", err
		}
		return fn(ctx, pdf, first, second)
	}
}

func conversion(conv pdfservices.Conversion) toolFunc {
	return func(ctx context.Context, pdf PDFTools, _ *toolForm, h pdfservices.Handle) (pdfservices.Handle, error) {
		return pdf.Convert(ctx, h, conv)
	}
}

var tools = map[string]toolFunc{
	"compress": toolFunc(func(ctx context.Context, pdf PDFTools, _ *toolForm, h pdfservices.Handle) (pdfservices.Handle, error) {
		return pdf.Compress(ctx, h, pdfservices.CompressionMedium)
	}),
	"merge": paired(func(ctx context.Context, pdf PDFTools, first, second pdfservices.Handle) (pdfservices.Handle, error) {
		return pdf.Merge(ctx, []pdfservices.Handle{first, second})
	}),
	"split": toolFunc(func(ctx context.Context, pdf PDFTools, f *toolForm, h pdfservices.Handle) (pdfservices.Handle, error) {
		return pdf.Split(ctx, h, f.splitAt)
	}),
	"protect": toolFunc(func(ctx context.Context, pdf PDFTools, f *toolForm, h pdfservices.Handle) (pdfservices.Handle, error) {
		return pdf.Protect(ctx, h, f.password)
	}),
	"watermark": toolFunc(func(ctx context.Context, pdf PDFTools, f *toolForm, h pdfservices.Handle) (pdfservices.Handle, error) {
		return pdf.Watermark(ctx, h, pdfservices.Watermark{Text: f.text})
	}),
	"pagenumber": toolFunc(func(ctx context.Context, pdf PDFTools, _ *toolForm, h pdfservices.Handle) (pdfservices.Handle, error) {
		return pdf.AddPageNumbers(ctx, h)
	}),
	"flatten": toolFunc(func(ctx context.Context, pdf PDFTools, _ *toolForm, h pdfservices.Handle) (pdfservices.Handle, error) {
		return pdf.Flatten(ctx, h)
	}),
	"linearize": toolFunc(func(ctx context.Context, pdf PDFTools, _ *toolForm, h pdfservices.Handle) (pdfservices.Handle, error) {
		return pdf.Linearize(ctx, h)
	}),
	"pdfa": toolFunc(func(ctx context.Context, pdf PDFTools, _ *toolForm, h pdfservices.Handle) (pdfservices.Handle, error) {
		return pdf.ConvertToPDFA(ctx, h, pdfservices.DefaultPDFAConformance)
	}),
	"compare": paired(func(ctx context.Context, pdf PDFTools, first, second pdfservices.Handle) (pdfservices.Handle, error) {
		return pdf.Compare(ctx, first, second)
	}),
	string(pdfservices.PDFToWord):  conversion(pdfservices.PDFToWord),
	string(pdfservices.PDFToExcel): conversion(pdfservices.PDFToExcel),
	string(pdfservices.PDFToPPT):   conversion(pdfservices.PDFToPPT),
	string(pdfservices.PDFToImage): conversion(pdfservices.PDFToImage),
	string(pdfservices.PDFToHTML):  conversion(pdfservices.PDFToHTML),
	string(pdfservices.WordToPDF):  conversion(pdfservices.WordToPDF),
	string(pdfservices.ExcelToPDF): conversion(pdfservices.ExcelToPDF),
	string(pdfservices.PPTToPDF):   conversion(pdfservices.PPTToPDF),
	string(pdfservices.ImageToPDF): conversion(pdfservices.ImageToPDF),
	string(pdfservices.HTMLToPDF):  conversion(pdfservices.HTMLToPDF),
}

const contentTypePDF = "application/pdf"

// uploadContentTypes covers inputs that are not PDFs.
var uploadContentTypes = map[string]string{
	string(pdfservices.WordToPDF):  "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	string(pdfservices.ExcelToPDF): "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	string(pdfservices.PPTToPDF):   "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	string(pdfservices.HTMLToPDF):  "text/html",
}

func (h *Handler) pdfServices(w http.ResponseWriter, r *http.Request) {
	form, err := parseToolForm(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tool := tools[form.operation]

	ctx := r.Context()
	first, err := h.pdf.Upload(ctx, form.first, nameOr(form.firstName, "input.pdf"), form.contentType())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := tool(ctx, h.pdf, form, first)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	data, err := h.pdf.Download(ctx, result)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("PDF tool finished", zap.String("operation", form.operation), zap.Int("size", len(data)))
	render.JSON(w, r, pdfToolResponse{
		Success:   true,
		Base64:    base64.StdEncoding.EncodeToString(data),
		Size:      len(data),
		Operation: form.operation,
	})
}

// parseToolForm validates the multipart request before anything is uploaded.
func parseToolForm(r *http.Request) (*toolForm, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, fmt.Errorf("%w: invalid request format: %v", e.ErrInvalidInput, err)
	}
	f := &toolForm{
		operation: r.FormValue("operation"),
		password:  nameOr(r.FormValue("password"), defaultToolPassword),
		text:      nameOr(r.FormValue("text"), defaultToolWatermark),
		splitAt:   1,
	}
	if _, ok := tools[f.operation]; !ok {
		return nil, fmt.Errorf("%w: unknown operation: %s", e.ErrInvalidInput, f.operation)
	}
	if v := r.FormValue("splitAt"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			f.splitAt = n
		}
	}

	var (
		header *multipart.FileHeader
		err    error
	)
	if f.first, header, err = formFile(r, "file"); err != nil {
		return nil, err
	}
	f.firstName, f.firstType = header.Filename, header.Header.Get("Content-Type")
	if f.operation == "merge" || f.operation == "compare" {
		if f.second, header, err = formFile(r, "file2"); err != nil {
			return nil, fmt.Errorf("%w: second file required for %s", e.ErrInvalidInput, f.operation)
		}
		f.secondNm = header.Filename
	}
	return f, nil
}

func (f *toolForm) contentType() string {
	if ct, ok := uploadContentTypes[f.operation]; ok {
		return ct
	}
	if f.operation == string(pdfservices.ImageToPDF) {
		return nameOr(f.firstType, "image/png")
	}
	return contentTypePDF
}

func nameOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
