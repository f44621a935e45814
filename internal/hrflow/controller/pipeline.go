// Package controller holds the document assembly pipeline and the services
// that track generated documents and packs around it.
package controller

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	e "github.com/gartstein/hrflow/internal/hrflow/errors"
	"github.com/gartstein/hrflow/internal/hrflow/metrics"
	"github.com/gartstein/hrflow/internal/hrflow/models"
	"github.com/gartstein/hrflow/internal/hrflow/pdfservices"
	"github.com/gartstein/hrflow/internal/hrflow/templates"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"go.uber.org/zap"
)

const outputFormat = "pdf"

// Pipeline step names, used in progress messages, StageError and metrics.
const (
	StageGenerate   = "generate"
	StageUpload     = "upload"
	StageMerge      = "merge"
	StageCompress   = "compress"
	StagePDFA       = "pdfa"
	StageProtect    = "protect"
	StageWatermark  = "watermark"
	StagePageNumber = "pagenumber"
	StageDownload   = "download"
)

// TemplateSource builds the template for a category and lists its tokens.
type TemplateSource interface {
	Build(category models.Category) ([]byte, []string, error)
}

// DocumentGenerator fills a template with values on the remote service.
type DocumentGenerator interface {
	Generate(ctx context.Context, template []byte, values map[string]string, format string) ([]byte, error)
}

// PDFService is the subset of the PDF services client the pipeline drives.
type PDFService interface {
	Upload(ctx context.Context, data []byte, filename, contentType string) (pdfservices.Handle, error)
	Download(ctx context.Context, h pdfservices.Handle) ([]byte, error)
	Merge(ctx context.Context, handles []pdfservices.Handle) (pdfservices.Handle, error)
	Compress(ctx context.Context, h pdfservices.Handle, level pdfservices.CompressionLevel) (pdfservices.Handle, error)
	ConvertToPDFA(ctx context.Context, h pdfservices.Handle, conformance string) (pdfservices.Handle, error)
	Protect(ctx context.Context, h pdfservices.Handle, password string) (pdfservices.Handle, error)
	Watermark(ctx context.Context, h pdfservices.Handle, wm pdfservices.Watermark) (pdfservices.Handle, error)
	AddPageNumbers(ctx context.Context, h pdfservices.Handle) (pdfservices.Handle, error)
}

// ProgressFunc receives a step description and the percentage of work done.
type ProgressFunc func(step string, percent int)

// PackResult is the downloaded pack. PageCount is zero when the PDF could
// not be inspected.
type PackResult struct {
	Data      []byte
	Size      int
	PageCount int
}

// SingleResult is one rendered document, base64 encoded.
type SingleResult struct {
	Base64 string
	Size   int
}

// Pipeline turns an employee and a set of document categories into
// rendered documents. Each run is a strictly sequential chain of remote
// calls; runs share no mutable state.
type Pipeline struct {
	templates   TemplateSource
	docgen      DocumentGenerator
	pdf         PDFService
	companyName string
	now         func() time.Time
	metrics     *metrics.Recorder
	logger      *zap.Logger
}

// NewPipeline wires the pipeline. rec may be nil.
func NewPipeline(tpl TemplateSource, docgen DocumentGenerator, pdf PDFService, companyName string, rec *metrics.Recorder, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		templates:   tpl,
		docgen:      docgen,
		pdf:         pdf,
		companyName: companyName,
		now:         time.Now,
		metrics:     rec,
		logger:      logger.Named("pipeline"),
	}
}

// RunSingle renders one category with no post-processing.
func (p *Pipeline) RunSingle(ctx context.Context, emp *models.Employee, category models.Category) (SingleResult, error) {
	if emp == nil {
		return SingleResult{}, fmt.Errorf("%w: employee is required", e.ErrInvalidInput)
	}
	if !category.Valid() {
		return SingleResult{}, fmt.Errorf("%w: unknown document type %q", e.ErrInvalidInput, category)
	}
	employee := *emp
	employee.Normalize()

	data, err := p.generate(ctx, &employee, category)
	if err != nil {
		return SingleResult{}, err
	}
	return SingleResult{Base64: base64.StdEncoding.EncodeToString(data), Size: len(data)}, nil
}

// RunPack generates every category in order and assembles the results into
// one PDF. Any failing step aborts the whole pack.
func (p *Pipeline) RunPack(ctx context.Context, emp *models.Employee, categories []models.Category, opts models.PackOptions, progress ProgressFunc) (PackResult, error) {
	if emp == nil {
		return PackResult{}, fmt.Errorf("%w: employee is required", e.ErrInvalidInput)
	}
	if len(categories) == 0 {
		return PackResult{}, fmt.Errorf("%w: at least one document type is required", e.ErrInvalidInput)
	}
	for _, c := range categories {
		if !c.Valid() {
			return PackResult{}, fmt.Errorf("%w: unknown document type %q", e.ErrInvalidInput, c)
		}
	}
	employee := *emp
	employee.Normalize()

	var (
		password    string
		hasPassword bool
	)
	if opts.PasswordProtect {
		var err error
		password, hasPassword, err = employee.DocumentPassword()
		if err != nil {
			return PackResult{}, fmt.Errorf("%w: %w", e.ErrInvalidInput, err)
		}
		if !hasPassword {
			p.logger.Info("No birth date on record, skipping password protection",
				zap.String("employee_id", employee.EmployeeID))
		}
	}
	merge := opts.Merge && len(categories) > 1
	protect := opts.PasswordProtect && hasPassword

	tracker := newProgress(progress, len(categories)+countTrue(merge, opts.Compress, opts.ConvertToPDFA, protect, opts.AddWatermark, opts.AddPageNumbers))
	tracker.start("Starting pack")

	p.logger.Info("Pack started",
		zap.String("employee_id", employee.EmployeeID),
		zap.Int("documents", len(categories)),
		zap.Any("options", opts),
	)

	buffers := make([][]byte, 0, len(categories))
	for _, category := range categories {
		data, err := p.generate(ctx, &employee, category)
		if err != nil {
			return PackResult{}, err
		}
		buffers = append(buffers, data)
		tracker.done("Generated " + category.Label())
	}

	var working pdfservices.Handle
	if merge {
		handles := make([]pdfservices.Handle, 0, len(buffers))
		for i, data := range buffers {
			h, err := p.step(ctx, StageUpload, func() (pdfservices.Handle, error) {
				return p.pdf.Upload(ctx, data, fmt.Sprintf("%s.pdf", categories[i]), "application/pdf")
			})
			if err != nil {
				return PackResult{}, err
			}
			handles = append(handles, h)
		}
		h, err := p.step(ctx, StageMerge, func() (pdfservices.Handle, error) {
			return p.pdf.Merge(ctx, handles)
		})
		if err != nil {
			return PackResult{}, err
		}
		working = h
		tracker.done("Merged documents")
	} else {
		if len(buffers) > 1 {
			p.logger.Warn("Merge not requested, pack carries only the first document",
				zap.String("document_type", string(categories[0])),
				zap.Int("dropped", len(buffers)-1),
			)
		}
		h, err := p.step(ctx, StageUpload, func() (pdfservices.Handle, error) {
			return p.pdf.Upload(ctx, buffers[0], fmt.Sprintf("%s.pdf", categories[0]), "application/pdf")
		})
		if err != nil {
			return PackResult{}, err
		}
		working = h
	}

	type postStep struct {
		enabled bool
		stage   string
		label   string
		apply   func(pdfservices.Handle) (pdfservices.Handle, error)
	}
	watermark := opts.WatermarkText
	if watermark == "" {
		watermark = "Confidential - " + p.companyName
	}
	steps := []postStep{
		{opts.Compress, StageCompress, "Compressed PDF", func(h pdfservices.Handle) (pdfservices.Handle, error) {
			return p.pdf.Compress(ctx, h, pdfservices.CompressionMedium)
		}},
		{opts.ConvertToPDFA, StagePDFA, "Converted to PDF/A", func(h pdfservices.Handle) (pdfservices.Handle, error) {
			return p.pdf.ConvertToPDFA(ctx, h, pdfservices.DefaultPDFAConformance)
		}},
		{protect, StageProtect, "Protected PDF", func(h pdfservices.Handle) (pdfservices.Handle, error) {
			return p.pdf.Protect(ctx, h, password)
		}},
		{opts.AddWatermark, StageWatermark, "Added watermark", func(h pdfservices.Handle) (pdfservices.Handle, error) {
			return p.pdf.Watermark(ctx, h, pdfservices.Watermark{Text: watermark})
		}},
		{opts.AddPageNumbers, StagePageNumber, "Added page numbers", func(h pdfservices.Handle) (pdfservices.Handle, error) {
			return p.pdf.AddPageNumbers(ctx, h)
		}},
	}
	for _, s := range steps {
		if !s.enabled {
			continue
		}
		in := working
		h, err := p.step(ctx, s.stage, func() (pdfservices.Handle, error) { return s.apply(in) })
		if err != nil {
			return PackResult{}, err
		}
		working = h
		tracker.done(s.label)
	}

	if err := p.checkCancelled(ctx, StageDownload); err != nil {
		return PackResult{}, err
	}
	final, err := p.pdf.Download(ctx, working)
	p.metrics.Step(StageDownload, err)
	if err != nil {
		return PackResult{}, &e.StageError{Stage: StageDownload, Err: err}
	}

	result := PackResult{Data: final, Size: len(final), PageCount: pageCount(final, p.logger)}
	p.logger.Info("Pack assembled",
		zap.String("employee_id", employee.EmployeeID),
		zap.Int("size", result.Size),
		zap.Int("pages", result.PageCount),
	)
	return result, nil
}

func (p *Pipeline) generate(ctx context.Context, emp *models.Employee, category models.Category) ([]byte, error) {
	stage := StageGenerate + ":" + string(category)
	if err := p.checkCancelled(ctx, stage); err != nil {
		return nil, err
	}
	template, _, err := p.templates.Build(category)
	if err != nil {
		return nil, &e.StageError{Stage: stage, Err: err}
	}
	values := templates.BuildValues(emp, p.companyName, p.now())
	data, err := p.docgen.Generate(ctx, template, values, outputFormat)
	p.metrics.Step(StageGenerate, err)
	if err != nil {
		p.logger.Error("Document generation failed",
			zap.String("document_type", string(category)),
			zap.Error(err),
		)
		return nil, &e.StageError{Stage: stage, Err: err}
	}
	p.logger.Debug("Document generated",
		zap.String("document_type", string(category)),
		zap.Int("size", len(data)),
	)
	return data, nil
}

func (p *Pipeline) step(ctx context.Context, stage string, fn func() (pdfservices.Handle, error)) (pdfservices.Handle, error) {
	if err := p.checkCancelled(ctx, stage); err != nil {
		return "", err
	}
	h, err := fn()
	p.metrics.Step(stage, err)
	if err != nil {
		p.logger.Error("Pipeline step failed", zap.String("stage", stage), zap.Error(err))
		return "", &e.StageError{Stage: stage, Err: err}
	}
	return h, nil
}

func (p *Pipeline) checkCancelled(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return &e.StageError{Stage: stage, Err: fmt.Errorf("%w: %w", e.ErrCancelled, err)}
	}
	return nil
}

type progressTracker struct {
	report    ProgressFunc
	total     int
	completed int
}

func newProgress(report ProgressFunc, total int) *progressTracker {
	return &progressTracker{report: report, total: total}
}

func (t *progressTracker) start(step string) {
	if t.report != nil {
		t.report(step, 0)
	}
}

func (t *progressTracker) done(step string) {
	t.completed++
	if t.report == nil {
		return
	}
	percent := 100
	if t.completed < t.total {
		percent = (t.completed*100 + t.total/2) / t.total
	}
	t.report(step, percent)
}

func countTrue(flags ...bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

var disableConfigDir sync.Once

// pageCount is best effort; zero means the page count is unknown.
func pageCount(data []byte, logger *zap.Logger) (n int) {
	disableConfigDir.Do(api.DisableConfigDir)
	defer func() {
		if r := recover(); r != nil {
			logger.Debug("Page count unavailable", zap.Any("panic", r))
			n = 0
		}
	}()
	n, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		logger.Debug("Page count unavailable", zap.Error(err))
		return 0
	}
	return n
}
