package controller

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	e "github.com/gartstein/hrflow/internal/hrflow/errors"
	"github.com/gartstein/hrflow/internal/hrflow/events"
	"github.com/gartstein/hrflow/internal/hrflow/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultBulkCategories is used for bulk rows that do not name any documents.
var DefaultBulkCategories = []models.Category{models.OfferLetter, models.NDA, models.AppointmentLetter}

type EventProducer interface {
	Produce(event events.Event)
}

// Repository defines the storage interface for document and pack history.
type Repository interface {
	SaveDocument(ctx context.Context, doc *models.GeneratedDocument) error
	GetDocument(ctx context.Context, id string) (*models.GeneratedDocument, error)
	ListDocuments(ctx context.Context, employeeID string) ([]*models.GeneratedDocument, error)
	SavePack(ctx context.Context, pack *models.Pack) error
	ListPacks(ctx context.Context, employeeID string) ([]*models.Pack, error)
}

// Runner executes the assembly chains. *Pipeline implements it.
type Runner interface {
	RunSingle(ctx context.Context, emp *models.Employee, category models.Category) (SingleResult, error)
	RunPack(ctx context.Context, emp *models.Employee, categories []models.Category, opts models.PackOptions, progress ProgressFunc) (PackResult, error)
}

// BulkDocument is the outcome of one category for one employee in a bulk run.
type BulkDocument struct {
	DocumentID   string          `json:"docId,omitempty"`
	DocumentType models.Category `json:"documentType"`
	Status       string          `json:"status"`
	Base64Data   string          `json:"base64Data,omitempty"`
	FileSize     int             `json:"fileSize,omitempty"`
	Error        string          `json:"error,omitempty"`
}

type BulkResult struct {
	EmployeeID   string         `json:"employeeId"`
	EmployeeName string         `json:"employeeName"`
	Documents    []BulkDocument `json:"documents"`
}

// DocumentService records every generated document and pack in the
// repository and announces their outcome through the event producer.
type DocumentService struct {
	runner      Runner
	repo        Repository
	producer    EventProducer
	concurrency int
	now         func() time.Time
	logger      *zap.Logger
}

func NewDocumentService(runner Runner, repo Repository, producer EventProducer, concurrency int, logger *zap.Logger) *DocumentService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &DocumentService{
		runner:      runner,
		repo:        repo,
		producer:    producer,
		concurrency: concurrency,
		now:         time.Now,
		logger:      logger.Named("document_service"),
	}
}

// GenerateDocument renders one category and stores the result. When
// rendering fails the document is still stored in the error state and
// returned together with the error.
func (s *DocumentService) GenerateDocument(ctx context.Context, emp *models.Employee, category models.Category) (*models.GeneratedDocument, error) {
	if emp == nil {
		return nil, fmt.Errorf("%w: employee is required", e.ErrInvalidInput)
	}
	if !category.Valid() {
		return nil, fmt.Errorf("%w: unknown document type %q", e.ErrInvalidInput, category)
	}
	doc := &models.GeneratedDocument{
		ID:           uuid.NewString(),
		EmployeeID:   employeeKey(emp),
		EmployeeName: emp.FullName,
		Category:     category,
		Status:       models.StatusPending,
	}
	return s.render(ctx, emp, doc)
}

// Regenerate renders an existing ready or failed document again.
func (s *DocumentService) Regenerate(ctx context.Context, id string, emp *models.Employee) (*models.GeneratedDocument, error) {
	if emp == nil {
		return nil, fmt.Errorf("%w: employee is required", e.ErrInvalidInput)
	}
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	if !doc.Status.Terminal() {
		return nil, fmt.Errorf("%w: document %s is %s", e.ErrInvalidTransition, id, doc.Status)
	}
	return s.render(ctx, emp, doc)
}

func (s *DocumentService) render(ctx context.Context, emp *models.Employee, doc *models.GeneratedDocument) (*models.GeneratedDocument, error) {
	if err := doc.Transition(models.StatusGenerating); err != nil {
		return nil, err
	}
	if err := s.repo.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	result, runErr := s.runner.RunSingle(ctx, emp, doc.Category)
	var payload []byte
	if runErr == nil {
		var err error
		if payload, err = base64.StdEncoding.DecodeString(result.Base64); err != nil {
			runErr = fmt.Errorf("%w: rendered document is not base64: %w", e.ErrUnexpectedResponse, err)
		}
	}

	if runErr != nil {
		if err := doc.MarkFailed(runErr); err != nil {
			return nil, err
		}
		doc.OperationsApplied = nil
		s.logger.Warn("Document generation failed",
			zap.String("document_id", doc.ID),
			zap.String("document_type", string(doc.Category)),
			zap.Error(runErr),
		)
	} else {
		if err := doc.MarkReady(payload, s.now().UTC()); err != nil {
			return nil, err
		}
		doc.OperationsApplied = []string{StageGenerate}
	}

	// The caller's context may already be cancelled; the outcome is still recorded.
	if err := s.repo.SaveDocument(context.WithoutCancel(ctx), doc); err != nil {
		s.logger.Error("Failed to save document outcome", zap.String("document_id", doc.ID), zap.Error(err))
		if runErr == nil {
			return nil, fmt.Errorf("failed to save document: %w", err)
		}
	}

	if runErr != nil {
		s.producer.Produce(events.DocumentEvent(events.DocumentFailed, doc))
		return doc, runErr
	}
	s.producer.Produce(events.DocumentEvent(events.DocumentGenerated, doc))
	return doc, nil
}

// CreatePack assembles a pack and records it. The returned pack carries the
// final status even when err is non-nil.
func (s *DocumentService) CreatePack(ctx context.Context, emp *models.Employee, categories []models.Category, opts models.PackOptions, progress ProgressFunc) (*models.Pack, PackResult, error) {
	if emp == nil {
		return nil, PackResult{}, fmt.Errorf("%w: employee is required", e.ErrInvalidInput)
	}
	pack := &models.Pack{
		ID:           uuid.NewString(),
		EmployeeID:   employeeKey(emp),
		EmployeeName: emp.FullName,
		Categories:   categories,
		Options:      opts,
		Status:       models.PackProcessing,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.SavePack(ctx, pack); err != nil {
		return nil, PackResult{}, fmt.Errorf("failed to save pack: %w", err)
	}

	result, runErr := s.runner.RunPack(ctx, emp, categories, opts, progress)
	if runErr != nil {
		pack.Status = models.PackError
		pack.ErrorMessage = runErr.Error()
	} else {
		pack.Status = models.PackReady
		pack.Size = result.Size
		pack.PageCount = result.PageCount
	}

	if err := s.repo.SavePack(context.WithoutCancel(ctx), pack); err != nil {
		s.logger.Error("Failed to save pack outcome", zap.String("pack_id", pack.ID), zap.Error(err))
		if runErr == nil {
			return nil, PackResult{}, fmt.Errorf("failed to save pack: %w", err)
		}
	}

	if runErr != nil {
		s.logger.Warn("Pack assembly failed", zap.String("pack_id", pack.ID), zap.Error(runErr))
		s.producer.Produce(events.PackEvent(events.PackFailed, pack))
		return pack, PackResult{}, runErr
	}
	s.logger.Info("Pack assembled",
		zap.String("pack_id", pack.ID),
		zap.Int("documents", len(categories)),
		zap.Int("size", result.Size),
	)
	s.producer.Produce(events.PackEvent(events.PackCreated, pack))
	return pack, result, nil
}

// BulkGenerate renders documents for many employees. Employees run
// concurrently up to the configured limit; each employee's documents run
// one after another. A failing document never aborts the batch.
func (s *DocumentService) BulkGenerate(ctx context.Context, employees []*models.Employee) []BulkResult {
	results := make([]BulkResult, len(employees))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, emp := range employees {
		g.Go(func() error {
			results[i] = s.generateAll(gctx, emp)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *DocumentService) generateAll(ctx context.Context, emp *models.Employee) BulkResult {
	if emp == nil {
		return BulkResult{}
	}
	categories := emp.DocumentsToGenerate
	if len(categories) == 0 {
		categories = DefaultBulkCategories
	}
	out := BulkResult{
		EmployeeID:   employeeKey(emp),
		EmployeeName: emp.FullName,
		Documents:    make([]BulkDocument, 0, len(categories)),
	}
	for _, c := range categories {
		item := BulkDocument{DocumentType: c}
		doc, err := s.GenerateDocument(ctx, emp, c)
		if doc != nil {
			item.DocumentID = doc.ID
		}
		if err != nil {
			item.Status = string(models.StatusError)
			item.Error = err.Error()
		} else {
			item.Status = string(doc.Status)
			item.Base64Data = base64.StdEncoding.EncodeToString(doc.Payload)
			item.FileSize = doc.Size
		}
		out.Documents = append(out.Documents, item)
	}
	return out
}

// Download returns a ready document with its payload.
func (s *DocumentService) Download(ctx context.Context, id string) (*models.GeneratedDocument, error) {
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	if doc.Status != models.StatusReady || len(doc.Payload) == 0 {
		return nil, fmt.Errorf("%w: document %s has no rendered payload", e.ErrNotFound, id)
	}
	return doc, nil
}

func (s *DocumentService) ListDocuments(ctx context.Context, employeeID string) ([]*models.GeneratedDocument, error) {
	docs, err := s.repo.ListDocuments(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

func (s *DocumentService) ListPacks(ctx context.Context, employeeID string) ([]*models.Pack, error) {
	packs, err := s.repo.ListPacks(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list packs: %w", err)
	}
	return packs, nil
}

func employeeKey(emp *models.Employee) string {
	if emp.EmployeeID != "" {
		return emp.EmployeeID
	}
	return emp.ID
}
