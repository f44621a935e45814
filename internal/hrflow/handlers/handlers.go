package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gartstein/hrflow/internal/hrflow/controller"
	e "github.com/gartstein/hrflow/internal/hrflow/errors"
	"github.com/gartstein/hrflow/internal/hrflow/metrics"
	"github.com/gartstein/hrflow/internal/hrflow/models"
	"github.com/gartstein/hrflow/internal/hrflow/roster"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const maxUploadBytes = 32 << 20

// DocumentController defines the business logic interface the HTTP
// handlers invoke.
type DocumentController interface {
	GenerateDocument(ctx context.Context, emp *models.Employee, category models.Category) (*models.GeneratedDocument, error)
	Regenerate(ctx context.Context, id string, emp *models.Employee) (*models.GeneratedDocument, error)
	CreatePack(ctx context.Context, emp *models.Employee, categories []models.Category, opts models.PackOptions, progress controller.ProgressFunc) (*models.Pack, controller.PackResult, error)
	BulkGenerate(ctx context.Context, employees []*models.Employee) []controller.BulkResult
	Download(ctx context.Context, id string) (*models.GeneratedDocument, error)
	ListDocuments(ctx context.Context, employeeID string) ([]*models.GeneratedDocument, error)
	ListPacks(ctx context.Context, employeeID string) ([]*models.Pack, error)
}

// Handler implements the onboarding API.
type Handler struct {
	docs     DocumentController
	pdf      PDFTools
	presence func() map[string]string
	validate *validator.Validate
	now      func() time.Time
	logger   *zap.Logger
}

// NewHandler creates a Handler. presence reports which credentials are
// configured for /api/check-config.
func NewHandler(docs DocumentController, pdf PDFTools, presence func() map[string]string, logger *zap.Logger) *Handler {
	return &Handler{
		docs:     docs,
		pdf:      pdf,
		presence: presence,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
		logger:   logger.Named("http_handler"),
	}
}

// Routes builds the router. gatherer backs /metrics; nil leaves it out.
func (h *Handler) Routes(rec *metrics.Recorder, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(rec.Middleware)

	r.Get("/health", h.health)
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate-document", h.generateDocument)
		r.Post("/create-pack", h.createPack)
		r.Post("/bulk-generate", h.bulkGenerate)
		r.Post("/pdf-services", h.pdfServices)
		r.Post("/roster", h.importRoster)
		r.Get("/download/{docId}", h.download)
		r.Get("/check-config", h.checkConfig)
		r.Get("/documents", h.listDocuments)
		r.Post("/documents/{id}/regenerate", h.regenerate)
		r.Get("/packs", h.listPacks)
	})
	return r
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// decode reads a JSON body into dst and validates it.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", e.ErrInvalidInput, err)
	}
	if err := h.validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (h *Handler) generateDocument(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	category, err := models.ParseCategory(req.DocumentType)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("Generating document",
		zap.String("document_type", string(category)),
		zap.String("employee_id", req.EmployeeData.EmployeeID),
	)
	doc, err := h.docs.GenerateDocument(r.Context(), req.EmployeeData, category)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, toGenerateResponse(doc))
}

func (h *Handler) regenerate(w http.ResponseWriter, r *http.Request) {
	var req regenerateRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	doc, err := h.docs.Regenerate(r.Context(), chi.URLParam(r, "id"), req.EmployeeData)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, toGenerateResponse(doc))
}

func toGenerateResponse(doc *models.GeneratedDocument) generateResponse {
	return generateResponse{
		Success:      true,
		DocID:        doc.ID,
		Base64Data:   base64.StdEncoding.EncodeToString(doc.Payload),
		FileSize:     doc.Size,
		DocumentType: doc.Category,
		EmployeeName: doc.EmployeeName,
	}
}

func (h *Handler) createPack(w http.ResponseWriter, r *http.Request) {
	var req packRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	categories, err := parseCategories(req.DocumentTypes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	progress := func(step string, percent int) {
		h.logger.Debug("Pack progress", zap.String("step", step), zap.Int("percent", percent))
	}
	pack, result, err := h.docs.CreatePack(r.Context(), req.Employee, categories, req.Options, progress)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, packResponse{
		Success:       true,
		PackID:        pack.ID,
		Base64Data:    base64.StdEncoding.EncodeToString(result.Data),
		FileSize:      result.Size,
		PageCount:     result.PageCount,
		EmployeeName:  req.Employee.FullName,
		DocumentCount: len(categories),
	})
}

func (h *Handler) bulkGenerate(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Info("Bulk generating", zap.Int("employees", len(req.Employees)))
	render.JSON(w, r, bulkResponse{
		Success: true,
		Results: h.docs.BulkGenerate(r.Context(), req.Employees),
	})
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "docId")
	doc, err := h.docs.Download(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="hrflow-document-%s.pdf"`, doc.ID))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Payload); err != nil {
		h.logger.Warn("Failed to write download", zap.String("document_id", id), zap.Error(err))
	}
}

func (h *Handler) checkConfig(w http.ResponseWriter, r *http.Request) {
	env := map[string]string{}
	if h.presence != nil {
		env = h.presence()
	}
	render.JSON(w, r, map[string]any{
		"runtime":   "Go",
		"env":       env,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.docs.ListDocuments(r.Context(), r.URL.Query().Get("employeeId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"documents": docs})
}

func (h *Handler) listPacks(w http.ResponseWriter, r *http.Request) {
	packs, err := h.docs.ListPacks(r.Context(), r.URL.Query().Get("employeeId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"packs": packs})
}

func (h *Handler) importRoster(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: invalid request format: %v", e.ErrInvalidInput, err))
		return
	}
	data, header, err := formFile(r, "file")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rows, err := roster.Parse(data, roster.DetectFormat(header.Filename, data), roster.Options{Now: h.now()})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	valid := len(roster.Employees(rows))
	render.JSON(w, r, map[string]any{
		"success": true,
		"rows":    rows,
		"valid":   valid,
		"invalid": len(rows) - valid,
	})
}

// formFile reads a whole multipart file part. A missing part is invalid input.
func formFile(r *http.Request, field string) ([]byte, *multipart.FileHeader, error) {
	f, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil, fmt.Errorf("%w: no %s provided", e.ErrInvalidInput, field)
		}
		return nil, nil, fmt.Errorf("%w: read %s: %v", e.ErrInvalidInput, field, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", field, err)
	}
	return data, header, nil
}
