package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gartstein/hrflow/internal/hrflow/controller"
	e "github.com/gartstein/hrflow/internal/hrflow/errors"
	"github.com/gartstein/hrflow/internal/hrflow/models"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type generateRequest struct {
	EmployeeData *models.Employee `json:"employeeData" validate:"required"`
	DocumentType string           `json:"documentType" validate:"required"`
}

type generateResponse struct {
	Success      bool            `json:"success"`
	DocID        string          `json:"docId"`
	Base64Data   string          `json:"base64Data"`
	FileSize     int             `json:"fileSize"`
	DocumentType models.Category `json:"documentType"`
	EmployeeName string          `json:"employeeName"`
}

type regenerateRequest struct {
	EmployeeData *models.Employee `json:"employeeData" validate:"required"`
}

type packRequest struct {
	Employee      *models.Employee   `json:"employee" validate:"required"`
	DocumentTypes []string           `json:"documentTypes" validate:"required,min=1"`
	Options       models.PackOptions `json:"options"`
}

type packResponse struct {
	Success       bool   `json:"success"`
	PackID        string `json:"packId"`
	Base64Data    string `json:"base64Data"`
	FileSize      int    `json:"fileSize"`
	PageCount     int    `json:"pageCount,omitempty"`
	EmployeeName  string `json:"employeeName"`
	DocumentCount int    `json:"documentCount"`
}

type bulkRequest struct {
	Employees []*models.Employee `json:"employees" validate:"required,min=1,dive,required"`
}

type bulkResponse struct {
	Success bool                    `json:"success"`
	Results []controller.BulkResult `json:"results"`
}

type pdfToolResponse struct {
	Success   bool   `json:"success"`
	Base64    string `json:"base64"`
	Size      int    `json:"size"`
	Operation string `json:"operation"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// parseCategories converts requested document type names, rejecting
// unknown ones.
func parseCategories(raw []string) ([]models.Category, error) {
	out := make([]models.Category, 0, len(raw))
	for _, r := range raw {
		c, err := models.ParseCategory(r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// validationError flattens validator errors into one ErrInvalidInput.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", e.ErrInvalidInput, err)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", e.ErrInvalidInput, strings.Join(parts, ", "))
}

// statusClientClosedRequest is reported when the caller went away before the
// work finished.
const statusClientClosedRequest = 499

// mapServiceError maps domain and remote errors to HTTP status codes.
func (h *Handler) mapServiceError(err error) int {
	switch {
	case errors.Is(err, e.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, e.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, e.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, e.ErrConfiguration):
		return http.StatusServiceUnavailable
	case errors.Is(err, e.ErrTaskTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, e.ErrCancelled):
		return statusClientClosedRequest
	case errors.Is(err, e.ErrAuthentication),
		errors.Is(err, e.ErrRequestRejected),
		errors.Is(err, e.ErrUnexpectedResponse),
		errors.Is(err, e.ErrTaskFailed),
		errors.Is(err, e.ErrTransient):
		return http.StatusBadGateway
	default:
		h.logger.Error("Internal server error", zap.Error(err))
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := h.mapServiceError(err)
	switch {
	case status < http.StatusInternalServerError:
		h.logger.Debug("Request rejected", zap.Int("status", status), zap.Error(err))
	case status != http.StatusInternalServerError:
		h.logger.Warn("Request failed", zap.Int("status", status), zap.Error(err))
	}
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: err.Error()})
}
