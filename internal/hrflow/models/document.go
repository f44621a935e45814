package models

import (
	"fmt"
	"time"

	e "github.com/gartstein/hrflow/internal/hrflow/errors"
)

// Category is a document type that can be generated for an employee.
type Category string

const (
	OfferLetter       Category = "offer-letter"
	NDA               Category = "nda"
	PolicyHandbook    Category = "policy-handbook"
	TaxDeclaration    Category = "tax-declaration"
	AppointmentLetter Category = "appointment-letter"
)

// Categories lists every supported category in display order.
var Categories = []Category{
	OfferLetter,
	NDA,
	PolicyHandbook,
	TaxDeclaration,
	AppointmentLetter,
}

var categoryLabels = map[Category]string{
	OfferLetter:       "Offer Letter",
	NDA:               "NDA Agreement",
	PolicyHandbook:    "Employee Policy Handbook",
	TaxDeclaration:    "Tax Declaration Form",
	AppointmentLetter: "Appointment Letter",
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label is the human readable name of the category.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// ParseCategory validates a raw category name.
func ParseCategory(raw string) (Category, error) {
	c := Category(raw)
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown document type %q", e.ErrInvalidInput, raw)
	}
	return c, nil
}

// DocumentStatus tracks a generated document through its lifecycle.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusGenerating DocumentStatus = "generating"
	StatusReady      DocumentStatus = "ready"
	StatusError      DocumentStatus = "error"
)

// Terminal reports whether no further automatic transition will happen.
func (s DocumentStatus) Terminal() bool {
	return s == StatusReady || s == StatusError
}

// CanTransition enforces pending -> generating -> {ready|error}, with
// regeneration allowed from either terminal state.
func (s DocumentStatus) CanTransition(to DocumentStatus) bool {
	switch s {
	case StatusPending:
		return to == StatusGenerating
	case StatusGenerating:
		return to == StatusReady || to == StatusError
	case StatusReady, StatusError:
		return to == StatusGenerating
	default:
		return false
	}
}

// GeneratedDocument is the outcome of running one category for one employee.
type GeneratedDocument struct {
	ID                string         `json:"id"`
	EmployeeID        string         `json:"employeeId"`
	EmployeeName      string         `json:"employeeName"`
	Category          Category       `json:"documentType"`
	Status            DocumentStatus `json:"status"`
	Payload           []byte         `json:"-"`
	Size              int            `json:"fileSize,omitempty"`
	GeneratedAt       *time.Time     `json:"generatedAt,omitempty"`
	ErrorMessage      string         `json:"errorMessage,omitempty"`
	OperationsApplied []string       `json:"operationsApplied,omitempty"`
}

// Transition moves the document to status to, rejecting illegal edges.
func (d *GeneratedDocument) Transition(to DocumentStatus) error {
	if !d.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", e.ErrInvalidTransition, d.Status, to)
	}
	d.Status = to
	return nil
}

// MarkReady stores the rendered payload and moves the document to ready.
func (d *GeneratedDocument) MarkReady(payload []byte, at time.Time) error {
	if err := d.Transition(StatusReady); err != nil {
		return err
	}
	d.Payload = payload
	d.Size = len(payload)
	d.GeneratedAt = &at
	d.ErrorMessage = ""
	return nil
}

// MarkFailed attaches the failure message and moves the document to error.
func (d *GeneratedDocument) MarkFailed(cause error) error {
	if err := d.Transition(StatusError); err != nil {
		return err
	}
	d.Payload = nil
	d.Size = 0
	if cause != nil {
		d.ErrorMessage = cause.Error()
	}
	return nil
}
