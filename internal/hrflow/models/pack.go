package models

import "time"

// PackOptions are the independent post-processing toggles for a pack.
type PackOptions struct {
	Merge           bool   `json:"merge" yaml:"merge"`
	Compress        bool   `json:"compress" yaml:"compress"`
	PasswordProtect bool   `json:"passwordProtect" yaml:"passwordProtect"`
	ConvertToPDFA   bool   `json:"convertToPDFA" yaml:"convertToPDFA"`
	AddWatermark    bool   `json:"addWatermark" yaml:"addWatermark"`
	AddPageNumbers  bool   `json:"addPageNumbers" yaml:"addPageNumbers"`
	WatermarkText   string `json:"watermarkText,omitempty" yaml:"watermarkText,omitempty"`
}

// PackStatus tracks an onboarding pack request.
type PackStatus string

const (
	PackPending    PackStatus = "pending"
	PackProcessing PackStatus = "processing"
	PackReady      PackStatus = "ready"
	PackError      PackStatus = "error"
)

// Pack is one assembled onboarding pack for an employee.
type Pack struct {
	ID           string      `json:"id"`
	EmployeeID   string      `json:"employeeId"`
	EmployeeName string      `json:"employeeName"`
	Categories   []Category  `json:"documentTypes"`
	Options      PackOptions `json:"options"`
	Status       PackStatus  `json:"status"`
	Size         int         `json:"fileSize,omitempty"`
	PageCount    int         `json:"pageCount,omitempty"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
}
