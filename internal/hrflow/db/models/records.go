// Package models contains the persisted shapes of generated documents and
// packs, configured for GORM.
package models

import (
	"time"
)

// DocumentRecord is one generated document row. The rendered payload is
// kept as base64 text.
type DocumentRecord struct {
	ID                string `gorm:"type:varchar(36);primaryKey"`
	EmployeeID        string `gorm:"size:64;index"`
	EmployeeName      string `gorm:"size:255"`
	DocumentType      string `gorm:"size:32;index"`
	Status            string `gorm:"size:16"`
	Payload           string `gorm:"type:text"`
	Size              int
	GeneratedAt       *time.Time
	ErrorMessage      string `gorm:"type:text"`
	OperationsApplied string `gorm:"size:255"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PackRecord is one assembled pack row. Options are stored as JSON.
type PackRecord struct {
	ID            string `gorm:"type:varchar(36);primaryKey"`
	EmployeeID    string `gorm:"size:64;index"`
	EmployeeName  string `gorm:"size:255"`
	DocumentTypes string `gorm:"size:255"`
	Options       string `gorm:"type:text"`
	Status        string `gorm:"size:16"`
	Size          int
	PageCount     int
	ErrorMessage  string `gorm:"type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
