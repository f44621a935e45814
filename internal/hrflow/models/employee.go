// Package models defines the domain types for employees, generated
// documents and onboarding packs.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of every date field (birth date, start date).
const DateLayout = "2006-01-02"

var (
	basicShareOfCTC = decimal.New(4, -1) // 40%
	hraShareOfBasic = decimal.New(2, -1) // 20%
	monthsPerYear   = decimal.NewFromInt(12)
)

// Employee is the record documents are generated for. Monetary fields are
// whole rupees.
type Employee struct {
	ID string `json:"id"`
	// Personal
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone"`
	DOB      string `json:"dob" validate:"omitempty,datetime=2006-01-02"`
	Address  string `json:"address"`
	// Employment
	EmployeeID       string `json:"employeeId"`
	Designation      string `json:"designation" validate:"required"`
	Department       string `json:"department"`
	EmploymentType   string `json:"employmentType"`
	StartDate        string `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	ProbationPeriod  string `json:"probationPeriod"`
	ReportingManager string `json:"reportingManager"`
	WorkLocation     string `json:"workLocation"`
	// Compensation
	AnnualCTC        int64 `json:"annualCTC" validate:"gte=0"`
	BasicSalary      int64 `json:"basicSalary" validate:"gte=0"`
	HRA              int64 `json:"hra" validate:"gte=0"`
	SpecialAllowance int64 `json:"specialAllowance" validate:"gte=0"`
	PFContribution   int64 `json:"pfContribution" validate:"gte=0"`

	CreatedAt           time.Time  `json:"createdAt"`
	DocumentsToGenerate []Category `json:"documentsToGenerate"`
}

// DeriveBasicSalary returns the monthly basic salary for an annual CTC:
// round(ctc * 0.4 / 12).
func DeriveBasicSalary(annualCTC int64) int64 {
	return decimal.NewFromInt(annualCTC).
		Mul(basicShareOfCTC).
		Div(monthsPerYear).
		Round(0).
		IntPart()
}

// DeriveHRA returns the monthly house rent allowance: round(basic * 0.2).
func DeriveHRA(basicSalary int64) int64 {
	return decimal.NewFromInt(basicSalary).
		Mul(hraShareOfBasic).
		Round(0).
		IntPart()
}

// Normalize fills derived compensation fields that were not explicitly set.
// Non-zero values are treated as overrides and left alone.
func (e *Employee) Normalize() {
	if e.BasicSalary == 0 {
		e.BasicSalary = DeriveBasicSalary(e.AnnualCTC)
	}
	if e.HRA == 0 {
		e.HRA = DeriveHRA(e.BasicSalary)
	}
}

// BirthDate parses DOB. ok is false when the field is empty.
func (e *Employee) BirthDate() (t time.Time, ok bool, err error) {
	dob := strings.TrimSpace(e.DOB)
	if dob == "" {
		return time.Time{}, false, nil
	}
	t, err = time.Parse(DateLayout, dob)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse birth date %q: %w", dob, err)
	}
	return t, true, nil
}

// DocumentPassword derives the pack password from the birth date as
// DDMMYYYY. ok is false when no birth date is recorded.
func (e *Employee) DocumentPassword() (string, bool, error) {
	dob, ok, err := e.BirthDate()
	if err != nil || !ok {
		return "", false, err
	}
	return dob.Format("02012006"), true, nil
}
