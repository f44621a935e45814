// Package templates builds the in-memory DOCX templates for every document
// category and maps an employee onto their placeholder tokens.
package templates

import (
	"fmt"
	"slices"
	"strings"

	e "github.com/gartstein/hrflow/internal/hrflow/errors"
	"github.com/gartstein/hrflow/internal/hrflow/models"
	"go.uber.org/zap"
)

var variables = map[models.Category][]string{
	models.OfferLetter: {
		"company_name", "candidate_name", "designation", "department",
		"start_date", "annual_ctc", "basic_salary", "hra",
		"probation_period", "reporting_manager", "work_location",
		"employee_id", "generated_date",
	},
	models.NDA: {
		"company_name", "candidate_name", "designation",
		"start_date", "employee_id", "generated_date",
	},
	models.PolicyHandbook: {
		"company_name", "candidate_name", "designation",
		"department", "employee_id", "generated_date",
	},
	models.TaxDeclaration: {
		"candidate_name", "employee_id", "designation",
		"annual_ctc", "financial_year", "generated_date",
	},
	models.AppointmentLetter: {
		"company_name", "candidate_name", "designation",
		"department", "start_date", "employee_id", "generated_date",
	},
}

// Variables returns the token names a category's template requires.
func Variables(category models.Category) []string {
	return slices.Clone(variables[category])
}

// Build returns the DOCX template for category and the tokens it contains.
func Build(category models.Category) ([]byte, []string, error) {
	content, ok := contents[category]
	if !ok {
		return nil, nil, fmt.Errorf("%w: no template for %q", e.ErrInvalidInput, category)
	}
	return renderDocx(content())
}

// Builder serves templates, going through the disk cache when one is set.
type Builder struct {
	cache  *Cache
	logger *zap.Logger
}

func NewBuilder(cache *Cache, logger *zap.Logger) *Builder {
	return &Builder{cache: cache, logger: logger.Named("templates")}
}

func (b *Builder) Build(category models.Category) ([]byte, []string, error) {
	if cached, ok := b.cache.Load(category); ok {
		return cached, Variables(category), nil
	}
	doc, tokens, err := Build(category)
	if err != nil {
		return nil, nil, err
	}
	b.cache.Store(category, doc)
	b.logger.Debug("Template built",
		zap.String("category", string(category)),
		zap.Int("size", len(doc)),
		zap.Int("tokens", len(tokens)),
	)
	return doc, tokens, nil
}

var contents = map[models.Category]func() []paragraph{
	models.OfferLetter:       offerLetter,
	models.NDA:               nda,
	models.PolicyHandbook:    policyHandbook,
	models.TaxDeclaration:    taxDeclaration,
	models.AppointmentLetter: appointmentLetter,
}

func header(title, organisation string) []paragraph {
	return []paragraph{
		{text: organisation, style: styleTitle},
		{text: "Human Resources Department", style: styleCentered},
		blank(),
		{text: strings.Repeat("─", 60), style: styleCentered},
		blank(),
		{text: title, style: styleTitle},
		blank(),
		{text: "Date: {{generated_date}}", style: styleRight},
		blank(),
	}
}

func signature() []paragraph {
	return []paragraph{
		blank(),
		p(strings.Repeat("─", 30)),
		p("Authorized Signatory"),
		{text: "{{company_name}}", style: styleNote},
		blank(),
		p("Employee Acceptance:"),
		p("Signature: ____________________________    Date: _______________"),
		p("Name: {{candidate_name}}"),
	}
}

func offerLetter() []paragraph {
	doc := header("OFFER LETTER", "{{company_name}}")
	doc = append(doc,
		p("Dear {{candidate_name}},"),
		blank(),
		p("We are pleased to extend this offer of employment to you at {{company_name}} for the position of {{designation}} in the {{department}} department."),
		blank(),
		heading("Employment Details"),
		p("Employee ID: {{employee_id}}"),
		p("Designation: {{designation}}"),
		p("Department: {{department}}"),
		p("Start Date: {{start_date}}"),
		p("Reporting Manager: {{reporting_manager}}"),
		p("Work Location: {{work_location}}"),
		p("Probation Period: {{probation_period}}"),
		blank(),
		heading("Compensation"),
		p("Annual CTC: {{annual_ctc}}"),
		p("Basic Salary: {{basic_salary}}"),
		p("House Rent Allowance: {{hra}}"),
		blank(),
		p("This offer is subject to satisfactory verification of your credentials and background. Please sign and return a copy of this letter as a token of your acceptance."),
		blank(),
		p("We look forward to welcoming you to the team."),
	)
	return append(doc, signature()...)
}

func nda() []paragraph {
	doc := header("NON-DISCLOSURE AGREEMENT", "{{company_name}}")
	doc = append(doc,
		p("This Non-Disclosure Agreement is entered into between {{company_name}} (the \"Company\") and {{candidate_name}} (the \"Employee\"), Employee ID {{employee_id}}, joining as {{designation}} with effect from {{start_date}}."),
		blank(),
		heading("1. Confidential Information"),
		p("Confidential Information includes all technical, commercial and personal data disclosed by the Company, whether in writing, orally or by inspection."),
		heading("2. Obligations"),
		p("The Employee shall not disclose Confidential Information to any third party and shall use it solely for the performance of their duties."),
		heading("3. Term"),
		p("These obligations survive the termination of employment for a period of three years."),
		heading("4. Return of Materials"),
		p("On leaving the Company the Employee shall return all documents and materials containing Confidential Information."),
	)
	return append(doc, signature()...)
}

func policyHandbook() []paragraph {
	doc := header("EMPLOYEE POLICY HANDBOOK", "{{company_name}}")
	doc = append(doc,
		p("Welcome to {{company_name}}, {{candidate_name}}."),
		p("This handbook applies to you as {{designation}} in the {{department}} department (Employee ID {{employee_id}})."),
		blank(),
		heading("Code of Conduct"),
		p("Employees are expected to act with integrity, treat colleagues with respect and comply with applicable laws."),
		heading("Working Hours and Leave"),
		p("Standard working hours, holidays and leave entitlements are published on the HR portal and may be revised from time to time."),
		heading("Information Security"),
		p("Company systems are to be used for business purposes. Passwords must never be shared."),
		heading("Grievance Redressal"),
		p("Concerns may be raised with your reporting manager or the Human Resources Department in confidence."),
		blank(),
		p("I acknowledge that I have read and understood the policies of {{company_name}}."),
	)
	return append(doc, signature()...)
}

func taxDeclaration() []paragraph {
	doc := header("INVESTMENT AND TAX DECLARATION", "Payroll")
	doc = append(doc,
		paragraph{text: "Financial Year: {{financial_year}}", style: styleHeading},
		blank(),
		heading("Personal Information"),
		p("Employee Name: {{candidate_name}}"),
		p("Employee ID: {{employee_id}}"),
		p("Designation: {{designation}}"),
		p("Annual CTC: {{annual_ctc}}"),
		blank(),
		heading("Tax Declaration"),
		p("I hereby declare that the information provided above is true and accurate to the best of my knowledge. Any false declaration may result in disciplinary action."),
		blank(),
		paragraph{text: "Generated on: {{generated_date}}", style: styleNote},
		blank(),
		p("Signature: ____________________________"),
		p("Name: {{candidate_name}}"),
	)
	return doc
}

func appointmentLetter() []paragraph {
	doc := header("APPOINTMENT LETTER", "{{company_name}}")
	doc = append(doc,
		p("To,"),
		p("{{candidate_name}}"),
		blank(),
		p("Sub: Appointment as {{designation}} at {{company_name}}"),
		blank(),
		p("We are pleased to appoint you as {{designation}} in the {{department}} department at {{company_name}}, effective from {{start_date}}."),
		blank(),
		p("Your Employee ID is {{employee_id}}. You will be expected to report on your start date with all required documentation."),
		blank(),
		heading("Terms and Conditions"),
		p("1. This appointment is subject to all terms and conditions mentioned in the accompanying Offer Letter."),
		p("2. The appointment will be confirmed upon successful completion of the probation period."),
		p("3. You are required to maintain confidentiality of all company information as per the NDA signed separately."),
	)
	return append(doc, signature()...)
}
