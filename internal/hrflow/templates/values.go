package templates

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gartstein/hrflow/internal/hrflow/models"
)

// LongDateLayout renders dates as "15 June 2025".
const LongDateLayout = "02 January 2006"

const rupee = "₹"

var fallbacks = map[string]string{
	"department":        "General",
	"start_date":        "To be confirmed",
	"probation_period":  "As per company policy",
	"reporting_manager": "To be assigned",
	"work_location":     "Head Office",
	"employee_id":       "To be assigned",
}

// BuildValues maps an employee onto every token any template may use.
// Empty fields are replaced by fallback literals so no token is left
// unresolved.
func BuildValues(emp *models.Employee, companyName string, now time.Time) map[string]string {
	startDate := ""
	if raw := strings.TrimSpace(emp.StartDate); raw != "" {
		startDate = raw
		if t, err := time.Parse(models.DateLayout, raw); err == nil {
			startDate = FormatDate(t)
		}
	}

	values := map[string]string{
		"company_name":      companyName,
		"candidate_name":    emp.FullName,
		"designation":       emp.Designation,
		"department":        emp.Department,
		"start_date":        startDate,
		"annual_ctc":        FormatCurrency(emp.AnnualCTC) + " per annum",
		"basic_salary":      FormatCurrency(emp.BasicSalary) + " per month",
		"hra":               FormatCurrency(emp.HRA) + " per month",
		"probation_period":  emp.ProbationPeriod,
		"reporting_manager": emp.ReportingManager,
		"work_location":     emp.WorkLocation,
		"employee_id":       emp.EmployeeID,
		"generated_date":    FormatDate(now),
		"financial_year":    FinancialYear(now),
	}
	for key, fallback := range fallbacks {
		if strings.TrimSpace(values[key]) == "" {
			values[key] = fallback
		}
	}
	return values
}

// FinancialYear returns the April-to-March fiscal year containing t,
// e.g. "2024-2025" for any date from April 2024 to March 2025.
func FinancialYear(t time.Time) string {
	y := t.Year()
	if t.Month() < time.April {
		return fmt.Sprintf("%d-%d", y-1, y)
	}
	return fmt.Sprintf("%d-%d", y, y+1)
}

func FormatDate(t time.Time) string {
	return t.Format(LongDateLayout)
}

// FormatCurrency renders whole rupees with Indian digit grouping:
// the last three digits, then groups of two (₹12,00,000).
func FormatCurrency(amount int64) string {
	sign := ""
	digits := strconv.FormatInt(amount, 10)
	if amount < 0 {
		sign, digits = "-", digits[1:]
	}
	if len(digits) <= 3 {
		return sign + rupee + digits
	}

	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	groups = append([]string{head}, groups...)
	return sign + rupee + strings.Join(groups, ",") + "," + tail
}
