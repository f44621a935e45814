package controller

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gartstein/hrflow/internal/hrflow/auth"
	"github.com/gartstein/hrflow/internal/hrflow/docgen"
	e "github.com/gartstein/hrflow/internal/hrflow/errors"
	"github.com/gartstein/hrflow/internal/hrflow/models"
	"github.com/gartstein/hrflow/internal/hrflow/pdfservices"
	"github.com/gartstein/hrflow/internal/hrflow/providerstub"
	"github.com/gartstein/hrflow/internal/hrflow/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

const companyName = "TechCorp Solutions"

func newTestPipeline(t *testing.T, opts providerstub.Options) (*Pipeline, *providerstub.Stub) {
	t.Helper()
	stub := providerstub.New(opts)
	srv := httptest.NewServer(stub.Handler())
	t.Cleanup(srv.Close)

	logger := zaptest.NewLogger(t)
	creds := auth.Chain{Primary: auth.Credentials{ClientID: "client-id", ClientSecret: "client-secret"}}
	dg := docgen.NewClient(docgen.Config{
		BaseURL:     srv.URL + providerstub.DocGenPrefix,
		Credentials: creds,
		Timeout:     5 * time.Second,
	}, nil, nil, logger)
	pdf := pdfservices.NewClient(pdfservices.Config{
		BaseURL:         srv.URL + providerstub.PDFServicesPrefix,
		Credentials:     creds,
		Timeout:         5 * time.Second,
		PollMaxAttempts: 3,
	}, nil, nil, logger)

	p := NewPipeline(templates.NewBuilder(nil, logger), dg, pdf, companyName, nil, logger)
	p.now = func() time.Time { return time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC) }
	return p, stub
}

func testEmployee() *models.Employee {
	return &models.Employee{
		ID:          "emp-1",
		FullName:    "Priya Sharma",
		EmployeeID:  "EMP-2025-001",
		Designation: "Software Engineer",
		Department:  "Engineering",
		StartDate:   "2025-07-01",
		AnnualCTC:   1200000,
	}
}

func TestRunPack_SingleDocumentNoOptions(t *testing.T) {
	p, stub := newTestPipeline(t, providerstub.Options{})
	ctx := context.Background()
	emp := testEmployee()

	single, err := p.RunSingle(ctx, emp, models.OfferLetter)
	require.NoError(t, err)
	assert.Equal(t, []string{providerstub.OpGenerate}, stub.Sequence())
	rendered, err := base64.StdEncoding.DecodeString(single.Base64)
	require.NoError(t, err)
	assert.Equal(t, len(rendered), single.Size)

	pack, err := p.RunPack(ctx, emp, []models.Category{models.OfferLetter}, models.PackOptions{}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		providerstub.OpGenerate,
		providerstub.OpGenerate,
		providerstub.OpUpload,
		providerstub.OpDownload,
	}, stub.Sequence())
	assert.Equal(t, rendered, pack.Data)
	assert.Equal(t, len(rendered), pack.Size)
}

func TestRunPack_LogsPackLifecycle(t *testing.T) {
	p, _ := newTestPipeline(t, providerstub.Options{})
	core, recorded := observer.New(zap.InfoLevel)
	p.logger = zap.New(core)

	_, err := p.RunPack(context.Background(), testEmployee(), []models.Category{models.OfferLetter}, models.PackOptions{}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, recorded.FilterMessage("Pack started").Len())
	assert.Equal(t, 1, recorded.FilterMessage("Pack assembled").Len())
}

func TestRunPack_MergeCompressProtect(t *testing.T) {
	p, stub := newTestPipeline(t, providerstub.Options{PendingPolls: 1})
	emp := testEmployee()
	emp.DOB = "1995-06-15"

	pack, err := p.RunPack(context.Background(), emp,
		[]models.Category{models.OfferLetter, models.NDA},
		models.PackOptions{Merge: true, Compress: true, PasswordProtect: true},
		nil,
	)
	require.NoError(t, err)
	assert.NotEmpty(t, pack.Data)

	assert.Equal(t, []string{
		providerstub.OpGenerate,
		providerstub.OpGenerate,
		providerstub.OpUpload,
		providerstub.OpUpload,
		pdfservices.OpMerge,
		pdfservices.OpCompress,
		pdfservices.OpSecurity,
		providerstub.OpDownload,
	}, stub.Sequence())

	protect := stub.Find(pdfservices.OpSecurity)[0].Body["passwordProtection"].(map[string]any)
	assert.Equal(t, "15061995", protect["userPassword"])
	assert.Empty(t, stub.Find(pdfservices.OpWatermark))
	assert.Empty(t, stub.Find(pdfservices.OpPageNumber))

	generated := stub.Find(providerstub.OpGenerate)
	values := generated[0].Body["documentValues"].(map[string]any)
	assert.Equal(t, "₹12,00,000 per annum", values["annual_ctc"])
	assert.Equal(t, "₹40,000 per month", values["basic_salary"])
	assert.Equal(t, "₹8,000 per month", values["hra"])
}

func TestRunPack_ProtectSkippedWithoutBirthDate(t *testing.T) {
	p, stub := newTestPipeline(t, providerstub.Options{})

	var last int
	_, err := p.RunPack(context.Background(), testEmployee(),
		[]models.Category{models.OfferLetter},
		models.PackOptions{PasswordProtect: true, Compress: true},
		func(_ string, percent int) { last = percent },
	)
	require.NoError(t, err)
	assert.Empty(t, stub.Find(pdfservices.OpSecurity))
	assert.Len(t, stub.Find(pdfservices.OpCompress), 1)
	assert.Equal(t, 100, last)
}

func TestRunPack_MalformedBirthDate(t *testing.T) {
	p, stub := newTestPipeline(t, providerstub.Options{})
	emp := testEmployee()
	emp.DOB = "15/06/1995"

	_, err := p.RunPack(context.Background(), emp, []models.Category{models.NDA},
		models.PackOptions{PasswordProtect: true}, nil)
	assert.ErrorIs(t, err, e.ErrInvalidInput)
	assert.Empty(t, stub.Calls())
}

func TestRunPack_FixedStepOrder(t *testing.T) {
	p, stub := newTestPipeline(t, providerstub.Options{})
	emp := testEmployee()
	emp.DOB = "1990-01-31"

	_, err := p.RunPack(context.Background(), emp,
		[]models.Category{models.OfferLetter, models.NDA, models.PolicyHandbook},
		models.PackOptions{
			Merge: true, Compress: true, PasswordProtect: true,
			ConvertToPDFA: true, AddWatermark: true, AddPageNumbers: true,
		},
		nil,
	)
	require.NoError(t, err)

	var ops []string
	for _, op := range stub.Sequence() {
		if op != providerstub.OpGenerate && op != providerstub.OpUpload {
			ops = append(ops, op)
		}
	}
	assert.Equal(t, []string{
		pdfservices.OpMerge,
		pdfservices.OpCompress,
		pdfservices.OpPDFA,
		pdfservices.OpSecurity,
		pdfservices.OpWatermark,
		pdfservices.OpPageNumber,
		providerstub.OpDownload,
	}, ops)
	assert.Equal(t, "Confidential - "+companyName, stub.Find(pdfservices.OpWatermark)[0].Body["text"])
}

func TestRunPack_EachStepConsumesPreviousHandle(t *testing.T) {
	p, stub := newTestPipeline(t, providerstub.Options{})

	pack, err := p.RunPack(context.Background(), testEmployee(),
		[]models.Category{models.OfferLetter},
		models.PackOptions{Compress: true, AddWatermark: true, WatermarkText: "Draft"},
		nil,
	)
	require.NoError(t, err)
	assert.Contains(t, string(pack.Data), "% compress\n\n% watermark\n")
	assert.Equal(t, "Draft", stub.Find(pdfservices.OpWatermark)[0].Body["text"])
}

func TestRunPack_NoMergeUploadsFirstOnly(t *testing.T) {
	p, stub := newTestPipeline(t, providerstub.Options{})

	_, err := p.RunPack(context.Background(), testEmployee(),
		[]models.Category{models.OfferLetter, models.NDA},
		models.PackOptions{},
		nil,
	)
	require.NoError(t, err)
	assert.Len(t, stub.Find(providerstub.OpGenerate), 2)
	assert.Len(t, stub.Find(providerstub.OpUpload), 1)
	assert.Empty(t, stub.Find(pdfservices.OpMerge))
}

func TestRunPack_Progress(t *testing.T) {
	tests := []struct {
		name       string
		categories []models.Category
		opts       models.PackOptions
		dob        string
		wantCalls  int
	}{
		{"single no options", []models.Category{models.OfferLetter}, models.PackOptions{}, "", 2},
		{"merge ignored for one document", []models.Category{models.OfferLetter}, models.PackOptions{Merge: true}, "", 2},
		{"protect without dob", []models.Category{models.NDA}, models.PackOptions{PasswordProtect: true}, "", 2},
		{"everything", []models.Category{models.OfferLetter, models.NDA},
			models.PackOptions{Merge: true, Compress: true, PasswordProtect: true, ConvertToPDFA: true, AddWatermark: true, AddPageNumbers: true},
			"1995-06-15", 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPipeline(t, providerstub.Options{})
			emp := testEmployee()
			emp.DOB = tt.dob

			var percents []int
			_, err := p.RunPack(context.Background(), emp, tt.categories, tt.opts, func(_ string, percent int) {
				percents = append(percents, percent)
			})
			require.NoError(t, err)

			require.Len(t, percents, tt.wantCalls)
			assert.Equal(t, 0, percents[0])
			assert.Equal(t, 100, percents[len(percents)-1])
			for i := 1; i < len(percents); i++ {
				assert.GreaterOrEqual(t, percents[i], percents[i-1])
			}
		})
	}
}

func TestRunPack_GenerationFailureAbortsPack(t *testing.T) {
	p, stub := newTestPipeline(t, providerstub.Options{Failures: map[string]providerstub.Failure{
		providerstub.OpGenerate: {Status: http.StatusBadRequest, Body: `{"message":"unresolved token"}`},
	}})

	_, err := p.RunPack(context.Background(), testEmployee(),
		[]models.Category{models.OfferLetter, models.NDA},
		models.PackOptions{Merge: true},
		nil,
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, e.ErrRequestRejected)

	var stage *e.StageError
	require.ErrorAs(t, err, &stage)
	assert.Equal(t, "generate:offer-letter", stage.Stage)
	assert.Equal(t, []string{providerstub.OpGenerate}, stub.Sequence())
}

func TestRunPack_TaskTimeoutVersusFailure(t *testing.T) {
	tests := []struct {
		name    string
		opts    providerstub.Options
		wantErr error
		notErr  error
	}{
		{"stuck task", providerstub.Options{StuckTasks: map[string]bool{pdfservices.OpCompress: true}}, e.ErrTaskTimeout, e.ErrTaskFailed},
		{"failed task", providerstub.Options{FailedTasks: map[string]bool{pdfservices.OpCompress: true}}, e.ErrTaskFailed, e.ErrTaskTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, stub := newTestPipeline(t, tt.opts)
			_, err := p.RunPack(context.Background(), testEmployee(),
				[]models.Category{models.OfferLetter},
				models.PackOptions{Compress: true, AddPageNumbers: true},
				nil,
			)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NotErrorIs(t, err, tt.notErr)

			var stage *e.StageError
			require.ErrorAs(t, err, &stage)
			assert.Equal(t, StageCompress, stage.Stage)
			assert.Empty(t, stub.Find(pdfservices.OpPageNumber))
			assert.Empty(t, stub.Find(providerstub.OpDownload))
		})
	}
}

func TestRunPack_Cancellation(t *testing.T) {
	p, stub := newTestPipeline(t, providerstub.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := p.RunPack(ctx, testEmployee(),
		[]models.Category{models.OfferLetter, models.NDA},
		models.PackOptions{Merge: true},
		func(step string, percent int) {
			if percent > 0 {
				cancel()
			}
		},
	)
	assert.ErrorIs(t, err, e.ErrCancelled)
	assert.Equal(t, []string{providerstub.OpGenerate}, stub.Sequence())
}

func TestRunPack_CallerDeadlineDuringGeneration(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { <-release }))
	defer slow.Close()
	defer close(release)

	logger := zaptest.NewLogger(t)
	creds := auth.Chain{Primary: auth.Credentials{ClientID: "client-id", ClientSecret: "client-secret"}}
	dg := docgen.NewClient(docgen.Config{BaseURL: slow.URL, Credentials: creds, Timeout: 5 * time.Second}, nil, nil, logger)
	pdf := pdfservices.NewClient(pdfservices.Config{BaseURL: slow.URL, Credentials: creds}, nil, nil, logger)
	p := NewPipeline(templates.NewBuilder(nil, logger), dg, pdf, companyName, nil, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := p.RunPack(ctx, testEmployee(), []models.Category{models.OfferLetter}, models.PackOptions{}, nil)
	assert.ErrorIs(t, err, e.ErrCancelled)
	assert.NotErrorIs(t, err, e.ErrTransient)
}

func TestRunPack_InvalidInput(t *testing.T) {
	p, stub := newTestPipeline(t, providerstub.Options{})
	ctx := context.Background()

	_, err := p.RunPack(ctx, nil, []models.Category{models.NDA}, models.PackOptions{}, nil)
	assert.ErrorIs(t, err, e.ErrInvalidInput)
	_, err = p.RunPack(ctx, testEmployee(), nil, models.PackOptions{}, nil)
	assert.ErrorIs(t, err, e.ErrInvalidInput)
	_, err = p.RunPack(ctx, testEmployee(), []models.Category{"payslip"}, models.PackOptions{}, nil)
	assert.ErrorIs(t, err, e.ErrInvalidInput)
	_, err = p.RunSingle(ctx, testEmployee(), "payslip")
	assert.ErrorIs(t, err, e.ErrInvalidInput)
	assert.Empty(t, stub.Calls())
}

func TestRunSingle_DoesNotMutateEmployee(t *testing.T) {
	p, _ := newTestPipeline(t, providerstub.Options{})
	emp := testEmployee()

	_, err := p.RunSingle(context.Background(), emp, models.OfferLetter)
	require.NoError(t, err)
	assert.Zero(t, emp.BasicSalary)
}

// twoPagePDF builds the smallest well-formed PDF with two empty pages.
func twoPagePDF() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R 4 0 R] /Count 2 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Resources << >> >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Resources << >> >>",
	}
	var b strings.Builder
	b.WriteString("%PDF-1.7\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return []byte(b.String())
}

func TestPageCount(t *testing.T) {
	logger := zaptest.NewLogger(t)
	assert.Equal(t, 2, pageCount(twoPagePDF(), logger))
	assert.Zero(t, pageCount(providerstub.Rendered(map[string]any{"candidate_name": "Priya"}), logger))
	assert.Zero(t, pageCount(nil, logger))
}

func TestRunPack_ReportsPageCount(t *testing.T) {
	p, stub := newTestPipeline(t, providerstub.Options{
		Render: func(map[string]any) []byte { return twoPagePDF() },
	})

	pack, err := p.RunPack(context.Background(), testEmployee(), []models.Category{models.OfferLetter}, models.PackOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, twoPagePDF(), pack.Data)
	assert.Equal(t, 2, pack.PageCount)
	assert.Equal(t, []string{providerstub.OpGenerate, providerstub.OpUpload, providerstub.OpDownload}, stub.Sequence())
}
