// Package pdfservices is the client of the remote PDF manipulation
// service: upload, task based operations with polling, and download.
package pdfservices

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/gartstein/hrflow/internal/hrflow/auth"
	e "github.com/gartstein/hrflow/internal/hrflow/errors"
	"github.com/gartstein/hrflow/internal/hrflow/metrics"
	"github.com/gartstein/hrflow/internal/pkg/utils"
	"go.uber.org/zap"
)

const (
	ServiceName = "pdf_services"

	uploadPath = "/api/documents/upload"

	DefaultPollInterval    = 3 * time.Second
	DefaultPollMaxAttempts = 40
)

// Handle identifies a document held by the remote service. Every operation
// returns a new Handle that replaces its input.
type Handle string

var (
	uploadHandleFields = []string{"documentId", "docId", "id"}
	taskIDFields       = []string{"taskId", "id"}
)

// Config configures a Client. A negative PollInterval or a non-positive
// PollMaxAttempts falls back to the defaults.
type Config struct {
	BaseURL     string
	Credentials auth.Chain
	// Timeout bounds every individual HTTP call.
	Timeout         time.Duration
	PollInterval    time.Duration
	PollMaxAttempts int
}

type Client struct {
	baseURL      string
	creds        auth.Chain
	timeout      time.Duration
	pollInterval time.Duration
	maxAttempts  int
	http         *http.Client
	metrics      *metrics.Recorder
	logger       *zap.Logger
}

// NewClient returns a client for cfg. A nil httpClient means
// http.DefaultClient, and rec may be nil.
func NewClient(cfg Config, httpClient *http.Client, rec *metrics.Recorder, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cfg.PollMaxAttempts <= 0 {
		cfg.PollMaxAttempts = DefaultPollMaxAttempts
	}
	if cfg.PollInterval < 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		creds:        cfg.Credentials,
		timeout:      cfg.Timeout,
		pollInterval: cfg.PollInterval,
		maxAttempts:  cfg.PollMaxAttempts,
		http:         httpClient,
		metrics:      rec,
		logger:       logger.Named("pdf_services"),
	}
}

// Upload stores data remotely and returns its handle.
func (c *Client) Upload(ctx context.Context, data []byte, filename, contentType string) (h Handle, err error) {
	if err := c.creds.Require(ServiceName); err != nil {
		return "", err
	}
	start := time.Now()
	defer func() { c.metrics.ObserveCall(ServiceName, "upload", start, err) }()

	if contentType == "" {
		contentType = "application/pdf"
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}

	raw, used, err := c.send(ctx, "upload", http.MethodPost, uploadPath, buf.Bytes(), mw.FormDataContentType())
	if err != nil {
		return "", err
	}
	id, err := field(raw, uploadHandleFields)
	if err != nil {
		return "", c.unexpected("upload", used, err)
	}
	c.logger.Debug("Document uploaded", zap.String("filename", filename), zap.Int("size", len(data)))
	return Handle(id), nil
}

// Download fetches the binary content behind h.
func (c *Client) Download(ctx context.Context, h Handle) (out []byte, err error) {
	if err := c.creds.Require(ServiceName); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { c.metrics.ObserveCall(ServiceName, "download", start, err) }()

	path := "/api/documents/" + url.PathEscape(string(h)) + "/download"
	out, _, err = c.send(ctx, "download", http.MethodGet, path, nil, "")
	return out, err
}

// run submits a task based operation and waits for its result handle.
func (c *Client) run(ctx context.Context, operation string, body any) (h Handle, err error) {
	if err := c.creds.Require(ServiceName); err != nil {
		return "", err
	}
	start := time.Now()
	defer func() { c.metrics.ObserveCall(ServiceName, operation, start, err) }()

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode %s request: %w", operation, err)
	}
	raw, used, err := c.send(ctx, operation, http.MethodPost, "/api/"+operation, payload, "application/json")
	if err != nil {
		return "", err
	}
	taskID, err := field(raw, taskIDFields)
	if err != nil {
		return "", c.unexpected(operation, used, err)
	}

	c.logger.Debug("Task submitted", zap.String("operation", operation), zap.String("task_id", taskID))
	return c.waitForTask(ctx, operation, taskID)
}

// send performs one HTTP call under the per-call timeout and classifies
// any failure. payload may be nil.
func (c *Client) send(ctx context.Context, operation, method, path string, payload []byte, contentType string) ([]byte, auth.Credentials, error) {
	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, used, err := c.creds.Do(c.http, c.logger, func() (*http.Request, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, body)
		if err != nil {
			return nil, err
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		return req, nil
	})
	if err != nil {
		return nil, used, e.FromTransport(ctx, ServiceName, operation, err, used.Describe())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, used, e.FromTransport(ctx, ServiceName, operation, err, used.Describe())
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		remote := e.FromStatus(ServiceName, operation, resp.StatusCode, raw, used.Describe())
		c.logger.Error("Request rejected",
			zap.String("operation", operation),
			zap.Int("status", resp.StatusCode),
			zap.String("credentials", used.Describe()),
			zap.String("detail", remote.Detail),
		)
		return nil, used, remote
	}
	return raw, used, nil
}

func (c *Client) unexpected(operation string, used auth.Credentials, err error) error {
	return &e.RemoteError{
		Service:    ServiceName,
		Operation:  operation,
		Credential: used.Describe(),
		Kind:       e.ErrUnexpectedResponse,
		Err:        err,
	}
}

// field decodes a JSON object and returns the first non-empty candidate.
func field(raw []byte, candidates []string) (string, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	v, _, ok := utils.FirstString(fields, candidates...)
	if !ok {
		return "", fmt.Errorf("none of %s in response", strings.Join(candidates, ", "))
	}
	return v, nil
}
