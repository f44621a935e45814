// Package docgen is the client of the template-fill document generation
// service.
package docgen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gartstein/hrflow/internal/hrflow/auth"
	e "github.com/gartstein/hrflow/internal/hrflow/errors"
	"github.com/gartstein/hrflow/internal/hrflow/metrics"
	"github.com/gartstein/hrflow/internal/pkg/utils"
	"go.uber.org/zap"
)

const (
	ServiceName = "docgen"

	generatePath      = "/api/GenerateDocumentBase64"
	operationGenerate = "generate"

	DefaultOutputFormat = "pdf"
)

// payloadFields lists where the rendered file may appear in a response,
// highest priority first.
var payloadFields = []string{"base64FileString", "outputBase64", "fileBase64", "base64", "result"}

type Config struct {
	BaseURL     string
	Credentials auth.Chain
	// Timeout bounds each call. Zero leaves only the caller's context.
	Timeout time.Duration
}

type Client struct {
	baseURL string
	creds   auth.Chain
	timeout time.Duration
	http    *http.Client
	metrics *metrics.Recorder
	logger  *zap.Logger
}

// NewClient returns a docgen client. A nil httpClient means
// http.DefaultClient, and rec may be nil.
func NewClient(cfg Config, httpClient *http.Client, rec *metrics.Recorder, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		creds:   cfg.Credentials,
		timeout: cfg.Timeout,
		http:    httpClient,
		metrics: rec,
		logger:  logger.Named("docgen"),
	}
}

type generateRequest struct {
	OutputFormat     string            `json:"outputFormat"`
	DocumentValues   map[string]string `json:"documentValues"`
	Base64FileString string            `json:"base64FileString"`
}

// Generate fills template with values and returns the rendered file.
func (c *Client) Generate(ctx context.Context, template []byte, values map[string]string, format string) (out []byte, err error) {
	if err := c.creds.Require(ServiceName); err != nil {
		return nil, err
	}
	if format == "" {
		format = DefaultOutputFormat
	}

	start := time.Now()
	defer func() { c.metrics.ObserveCall(ServiceName, operationGenerate, start, err) }()

	body, err := json.Marshal(generateRequest{
		OutputFormat:     format,
		DocumentValues:   values,
		Base64FileString: base64.StdEncoding.EncodeToString(template),
	})
	if err != nil {
		return nil, fmt.Errorf("encode generate request: %w", err)
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, used, err := c.creds.Do(c.http, c.logger, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+generatePath, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		c.logger.Warn("Generate request failed", zap.String("credentials", used.Describe()), zap.Error(err))
		return nil, e.FromTransport(ctx, ServiceName, operationGenerate, err, used.Describe())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, e.FromTransport(ctx, ServiceName, operationGenerate, err, used.Describe())
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		remote := e.FromStatus(ServiceName, operationGenerate, resp.StatusCode, raw, used.Describe())
		c.logger.Error("Generate rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("credentials", used.Describe()),
			zap.String("detail", remote.Detail),
		)
		return nil, remote
	}

	rendered, err := extractPayload(raw)
	if err != nil {
		return nil, &e.RemoteError{
			Service:    ServiceName,
			Operation:  operationGenerate,
			StatusCode: resp.StatusCode,
			Credential: used.Describe(),
			Kind:       e.ErrUnexpectedResponse,
			Err:        err,
		}
	}

	c.logger.Debug("Document generated",
		zap.String("format", format),
		zap.Int("size", len(rendered)),
		zap.Duration("took", time.Since(start)),
	)
	return rendered, nil
}

func extractPayload(raw []byte) ([]byte, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	encoded, key, ok := utils.FirstString(fields, payloadFields...)
	if !ok {
		return nil, fmt.Errorf("no rendered file in response (looked for %s)", strings.Join(payloadFields, ", "))
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("field %s is not base64: %w", key, err)
	}
	return data, nil
}
