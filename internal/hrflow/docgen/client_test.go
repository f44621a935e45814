package docgen

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gartstein/hrflow/internal/hrflow/auth"
	e "github.com/gartstein/hrflow/internal/hrflow/errors"
	"github.com/gartstein/hrflow/internal/hrflow/providerstub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var validCreds = auth.Chain{Primary: auth.Credentials{ClientID: "docgen-client-id", ClientSecret: "docgen-secret"}}

func newClient(t *testing.T, baseURL string, creds auth.Chain) *Client {
	t.Helper()
	return NewClient(Config{BaseURL: baseURL, Credentials: creds, Timeout: 5 * time.Second}, nil, nil, zaptest.NewLogger(t))
}

func TestGenerate_AgainstStub(t *testing.T) {
	stub := providerstub.New(providerstub.Options{ClientID: "docgen-client-id", ClientSecret: "docgen-secret"})
	srv := httptest.NewServer(stub.Handler())
	defer srv.Close()

	client := newClient(t, srv.URL+providerstub.DocGenPrefix, validCreds)
	values := map[string]string{"candidate_name": "Priya Sharma", "designation": "Engineer"}

	out, err := client.Generate(context.Background(), []byte("template-bytes"), values, "")
	require.NoError(t, err)
	assert.Equal(t, providerstub.Rendered(map[string]any{"candidate_name": "Priya Sharma", "designation": "Engineer"}), out)

	calls := stub.Find(providerstub.OpGenerate)
	require.Len(t, calls, 1)
	assert.Equal(t, "pdf", calls[0].Body["outputFormat"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("template-bytes")), calls[0].Body["base64FileString"])
	assert.Equal(t, "docgen-client-id", calls[0].ClientID)
}

func TestGenerate_PayloadFieldPriority(t *testing.T) {
	enc := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }
	tests := []struct {
		name string
		resp map[string]any
		want string
	}{
		{"primary field", map[string]any{"base64FileString": enc("a"), "result": enc("z")}, "a"},
		{"second field", map[string]any{"outputBase64": enc("b"), "base64": enc("y")}, "b"},
		{"empty primary skipped", map[string]any{"base64FileString": "", "fileBase64": enc("c")}, "c"},
		{"non-string skipped", map[string]any{"base64FileString": 12, "result": enc("d")}, "d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(tt.resp)
			}))
			defer srv.Close()

			out, err := newClient(t, srv.URL, validCreds).Generate(context.Background(), []byte("t"), nil, "pdf")
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))
		})
	}
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		detail  string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad credentials"}`, e.ErrAuthentication, ""},
		{"bad request", http.StatusBadRequest, `{"message":"template is corrupt"}`, e.ErrRequestRejected, "template is corrupt"},
		{"forbidden", http.StatusForbidden, `{"message":"quota"}`, e.ErrRequestRejected, "quota"},
		{"server error", http.StatusBadGateway, `upstream`, e.ErrTransient, "upstream"},
		{"no payload", http.StatusOK, `{"message":"ok"}`, e.ErrUnexpectedResponse, ""},
		{"not json", http.StatusOK, `<html>`, e.ErrUnexpectedResponse, ""},
		{"bad base64", http.StatusOK, `{"base64FileString":"***"}`, e.ErrUnexpectedResponse, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newClient(t, srv.URL, validCreds).Generate(context.Background(), []byte("t"), nil, "pdf")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NotContains(t, err.Error(), "docgen-secret")

			var remote *e.RemoteError
			require.ErrorAs(t, err, &remote)
			assert.Equal(t, "client id docgen-c...", remote.Credential)
			if tt.detail != "" {
				assert.Contains(t, remote.Detail, tt.detail)
			}
		})
	}
}

func TestGenerate_MissingCredentialsFailsFast(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	defer srv.Close()

	_, err := newClient(t, srv.URL, auth.Chain{Primary: auth.Credentials{ClientID: "only-id"}}).
		Generate(context.Background(), []byte("t"), nil, "pdf")
	assert.ErrorIs(t, err, e.ErrConfiguration)
	assert.Contains(t, err.Error(), ServiceName)
	assert.False(t, called)
}

func TestGenerate_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { <-release }))
	defer srv.Close()
	defer close(release)

	client := NewClient(Config{BaseURL: srv.URL, Credentials: validCreds, Timeout: 50 * time.Millisecond}, nil, nil, zaptest.NewLogger(t))
	_, err := client.Generate(context.Background(), []byte("t"), nil, "pdf")
	assert.ErrorIs(t, err, e.ErrTransient)
	assert.NotErrorIs(t, err, e.ErrCancelled)
}

func TestGenerate_CallerDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { <-release }))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newClient(t, srv.URL, validCreds).Generate(ctx, []byte("t"), nil, "pdf")
	assert.ErrorIs(t, err, e.ErrCancelled)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, e.ErrTransient)
}

func TestGenerate_Cancelled(t *testing.T) {
	stub := providerstub.New(providerstub.Options{})
	srv := httptest.NewServer(stub.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newClient(t, srv.URL+providerstub.DocGenPrefix, validCreds).Generate(ctx, []byte("t"), nil, "pdf")
	assert.ErrorIs(t, err, e.ErrCancelled)
}

func TestGenerate_FallbackCredentials(t *testing.T) {
	stub := providerstub.New(providerstub.Options{ClientID: "secondary-id", ClientSecret: "secondary-secret"})
	srv := httptest.NewServer(stub.Handler())
	defer srv.Close()

	creds := validCreds
	creds.Fallback = &auth.Credentials{ClientID: "secondary-id", ClientSecret: "secondary-secret"}

	_, err := newClient(t, srv.URL+providerstub.DocGenPrefix, creds).Generate(context.Background(), []byte("t"), nil, "pdf")
	require.NoError(t, err)
	calls := stub.Find(providerstub.OpGenerate)
	require.Len(t, calls, 1, "rejected attempt never reaches the handler")
	assert.Equal(t, "secondary-id", calls[0].ClientID)
}
