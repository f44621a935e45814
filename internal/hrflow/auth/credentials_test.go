package auth

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	e "github.com/gartstein/hrflow/internal/hrflow/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCredentials_Describe(t *testing.T) {
	assert.Equal(t, "client id abcd1234...", Credentials{ClientID: "abcd1234efgh", ClientSecret: "s"}.Describe())
	assert.Equal(t, "client id short", Credentials{ClientID: "short"}.Describe())
	assert.Equal(t, "client id <none>", Credentials{}.Describe())
	assert.NotContains(t, Credentials{ClientID: "id", ClientSecret: "topsecret"}.Describe(), "topsecret")
}

func TestCredentials_Apply(t *testing.T) {
	h := http.Header{}
	Credentials{ClientID: "id", ClientSecret: "secret"}.Apply(h)
	assert.Equal(t, "id", h.Get(HeaderClientID))
	assert.Equal(t, "secret", h.Get(HeaderClientSecret))
	assert.Empty(t, h.Get(HeaderApplicationID))

	Credentials{ClientID: "id", ClientSecret: "secret", ApplicationID: "app"}.Apply(h)
	assert.Equal(t, "app", h.Get(HeaderApplicationID))
}

func TestChain_Require(t *testing.T) {
	tests := []struct {
		name    string
		chain   Chain
		wantErr bool
	}{
		{"complete", Chain{Primary: Credentials{ClientID: "a", ClientSecret: "b"}}, false},
		{"no secret", Chain{Primary: Credentials{ClientID: "a"}}, true},
		{"empty", Chain{}, true},
		{"fallback does not cover primary", Chain{Fallback: &Credentials{ClientID: "a", ClientSecret: "b"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.chain.Require("docgen")
			if tt.wantErr {
				assert.ErrorIs(t, err, e.ErrConfiguration)
				assert.Contains(t, err.Error(), "docgen")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestChain_Do(t *testing.T) {
	newServer := func(acceptID string, calls *int32) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(calls, 1)
			if r.Header.Get(HeaderClientID) != acceptID {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
	}
	primary := Credentials{ClientID: "primary-id", ClientSecret: "p"}
	fallback := &Credentials{ClientID: "fallback-id", ClientSecret: "f"}

	tests := []struct {
		name       string
		accept     string
		chain      Chain
		wantStatus int
		wantUsed   string
		wantCalls  int32
	}{
		{"primary accepted", "primary-id", Chain{Primary: primary, Fallback: fallback}, 200, "primary-id", 1},
		{"fallback accepted", "fallback-id", Chain{Primary: primary, Fallback: fallback}, 200, "fallback-id", 2},
		{"no fallback configured", "fallback-id", Chain{Primary: primary}, 401, "primary-id", 1},
		{"both rejected", "other", Chain{Primary: primary, Fallback: fallback}, 401, "fallback-id", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := newServer(tt.accept, &calls)
			defer srv.Close()

			resp, used, err := tt.chain.Do(srv.Client(), zaptest.NewLogger(t), func() (*http.Request, error) {
				return http.NewRequest(http.MethodGet, srv.URL, nil)
			})
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantUsed, used.ClientID)
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
		})
	}
}
