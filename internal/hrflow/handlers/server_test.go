package handlers

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestServer_StartStop(t *testing.T) {
	logger := zaptest.NewLogger(t)
	router, _ := newTestRouter(t, &mockDocuments{}, nil)
	s := NewServer(0, router, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start()
	}()

	require.Eventually(t, func() bool { return s.Addr() != nil }, 3*time.Second, 10*time.Millisecond)

	port := s.Addr().(*net.TCPAddr).Port
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"ok"`)

	s.Stop()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for server to stop")
	}
}

func TestServer_StartFailsOnBusyPort(t *testing.T) {
	logger := zaptest.NewLogger(t)
	first := NewServer(0, http.NotFoundHandler(), logger)
	errCh := make(chan error, 1)
	go func() { errCh <- first.Start() }()
	require.Eventually(t, func() bool { return first.Addr() != nil }, 3*time.Second, 10*time.Millisecond)
	defer func() {
		first.Stop()
		<-errCh
	}()

	second := &Server{httpServer: &http.Server{}, logger: logger, endpoint: first.Addr().String()}
	assert.ErrorContains(t, second.Start(), "HTTP listen error")
}
