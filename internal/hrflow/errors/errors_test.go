package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestRemoteError_Unwrap(t *testing.T) {
	err := fmt.Errorf("generate offer-letter: %w", &RemoteError{
		Service:    "docgen",
		Operation:  "GenerateDocumentBase64",
		StatusCode: 401,
		Credential: "client id abcd1234...",
		Kind:       ErrAuthentication,
	})

	assert.True(t, stderrors.Is(err, ErrAuthentication))
	assert.False(t, stderrors.Is(err, ErrRequestRejected))

	var remote *RemoteError
	assert.True(t, stderrors.As(err, &remote))
	assert.Equal(t, 401, remote.StatusCode)
	assert.Contains(t, err.Error(), "abcd1234")
}

func TestRemoteError_KeepsCause(t *testing.T) {
	err := &RemoteError{
		Service:   "pdf-services",
		Operation: "upload",
		Kind:      ErrTransient,
		Err:       context.DeadlineExceeded,
	}
	assert.ErrorIs(t, err, ErrTransient)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStageError(t *testing.T) {
	err := &StageError{Stage: "compress", Err: ErrTaskTimeout}
	assert.ErrorIs(t, err, ErrTaskTimeout)
	assert.NotErrorIs(t, err, ErrTaskFailed)
	assert.Equal(t, "compress: task timed out", err.Error())
}

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{401, ErrAuthentication},
		{400, ErrRequestRejected},
		{403, ErrRequestRejected},
		{404, ErrRequestRejected},
		{500, ErrTransient},
		{503, ErrTransient},
	}
	for _, tt := range tests {
		err := FromStatus("docgen", "generate", tt.status, []byte(`{"message":"bad"}`), "client id abc...")
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)
		assert.Equal(t, `{"message":"bad"}`, err.Detail)
	}
}

func TestFromStatus_TruncatesOnRuneBoundary(t *testing.T) {
	prefix := strings.Repeat("a", maxDetailBytes-1)
	err := FromStatus("docgen", "generate", 400, []byte(prefix+"₹ rejected"), "")
	assert.True(t, utf8.ValidString(err.Detail))
	assert.Equal(t, prefix, err.Detail)

	err = FromStatus("docgen", "generate", 400, []byte(strings.Repeat("b", maxDetailBytes+10)), "")
	assert.Len(t, err.Detail, maxDetailBytes)

	err = FromStatus("docgen", "generate", 400, []byte("₹ short"), "")
	assert.Equal(t, "₹ short", err.Detail)
}

func TestFromTransport(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	err := FromTransport(cancelled, "pdf_services", "upload", context.Canceled, "")
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)

	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	err = FromTransport(expired, "pdf_services", "upload", context.DeadlineExceeded, "")
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrTransient)

	// Per-call timeout while the caller is still live.
	err = FromTransport(context.Background(), "pdf_services", "upload", context.DeadlineExceeded, "client id abc...")
	assert.ErrorIs(t, err, ErrTransient)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrCancelled)
}
