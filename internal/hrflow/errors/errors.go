// Package errors defines the failure taxonomy shared by the remote clients,
// the pipeline and the HTTP layer.
package errors

import (
	"context"
	"fmt"
	"unicode/utf8"
)

var (
	ErrNotFound          = fmt.Errorf("not found")
	ErrInvalidInput      = fmt.Errorf("invalid input")
	ErrInvalidTransition = fmt.Errorf("invalid status transition")

	// ErrConfiguration means credentials for a remote service are absent.
	// It is always raised before any network call.
	ErrConfiguration = fmt.Errorf("configuration error")
	// ErrAuthentication is a 401 from a remote service.
	ErrAuthentication = fmt.Errorf("authentication failed")
	// ErrRequestRejected is a 400/403 (or other 4xx) from a remote service.
	ErrRequestRejected = fmt.Errorf("request rejected")
	// ErrUnexpectedResponse is a 2xx answer without a recognizable result field.
	ErrUnexpectedResponse = fmt.Errorf("unexpected response shape")
	// ErrTransient covers network failures, timeouts and 5xx answers.
	ErrTransient = fmt.Errorf("transient failure")
	// ErrTaskFailed is a polled task that reached FAILED or ERROR.
	ErrTaskFailed = fmt.Errorf("task failed")
	// ErrTaskTimeout is a polled task still running when the poll bound ran out.
	ErrTaskTimeout = fmt.Errorf("task timed out")
	// ErrCancelled is returned when the caller's context ends mid-pipeline.
	ErrCancelled = fmt.Errorf("pipeline cancelled")
)

// RemoteError describes a failed call against a remote service. It unwraps
// to one of the sentinel errors above.
type RemoteError struct {
	Service    string
	Operation  string
	StatusCode int
	// Detail is the remote-provided error body, kept verbatim.
	Detail string
	// Credential identifies the credential set used, never the secret.
	Credential string
	Kind       error
	Err        error
}

func (e *RemoteError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s %s: %v", e.Service, e.Operation, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Credential != "" {
		msg += fmt.Sprintf(" [credentials %s]", e.Credential)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel kind and the underlying cause.
func (e *RemoteError) Unwrap() []error {
	if e == nil {
		return nil
	}
	out := []error{e.Kind}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// StageError records which pipeline step failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

const maxDetailBytes = 4096

// FromStatus classifies a non-2xx HTTP answer from a remote service.
func FromStatus(service, operation string, status int, body []byte, credential string) *RemoteError {
	detail := truncate(body, maxDetailBytes)
	kind := ErrTransient
	switch {
	case status == 401:
		kind = ErrAuthentication
	case status >= 400 && status < 500:
		kind = ErrRequestRejected
	}
	return &RemoteError{
		Service:    service,
		Operation:  operation,
		StatusCode: status,
		Detail:     detail,
		Credential: credential,
		Kind:       kind,
	}
}

// truncate cuts b to at most limit bytes without splitting a UTF-8 sequence.
func truncate(b []byte, limit int) string {
	if len(b) <= limit {
		return string(b)
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return string(b[:cut])
}

// FromTransport classifies a request that never produced an HTTP answer.
// caller is the context the operation was started with, before any per-call
// timeout. Once it is done, cancelled or past its deadline, the failure is
// ErrCancelled. Anything else, the per-call timeout included, is transient.
func FromTransport(caller context.Context, service, operation string, err error, credential string) error {
	if cause := caller.Err(); cause != nil {
		return fmt.Errorf("%s %s: %w: %w", service, operation, ErrCancelled, cause)
	}
	return &RemoteError{
		Service:    service,
		Operation:  operation,
		Credential: credential,
		Kind:       ErrTransient,
		Err:        err,
	}
}
