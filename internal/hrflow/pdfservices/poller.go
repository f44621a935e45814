package pdfservices

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	e "github.com/gartstein/hrflow/internal/hrflow/errors"
	"github.com/gartstein/hrflow/internal/pkg/utils"
	"go.uber.org/zap"
)

const (
	TaskCompleted = "COMPLETED"
	TaskFailed    = "FAILED"
	TaskError     = "ERROR"
)

var (
	taskResultFields = []string{"resultDocumentId", "documentId"}
	taskDetailFields = []string{"error", "message", "errorMessage"}

	errTaskPending = stderrors.New("task still running")
)

// waitForTask polls the task status endpoint at a fixed interval. Every
// poll waits first and checks second. The remote job is abandoned, not
// cancelled, once the attempts run out.
func (c *Client) waitForTask(ctx context.Context, operation, taskID string) (Handle, error) {
	var (
		result   Handle
		attempts int
		failure  error
	)
	stop := func(err error) error {
		failure = err
		return backoff.Permanent(err)
	}
	poll := func() error {
		attempts++
		raw, used, err := c.send(ctx, operation, http.MethodGet, "/api/tasks/"+url.PathEscape(taskID), nil, "")
		if err != nil {
			return stop(err)
		}
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return stop(c.unexpected(operation, used, fmt.Errorf("decode task status: %w", err)))
		}
		status, _ := fields["status"].(string)
		switch status {
		case TaskCompleted:
			id, _, ok := utils.FirstString(fields, taskResultFields...)
			if !ok {
				return stop(c.unexpected(operation, used, fmt.Errorf("completed task %s has no result document", taskID)))
			}
			result = Handle(id)
			return nil
		case TaskFailed, TaskError:
			detail, _, _ := utils.FirstString(fields, taskDetailFields...)
			return stop(&e.RemoteError{
				Service:    ServiceName,
				Operation:  operation,
				Detail:     detail,
				Credential: used.Describe(),
				Kind:       e.ErrTaskFailed,
				Err:        fmt.Errorf("task %s ended with status %s", taskID, status),
			})
		default:
			return errTaskPending
		}
	}

	if err := sleep(ctx, c.pollInterval); err != nil {
		return "", fmt.Errorf("%s task %s: %w: %w", operation, taskID, e.ErrCancelled, err)
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.pollInterval), uint64(c.maxAttempts-1)),
		ctx,
	)
	err := backoff.Retry(poll, b)
	switch {
	case failure != nil:
		return "", failure
	case err == nil:
		c.logger.Debug("Task completed",
			zap.String("operation", operation),
			zap.String("task_id", taskID),
			zap.Int("polls", attempts),
		)
		return result, nil
	case ctx.Err() != nil:
		return "", fmt.Errorf("%s task %s: %w: %w", operation, taskID, e.ErrCancelled, ctx.Err())
	case stderrors.Is(err, errTaskPending):
		c.logger.Warn("Task abandoned after poll limit",
			zap.String("operation", operation),
			zap.String("task_id", taskID),
			zap.Int("polls", attempts),
		)
		return "", &e.RemoteError{
			Service:   ServiceName,
			Operation: operation,
			Kind:      e.ErrTaskTimeout,
			Err:       fmt.Errorf("task %s not finished after %d polls", taskID, attempts),
		}
	default:
		return "", err
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
