package services

import (
	"errors"
	"fmt"
	"strings"

	"ffui/internal/queue"
)

// Classification sentinels for worker failures. Call sites pick one when
// wrapping so settle logic can map the error onto a terminal queue status
// without string matching.
var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap tags err with marker and a phase/operation/message detail chain.
// A nil marker degrades to ErrTransient.
func Wrap(marker error, phase, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	detail := joinDetail(phase, operation, message)
	if err == nil {
		return fmt.Errorf("%w: %s", marker, detail)
	}
	return fmt.Errorf("%w: %s: %w", marker, detail, err)
}

// FailureStatus maps a worker error onto the terminal status to persist.
// Validation failures and vanished inputs mark the job skipped: the engine
// declined to process it and the skip reason tells the operator why.
// Everything else is a hard failure.
func FailureStatus(err error) queue.Status {
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) {
		return queue.StatusSkipped
	}
	return queue.StatusFailed
}

func joinDetail(parts ...string) string {
	kept := parts[:0]
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	if len(kept) == 0 {
		return "service failure"
	}
	return strings.Join(kept, ": ")
}
