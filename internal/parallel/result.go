package parallel

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FailureReason classifies why a task did not produce a value.
type FailureReason int

const (
	// ReasonError means the task returned an error or panicked.
	ReasonError FailureReason = iota
	// ReasonTimeout means the task missed its deadline.
	ReasonTimeout
)

// String returns the reason name.
func (r FailureReason) String() string {
	switch r {
	case ReasonError:
		return "error"
	case ReasonTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// TaskError describes a contained task failure.
type TaskError struct {
	Index   int
	ID      string
	Reason  FailureReason
	Timeout time.Duration
	Err     error
}

func (e *TaskError) Error() string {
	if e.Reason == ReasonTimeout {
		return fmt.Sprintf("ID %s: Task timed out after %s seconds.", e.ID, strconv.FormatFloat(e.Timeout.Seconds(), 'f', -1, 64))
	}
	if e.Err == nil {
		return fmt.Sprintf("ID %s: unknown error", e.ID)
	}
	return fmt.Sprintf("ID %s: %v", e.ID, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one task. Err is nil on success.
type Result[T any] struct {
	Value    T
	Err      *TaskError
	Duration time.Duration
}

// OK reports whether the task succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// TimedOut reports whether the task missed its deadline.
func (r Result[T]) TimedOut() bool {
	return r.Err != nil && r.Err.Reason == ReasonTimeout
}

// Encode converts results to the prefixed-string convention: successful
// slots hold their value, failed slots hold prefix + the task error text.
func Encode[T any](results []Result[T], prefix string) []any {
	out := make([]any, len(results))
	for i, r := range results {
		if r.Err != nil {
			out[i] = prefix + r.Err.Error()
			continue
		}
		out[i] = r.Value
	}
	return out
}

// EncodeStrings is Encode for string-valued tasks.
func EncodeStrings(results []Result[string], prefix string) []string {
	out := make([]string, len(results))
	for i, r := range results {
		if r.Err != nil {
			out[i] = prefix + r.Err.Error()
			continue
		}
		out[i] = r.Value
	}
	return out
}

// IsEncodedError reports whether an encoded slot is a failure marker.
// A legitimate string value starting with the prefix is indistinguishable,
// which is why Result is preferred over the encoded form.
func IsEncodedError(v any, prefix string) bool {
	s, ok := v.(string)
	return ok && prefix != "" && strings.HasPrefix(s, prefix)
}

// Failures returns the task errors in input order.
func Failures[T any](results []Result[T]) []*TaskError {
	var errs []*TaskError
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}
