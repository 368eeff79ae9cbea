package parallel

import (
	"fmt"
	"strconv"
)

// Args is a task payload: either one value or an ordered tuple of values.
// The shape is fixed when the payload is built with Single or Tuple.
type Args struct {
	values []any
	tuple  bool
}

// Single builds a payload carrying one value.
func Single(v any) Args {
	return Args{values: []any{v}}
}

// Tuple builds a payload whose values are passed positionally.
func Tuple(values ...any) Args {
	copied := make([]any, len(values))
	copy(copied, values)
	return Args{values: copied, tuple: true}
}

// IsTuple reports whether the payload was built with Tuple.
func (a Args) IsTuple() bool {
	return a.tuple
}

// Len returns the number of positional values.
func (a Args) Len() int {
	return len(a.values)
}

// At returns the i-th positional value, or nil when out of range.
func (a Args) At(i int) any {
	if i < 0 || i >= len(a.values) {
		return nil
	}
	return a.values[i]
}

// Values returns a copy of the positional values.
// A single payload yields a one-element slice.
func (a Args) Values() []any {
	copied := make([]any, len(a.values))
	copy(copied, a.values)
	return copied
}

// String returns the i-th value as a string, failing when it is not one.
func (a Args) String(i int) (string, error) {
	v := a.At(i)
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %d: expected string, got %T", i, v)
	}
	return s, nil
}

// TaskID returns the diagnostic identifier of the payload: the last tuple
// element or the single value, when it is a string or an integer.
func (a Args) TaskID() string {
	if len(a.values) == 0 {
		return ""
	}
	id, _ := scalarID(a.values[len(a.values)-1])
	return id
}

// Identifier is implemented by payloads that carry their own diagnostic ID.
type Identifier interface {
	TaskID() string
}

// Identify returns the diagnostic identifier for a task payload,
// falling back to task_index_<i>.
func Identify(payload any, index int) string {
	switch p := payload.(type) {
	case Identifier:
		if id := p.TaskID(); id != "" {
			return id
		}
	default:
		if id, ok := scalarID(payload); ok {
			return id
		}
	}
	return "task_index_" + strconv.Itoa(index)
}

func scalarID(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		return id, true
	case int:
		return strconv.Itoa(id), true
	case int32:
		return strconv.FormatInt(int64(id), 10), true
	case int64:
		return strconv.FormatInt(id, 10), true
	case uint:
		return strconv.FormatUint(uint64(id), 10), true
	case uint32:
		return strconv.FormatUint(uint64(id), 10), true
	case uint64:
		return strconv.FormatUint(id, 10), true
	default:
		return "", false
	}
}
