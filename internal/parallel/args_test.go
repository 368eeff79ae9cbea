package parallel

import (
	"testing"
)

func TestArgs(t *testing.T) {
	t.Run("single", func(t *testing.T) {
		a := Single("hello")
		if a.IsTuple() {
			t.Error("expected single payload")
		}
		if a.Len() != 1 || a.At(0) != "hello" {
			t.Errorf("unexpected values: %v", a.Values())
		}
	})

	t.Run("tuple copies input", func(t *testing.T) {
		src := []any{"text", 42}
		a := Tuple(src...)
		src[0] = "mutated"
		if a.At(0) != "text" {
			t.Errorf("expected tuple to own its values, got %v", a.At(0))
		}
		if !a.IsTuple() || a.Len() != 2 {
			t.Errorf("unexpected shape: tuple=%v len=%d", a.IsTuple(), a.Len())
		}
	})

	t.Run("out of range", func(t *testing.T) {
		a := Tuple("x")
		if a.At(-1) != nil || a.At(5) != nil {
			t.Error("expected nil for out-of-range index")
		}
	})

	t.Run("string accessor", func(t *testing.T) {
		a := Tuple("q", 7)
		s, err := a.String(0)
		if err != nil || s != "q" {
			t.Errorf("expected q, got %q (%v)", s, err)
		}
		if _, err := a.String(1); err == nil {
			t.Error("expected error for non-string value")
		}
	})
}

func TestIdentify(t *testing.T) {
	type custom struct{ name string }

	tests := []struct {
		name    string
		payload any
		index   int
		want    string
	}{
		{"tuple last string", Tuple("prompt", "ex-1"), 0, "ex-1"},
		{"tuple last int", Tuple("prompt", 17), 3, "17"},
		{"tuple last not scalar", Tuple("prompt", 1.5), 4, "task_index_4"},
		{"single string", Single("row-9"), 1, "row-9"},
		{"empty tuple", Tuple(), 2, "task_index_2"},
		{"bare string", "abc", 0, "abc"},
		{"bare int64", int64(99), 0, "99"},
		{"struct", custom{name: "x"}, 5, "task_index_5"},
		{"nil", nil, 6, "task_index_6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Identify(tt.payload, tt.index); got != tt.want {
				t.Errorf("Identify() = %q, want %q", got, tt.want)
			}
		})
	}
}
