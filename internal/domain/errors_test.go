package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestSkippableError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		context string
		want    string
	}{
		{
			name:    "with context and error",
			err:     errors.New("underlying error"),
			context: "Packages.xz",
			want:    "Packages.xz: underlying error",
		},
		{
			name:    "with context only",
			err:     nil,
			context: "candidate unavailable",
			want:    "candidate unavailable",
		},
		{
			name:    "with error only",
			err:     errors.New("underlying error"),
			context: "",
			want:    "underlying error",
		},
		{
			name:    "empty",
			err:     nil,
			context: "",
			want:    "skippable error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := NewSkippableError(tt.err, tt.context)
			if got := se.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSkippableError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	se := NewSkippableError(underlying, "context")

	if got := se.Unwrap(); got != underlying {
		t.Errorf("Unwrap() = %v, want %v", got, underlying)
	}

	seNil := NewSkippableError(nil, "context")
	if got := seNil.Unwrap(); got != nil {
		t.Errorf("Unwrap() with nil = %v, want nil", got)
	}
}

func TestIsSkippable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "skippable error",
			err:  NewSkippableError(errors.New("err"), "context"),
			want: true,
		},
		{
			name: "wrapped skippable error",
			err:  fmt.Errorf("wrapped: %w", NewSkippableError(errors.New("err"), "context")),
			want: true,
		},
		{
			name: "regular error",
			err:  errors.New("regular error"),
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSkippable(tt.err); got != tt.want {
				t.Errorf("IsSkippable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatusError(t *testing.T) {
	err := fmt.Errorf("fetch: %w", &StatusError{URL: "https://repo.example/Packages", StatusCode: 404})

	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Error("StatusError should unwrap to ErrUnexpectedStatus")
	}

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatal("errors.As should find StatusError")
	}
	if se.StatusCode != 404 {
		t.Errorf("StatusCode = %d, want 404", se.StatusCode)
	}

	want := "fetch: GET https://repo.example/Packages: unexpected HTTP status 404"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorsAsUnwrap(t *testing.T) {
	se := NewSkippableError(ErrDecompress, "Packages.gz")

	if !errors.Is(se, ErrDecompress) {
		t.Error("SkippableError should unwrap to ErrDecompress")
	}
}
