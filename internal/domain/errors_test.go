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
			context: "classifying snapshot",
			want:    "classifying snapshot: underlying error",
		},
		{
			name:    "with context only",
			err:     nil,
			context: "concealed content ignored",
			want:    "concealed content ignored",
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
			err:  fmt.Errorf("wrapped: %w", ErrSkipConcealed),
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
		{
			name: "sentinel is not skippable by itself",
			err:  ErrConcealed,
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

func TestPredefinedSkippableErrors(t *testing.T) {
	pairs := []struct {
		skip   error
		target error
	}{
		{ErrSkipEmpty, ErrNoRepresentation},
		{ErrSkipConcealed, ErrConcealed},
		{ErrSkipBlacklisted, ErrBlacklistedApp},
		{ErrSkipDuplicate, ErrDuplicateImage},
	}

	for _, p := range pairs {
		if !IsSkippable(p.skip) {
			t.Errorf("%v should be skippable", p.skip)
		}
		if !errors.Is(p.skip, p.target) {
			t.Errorf("%v should unwrap to %v", p.skip, p.target)
		}
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindPlainText, KindRichText, KindFileReference, KindImageBlob} {
		got, err := ParseKind(string(k))
		if err != nil {
			t.Fatalf("ParseKind(%q) error: %v", k, err)
		}
		if got != k {
			t.Errorf("ParseKind(%q) = %q", k, got)
		}
	}

	if _, err := ParseKind("html"); !errors.Is(err, ErrUnsupportedKind) {
		t.Errorf("ParseKind(html) error = %v, want ErrUnsupportedKind", err)
	}
}
