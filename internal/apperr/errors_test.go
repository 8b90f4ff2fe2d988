package apperr

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"io", IO("read accounts", fs.ErrPermission), KindIO},
		{"config", Config("parse accounts", errors.New("unexpected EOF")), KindConfig},
		{"database", Database("index", errors.New("locked")), KindDatabase},
		{"not found", NotFound("update account", "account %q", "acc_1"), KindNotFound},
		{"already exists", AlreadyExists("init", "path %q", "/tmp/ws"), KindAlreadyExists},
		{"invalid", Invalid("create account", "name is required"), KindInvalid},
		{"wrapped", fmt.Errorf("outer: %w", NotFound("x", "y")), KindNotFound},
		{"plain", errors.New("boom"), KindUnknown},
		{"nil", nil, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	err := IO("read categories", fs.ErrNotExist)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected errors.Is to find fs.ErrNotExist in %v", err)
	}
	if !Is(err, KindIO) {
		t.Fatalf("expected KindIO, got %v", KindOf(err))
	}
	if Is(nil, KindIO) {
		t.Fatal("nil error must not match any kind")
	}
	if got, want := err.Error(), "read categories: file does not exist"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
