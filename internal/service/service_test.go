package service

import (
	"context"
	"errors"
	"testing"

	"daypulse/internal/auth"
)

func TestRegisterValidation(t *testing.T) {
	svc := New(nil, auth.NewManager("test-secret"))
	ctx := context.Background()

	cases := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"missing fields", "", "", ""},
		{"missing email", "alice", "", "secret123"},
		{"short username", "ab", "a@b.com", "secret123"},
		{"short password", "alice", "a@b.com", "12345"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.username, tc.email, tc.password)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}
