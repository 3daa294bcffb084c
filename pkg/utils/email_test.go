package utils

import (
	"errors"
	"testing"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "Ada@Example.com", want: "ada@example.com"},
		{in: "  grace@navy.mil ", want: "grace@navy.mil"},
		{in: "Ada Lovelace <ada@example.com>", want: "ada@example.com"},
		{in: "testexample.com", wantErr: true},
		{in: "test@@example.com", wantErr: true},
		{in: "@example.com", wantErr: true},
		{in: "test@example", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := NormalizeEmail(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidEmail) {
				t.Fatalf("NormalizeEmail(%q): expected ErrInvalidEmail, got %q %v", tt.in, got, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("NormalizeEmail(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}
