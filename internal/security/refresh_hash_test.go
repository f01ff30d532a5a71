package security

import (
	"strings"
	"testing"
)

func TestHashRefreshToken_Stable(t *testing.T) {
	h1 := HashRefreshToken("refresh-abc")
	h2 := HashRefreshToken("refresh-abc")
	if h1 != h2 {
		t.Fatalf("HashRefreshToken not stable: %q vs %q", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64 (SHA-256 hex)", len(h1))
	}
	if HashRefreshToken("refresh-abd") == h1 {
		t.Error("different tokens produced the same hash")
	}
}

func TestRefreshTokenHashEqual(t *testing.T) {
	stored := HashRefreshToken("refresh-abc")
	flipped := "0" + stored[1:]
	if stored[0] == '0' {
		flipped = "1" + stored[1:]
	}
	tests := []struct {
		name     string
		provided string
		stored   string
		want     bool
	}{
		{"match", "refresh-abc", stored, true},
		{"wrong token", "refresh-xyz", stored, false},
		{"consumed row", "refresh-abc", "", false},
		{"empty token", "", stored, false},
		{"longer stored hash", "refresh-abc", "a" + stored, false},
		{"altered stored hash", "refresh-abc", flipped, false},
		{"uppercase stored hash", "refresh-abc", strings.ToUpper(stored), strings.ToUpper(stored) == stored},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := RefreshTokenHashEqual(tc.provided, tc.stored); got != tc.want {
				t.Errorf("RefreshTokenHashEqual = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNewOpaqueToken_UniqueAndURLSafe(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := NewOpaqueToken()
		if err != nil {
			t.Fatalf("NewOpaqueToken: %v", err)
		}
		if len(tok) != 43 {
			t.Fatalf("token length = %d, want 43", len(tok))
		}
		if strings.ContainsAny(tok, "+/=") {
			t.Fatalf("token %q is not URL-safe", tok)
		}
		if seen[tok] {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = true
	}
}
