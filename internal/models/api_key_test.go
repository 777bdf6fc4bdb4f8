package models

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestAPIKey_IsRevoked(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		revokedAt *time.Time
		expected  bool
	}{
		{
			name:      "active key",
			revokedAt: nil,
			expected:  false,
		},
		{
			name:      "revoked key",
			revokedAt: &now,
			expected:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := &APIKey{
				ID:        uuid.New(),
				AccountID: uuid.New(),
				RevokedAt: tt.revokedAt,
			}
			if got := key.IsRevoked(); got != tt.expected {
				t.Errorf("IsRevoked() = %v, want %v", got, tt.expected)
			}
			if got := key.IsValid(); got == tt.expected {
				t.Errorf("IsValid() = %v, want %v", got, !tt.expected)
			}
		})
	}
}

func TestSnapshot(t *testing.T) {
	t.Run("short text unchanged", func(t *testing.T) {
		if got := Snapshot("hello"); got != "hello" {
			t.Errorf("Snapshot() = %q, want %q", got, "hello")
		}
	})

	t.Run("long text truncated", func(t *testing.T) {
		in := strings.Repeat("a", SnapshotLimit+20)
		got := Snapshot(in)
		if len(got) != SnapshotLimit {
			t.Errorf("len(Snapshot()) = %d, want %d", len(got), SnapshotLimit)
		}
	})

	t.Run("multibyte runes are not split", func(t *testing.T) {
		in := strings.Repeat("é", SnapshotLimit+1)
		got := Snapshot(in)
		if n := len([]rune(got)); n != SnapshotLimit {
			t.Errorf("rune count = %d, want %d", n, SnapshotLimit)
		}
		if !strings.HasPrefix(in, got) {
			t.Error("snapshot is not a prefix of the input")
		}
	})
}
