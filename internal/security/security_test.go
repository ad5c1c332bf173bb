package security

import (
	"strings"
	"testing"
)

func TestGenerateKey(t *testing.T) {
	key, hash, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(key, KeyPrefix) || len(key) != len(KeyPrefix)+keyLength {
		t.Errorf("unexpected key %q", key)
	}
	if len(hash) != 64 {
		t.Errorf("expected hex sha256, got %q", hash)
	}
	if !Verify(key, hash) {
		t.Error("generated key should verify against its hash")
	}

	other, _, _ := GenerateKey()
	if other == key {
		t.Error("keys should be unique")
	}
}

func TestVerify(t *testing.T) {
	hash := HashKey("nq_secret")
	tests := []struct {
		key, hash string
		want      bool
	}{
		{"nq_secret", hash, true},
		{"nq_Secret", hash, false},
		{"", hash, false},
		{"nq_secret", "", false},
	}
	for _, tt := range tests {
		if got := Verify(tt.key, tt.hash); got != tt.want {
			t.Errorf("Verify(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}
