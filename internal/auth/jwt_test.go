package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	m, err := NewTokenManager("test-secret", time.Hour, "swha-test")
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}

	token, expiresAt, err := m.GenerateUserToken("user-1", "alice", false)
	if err != nil {
		t.Fatalf("GenerateUserToken() error = %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Errorf("Expected expiry in the future, got %v", expiresAt)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.UserID != "user-1" || claims.Username != "alice" || claims.Role != "user" {
		t.Errorf("Unexpected claims: %+v", claims)
	}
}

func TestValidateTokenRejects(t *testing.T) {
	m, _ := NewTokenManager("test-secret", time.Hour, "swha-test")
	other, _ := NewTokenManager("other-secret", time.Hour, "swha-test")
	foreign, _ := NewTokenManager("test-secret", time.Hour, "someone-else")

	expired, _ := NewTokenManager("test-secret", time.Hour, "swha-test")
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	wrongKey, _, _ := other.GenerateUserToken("u", "n", false)
	wrongIssuer, _, _ := foreign.GenerateUserToken("u", "n", false)
	stale, _, _ := expired.GenerateUserToken("u", "n", false)

	tests := map[string]string{
		"garbage":      "not.a.token",
		"empty":        "",
		"wrong key":    wrongKey,
		"wrong issuer": wrongIssuer,
		"expired":      stale,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := m.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestNewTokenManagerValidation(t *testing.T) {
	if _, err := NewTokenManager("", time.Hour, ""); err == nil {
		t.Error("Expected error for empty secret")
	}
	if _, err := NewTokenManager("s", 0, ""); err == nil {
		t.Error("Expected error for zero ttl")
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def", "abc.def", true},
		{"bearer abc", "abc", true},
		{"Basic abc", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if err := CheckPassword(hash, "correct horse"); err != nil {
		t.Errorf("Expected password to match, got %v", err)
	}
	if err := CheckPassword(hash, "wrong horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := HashPassword("short"); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("Expected ErrWeakPassword for short password, got %v", err)
	}
}
