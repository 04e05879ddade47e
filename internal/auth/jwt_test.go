// File: internal/auth/jwt_test.go
package auth

import (
	"testing"

	"github.com/iyunix/go-roomchat/internal/domain"
)

var testSecret = []byte("test-secret-key")

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken("ada", domain.TierPremium, testSecret)
	if err != nil {
		t.Fatalf("unexpected generate error: %v", err)
	}

	name, tier, err := ValidateToken(token, testSecret)
	if err != nil {
		t.Fatalf("unexpected validate error: %v", err)
	}
	if name != "ada" {
		t.Errorf("expected name %q, got %q", "ada", name)
	}
	if tier != domain.TierPremium {
		t.Errorf("expected tier %q, got %q", domain.TierPremium, tier)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("ada", domain.TierFree, testSecret)
	if err != nil {
		t.Fatalf("unexpected generate error: %v", err)
	}

	if _, _, err := ValidateToken(token, []byte("other-secret")); err == nil {
		t.Fatal("expected validation to fail with the wrong secret")
	}
}

func TestValidateTokenGarbage(t *testing.T) {
	if _, _, err := ValidateToken("not-a-token", testSecret); err == nil {
		t.Fatal("expected validation to fail for garbage input")
	}
}

func TestGenerateTokenEmptyName(t *testing.T) {
	if _, err := GenerateToken("", domain.TierFree, testSecret); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestUnknownTierDegradesToAnonymous(t *testing.T) {
	token, err := GenerateToken("ada", domain.Tier("enterprise"), testSecret)
	if err != nil {
		t.Fatalf("unexpected generate error: %v", err)
	}

	_, tier, err := ValidateToken(token, testSecret)
	if err != nil {
		t.Fatalf("unexpected validate error: %v", err)
	}
	if tier != domain.TierAnonymous {
		t.Errorf("expected anonymous fallback, got %q", tier)
	}
}
