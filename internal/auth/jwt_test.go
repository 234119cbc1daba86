package auth_test

import (
	"testing"

	"github.com/google/uuid"

	"github.com/delapena-bakeshop/api/internal/auth"
)

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret"
	userID := uuid.New()
	role := "Cashier"

	token, err := auth.GenerateToken(secret, userID, role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := auth.ValidateToken(secret, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}

	if claims.UserID != userID {
		t.Errorf("user ID: got %v, want %v", claims.UserID, userID)
	}
	if claims.Role != role {
		t.Errorf("role: got %v, want %v", claims.Role, role)
	}
}

func TestValidateTokenWithWrongSecret(t *testing.T) {
	token, err := auth.GenerateToken("secret-a", uuid.New(), "Cashier")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	_, err = auth.ValidateToken("secret-b", token)
	if err == nil {
		t.Fatal("expected error validating with wrong secret")
	}
}

func TestValidateTokenWithInvalidString(t *testing.T) {
	_, err := auth.ValidateToken("secret", "not-a-jwt")
	if err == nil {
		t.Fatal("expected error validating invalid token string")
	}
}

func TestGenerateAndValidateRefreshToken(t *testing.T) {
	secret := "test-secret"
	userID := uuid.New()

	token, err := auth.GenerateRefreshToken(secret, userID)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	got, err := auth.ValidateRefreshToken(secret, token)
	if err != nil {
		t.Fatalf("validate refresh token: %v", err)
	}
	if got != userID {
		t.Errorf("user ID: got %v, want %v", got, userID)
	}
}

func TestRefreshTokenIsNotAnAccessToken(t *testing.T) {
	// A refresh token carries no role claim; the access-token path must not
	// accept it as a substitute for login.
	secret := "test-secret"
	token, err := auth.GenerateRefreshToken(secret, uuid.New())
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	claims, err := auth.ValidateToken(secret, token)
	if err != nil {
		return
	}
	if claims.Role != "" {
		t.Errorf("refresh token should not carry a role, got %q", claims.Role)
	}
	if claims.UserID != uuid.Nil {
		t.Errorf("refresh token should not carry a user_id claim, got %v", claims.UserID)
	}
}
