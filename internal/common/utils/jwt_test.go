package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func TestJWTRoundTrip(t *testing.T) {
	claims := &JWTClaims{
		UserID: "user-1",
		Email:  "van@obimo.app",
		Type:   "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	token, err := GenerateJWT(claims, "secret")
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}

	parsed, err := ValidateJWT(token, "secret")
	if err != nil {
		t.Fatalf("ValidateJWT() error = %v", err)
	}
	if parsed.UserID != "user-1" || parsed.Type != "access" {
		t.Errorf("ValidateJWT() = %+v", parsed)
	}
}

func TestValidateJWTRejects(t *testing.T) {
	expired, _ := GenerateJWT(&JWTClaims{
		UserID: "user-1",
		Type:   "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}, "secret")
	noUser, _ := GenerateJWT(&JWTClaims{Type: "access"}, "secret")
	wrongSecret, _ := GenerateJWT(&JWTClaims{UserID: "user-1", Type: "access"}, "other")

	tests := []struct {
		name  string
		token string
	}{
		{"Expired token", expired},
		{"Missing user id", noUser},
		{"Wrong secret", wrongSecret},
		{"Garbage", "not-a-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ValidateJWT(tt.token, "secret"); err == nil {
				t.Error("ValidateJWT() expected error")
			}
		})
	}
}

type interactionInput struct {
	Type string `validate:"required,oneof=like pass"`
}

func TestValidateStruct(t *testing.T) {
	if err := ValidateStruct(&interactionInput{Type: "like"}); err != nil {
		t.Errorf("ValidateStruct() error = %v", err)
	}

	err := ValidateStruct(&interactionInput{Type: "wave"})
	if err == nil {
		t.Fatal("ValidateStruct() expected error")
	}
	if err.Error() != "Type must be one of: like pass" {
		t.Errorf("ValidateStruct() message = %q", err.Error())
	}
}
