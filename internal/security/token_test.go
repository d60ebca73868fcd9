package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signTestToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func TestDecodeScalarAndArrayClaims(t *testing.T) {
	raw := signTestToken(t, jwt.MapClaims{
		"sub":         "42",
		"displayName": "Alex",
		"http://schemas.microsoft.com/ws/2008/06/identity/claims/role": "Agent",
		"permissions": []string{"tickets:read_own", "tickets:write"},
		"exp":         time.Now().Add(time.Hour).Unix(),
	})

	claims, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if claims.Subject != "42" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if claims.DisplayName != "Alex" {
		t.Fatalf("unexpected display name %q", claims.DisplayName)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "Agent" {
		t.Fatalf("scalar role claim not normalized: %v", claims.Roles)
	}
	if len(claims.Permissions) != 2 {
		t.Fatalf("unexpected permissions: %v", claims.Permissions)
	}
	if err := claims.ValidAt(time.Now()); err != nil {
		t.Fatalf("expected valid token: %v", err)
	}
}

func TestDecodeScalarPermission(t *testing.T) {
	raw := signTestToken(t, jwt.MapClaims{
		"sub":         "7",
		"permissions": "tickets:read_own",
		"exp":         time.Now().Add(time.Hour).Unix(),
	})
	claims, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if len(claims.Permissions) != 1 || claims.Permissions[0] != "tickets:read_own" {
		t.Fatalf("scalar permission claim not normalized: %v", claims.Permissions)
	}
}

func TestValidAtRejectsExpiredAndMissingExpiry(t *testing.T) {
	expired := signTestToken(t, jwt.MapClaims{
		"sub": "7",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})
	claims, err := Decode(expired)
	if err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if err := claims.ValidAt(time.Now()); err == nil {
		t.Fatal("expected expired token to be rejected")
	}

	noExp := signTestToken(t, jwt.MapClaims{"sub": "7"})
	claims, err = Decode(noExp)
	if err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if err := claims.ValidAt(time.Now()); err == nil {
		t.Fatal("expected token without expiry to be rejected")
	}
}

func TestDecodeGarbageFails(t *testing.T) {
	if _, err := Decode("not-a-token"); err == nil {
		t.Fatal("expected decode error")
	}
}
