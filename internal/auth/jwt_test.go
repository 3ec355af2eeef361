package auth

import (
	"testing"
)

func TestDeviceTokenRoundTrip(t *testing.T) {
	token, err := GenerateDeviceToken("device-LUMEN001", "user-1")
	if err != nil {
		t.Fatalf("GenerateDeviceToken failed: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.DeviceID != "device-LUMEN001" {
		t.Errorf("expected device ID device-LUMEN001, got %s", claims.DeviceID)
	}
	if claims.UserID != "user-1" {
		t.Errorf("expected user ID user-1, got %s", claims.UserID)
	}
	if claims.Role != RoleDevice {
		t.Errorf("expected device role, got %s", claims.Role)
	}
}

func TestDashboardTokenRoundTrip(t *testing.T) {
	token, err := GenerateDashboardToken("admin")
	if err != nil {
		t.Fatalf("GenerateDashboardToken failed: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.Role != RoleDashboard {
		t.Errorf("expected dashboard role, got %s", claims.Role)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	if _, err := ValidateToken("not-a-token"); err == nil {
		t.Error("expected error for malformed token")
	}
	if _, err := ValidateToken(""); err == nil {
		t.Error("expected error for empty token")
	}
}
