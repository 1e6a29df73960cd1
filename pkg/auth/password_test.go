package auth

import (
	"testing"
)

func TestHashAndComparePassword(t *testing.T) {
	password := "SecurePassword123"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() = %v, want nil", err)
	}

	if err := ComparePassword(hash, password); err != nil {
		t.Errorf("ComparePassword() with correct password = %v, want nil", err)
	}

	if err := ComparePassword(hash, "WrongPassword123"); err == nil {
		t.Error("ComparePassword() with wrong password = nil, want error")
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid", "SecurePassword123", false},
		{"too short", "Ab1", true},
		{"no uppercase", "securepassword123", true},
		{"no lowercase", "SECUREPASSWORD123", true},
		{"no digits", "SecurePassword", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
			}
		})
	}
}

func TestBcryptVerifier(t *testing.T) {
	hash, err := HashPassword("SecurePassword123")
	if err != nil {
		t.Fatalf("HashPassword() = %v, want nil", err)
	}

	v := BcryptVerifier{}
	if !v.Verify(hash, "SecurePassword123") {
		t.Error("Verify() with correct secret = false, want true")
	}
	if v.Verify(hash, "nope") {
		t.Error("Verify() with wrong secret = true, want false")
	}
}
