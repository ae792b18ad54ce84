package auth

import (
	"testing"

	"github.com/spec-kit/case-service/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)
	staff := &domain.StaffMember{
		ID:              "staff-1",
		Role:            domain.StaffRoleWelfareOfficer,
		EstablishmentID: "est-1",
	}

	token, expiresAt, err := tm.GenerateToken(staff)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if expiresAt.IsZero() {
		t.Fatal("expiry not set")
	}

	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.StaffID != "staff-1" || claims.EstablishmentID != "est-1" || claims.Role != domain.StaffRoleWelfareOfficer {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestTokenWrongSecretRejected(t *testing.T) {
	tm := NewTokenManager("secret-a", 60)
	staff := &domain.StaffMember{ID: "staff-1", Role: domain.StaffRoleTeacher, EstablishmentID: "est-1"}
	token, _, err := tm.GenerateToken(staff)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	other := NewTokenManager("secret-b", 60)
	if _, err := other.ParseToken(token); err == nil {
		t.Fatal("token signed with a different secret was accepted")
	}
}
