package validator

import (
	"strings"
	"testing"

	"github.com/keyxmakerx/healthcore/internal/apperror"
)

type recipientRequest struct {
	RecipientEmail string `json:"recipient_email" validate:"omitempty,email"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func TestEmail(t *testing.T) {
	v := MustNew()

	valid := []string{"admin@example.com", "first.last+tag@clinic.health"}
	for _, addr := range valid {
		if !v.Email(addr) {
			t.Errorf("Email(%q) = false, want true", addr)
		}
	}

	invalid := []string{"", "not-an-email", "a@", "@b.com", "two@@example.com"}
	for _, addr := range invalid {
		if v.Email(addr) {
			t.Errorf("Email(%q) = true, want false", addr)
		}
	}
}

func TestValidate_OmitEmpty(t *testing.T) {
	v := MustNew()
	if err := v.Validate(recipientRequest{}); err != nil {
		t.Fatalf("empty optional recipient should pass, got %v", err)
	}
}

func TestValidate_ReportsJSONFieldNames(t *testing.T) {
	v := MustNew()

	err := v.Validate(loginRequest{Email: "nope"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if apperror.KindOf(err) != apperror.KindValidation {
		t.Fatalf("expected validation kind, got %v", apperror.KindOf(err))
	}

	msg := apperror.SafeMessage(err)
	if !strings.Contains(msg, "email") || !strings.Contains(msg, "password") {
		t.Errorf("message should name both fields, got %q", msg)
	}
}
