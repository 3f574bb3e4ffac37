package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Ihimbru-K/sheydoc/internal/models"
	"github.com/Ihimbru-K/sheydoc/internal/services"
)

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": subject})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func bearerRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestAuthenticate(t *testing.T) {
	secret := []byte("wiring-secret")

	sub, err := authenticate(bearerRequest(signToken(t, "wiring-secret", "user-1")), secret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub != "user-1" {
		t.Fatalf("expected user-1, got %q", sub)
	}

	if _, err := authenticate(bearerRequest(signToken(t, "other-secret", "user-1")), secret); err == nil {
		t.Fatal("token signed with a different secret must be rejected")
	}
	if _, err := authenticate(bearerRequest(signToken(t, "wiring-secret", "")), secret); err == nil {
		t.Fatal("token without a subject must be rejected")
	}
	if _, err := authenticate(httptest.NewRequest(http.MethodGet, "/api/appointments", nil), secret); err == nil {
		t.Fatal("missing authorization header must be rejected")
	}
}

// The secret is supplied via .env, which is only loaded once main runs; a
// value that appears in the environment after package init must still be the
// one tokens are verified against.
func TestAuthenticate_SecretLoadedAfterInit(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-dotenv")

	secret := []byte(os.Getenv("JWT_SECRET"))
	sub, err := authenticate(bearerRequest(signToken(t, "from-dotenv", "user-1")), secret)
	if err != nil {
		t.Fatalf("token signed with the env-supplied secret was rejected: %v", err)
	}
	if sub != "user-1" {
		t.Fatalf("expected user-1, got %q", sub)
	}
}

func TestPaymentHandler_AcceptsInjectedSecret(t *testing.T) {
	appts := &memAppointmentStore{appts: map[string]*models.Appointment{}}
	svc := services.NewPaymentService(appts, memUserStore{}, &memEventStore{}, noopGateway{})
	h := NewPaymentHandler(svc, "wiring-secret")

	rec := httptest.NewRecorder()
	h.ListAppointments(rec, bearerRequest(signToken(t, "wiring-secret", "user-1")))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a valid bearer token, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ListAppointments(rec, bearerRequest(signToken(t, "other-secret", "user-1")))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a foreign token, got %d", rec.Code)
	}
}
