package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/festlabs/festreg/internal/http/handlers"
)

type fakeIssuer struct {
	issueFn func(userID, email, role string) (string, error)
}

func (f *fakeIssuer) GenerateAccessToken(userID, email, role string) (string, error) {
	if f.issueFn != nil {
		return f.issueFn(userID, email, role)
	}
	return "signed-token", nil
}

func TestLoginHandler(t *testing.T) {
	const adminEmail = "ops@festlabs.example"
	const adminPassword = "festival-season-26"

	tests := []struct {
		name           string
		body           string
		wantStatusCode int
	}{
		{
			name:           "success",
			body:           `{"email": "` + adminEmail + `", "password": "` + adminPassword + `"}`,
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "wrong_password",
			body:           `{"email": "` + adminEmail + `", "password": "not-the-password"}`,
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "wrong_email",
			body:           `{"email": "someone@example.com", "password": "` + adminPassword + `"}`,
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "validation_error",
			body:           `{"email": "not-an-email", "password": "x"}`,
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			issued := ""
			issuer := &fakeIssuer{
				issueFn: func(userID, email, role string) (string, error) {
					if role != "admin" {
						t.Fatalf("issued role %q, want admin", role)
					}
					issued = "signed-token"
					return issued, nil
				},
			}

			h := handlers.NewAuthHandler(issuer, adminEmail, adminPassword, discardLogger())
			r := setupRouter(http.MethodPost, "/auth/login", h.Login)

			req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantStatusCode == http.StatusOK {
				var resp handlers.LoginResponse
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("unmarshal: %v", err)
				}
				if resp.AccessToken != issued {
					t.Fatalf("got token %q, want %q", resp.AccessToken, issued)
				}
			}
		})
	}
}

func TestLoginHandler_NotConfigured(t *testing.T) {
	h := handlers.NewAuthHandler(&fakeIssuer{}, "", "", discardLogger())
	r := setupRouter(http.MethodPost, "/auth/login", h.Login)

	body := `{"email": "ops@festlabs.example", "password": "festival-season-26"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d, want 503, body=%s", w.Code, w.Body.String())
	}
}
