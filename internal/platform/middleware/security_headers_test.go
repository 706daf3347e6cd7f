package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newSecureEcho() *echo.Echo {
	e := echo.New()
	e.Use(SecurityHeaders())
	e.GET("/api/v1/patients", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]int{"total": 0})
	})
	e.POST("/api/v1/pdf/generate-podiatry-visit", func(c echo.Context) error {
		c.Response().Header().Set("Content-Security-Policy", DocumentContentSecurityPolicy)
		return c.HTML(http.StatusOK, "<style>td{border:1px}</style><table></table>")
	})
	e.GET("/api/v1/patients/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
	})
	return e
}

func TestSecurityHeaders_PatientListing(t *testing.T) {
	rec := httptest.NewRecorder()
	newSecureEcho().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil))

	expected := map[string]string{
		"X-Content-Type-Options":    "nosniff",
		"X-Frame-Options":           "DENY",
		"X-XSS-Protection":          "0",
		"Content-Security-Policy":   APIContentSecurityPolicy,
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		"Referrer-Policy":           "no-referrer",
		"Permissions-Policy":        "camera=(), microphone=(), geolocation=()",
		"Cache-Control":             "no-store",
	}
	for header, want := range expected {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("header %s: got %q, want %q", header, got, want)
		}
	}
}

func TestSecurityHeaders_DocumentOverridesPolicy(t *testing.T) {
	rec := httptest.NewRecorder()
	newSecureEcho().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/pdf/generate-podiatry-visit", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Values("Content-Security-Policy"); len(got) != 1 || got[0] != DocumentContentSecurityPolicy {
		t.Errorf("expected a single document policy, got %q", got)
	}
	// A rendered visit list names patients; it must stay uncached too.
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("expected no-store on documents, got %q", got)
	}
}

func TestSecurityHeaders_ErrorResponses(t *testing.T) {
	rec := httptest.NewRecorder()
	newSecureEcho().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/patients/missing", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" || rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("expected security headers on error responses, got %v", rec.Header())
	}
}

func TestContentSecurityPolicies(t *testing.T) {
	if strings.Contains(APIContentSecurityPolicy, "unsafe-inline") {
		t.Error("API policy must not allow inline content")
	}
	if !strings.Contains(DocumentContentSecurityPolicy, "style-src 'unsafe-inline'") {
		t.Error("document policy must allow the inline document styles")
	}
	for _, policy := range []string{APIContentSecurityPolicy, DocumentContentSecurityPolicy} {
		if strings.Contains(policy, "script-src") {
			t.Errorf("policy %q must not allow scripts", policy)
		}
		if !strings.Contains(policy, "frame-ancestors 'none'") {
			t.Errorf("policy %q must forbid framing", policy)
		}
	}
}
