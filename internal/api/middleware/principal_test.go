package middleware

import (
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

const testGroup = "03e6e95e-d8c2-4b4f-9506-7f87c2298935"

func gateRouter(env string) (*gin.Engine, *Principal) {
	gin.SetMode(gin.TestMode)
	var seen Principal
	r := gin.New()
	r.Use(AccessGate(env, testGroup, "Dev User", "dev@example.com", testLogger()))
	r.GET("/probe", func(c *gin.Context) {
		if p, ok := GetPrincipal(c); ok {
			seen = p
		}
		c.Status(http.StatusOK)
	})
	return r, &seen
}

func principalHeader(claims string) string {
	return base64.StdEncoding.EncodeToString([]byte(claims))
}

func TestGateLocalModeSimulatesIdentity(t *testing.T) {
	r, seen := gateRouter("local")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if seen.Email != "dev@example.com" {
		t.Errorf("expected simulated principal, got %+v", seen)
	}
	if len(seen.Groups) != 1 || seen.Groups[0] != "LOCAL-DEVELOPER" {
		t.Errorf("expected LOCAL-DEVELOPER group, got %v", seen.Groups)
	}
}

func TestGateAzureMissingHeader(t *testing.T) {
	r, _ := gateRouter("azure")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestGateAzureBadBase64(t *testing.T) {
	r, _ := gateRouter("azure")

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(PrincipalHeader, "%%%not-base64%%%")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestGateAzureWrongGroup(t *testing.T) {
	r, _ := gateRouter("azure")

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(PrincipalHeader, principalHeader(`{"claims":[{"typ":"groups","val":"other-group"}]}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestGateAzureAuthorized(t *testing.T) {
	r, seen := gateRouter("azure")

	claims := `{"claims":[
		{"typ":"groups","val":"` + testGroup + `"},
		{"typ":"name","val":"Mario Rossi"},
		{"typ":"preferred_username","val":"mario@example.com"}
	]}`
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(PrincipalHeader, principalHeader(claims))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if seen.Name != "Mario Rossi" || seen.Email != "mario@example.com" {
		t.Errorf("principal not extracted from claims: %+v", seen)
	}
}
