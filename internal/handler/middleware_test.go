package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/auth-api/internal/db"
	"github.com/kube-rca/auth-api/internal/model"
	"github.com/kube-rca/auth-api/internal/service"
)

func newProtectedRouter(t *testing.T) (*gin.Engine, *service.TokenService, *bool) {
	t.Helper()
	tokens, err := service.NewTokenService("test-secret", "1h")
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	auth, err := service.NewAuthService(db.NewMemoryUserStore(), service.NewPasswordHasher(1), tokens, 8)
	if err != nil {
		t.Fatalf("NewAuthService() error = %v", err)
	}

	reached := false
	r := gin.New()
	r.GET("/protected", AuthMiddleware(auth), func(c *gin.Context) {
		reached = true
		claims := GetAuthClaims(c)
		c.JSON(http.StatusOK, gin.H{"sub": claims.Subject})
	})
	return r, tokens, &reached
}

func TestAuthMiddlewareRejects(t *testing.T) {
	_, tokens, _ := newProtectedRouter(t)
	valid, _ := tokens.Issue(model.AuthClaims{Subject: "u1", Email: "a@b.co"})
	tampered := valid[:len(valid)-4] + flip(valid[len(valid)-4:])

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "absent", header: "", want: "Missing bearer token"},
		{name: "wrong-scheme", header: "Token abc", want: "Missing bearer token"},
		{name: "lowercase-scheme", header: "bearer " + valid, want: "Missing bearer token"},
		{name: "tampered", header: "Bearer " + tampered},
		{name: "garbage", header: "Bearer not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, reached := newProtectedRouter(t)
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", w.Code)
			}
			if *reached {
				t.Fatalf("downstream handler must not run")
			}
			body := decode(t, w)
			if body["ok"] != false {
				t.Fatalf("body = %v", body)
			}
			if tt.want != "" && body["error"] != tt.want {
				t.Fatalf("error = %v, want %q", body["error"], tt.want)
			}
			if tt.want == "" && !strings.HasPrefix(body["error"].(string), "invalid token") {
				t.Fatalf("error = %v, want token failure", body["error"])
			}
		})
	}
}

func TestAuthMiddlewareAccepts(t *testing.T) {
	r, tokens, reached := newProtectedRouter(t)
	token, _ := tokens.Issue(model.AuthClaims{Subject: "u1", Email: "a@b.co"})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || !*reached {
		t.Fatalf("expected 200 and downstream call, got %d", w.Code)
	}
	if got := decode(t, w)["sub"]; got != "u1" {
		t.Fatalf("sub = %v", got)
	}
}

func TestCORSMiddleware(t *testing.T) {
	if CORSMiddleware(nil) != nil {
		t.Fatalf("expected no middleware without origins")
	}

	r := gin.New()
	r.Use(CORSMiddleware([]string{"http://app.test"}))
	r.POST("/auth/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
	req.Header.Set("Origin", "http://app.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight: expected 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://app.test" {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}
}

func flip(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}
	}
	return string(b)
}
