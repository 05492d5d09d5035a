package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/auth-api/internal/config"
	"github.com/kube-rca/auth-api/internal/db"
	"github.com/kube-rca/auth-api/internal/model"
	"github.com/kube-rca/auth-api/internal/ratelimit"
	"github.com/kube-rca/auth-api/internal/service"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	auth   *service.AuthService
	tokens *service.TokenService
	store  *db.MemoryUserStore
}

func newTestServer(t *testing.T, limiter ratelimit.Limiter) *testServer {
	t.Helper()
	tokens, err := service.NewTokenService("test-secret", "1h")
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	store := db.NewMemoryUserStore()
	hasher := service.NewPasswordHasher(2, service.WithScryptParams(service.ScryptParams{N: 1024, R: 8, P: 1}))
	auth, err := service.NewAuthService(store, hasher, tokens, 8)
	if err != nil {
		t.Fatalf("NewAuthService() error = %v", err)
	}

	if limiter == nil {
		limiter = ratelimit.NewMemory(1000, ratelimit.DefaultWindow)
	}
	router, err := NewRouter(RouterDeps{
		Server:    config.ServerConfig{},
		Auth:      auth,
		Store:     store,
		StoreName: config.StoreMemory,
		Limiter:   limiter,
		Logger:    zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return &testServer{router: router, auth: auth, tokens: tokens, store: store}
}

func (s *testServer) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON body %q: %v", w.Body.String(), err)
	}
	return out
}

func TestAuthFlowEndToEnd(t *testing.T) {
	s := newTestServer(t, nil)
	const creds = `{"email":"Ada@Example.com","password":"Str0ng!pw"}`

	w := s.do(http.MethodPost, "/auth/register", creds, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	registered := decode(t, w)
	if registered["ok"] != true || registered["token"] == "" {
		t.Fatalf("register body = %v", registered)
	}
	user := registered["user"].(map[string]any)
	if user["email"] != "ada@example.com" {
		t.Fatalf("register email = %v", user["email"])
	}
	userID := user["id"].(string)

	w = s.do(http.MethodPost, "/auth/register", creds, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d", w.Code)
	}
	if got := decode(t, w)["error"]; got != "Email is already registered" {
		t.Fatalf("duplicate error = %v", got)
	}

	w = s.do(http.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"Wr0ng!pw"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d", w.Code)
	}
	wrongPassword := decode(t, w)

	w = s.do(http.MethodPost, "/auth/login", `{"email":"bob@example.com","password":"Str0ng!pw"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown email: expected 401, got %d", w.Code)
	}
	unknownEmail := decode(t, w)
	if wrongPassword["error"] != "Invalid credentials" || unknownEmail["error"] != wrongPassword["error"] {
		t.Fatalf("login failures differ: %v vs %v", wrongPassword, unknownEmail)
	}

	w = s.do(http.MethodPost, "/auth/login", creds, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", w.Code)
	}
	token := decode(t, w)["token"].(string)

	w = s.do(http.MethodGet, "/auth/me", "", map[string]string{"Authorization": "Bearer " + token})
	if w.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	me := decode(t, w)["user"].(map[string]any)
	if me["id"] != userID || me["email"] != "ada@example.com" {
		t.Fatalf("me user = %v", me)
	}
	if _, leaked := me["passwordHash"]; leaked {
		t.Fatalf("me response leaked credential fields")
	}
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "empty-body", body: "", want: "Email and password are required"},
		{name: "missing-password", body: `{"email":"ada@example.com"}`, want: "Email and password are required"},
		{name: "non-string", body: `{"email":42,"password":"Str0ng!pw"}`, want: "Email and password are required"},
		{name: "bad-email", body: `{"email":"nope","password":"Str0ng!pw"}`, want: "Valid email is required"},
		{
			name: "weak-password",
			body: `{"email":"ada@example.com","password":"weak"}`,
			want: "Password must be at least 8 chars and include upper/lower/number/symbol",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/auth/register", tt.body, nil)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			body := decode(t, w)
			if body["ok"] != false || body["error"] != tt.want {
				t.Fatalf("body = %v, want error %q", body, tt.want)
			}
		})
	}
}

func TestMeUnknownUser(t *testing.T) {
	s := newTestServer(t, nil)

	token, err := s.tokens.Issue(model.AuthClaims{Subject: "507f1f77bcf86cd799439011", Email: "ghost@example.com"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	w := s.do(http.MethodGet, "/auth/me", "", map[string]string{"Authorization": "Bearer " + token})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if got := decode(t, w)["error"]; got != "User not found" {
		t.Fatalf("error = %v", got)
	}
}

// failingStore breaks every lookup.
type failingStore struct {
	*db.MemoryUserStore
}

func (failingStore) FindByEmail(context.Context, string) (*model.User, error) {
	return nil, errors.New("connection reset by peer")
}

func TestInternalErrorsAreGeneric(t *testing.T) {
	tokens, _ := service.NewTokenService("s", "")
	auth, err := service.NewAuthService(failingStore{db.NewMemoryUserStore()}, service.NewPasswordHasher(1), tokens, 8)
	if err != nil {
		t.Fatalf("NewAuthService() error = %v", err)
	}

	r := gin.New()
	r.POST("/auth/login", NewAuthHandler(auth, zap.NewNop()).Login)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"email":"ada@example.com","password":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if got := decode(t, w)["error"]; got != "Internal server error" {
		t.Fatalf("error = %v", got)
	}
}

func newProxyTestRouter(t *testing.T, trusted []string) *gin.Engine {
	t.Helper()
	tokens, _ := service.NewTokenService("test-secret", "1h")
	store := db.NewMemoryUserStore()
	auth, err := service.NewAuthService(store, service.NewPasswordHasher(1), tokens, 8)
	if err != nil {
		t.Fatalf("NewAuthService() error = %v", err)
	}
	router, err := NewRouter(RouterDeps{
		Server:    config.ServerConfig{TrustedProxies: trusted},
		Auth:      auth,
		Store:     store,
		StoreName: config.StoreMemory,
		Limiter:   ratelimit.NewMemory(3, ratelimit.DefaultWindow),
		Logger:    zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return router
}

func loginFrom(r *gin.Engine, remoteAddr, forwardedFor string) int {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimitIgnoresForwardedForByDefault(t *testing.T) {
	r := newProxyTestRouter(t, nil)

	limited := 0
	for i := 0; i < 10; i++ {
		code := loginFrom(r, "203.0.113.7:5555", "198.51.100."+strconv.Itoa(i))
		if code == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited != 7 {
		t.Fatalf("limited requests = %d, want 7 (rotating X-Forwarded-For must not reset the budget)", limited)
	}
}

func TestRateLimitHonoursForwardedForFromTrustedProxy(t *testing.T) {
	r := newProxyTestRouter(t, []string{"203.0.113.7"})

	for i := 0; i < 5; i++ {
		code := loginFrom(r, "203.0.113.7:5555", "198.51.100."+strconv.Itoa(i))
		if code == http.StatusTooManyRequests {
			t.Fatalf("request %d from distinct forwarded client was limited", i+1)
		}
	}
}

func TestNewRouterRejectsBadTrustedProxies(t *testing.T) {
	tokens, _ := service.NewTokenService("s", "")
	auth, _ := service.NewAuthService(db.NewMemoryUserStore(), service.NewPasswordHasher(1), tokens, 8)

	_, err := NewRouter(RouterDeps{
		Server:  config.ServerConfig{TrustedProxies: []string{"not-an-ip"}},
		Auth:    auth,
		Store:   db.NewMemoryUserStore(),
		Limiter: ratelimit.NewMemory(3, ratelimit.DefaultWindow),
		Logger:  zap.NewNop(),
	})
	if err == nil {
		t.Fatalf("expected error for invalid proxy address")
	}
}
