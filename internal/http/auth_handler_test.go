package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"rentease/internal/domain"
	"rentease/internal/email"
	"rentease/internal/repository"
	"rentease/internal/service"
	"rentease/internal/store"
)

type mockUserRepo struct {
	mu           sync.Mutex
	usersByID    map[string]domain.User
	usersByEmail map[string]string
	readErr      error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:    make(map[string]domain.User),
		usersByEmail: make(map[string]string),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.usersByEmail[user.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	m.usersByID[user.ID] = user
	m.usersByEmail[user.Email] = user.ID
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return domain.User{}, m.readErr
	}
	id, ok := m.usersByEmail[email]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.usersByID[id], nil
}

func (m *mockUserRepo) UpdateByID(_ context.Context, id string, upd domain.UserUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if upd.IsVerified != nil {
		user.IsVerified = *upd.IsVerified
	}
	if upd.HasSeenOnboarding != nil {
		user.HasSeenOnboarding = *upd.HasSeenOnboarding
	}
	if upd.FirstName != nil {
		user.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		user.LastName = *upd.LastName
	}
	if upd.LastLogin != nil {
		t := *upd.LastLogin
		user.LastLogin = &t
	}
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) ResetConnections() {}

func (m *mockUserRepo) seed(t *testing.T, user domain.User, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user.PasswordHash = string(hash)
	if user.Role == "" {
		user.Role = domain.RoleTenant
	}
	if err := m.Create(context.Background(), user); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

type mockSender struct {
	mu   sync.Mutex
	sent []email.Message
}

func (s *mockSender) Send(_ context.Context, msg email.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type testServer struct {
	router  *gin.Engine
	repo    *mockUserRepo
	mr      *miniredis.Miniredis
	limiter *IPRateLimiter
}

func newTestServer(t *testing.T, rl RateLimitConfig) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	kv := store.NewRedisKV(client)

	renderer, err := email.NewRenderer("http://app.test")
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	policy := service.DefaultPolicy()
	policy.BcryptCost = bcrypt.MinCost

	repo := newMockUserRepo()
	logger := zap.NewNop()
	auth := service.NewAuthService(logger, repo, store.NewVerificationStore(kv), store.NewResetStore(kv), store.NewSessionStore(kv),
		service.NewJWTService("access-secret", "refresh-secret", time.Hour, 5*time.Hour),
		&mockSender{}, renderer, nil, policy)

	limiter := NewIPRateLimiter(logger, rl)
	t.Cleanup(limiter.Stop)

	router, err := NewRouter(RouterDeps{
		Logger:        logger,
		Auth:          auth,
		AuthHandler:   NewAuthHandler(logger, auth, CookieConfig{}),
		UserHandler:   NewUserHandler(logger, service.NewUserService(logger, repo)),
		HealthHandler: NewHealthHandler(logger, map[string]Pinger{"redis": kv}),
		RateLimiter:   limiter,
	})
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	return &testServer{router: router, repo: repo, mr: mr, limiter: limiter}
}

func (s *testServer) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func responseCookies(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := make(map[string]*http.Cookie)
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func (s *testServer) login(t *testing.T, emailAddr string) []*http.Cookie {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": emailAddr, "password": "Abc12345!"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", rec.Code, rec.Body.String())
	}
	c := responseCookies(rec)
	return []*http.Cookie{c[accessCookie], c[refreshCookie]}
}

func TestRegisterAndVerify(t *testing.T) {
	s := newTestServer(t, RateLimitConfig{})

	rec := s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "a@b.com", "password": "Abc12345!", "confirmPassword": "Abc12345!", "role": "tenant",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("expected token in body")
	}
	if _, ok := body["otp"]; ok {
		t.Fatalf("otp must not be returned")
	}

	rec = s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "a@b.com", "password": "Abc12345!", "confirmPassword": "Abc12345!", "role": "landlord",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/auth/verify-email", map[string]string{"token": token, "otp": "000000x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong otp, got %d", rec.Code)
	}

	otp := s.mr.HGet("verify_email:"+token, "otp")
	rec = s.do(t, http.MethodPost, "/api/auth/verify-email", map[string]string{"token": token, "otp": otp})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if decode(t, rec)["context"] != "register" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	rec = s.do(t, http.MethodPost, "/api/auth/verify-email", map[string]string{"token": token, "otp": otp})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on reuse, got %d", rec.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t, RateLimitConfig{})

	rec := s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "a@b.com", "password": "Abc12345!", "confirmPassword": "Abc12345!", "role": "admin",
	})
	if rec.Code != http.StatusBadRequest || decode(t, rec)["error"] != "Invalid role" {
		t.Fatalf("expected 400 Invalid role, got %d: %s", rec.Code, rec.Body.String())
	}

	for _, addr := range []string{"not-an-email", "a@b.com\r\nBcc: x@y.z"} {
		rec = s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
			"email": addr, "password": "Abc12345!", "confirmPassword": "Abc12345!", "role": "tenant",
		})
		if rec.Code != http.StatusBadRequest || decode(t, rec)["error"] != "Invalid email" {
			t.Fatalf("%q: expected 400 Invalid email, got %d: %s", addr, rec.Code, rec.Body.String())
		}
	}
	if _, err := s.repo.GetByEmail(context.Background(), "not-an-email"); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("malformed email must not be stored, got %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString("{"))
	out := httptest.NewRecorder()
	s.router.ServeHTTP(out, req)
	if out.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", out.Code)
	}
}

func TestVerifyEmailLockedReturns429(t *testing.T) {
	s := newTestServer(t, RateLimitConfig{})
	rec := s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "a@b.com", "password": "Abc12345!", "confirmPassword": "Abc12345!", "role": "tenant",
	})
	token, _ := decode(t, rec)["token"].(string)
	s.mr.HSet("verify_email:"+token, "attempts", "8")

	rec = s.do(t, http.MethodPost, "/api/auth/verify-email", map[string]string{"token": token, "otp": "123456"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	rec = s.do(t, http.MethodPost, "/api/auth/resend-verification", map[string]string{"token": token})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on resend, got %d", rec.Code)
	}
}

func TestResendVerificationOnce(t *testing.T) {
	s := newTestServer(t, RateLimitConfig{})
	rec := s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "a@b.com", "password": "Abc12345!", "confirmPassword": "Abc12345!", "role": "tenant",
	})
	token, _ := decode(t, rec)["token"].(string)

	if rec := s.do(t, http.MethodPost, "/api/auth/resend-verification", map[string]string{"token": token}); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/api/auth/resend-verification", map[string]string{"token": token}); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/api/auth/resend-verification", map[string]string{"token": "unknown"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLoginDisabledAccount(t *testing.T) {
	s := newTestServer(t, RateLimitConfig{})
	s.repo.seed(t, domain.User{ID: "u1", Email: "off@b.com", IsDisabled: true}, "Abc12345!")

	rec := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "off@b.com", "password": "Abc12345!"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if decode(t, rec)["code"] != codeDisabled {
		t.Fatalf("expected ACCOUNT_DISABLED code: %s", rec.Body.String())
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("no cookies expected")
	}
}

func TestLoginFailures(t *testing.T) {
	s := newTestServer(t, RateLimitConfig{})
	s.repo.seed(t, domain.User{ID: "u1", Email: "a@b.com", IsVerified: true}, "Abc12345!")

	cases := []struct {
		body map[string]string
		want int
	}{
		{map[string]string{"email": "a@b.com"}, http.StatusBadRequest},
		{map[string]string{"email": "x@b.com", "password": "Abc12345!"}, http.StatusNotFound},
		{map[string]string{"email": "a@b.com", "password": "Nope1234!"}, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		if rec := s.do(t, http.MethodPost, "/api/auth/login", tc.body); rec.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.body, tc.want, rec.Code)
		}
	}
}

func TestLoginUnverifiedSetsCookies(t *testing.T) {
	s := newTestServer(t, RateLimitConfig{})
	s.repo.seed(t, domain.User{ID: "u1", Email: "a@b.com"}, "Abc12345!")

	rec := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "a@b.com", "password": "Abc12345!"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["verified"] != false || body["token"] == "" || body["token"] == nil {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	cookies := responseCookies(rec)
	if cookies[accessCookie] == nil || cookies[refreshCookie] == nil {
		t.Fatalf("expected session cookies")
	}

	token := body["token"].(string)
	if vctx := s.mr.HGet("verify_email:"+token, "context"); vctx != string(domain.VerifyContextLogin) {
		t.Fatalf("unexpected context %q", vctx)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, RateLimitConfig{})
	s.repo.seed(t, domain.User{ID: "u1", Email: "a@b.com", IsVerified: true, Role: domain.RoleLandlord}, "Abc12345!")

	rec := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "a@b.com", "password": "Abc12345!"})
	if rec.Code != http.StatusOK || decode(t, rec)["verified"] != true {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}
	cookies := responseCookies(rec)
	access, refresh := cookies[accessCookie], cookies[refreshCookie]
	if access == nil || refresh == nil {
		t.Fatalf("expected cookies")
	}
	if !access.HttpOnly || access.SameSite != http.SameSiteLaxMode || access.Path != "/" || access.MaxAge != 3600 {
		t.Fatalf("unexpected access cookie: %+v", access)
	}
	if !refresh.HttpOnly || refresh.MaxAge != 18000 {
		t.Fatalf("unexpected refresh cookie: %+v", refresh)
	}

	rec = s.do(t, http.MethodGet, "/api/auth/status", nil, access)
	if rec.Code != http.StatusOK || decode(t, rec)["role"] != "LANDLORD" {
		t.Fatalf("status: %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/api/auth/me", nil, access)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: %d", rec.Code)
	}
	user, _ := decode(t, rec)["user"].(map[string]any)
	if user["email"] != "a@b.com" {
		t.Fatalf("unexpected user: %v", user)
	}
	if _, ok := user["passwordHash"]; ok {
		t.Fatalf("password hash must not be serialised")
	}

	rec = s.do(t, http.MethodPost, "/api/auth/refresh", nil, refresh)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: %d %s", rec.Code, rec.Body.String())
	}
	rotated := responseCookies(rec)
	if rotated[accessCookie] == nil || rotated[refreshCookie] == nil {
		t.Fatalf("expected rotated cookies")
	}

	rec = s.do(t, http.MethodPost, "/api/auth/logout", nil, rotated[accessCookie])
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: %d", rec.Code)
	}
	for name, c := range responseCookies(rec) {
		if c.MaxAge >= 0 || c.Value != "" {
			t.Fatalf("cookie %s not cleared: %+v", name, c)
		}
	}

	if rec := s.do(t, http.MethodGet, "/api/auth/me", nil, rotated[accessCookie]); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/auth/status", nil, rotated[accessCookie]); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 status after logout, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/api/auth/refresh", nil, rotated[refreshCookie]); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 refresh after logout, got %d", rec.Code)
	}
}

func TestSecondLoginInvalidatesFirstRefresh(t *testing.T) {
	s := newTestServer(t, RateLimitConfig{})
	s.repo.seed(t, domain.User{ID: "u1", Email: "a@b.com", IsVerified: true}, "Abc12345!")

	first := s.login(t, "a@b.com")
	second := s.login(t, "a@b.com")

	if rec := s.do(t, http.MethodPost, "/api/auth/refresh", nil, first[1]); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for superseded session, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/api/auth/refresh", nil, second[1]); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for current session, got %d", rec.Code)
	}
}

func TestRefreshErrors(t *testing.T) {
	s := newTestServer(t, RateLimitConfig{})

	if rec := s.do(t, http.MethodPost, "/api/auth/refresh", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without cookie, got %d", rec.Code)
	}
	bad := &http.Cookie{Name: refreshCookie, Value: "garbage"}
	if rec := s.do(t, http.MethodPost, "/api/auth/refresh", nil, bad); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for bad token, got %d", rec.Code)
	}
}

func TestLogoutWithoutCookies(t *testing.T) {
	s := newTestServer(t, RateLimitConfig{})

	rec := s.do(t, http.MethodPost, "/api/auth/logout", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	cookies := responseCookies(rec)
	if cookies[accessCookie] == nil || cookies[refreshCookie] == nil {
		t.Fatalf("expected both cookies cleared")
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	s := newTestServer(t, RateLimitConfig{})
	for _, path := range []string{"/api/auth/me", "/api/auth/status"} {
		if rec := s.do(t, http.MethodGet, path, nil); rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, rec.Code)
		}
	}
	if rec := s.do(t, http.MethodPut, "/api/auth/update-profile", map[string]string{"firstName": "A"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestOnboardingAndProfile(t *testing.T) {
	s := newTestServer(t, RateLimitConfig{})
	s.repo.seed(t, domain.User{ID: "u1", Email: "a@b.com", IsVerified: true}, "Abc12345!")
	cookies := s.login(t, "a@b.com")

	rec := s.do(t, http.MethodPut, "/api/auth/onboarding", map[string]string{"firstName": "Ana", "lastName": "Diaz"}, cookies...)
	if rec.Code != http.StatusOK {
		t.Fatalf("onboarding: %d %s", rec.Code, rec.Body.String())
	}
	rec = s.do(t, http.MethodPut, "/api/auth/onboarding", map[string]string{"firstName": "Other"}, cookies...)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPut, "/api/auth/update-profile", map[string]string{"lastName": "Ruiz"}, cookies...)
	if rec.Code != http.StatusOK {
		t.Fatalf("update profile: %d", rec.Code)
	}
	user, _ := s.repo.GetByID(context.Background(), "u1")
	if user.FirstName != "Ana" || user.LastName != "Ruiz" || !user.HasSeenOnboarding {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestForgotPasswordStatusCodes(t *testing.T) {
	s := newTestServer(t, RateLimitConfig{})
	s.repo.seed(t, domain.User{ID: "u1", Email: "a@b.com"}, "Abc12345!")
	recent := time.Now().Add(-time.Hour)
	s.repo.seed(t, domain.User{ID: "u2", Email: "recent@b.com", LastPasswordChange: &recent}, "Abc12345!")

	cases := []struct {
		email string
		want  int
	}{
		{"", http.StatusBadRequest},
		{"x@b.com", http.StatusNotFound},
		{"recent@b.com", http.StatusTooManyRequests},
		{"a@b.com", http.StatusOK},
	}
	for _, tc := range cases {
		if rec := s.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": tc.email}); rec.Code != tc.want {
			t.Fatalf("%q: expected %d, got %d", tc.email, tc.want, rec.Code)
		}
	}

	if rec := s.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{
		"token": "missing", "newPassword": "Xyz98765#", "confirmPassword": "Xyz98765#",
	}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown reset token, got %d", rec.Code)
	}
}

func TestUnexpectedErrorIsOpaque(t *testing.T) {
	s := newTestServer(t, RateLimitConfig{})
	s.repo.readErr = errors.New("pq: relation users does not exist")

	rec := s.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "a@b.com"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if decode(t, rec)["error"] != msgInternal {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestRateLimitOnPublicRoutes(t *testing.T) {
	s := newTestServer(t, RateLimitConfig{PerMinute: 1, Burst: 2})
	body := map[string]string{"email": "x@b.com", "password": "Abc12345!"}

	for i := 0; i < 2; i++ {
		if rec := s.do(t, http.MethodPost, "/api/auth/login", body); rec.Code != http.StatusNotFound {
			t.Fatalf("request %d: expected 404, got %d", i+1, rec.Code)
		}
	}
	rec := s.do(t, http.MethodPost, "/api/auth/login", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Fatalf("unexpected Retry-After %q", rec.Header().Get("Retry-After"))
	}
	if rec := s.do(t, http.MethodPost, "/api/auth/logout", nil); rec.Code != http.StatusOK {
		t.Fatalf("logout must not be throttled, got %d", rec.Code)
	}
	if s.limiter.Len() != 1 {
		t.Fatalf("expected one tracked ip, got %d", s.limiter.Len())
	}
}

func TestIPRateLimiterCleanup(t *testing.T) {
	rl := NewIPRateLimiter(zap.NewNop(), RateLimitConfig{PerMinute: 10, Burst: 1, CleanupInterval: time.Hour})
	defer rl.Stop()

	rl.get("10.0.0.1")
	rl.cleanup(time.Now().Add(3 * time.Hour))
	if rl.Len() != 0 {
		t.Fatalf("expected stale limiter removed")
	}
}

func TestHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHealthHandler(zap.NewNop(), map[string]Pinger{
		"postgres": fakePinger{},
		"redis":    fakePinger{err: errors.New("down")},
	})
	r := gin.New()
	r.GET("/healthz", h.Healthz)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["postgres"] != "ok" || body["redis"] != "down" {
		t.Fatalf("unexpected body: %v", body)
	}

	s := newTestServer(t, RateLimitConfig{})
	if rec := s.do(t, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with live redis, got %d", rec.Code)
	}
}
