package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/medicore/auth-service/internal/core/domain"
	"github.com/medicore/auth-service/internal/core/port"
	"github.com/medicore/auth-service/internal/infra/config"
	"github.com/medicore/auth-service/internal/infra/security"
	"github.com/medicore/auth-service/internal/repository"
	"github.com/medicore/auth-service/internal/transport/http/middleware"
	"github.com/medicore/auth-service/internal/usecase"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	// Light hashing parameters keep the suite fast.
	if err := security.ConfigureArgon2(security.Argon2Config{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  8,
		KeyLength:   16,
	}); err != nil {
		panic(err)
	}
	m.Run()
}

type stubAccounts struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
}

var _ port.AccountRepository = (*stubAccounts)(nil)

func newStubAccounts() *stubAccounts {
	return &stubAccounts{accounts: make(map[string]*domain.Account)}
}

func (r *stubAccounts) Create(_ context.Context, account domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.Username == account.Username || existing.Email == account.Email {
			return repository.ErrConflict
		}
	}
	copied := account
	r.accounts[account.ID] = &copied
	return nil
}

func (r *stubAccounts) GetByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (r *stubAccounts) GetByIdentifier(_ context.Context, identifier string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if account.Username == identifier || account.Email == identifier ||
			(account.SecondaryEmail != nil && *account.SecondaryEmail == identifier) {
			copied := *account
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubAccounts) MarkVerified(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok || account.VerifiedAt != nil {
		return repository.ErrNotFound
	}
	account.VerifiedAt = &at
	account.Status = domain.AccountStatusActive
	return nil
}

func (r *stubAccounts) UpdatePassword(_ context.Context, id, passwordHash string, changedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.PasswordHash = passwordHash
	account.LastPasswordChange = changedAt
	return nil
}

func (r *stubAccounts) UpdateSecurityCode(_ context.Context, id, securityCodeHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.SecurityCodeHash = &securityCodeHash
	return nil
}

func (r *stubAccounts) RecordLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.LastLogin = &at
	return nil
}

type stubOTPs struct {
	mu         sync.Mutex
	challenges map[string]*domain.OTPChallenge
}

var _ port.OTPRepository = (*stubOTPs)(nil)

func newStubOTPs() *stubOTPs {
	return &stubOTPs{challenges: make(map[string]*domain.OTPChallenge)}
}

func otpKey(identifier string, purpose domain.OTPPurpose) string {
	return string(purpose) + ":" + identifier
}

func (r *stubOTPs) Store(_ context.Context, challenge domain.OTPChallenge, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := challenge
	r.challenges[otpKey(challenge.Identifier, challenge.Purpose)] = &copied
	return nil
}

func (r *stubOTPs) Fetch(_ context.Context, identifier string, purpose domain.OTPPurpose) (*domain.OTPChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	challenge, ok := r.challenges[otpKey(identifier, purpose)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *challenge
	return &copied, nil
}

func (r *stubOTPs) IncrementAttempts(_ context.Context, identifier string, purpose domain.OTPPurpose) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	challenge, ok := r.challenges[otpKey(identifier, purpose)]
	if !ok {
		return 0, repository.ErrNotFound
	}
	challenge.Attempts++
	return challenge.Attempts, nil
}

func (r *stubOTPs) Delete(_ context.Context, identifier string, purpose domain.OTPPurpose) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := otpKey(identifier, purpose)
	if _, ok := r.challenges[key]; !ok {
		return repository.ErrNotFound
	}
	delete(r.challenges, key)
	return nil
}

type stubSessions struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

var _ port.SessionRepository = (*stubSessions)(nil)

func newStubSessions() *stubSessions {
	return &stubSessions{sessions: make(map[string]*domain.Session)}
}

func (r *stubSessions) CreateActive(_ context.Context, session domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.sessions {
		if existing.AccountID == session.AccountID && existing.RevokedAt == nil {
			existing.Revoke(session.CreatedAt, "superseded_by_login")
		}
	}
	copied := session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *stubSessions) GetByAccessTokenHash(_ context.Context, hash string) (*domain.Session, error) {
	return r.findBy(func(s *domain.Session) bool { return s.AccessTokenHash == hash })
}

func (r *stubSessions) GetByRefreshTokenHash(_ context.Context, hash string) (*domain.Session, error) {
	return r.findBy(func(s *domain.Session) bool { return s.RefreshTokenHash == hash })
}

func (r *stubSessions) findBy(match func(*domain.Session) bool) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if match(session) {
			copied := *session
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubSessions) RotateAccessToken(_ context.Context, sessionID, accessTokenHash string, accessExpiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	if session.RevokedAt != nil {
		return repository.ErrConflict
	}
	session.AccessTokenHash = accessTokenHash
	session.AccessExpiresAt = accessExpiresAt
	return nil
}

func (r *stubSessions) Revoke(_ context.Context, sessionID, reason string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok || session.RevokedAt != nil {
		return repository.ErrNotFound
	}
	session.Revoke(at, reason)
	return nil
}

func (r *stubSessions) RevokeAllForAccount(_ context.Context, accountID, reason string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	revoked := 0
	for _, session := range r.sessions {
		if session.AccountID == accountID && session.RevokedAt == nil {
			session.Revoke(at, reason)
			revoked++
		}
	}
	return revoked, nil
}

func (r *stubSessions) ListByAccount(_ context.Context, accountID string) ([]domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Session
	for _, session := range r.sessions {
		if session.AccountID == accountID {
			out = append(out, *session)
		}
	}
	return out, nil
}

type stubRateLimit struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
}

var _ port.RateLimitStore = (*stubRateLimit)(nil)

func newStubRateLimit() *stubRateLimit {
	return &stubRateLimit{attempts: make(map[string][]time.Time)}
}

func (r *stubRateLimit) CountAttempts(_ context.Context, key string, window time.Duration, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, at := range r.attempts[key] {
		if at.After(now.Add(-window)) {
			count++
		}
	}
	return count, nil
}

func (r *stubRateLimit) RecordAttempt(_ context.Context, key string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[key] = append(r.attempts[key], now)
	return nil
}

func (r *stubRateLimit) TrimWindow(_ context.Context, key string, window time.Duration, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []time.Time
	for _, at := range r.attempts[key] {
		if at.After(now.Add(-window)) {
			kept = append(kept, at)
		}
	}
	r.attempts[key] = kept
	return nil
}

func (r *stubRateLimit) OldestAttempt(_ context.Context, key string, window time.Duration, now time.Time) (time.Time, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	threshold := now.Add(-window)
	var oldest time.Time
	found := false
	for _, at := range r.attempts[key] {
		if at.After(threshold) && (!found || at.Before(oldest)) {
			oldest = at
			found = true
		}
	}
	return oldest, found, nil
}

type stubMailer struct {
	mu   sync.Mutex
	sent []port.Mail
}

var _ port.Mailer = (*stubMailer)(nil)

func (m *stubMailer) Send(_ context.Context, mail port.Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, mail)
	return nil
}

func (m *stubMailer) last(t *testing.T) port.Mail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("expected mail to be sent")
	}
	return m.sent[len(m.sent)-1]
}

type noopEvents struct{}

var _ port.EventPublisher = noopEvents{}

func (noopEvents) PublishAccountVerified(context.Context, domain.AccountVerifiedEvent) error {
	return nil
}

func (noopEvents) PublishPasswordChanged(context.Context, domain.PasswordChangedEvent) error {
	return nil
}

func (noopEvents) PublishSessionRevoked(context.Context, domain.SessionRevokedEvent) error {
	return nil
}

type apiFixture struct {
	router *gin.Engine
	mailer *stubMailer
	clock  *time.Time
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	logger := zaptest.NewLogger(t)
	current := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	issuer, err := security.NewTokenIssuer("auth-service",
		"access-secret-0123456789", "refresh-secret-0123456789",
		15*time.Minute, 168*time.Hour)
	if err != nil {
		t.Fatalf("new token issuer: %v", err)
	}
	issuer.WithClock(clock)

	accounts := newStubAccounts()
	mailer := &stubMailer{}
	events := noopEvents{}

	otps := usecase.NewOTPService(newStubOTPs(), config.OTPSettings{
		TTL:              15 * time.Minute,
		ReissueCooldown:  time.Minute,
		VerifyCodeLength: 6,
		ResetCodeLength:  4,
		MaxAttempts:      5,
	})
	otps.WithClock(clock)

	sessions := usecase.NewSessionService(newStubSessions(), issuer, events, logger)
	sessions.WithClock(clock)

	rateCfg := config.RateLimitSettings{
		WindowDuration:           time.Minute,
		LoginMaxAttempts:         3,
		PasswordResetMaxAttempts: 3,
	}
	rateLimit := newStubRateLimit()

	auth := usecase.NewAuthService(accounts, sessions, rateLimit, rateCfg, logger)
	auth.WithClock(clock)

	validator := security.DefaultPasswordValidator()

	registration := usecase.NewRegistrationService(accounts, otps, sessions, mailer, events, validator, logger)
	registration.WithClock(clock)

	reset := usecase.NewPasswordResetService(accounts, otps, sessions, mailer, events, rateLimit, rateCfg, validator, logger)
	reset.WithClock(clock)

	router := gin.New()
	router.Use(middleware.EnrichContext())

	api := router.Group("/api/v1")
	authGroup := api.Group("/auth")
	NewAuthHandler(auth, sessions).RegisterRoutes(authGroup)
	NewRegistrationHandler(registration).RegisterRoutes(authGroup)
	NewPasswordHandler(reset).RegisterRoutes(authGroup)

	sessionGroup := api.Group("/sessions", middleware.RequireAuth(sessions))
	NewSessionHandler(sessions).RegisterRoutes(sessionGroup)

	router.GET("/healthz", NewHealthHandler().Status)

	return &apiFixture{router: router, mailer: mailer, clock: &current}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

var codePattern = regexp.MustCompile(`\b(\d{4,6})\b`)

func extractCode(t *testing.T, body string) string {
	t.Helper()
	match := codePattern.FindString(body)
	if match == "" {
		t.Fatalf("no code found in mail body %q", body)
	}
	return match
}

func registerAndVerify(t *testing.T, f *apiFixture, username, email, password string) {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/v1/auth/register", RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
		Role:     "staff",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}

	code := extractCode(t, f.mailer.last(t).TextBody)
	rec = f.do(t, http.MethodPost, "/api/v1/auth/verify-otp", VerifyOTPRequest{
		Identifier: username,
		Code:       code,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func login(t *testing.T, f *apiFixture, identifier, password string) LoginResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{
		Identifier: identifier,
		Password:   password,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	return decodeBody[LoginResponse](t, rec)
}

func TestRegisterAndVerifyFlow(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/auth/register", RegisterRequest{
		Username: "jdoe",
		Email:    "JDoe@Example.com",
		Password: "tr0ub4dor-and-3",
		Role:     "staff",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}

	resp := decodeBody[RegisterResponse](t, rec)
	if resp.Account.Email != "jdoe@example.com" {
		t.Fatalf("email not normalized: %q", resp.Account.Email)
	}
	if resp.Account.Status != domain.AccountStatusPending {
		t.Fatalf("expected pending status, got %q", resp.Account.Status)
	}

	// Login before verification is refused.
	loginRec := f.do(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{
		Identifier: "jdoe",
		Password:   "tr0ub4dor-and-3",
	}, nil)
	if loginRec.Code != http.StatusForbidden {
		t.Fatalf("pre-verification login status = %d", loginRec.Code)
	}

	code := extractCode(t, f.mailer.last(t).TextBody)
	if len(code) != 6 {
		t.Fatalf("verification code length = %d, want 6", len(code))
	}

	wrongRec := f.do(t, http.MethodPost, "/api/v1/auth/verify-otp", VerifyOTPRequest{
		Identifier: "jdoe",
		Code:       "000000",
	}, nil)
	if wrongRec.Code != http.StatusBadRequest {
		t.Fatalf("wrong code status = %d", wrongRec.Code)
	}

	okRec := f.do(t, http.MethodPost, "/api/v1/auth/verify-otp", VerifyOTPRequest{
		Identifier: "jdoe",
		Code:       code,
	}, nil)
	if okRec.Code != http.StatusOK {
		t.Fatalf("verify status = %d, body %s", okRec.Code, okRec.Body.String())
	}
	verified := decodeBody[LoginResponse](t, okRec)
	if verified.AccessToken == "" || verified.RefreshToken == "" {
		t.Fatal("expected verification to establish the first session")
	}

	// The code is single use.
	replayRec := f.do(t, http.MethodPost, "/api/v1/auth/verify-otp", VerifyOTPRequest{
		Identifier: "jdoe",
		Code:       code,
	}, nil)
	if replayRec.Code != http.StatusBadRequest {
		t.Fatalf("replayed code status = %d", replayRec.Code)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	f := newAPIFixture(t)
	registerAndVerify(t, f, "jdoe", "jdoe@example.com", "tr0ub4dor-and-3")

	rec := f.do(t, http.MethodPost, "/api/v1/auth/register", RegisterRequest{
		Username: "jdoe",
		Email:    "other@example.com",
		Password: "tr0ub4dor-and-3",
		Role:     "staff",
	}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d", rec.Code)
	}
}

func TestLoginIssuesTokensAndCookies(t *testing.T) {
	f := newAPIFixture(t)
	registerAndVerify(t, f, "jdoe", "jdoe@example.com", "tr0ub4dor-and-3")

	resp := login(t, f, "jdoe", "tr0ub4dor-and-3")
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("expected token pair in response")
	}
	if resp.TokenType != "Bearer" {
		t.Fatalf("token type = %q", resp.TokenType)
	}
	if resp.Account.Username != "jdoe" {
		t.Fatalf("account username = %q", resp.Account.Username)
	}

	rec := f.do(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{
		Identifier: "jdoe",
		Password:   "tr0ub4dor-and-3",
	}, nil)
	cookies := rec.Result().Cookies()
	names := make(map[string]bool, len(cookies))
	for _, cookie := range cookies {
		names[cookie.Name] = true
		if !cookie.HttpOnly {
			t.Fatalf("cookie %s must be http-only", cookie.Name)
		}
	}
	if !names[middleware.AccessTokenCookie] || !names[RefreshTokenCookie] {
		t.Fatalf("missing auth cookies, got %v", names)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newAPIFixture(t)
	registerAndVerify(t, f, "jdoe", "jdoe@example.com", "tr0ub4dor-and-3")

	known := f.do(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{
		Identifier: "jdoe",
		Password:   "wrong-password-1",
	}, nil)
	unknown := f.do(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{
		Identifier: "ghost",
		Password:   "wrong-password-1",
	}, nil)

	if known.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Fatalf("statuses = %d, %d, want 401 for both", known.Code, unknown.Code)
	}
	knownBody := decodeBody[ErrorResponse](t, known)
	unknownBody := decodeBody[ErrorResponse](t, unknown)
	if knownBody.Error != unknownBody.Error {
		t.Fatalf("error messages differ: %q vs %q", knownBody.Error, unknownBody.Error)
	}
}

func TestLoginRateLimited(t *testing.T) {
	f := newAPIFixture(t)
	registerAndVerify(t, f, "jdoe", "jdoe@example.com", "tr0ub4dor-and-3")

	for i := 0; i < 3; i++ {
		f.do(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{
			Identifier: "jdoe",
			Password:   "wrong-password-1",
		}, nil)
	}

	rec := f.do(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{
		Identifier: "jdoe",
		Password:   "tr0ub4dor-and-3",
	}, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	// All failures landed at the same instant, so the full window remains.
	if retry := rec.Header().Get("Retry-After"); retry != "60" {
		t.Fatalf("Retry-After = %q, want %q", retry, "60")
	}

	// The window slides open again.
	*f.clock = f.clock.Add(2 * time.Minute)
	if resp := login(t, f, "jdoe", "tr0ub4dor-and-3"); resp.AccessToken == "" {
		t.Fatal("expected login to succeed after window")
	}
}

func TestRefreshRotatesAccessToken(t *testing.T) {
	f := newAPIFixture(t)
	registerAndVerify(t, f, "jdoe", "jdoe@example.com", "tr0ub4dor-and-3")
	resp := login(t, f, "jdoe", "tr0ub4dor-and-3")

	rec := f.do(t, http.MethodPost, "/api/v1/auth/refresh", RefreshRequest{
		RefreshToken: resp.RefreshToken,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", rec.Code, rec.Body.String())
	}
	rotated := decodeBody[RefreshResponse](t, rec)
	if rotated.AccessToken == "" || rotated.AccessToken == resp.AccessToken {
		t.Fatal("expected a fresh access token")
	}

	// The displaced access token no longer authenticates.
	old := f.do(t, http.MethodGet, "/api/v1/sessions", nil, map[string]string{
		"Authorization": "Bearer " + resp.AccessToken,
	})
	if old.Code != http.StatusUnauthorized {
		t.Fatalf("old token status = %d, want 401", old.Code)
	}

	fresh := f.do(t, http.MethodGet, "/api/v1/sessions", nil, map[string]string{
		"Authorization": "Bearer " + rotated.AccessToken,
	})
	if fresh.Code != http.StatusOK {
		t.Fatalf("fresh token status = %d, body %s", fresh.Code, fresh.Body.String())
	}
}

func TestRefreshRejectsGarbage(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/auth/refresh", RefreshRequest{
		RefreshToken: "not-a-token",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	empty := f.do(t, http.MethodPost, "/api/v1/auth/refresh", RefreshRequest{}, nil)
	if empty.Code != http.StatusBadRequest {
		t.Fatalf("empty refresh status = %d, want 400", empty.Code)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	f := newAPIFixture(t)
	registerAndVerify(t, f, "jdoe", "jdoe@example.com", "tr0ub4dor-and-3")
	resp := login(t, f, "jdoe", "tr0ub4dor-and-3")

	auth := map[string]string{"Authorization": "Bearer " + resp.AccessToken}

	rec := f.do(t, http.MethodPost, "/api/v1/auth/logout", nil, auth)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d, body %s", rec.Code, rec.Body.String())
	}

	replay := f.do(t, http.MethodGet, "/api/v1/sessions", nil, auth)
	if replay.Code != http.StatusUnauthorized {
		t.Fatalf("replayed token status = %d, want 401", replay.Code)
	}
}

func TestSessionList(t *testing.T) {
	f := newAPIFixture(t)
	registerAndVerify(t, f, "jdoe", "jdoe@example.com", "tr0ub4dor-and-3")

	login(t, f, "jdoe", "tr0ub4dor-and-3")
	resp := login(t, f, "jdoe", "tr0ub4dor-and-3")

	rec := f.do(t, http.MethodGet, "/api/v1/sessions", nil, map[string]string{
		"Authorization": "Bearer " + resp.AccessToken,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, body %s", rec.Code, rec.Body.String())
	}

	// One session from verification plus two logins.
	list := decodeBody[SessionListResponse](t, rec)
	if len(list.Sessions) != 3 {
		t.Fatalf("sessions = %d, want 3", len(list.Sessions))
	}
	active := 0
	for _, s := range list.Sessions {
		if s.RevokedAt == nil {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("active sessions = %d, want exactly 1", active)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	f := newAPIFixture(t)
	registerAndVerify(t, f, "jdoe", "jdoe@example.com", "tr0ub4dor-and-3")
	resp := login(t, f, "jdoe", "tr0ub4dor-and-3")

	rec := f.do(t, http.MethodPost, "/api/v1/auth/forgot-password", ForgotPasswordRequest{
		Identifier: "jdoe",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("forgot-password status = %d, body %s", rec.Code, rec.Body.String())
	}

	code := extractCode(t, f.mailer.last(t).TextBody)
	if len(code) != 4 {
		t.Fatalf("reset code length = %d, want 4", len(code))
	}

	resetRec := f.do(t, http.MethodPost, "/api/v1/auth/reset-password", ResetPasswordRequest{
		Identifier:  "jdoe",
		Code:        code,
		NewPassword: "c0rrect-horse-battery",
	}, nil)
	if resetRec.Code != http.StatusOK {
		t.Fatalf("reset status = %d, body %s", resetRec.Code, resetRec.Body.String())
	}

	// Every session died with the reset.
	stale := f.do(t, http.MethodGet, "/api/v1/sessions", nil, map[string]string{
		"Authorization": "Bearer " + resp.AccessToken,
	})
	if stale.Code != http.StatusUnauthorized {
		t.Fatalf("stale token status = %d, want 401", stale.Code)
	}

	// Old password is gone, the new one works once the login window clears.
	*f.clock = f.clock.Add(2 * time.Minute)
	oldRec := f.do(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{
		Identifier: "jdoe",
		Password:   "tr0ub4dor-and-3",
	}, nil)
	if oldRec.Code != http.StatusUnauthorized {
		t.Fatalf("old password status = %d, want 401", oldRec.Code)
	}
	*f.clock = f.clock.Add(2 * time.Minute)
	login(t, f, "jdoe", "c0rrect-horse-battery")
}

func TestForgotPasswordUnknownIdentifierSilent(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/auth/forgot-password", ForgotPasswordRequest{
		Identifier: "ghost@example.com",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for unknown identifier", rec.Code)
	}
	if len(f.mailer.sent) != 0 {
		t.Fatalf("expected no mail, got %d", len(f.mailer.sent))
	}
}

func TestForgotPasswordCooldownIndistinguishable(t *testing.T) {
	f := newAPIFixture(t)
	registerAndVerify(t, f, "jdoe", "jdoe@example.com", "tr0ub4dor-and-3")

	// A repeat request inside the reissue cooldown must look exactly like
	// the unknown-identifier response, or it would confirm the account.
	known := f.do(t, http.MethodPost, "/api/v1/auth/forgot-password", ForgotPasswordRequest{
		Identifier: "jdoe",
	}, nil)
	repeat := f.do(t, http.MethodPost, "/api/v1/auth/forgot-password", ForgotPasswordRequest{
		Identifier: "jdoe",
	}, nil)
	unknown := f.do(t, http.MethodPost, "/api/v1/auth/forgot-password", ForgotPasswordRequest{
		Identifier: "ghost@example.com",
	}, nil)

	if known.Code != http.StatusOK || repeat.Code != http.StatusOK || unknown.Code != http.StatusOK {
		t.Fatalf("statuses = %d, %d, %d, want 200 for all", known.Code, repeat.Code, unknown.Code)
	}
	if repeat.Body.String() != unknown.Body.String() {
		t.Fatalf("bodies differ: %q vs %q", repeat.Body.String(), unknown.Body.String())
	}
}

func TestForgotPasswordRateLimited(t *testing.T) {
	f := newAPIFixture(t)

	for i := 0; i < 3; i++ {
		f.do(t, http.MethodPost, "/api/v1/auth/forgot-password", ForgotPasswordRequest{
			Identifier: "ghost@example.com",
		}, nil)
	}

	rec := f.do(t, http.MethodPost, "/api/v1/auth/forgot-password", ForgotPasswordRequest{
		Identifier: "ghost@example.com",
	}, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if retry := rec.Header().Get("Retry-After"); retry != "60" {
		t.Fatalf("Retry-After = %q, want %q", retry, "60")
	}
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	health := decodeBody[HealthResponse](t, rec)
	if health.Status != "ok" {
		t.Fatalf("status field = %q", health.Status)
	}
}
