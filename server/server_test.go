package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kilnworks/go-admin-gate/challenge"
	fakechallengerepo "github.com/kilnworks/go-admin-gate/challenge/repofakes"
	"github.com/kilnworks/go-admin-gate/guard"
	"github.com/kilnworks/go-admin-gate/internal/config"
	"github.com/kilnworks/go-admin-gate/principal"
	"github.com/kilnworks/go-admin-gate/server"
	"github.com/kilnworks/go-admin-gate/session"
	fakesessionrepo "github.com/kilnworks/go-admin-gate/session/repofakes"
	"github.com/kilnworks/go-admin-gate/throttle"
	fakethrottlerepo "github.com/kilnworks/go-admin-gate/throttle/repofakes"
	"github.com/stretchr/testify/require"
)

const (
	adminEmail = "admin@example.com"
	adminPhone = "+919876543210"
)

type testConfig struct {
	config.EnvVars
	config.Gate
}

func (testConfig) GetEnv() string { return "TEST" }

type recordingSender struct {
	lastCode string
}

func (s *recordingSender) SendCode(_ context.Context, _, code string) error {
	s.lastCode = code
	return nil
}

func wrongCode(code string) string {
	b := []byte(code)
	if b[0] == '9' {
		b[0] = '0'
	} else {
		b[0] = '9'
	}
	return string(b)
}

type fixture struct {
	server      *server.Server
	emailSender *recordingSender
	smsSender   *recordingSender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := testConfig{}
	f := &fixture{
		emailSender: &recordingSender{},
		smsSender:   &recordingSender{},
	}

	p, err := principal.New(adminEmail, adminPhone)
	require.NoError(t, err)

	ledger, err := throttle.NewLedger(fakethrottlerepo.NewFakeThrottleRepo(), cfg.GetMaxAttempts(), cfg.GetLockoutDuration())
	require.NoError(t, err)

	challengeRepo := fakechallengerepo.NewFakeChallengeRepo()
	issuer, err := challenge.NewIssuer(
		challengeRepo,
		map[challenge.Channel]challenge.Sender{
			challenge.ChannelEmail: f.emailSender,
			challenge.ChannelSMS:   f.smsSender,
		},
		cfg.GetCodeLength(),
		cfg.GetCodeValidity(),
	)
	require.NoError(t, err)

	verifier, err := challenge.NewVerifier(challengeRepo)
	require.NoError(t, err)

	sessions, err := session.NewIssuer(
		fakesessionrepo.NewFakeSessionRepo(),
		[]byte("test-signing-key-test-signing-key"),
		cfg.GetSessionLifetime(),
	)
	require.NoError(t, err)

	g, err := guard.New(p, guard.Components{
		Ledger:   ledger,
		Issuer:   issuer,
		Verifier: verifier,
		Sessions: sessions,
	}, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, g.Start(ctx))

	f.server, err = server.New(cfg, g)
	require.NoError(t, err)

	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == server.SessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, server.RouteHealthz, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestFullWalkOverHTTP(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, server.RouteGateStatus, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "needs_identity", decodeBody(t, rec)["state"])

	// The protected area is closed until the walk completes.
	rec = f.do(t, http.MethodGet, server.RouteAdminPing, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, server.RouteGateIdentity, `{"email":"intruder@example.com"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "identity_mismatch", decodeBody(t, rec)["error"])

	rec = f.do(t, http.MethodPost, server.RouteGateIdentity, `{"email":"`+adminEmail+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "awaiting_email_code", decodeBody(t, rec)["state"])
	require.NotEmpty(t, f.emailSender.lastCode)

	rec = f.do(t, http.MethodPost, server.RouteGateEmailCode, `{"code":"`+f.emailSender.lastCode+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "awaiting_phone_code", decodeBody(t, rec)["state"])
	require.NotEmpty(t, f.smsSender.lastCode)

	rec = f.do(t, http.MethodPost, server.RouteGatePhoneCode, `{"code":"`+f.smsSender.lastCode+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "authenticated", body["state"])
	require.NotEmpty(t, body["session_expires_at"])

	cookie := sessionCookie(t, rec)
	require.NotEmpty(t, cookie.Value)
	require.True(t, cookie.HttpOnly)

	rec = f.do(t, http.MethodGet, server.RouteAdminPing, "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	// Logout revokes the credential; the old cookie no longer opens the door.
	rec = f.do(t, http.MethodPost, server.RouteGateLogout, "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, server.RouteAdminPing, "", cookie)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLockoutOverHTTP(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		rec := f.do(t, http.MethodPost, server.RouteGateIdentity, `{"email":"intruder@example.com"}`)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := f.do(t, http.MethodPost, server.RouteGateIdentity, `{"email":"`+adminEmail+`"}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "locked_out", body["error"])
	require.InDelta(t, (15 * time.Minute).Seconds(), body["remaining_seconds"].(float64), 1)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = f.do(t, http.MethodGet, server.RouteGateStatus, "")
	require.Equal(t, http.StatusOK, rec.Code)
	statusBody := decodeBody(t, rec)
	require.Equal(t, "locked", statusBody["state"])
	require.Greater(t, statusBody["lockout_remaining_seconds"].(float64), float64(0))
}

func TestWrongStepSubmissions(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, server.RouteGateEmailCode, `{"code":"123456"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "wrong_step", decodeBody(t, rec)["error"])

	rec = f.do(t, http.MethodPost, server.RouteGatePhoneCode, `{"code":"123456"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestWrongEmailCodeDoesNotAdvance(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, server.RouteGateIdentity, `{"email":"`+adminEmail+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, server.RouteGateEmailCode, `{"code":"`+wrongCode(f.emailSender.lastCode)+`"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "code_mismatch", decodeBody(t, rec)["error"])

	rec = f.do(t, http.MethodGet, server.RouteGateStatus, "")
	require.Equal(t, "awaiting_email_code", decodeBody(t, rec)["state"])
}

func TestMalformedBodyReturnsBadRequest(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, server.RouteGateIdentity, `{"email":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "bad_request"))
}

func TestGarbageSessionCookieRejected(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, server.RouteAdminPing, "", &http.Cookie{
		Name:  server.SessionCookieName,
		Value: "not-a-credential",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
