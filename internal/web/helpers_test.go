// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/shopfront/shopfront/internal/auth"
	"github.com/shopfront/shopfront/internal/auth/memstore"
	"github.com/shopfront/shopfront/internal/observability"
	"github.com/shopfront/shopfront/internal/web"
)

type captureNotifier struct {
	mu   sync.Mutex
	msgs []auth.Message
}

func (n *captureNotifier) Send(_ context.Context, msg auth.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return nil
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

func (n *captureNotifier) resetToken() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.msgs) - 1; i >= 0; i-- {
		if link, ok := n.msgs[i].Data["reset_link"]; ok {
			return link[strings.LastIndex(link, "/")+1:]
		}
	}
	return ""
}

type testServer struct {
	handler  http.Handler
	users    auth.UserRepository
	sessions *memstore.SessionRepository
	notifier *captureNotifier
	metrics  *observability.Metrics
	logs     *bytes.Buffer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithUsers(t, memstore.NewUserRepository())
}

func newTestServerWithUsers(t *testing.T, users auth.UserRepository) *testServer {
	t.Helper()
	ts := &testServer{
		users:    users,
		sessions: memstore.NewSessionRepository(),
		notifier: &captureNotifier{},
		metrics:  observability.NewMetrics(prometheus.NewRegistry()),
		logs:     &bytes.Buffer{},
	}
	logger := slog.New(slog.NewJSONHandler(ts.logs, nil))
	opts := []auth.Option{auth.WithLogger(logger)}
	hasher := auth.NewArgon2idHasher()
	tokens := auth.NewTokenGenerator()

	manager, err := auth.NewSessionManager(ts.sessions, tokens, opts...)
	require.NoError(t, err)
	login, err := auth.NewAuthService(users, manager, hasher, opts...)
	require.NoError(t, err)
	signup, err := auth.NewRegistrationService(users, hasher, ts.notifier, opts...)
	require.NoError(t, err)
	reset, err := auth.NewPasswordResetService(users, tokens, hasher, manager, ts.notifier, opts...)
	require.NoError(t, err)

	h, err := web.NewHandler(web.Config{
		Auth:         login,
		Registration: signup,
		Reset:        reset,
		Logger:       logger,
		Metrics:      ts.metrics,
	})
	require.NoError(t, err)
	ts.handler = h.Routes()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) signup(t *testing.T, email, password string) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/signup", map[string]string{
		"email": email, "password": password, "confirmPassword": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (ts *testServer) login(t *testing.T, email, password string) *http.Cookie {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/login", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c := sessionCookie(rec)
	require.NotNil(t, c)
	return c
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == web.DefaultCookieName {
			return c
		}
	}
	return nil
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields []auth.FieldError `json:"fields"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

type userBody struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func decodeUser(t *testing.T, rec *httptest.ResponseRecorder) userBody {
	t.Helper()
	var body userBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}
