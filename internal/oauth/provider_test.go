package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pribylovaa/club-auth/internal/config"
	"github.com/stretchr/testify/require"
)

// Тесты OAuth-клиента против фейкового провайдера на httptest.Server:
// token-эндпоинт выдаёт access_token на код "good", userinfo проверяет Bearer.

func newProvider(t *testing.T, userinfo func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("code") != "good" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "provider-token",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer provider-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		userinfo(w, r)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(config.OAuthConfig{
		ClientID:      "cid",
		ClientSecret:  "secret",
		TokenURL:      srv.URL + "/token",
		UserInfoURL:   srv.URL + "/userinfo",
		SubjectPrefix: "kakao:",
	}, srv.Client())
	require.NoError(t, err)
	return c
}

func TestNewClient_NotConfigured(t *testing.T) {
	t.Parallel()

	_, err := NewClient(config.OAuthConfig{}, nil)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestExchange_OK_NumericID(t *testing.T) {
	t.Parallel()

	srv := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": 4242, "email": "u@example.com", "name": "Kim", "picture": "https://img/1.png"}`))
	})
	c := newTestClient(t, srv)

	p, err := c.Exchange(context.Background(), "good")
	require.NoError(t, err)
	require.Equal(t, "kakao:4242", p.Subject)
	require.Equal(t, "u@example.com", p.Email)
	require.Equal(t, "Kim", p.Nickname)
	require.Equal(t, "https://img/1.png", p.ProfileImageURL)
}

func TestExchange_OK_OIDCSub(t *testing.T) {
	t.Parallel()

	srv := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"sub": "abc", "nickname": "nick", "name": "ignored"}`))
	})
	c := newTestClient(t, srv)

	p, err := c.Exchange(context.Background(), "good")
	require.NoError(t, err)
	require.Equal(t, "kakao:abc", p.Subject)
	require.Equal(t, "nick", p.Nickname)
}

func TestExchange_Rejected(t *testing.T) {
	t.Parallel()

	t.Run("bad_code", func(t *testing.T) {
		t.Parallel()
		srv := newProvider(t, func(w http.ResponseWriter, r *http.Request) {})
		_, err := newTestClient(t, srv).Exchange(context.Background(), "bad")
		require.ErrorIs(t, err, ErrRejected)
	})

	t.Run("empty_code", func(t *testing.T) {
		t.Parallel()
		srv := newProvider(t, func(w http.ResponseWriter, r *http.Request) {})
		_, err := newTestClient(t, srv).Exchange(context.Background(), " ")
		require.ErrorIs(t, err, ErrRejected)
	})

	t.Run("userinfo_error_status", func(t *testing.T) {
		t.Parallel()
		srv := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})
		_, err := newTestClient(t, srv).Exchange(context.Background(), "good")
		require.ErrorIs(t, err, ErrRejected)
	})

	t.Run("userinfo_without_id", func(t *testing.T) {
		t.Parallel()
		srv := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"email": "x@y.z"}`))
		})
		_, err := newTestClient(t, srv).Exchange(context.Background(), "good")
		require.ErrorIs(t, err, ErrRejected)
	})

	t.Run("userinfo_broken_json", func(t *testing.T) {
		t.Parallel()
		srv := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{`))
		})
		_, err := newTestClient(t, srv).Exchange(context.Background(), "good")
		require.ErrorIs(t, err, ErrRejected)
	})
}
