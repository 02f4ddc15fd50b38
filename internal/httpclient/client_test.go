package httpclient

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type staticToken string

func (s staticToken) Token(context.Context) string { return string(s) }

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestDo_HeadersAndBody(t *testing.T) {
	var (
		gotAuth, gotType, gotBody string
	)
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	})

	c := New(srv.URL+"/api/v1/", time.Second, staticToken("A"), discard)
	resp, err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/verify-email",
		Body:   map[string]string{"token": "t1"},
	})

	require.NoError(t, err)
	assert.Equal(t, "Bearer A", gotAuth)
	assert.Equal(t, "application/json", gotType)
	assert.JSONEq(t, `{"token":"t1"}`, gotBody)
	assert.Equal(t, "ok", resp.Message())
}

func TestDo_NoTokenNoHeader(t *testing.T) {
	var hasAuth bool
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, hasAuth = r.Header["Authorization"]
		w.Header().Set("Content-Type", "application/json")
	})

	c := New(srv.URL, time.Second, staticToken(""), discard)
	resp, err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/logout"})

	require.NoError(t, err)
	assert.False(t, hasAuth)
	// empty JSON body is a null payload
	assert.Nil(t, resp.Body)
}

func TestDo_TextBodyWrapped(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("email sent"))
	})

	c := New(srv.URL, time.Second, nil, discard)
	resp, err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/forgot-password"})

	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"email sent"}`, string(resp.Body))
}

func TestDo_ApplicationErrors(t *testing.T) {
	cases := []struct {
		name        string
		contentType string
		body        string
		status      int
		want        string
	}{
		{"server message", "application/json", `{"status":"error","message":"Invalid credentials"}`, http.StatusUnauthorized, "Invalid credentials"},
		{"no message", "application/json", `{"status":"error"}`, http.StatusInternalServerError, "HTTP error, status=500"},
		{"empty json", "application/json", ``, http.StatusBadGateway, "HTTP error, status=502"},
		{"plain text", "text/html", `Bad Gateway`, http.StatusBadGateway, "Bad Gateway"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tc.contentType)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			c := New(srv.URL, time.Second, nil, discard)
			_, err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/auth/login"})

			require.Error(t, err)
			assert.Equal(t, KindApplication, KindOf(err))
			assert.Equal(t, tc.status, StatusOf(err))

			var herr *Error
			require.ErrorAs(t, err, &herr)
			assert.Equal(t, tc.want, herr.Message)
		})
	}
}

func TestDo_DecodeError(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accessToken":`))
	})

	c := New(srv.URL, time.Second, nil, discard)
	_, err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/refresh"})

	assert.Equal(t, KindDecode, KindOf(err))
}

func TestDo_TransportError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	c := New("http://"+addr, time.Second, nil, discard)
	_, err = c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/logout"})

	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
	assert.Zero(t, StatusOf(err))
}

func TestDo_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	c := New(srv.URL, 50*time.Millisecond, nil, discard)
	_, err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/refresh"})

	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestPost_Decodes(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accessToken":"A2"}`))
	})

	var out struct {
		AccessToken string `json:"accessToken"`
	}
	c := New(srv.URL, time.Second, nil, discard)
	require.NoError(t, c.Post(context.Background(), "/refresh", map[string]string{"refreshToken": "R"}, &out))
	assert.Equal(t, "A2", out.AccessToken)
}
