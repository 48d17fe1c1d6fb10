package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docrag/internal/auth"
	"github.com/nikhilbhutani/docrag/internal/ingest"
	"github.com/nikhilbhutani/docrag/internal/rag"
)

const secret = "router-test-secret-router-test-secret"

type runner struct{ calls int }

func (r *runner) Run(context.Context, int) (*ingest.BatchResult, error) {
	r.calls++
	return &ingest.BatchResult{}, nil
}

type retriever struct{}

func (retriever) Retrieve(context.Context, string, rag.RetrieveOptions) ([]rag.Result, error) {
	return nil, nil
}

func token(t *testing.T, role string) string {
	t.Helper()
	claims := auth.Claims{
		AppMetadata: auth.AppMetadata{Role: role},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestRouter_Auth(t *testing.T) {
	run := &runner{}
	h := NewRouter(Deps{
		JWTSecret:  secret,
		Runner:     run,
		Retriever:  retriever{},
		BatchLimit: 10,
	}).Setup()

	call := func(method, path, tok, body string) int {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/healthz", "", ""))
	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/readyz", "", ""))

	assert.Equal(t, http.StatusUnauthorized, call(http.MethodPost, "/api/v1/rag/search", "", `{"query":"x"}`))
	assert.Equal(t, http.StatusOK, call(http.MethodPost, "/api/v1/rag/search", token(t, ""), `{"query":"x"}`))

	assert.Equal(t, http.StatusForbidden, call(http.MethodPost, "/api/v1/ingest/run", token(t, auth.RoleEditor), ""))
	assert.Zero(t, run.calls)
	assert.Equal(t, http.StatusOK, call(http.MethodPost, "/api/v1/ingest/run", token(t, auth.RoleAdmin), ""))
	assert.Equal(t, 1, run.calls)

	assert.Equal(t, http.StatusForbidden, call(http.MethodPost, "/api/v1/documents/", token(t, ""), ""))
}
