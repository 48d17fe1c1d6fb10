package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docrag/internal/config"
	"github.com/nikhilbhutani/docrag/internal/models"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Upload(ctx, "documents", "2026/manual.txt", strings.NewReader("oil change"), "text/plain"))

	data, err := ReadAll(ctx, s, "documents", "2026/manual.txt")
	require.NoError(t, err)
	assert.Equal(t, "oil change", string(data))

	require.NoError(t, s.Delete(ctx, "documents", "2026/manual.txt"))
	_, err = s.Download(ctx, "documents", "2026/manual.txt")
	assert.ErrorIs(t, err, models.ErrNotFound)

	// Deleting a missing object is not an error.
	assert.NoError(t, s.Delete(ctx, "documents", "2026/manual.txt"))
}

func TestLocalStorage_RejectsEscapingPaths(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	err = s.Upload(context.Background(), "documents", "../../etc/passwd", strings.NewReader("x"), "")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestSupabaseStorage_Download(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/storage/v1/object/documents/a.txt":
			io.WriteString(w, "hello")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	s := NewSupabaseStorage(srv.URL+"/", "service-key")
	data, err := ReadAll(context.Background(), s, "documents", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = s.Download(context.Background(), "documents", "missing.txt")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSupabaseStorage_UploadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"error":"forbidden"}`)
	}))
	defer srv.Close()

	s := NewSupabaseStorage(srv.URL, "k")
	err := s.Upload(context.Background(), "documents", "a.txt", strings.NewReader("x"), "text/plain")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestNew_SelectsBackend(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, config.StorageConfig{Backend: "local", LocalDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	s, err = New(ctx, config.StorageConfig{Backend: "supabase", SupabaseURL: "http://x", SupabaseKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &SupabaseStorage{}, s)

	_, err = New(ctx, config.StorageConfig{Backend: "supabase"})
	assert.Error(t, err)

	_, err = New(ctx, config.StorageConfig{Backend: "ftp"})
	assert.Error(t, err)
}

func TestSupabaseStorage_EscapesPath(t *testing.T) {
	var gotPath, gotUpsert string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotUpsert = r.Header.Get("x-upsert")
	}))
	defer srv.Close()

	s := NewSupabaseStorage(srv.URL, "k")
	require.NoError(t, s.Upload(context.Background(), "documents", "2026/01/02/id_a b#1.txt", strings.NewReader("x"), "text/plain"))
	assert.Equal(t, "/storage/v1/object/documents/2026/01/02/id_a%20b%231.txt", gotPath)
	assert.Equal(t, "true", gotUpsert)
}
