package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nikhilbhutani/docrag/internal/models"
)

// SupabaseStorage talks to the Supabase Storage REST API with the service
// role key.
type SupabaseStorage struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

func NewSupabaseStorage(supabaseURL, serviceKey string) *SupabaseStorage {
	return &SupabaseStorage{
		baseURL:    strings.TrimRight(supabaseURL, "/") + "/storage/v1",
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

func (s *SupabaseStorage) objectURL(bucket, path string) string {
	segments := strings.Split(strings.TrimLeft(path, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/object/" + url.PathEscape(bucket) + "/" + strings.Join(segments, "/")
}

// do sends an authenticated request. A 404 maps to models.ErrNotFound and
// other 4xx/5xx responses to an error carrying the status and body.
func (s *SupabaseStorage) do(ctx context.Context, method, bucket, path string, body io.Reader, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.objectURL(bucket, path), body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", strings.ToLower(method), err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", strings.ToLower(method), path, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, fmt.Errorf("%s %s: %w", strings.ToLower(method), path, models.ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, fmt.Errorf("%s %s failed (%d): %s", strings.ToLower(method), path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

func (s *SupabaseStorage) Upload(ctx context.Context, bucket, path string, data io.Reader, contentType string) error {
	header := http.Header{}
	header.Set("Content-Type", contentType)
	header.Set("x-upsert", "true")

	resp, err := s.do(ctx, http.MethodPost, bucket, path, data, header)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (s *SupabaseStorage) Download(ctx context.Context, bucket, path string) (io.ReadCloser, error) {
	resp, err := s.do(ctx, http.MethodGet, bucket, path, nil, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (s *SupabaseStorage) Delete(ctx context.Context, bucket, path string) error {
	resp, err := s.do(ctx, http.MethodDelete, bucket, path, nil, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
