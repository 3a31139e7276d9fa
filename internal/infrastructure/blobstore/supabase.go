package blobstore

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// SupabaseStore writes blobs to a public Supabase Storage bucket over its REST API.
type SupabaseStore struct {
	BaseURL   string
	SecretKey string // service_role key; the anon key is rejected for writes
	Bucket    string
	Client    *resty.Client

	once sync.Once
}

// supabaseError is the JSON body Storage answers with on failure.
type supabaseError struct {
	StatusCode string `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

func (s *SupabaseStore) client() *resty.Client {
	s.once.Do(func() {
		if s.Client == nil {
			s.Client = resty.New().SetTimeout(30 * time.Second)
		}
	})
	return s.Client
}

func (s *SupabaseStore) base() (string, error) {
	if s.BaseURL == "" {
		return "", fmt.Errorf("supabase: SUPABASE_URL is not set")
	}
	if s.SecretKey == "" {
		return "", fmt.Errorf("supabase: SUPABASE_SECRET_KEY is not set")
	}
	return strings.TrimRight(s.BaseURL, "/"), nil
}

// request carries the same headers as @supabase/supabase-js: apikey and Bearer with the same key.
func (s *SupabaseStore) request(ctx context.Context) *resty.Request {
	return s.client().R().
		SetContext(ctx).
		SetHeader("apikey", s.SecretKey).
		SetAuthToken(s.SecretKey).
		SetError(&supabaseError{})
}

func (s *SupabaseStore) objectURL(base, key string) string {
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", base, s.Bucket, key)
}

func statusErr(resp *resty.Response) error {
	msg := resp.String()
	if e, ok := resp.Error().(*supabaseError); ok && (e.Error != "" || e.Message != "") {
		msg = strings.TrimSpace(e.Error + ": " + e.Message)
	}
	return fmt.Errorf("supabase error: status %d: %s", resp.StatusCode(), msg)
}

// Put uploads the object and returns its public URL.
func (s *SupabaseStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	base, err := s.base()
	if err != nil {
		return "", err
	}
	resp, err := s.request(ctx).
		SetHeader("Content-Type", contentType).
		SetHeader("x-upsert", "false").
		SetBody(data).
		Post(s.objectURL(base, key))
	if err != nil {
		return "", fmt.Errorf("supabase request: %w", err)
	}
	if resp.IsError() {
		status, body := resp.StatusCode(), resp.String()
		if (status == http.StatusBadRequest || status == http.StatusForbidden) &&
			(strings.Contains(body, "Invalid Compact JWS") || strings.Contains(body, "Unauthorized")) {
			return "", fmt.Errorf("supabase storage requires the service_role key, not the anon key (raw body: %s)", body)
		}
		return "", statusErr(resp)
	}
	return s.PublicURL(key), nil
}

// PublicURL is the durable download URL of key in a public bucket.
func (s *SupabaseStore) PublicURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", strings.TrimRight(s.BaseURL, "/"), s.Bucket, key)
}

// Delete removes the object. A missing object counts as deleted.
func (s *SupabaseStore) Delete(ctx context.Context, key string) error {
	base, err := s.base()
	if err != nil {
		return err
	}
	resp, err := s.request(ctx).Delete(s.objectURL(base, key))
	if err != nil {
		return fmt.Errorf("supabase request: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound || resp.IsSuccess() {
		return nil
	}
	return statusErr(resp)
}

// Ping checks the bucket is reachable with the configured key.
func (s *SupabaseStore) Ping(ctx context.Context) error {
	base, err := s.base()
	if err != nil {
		return err
	}
	resp, err := s.request(ctx).Get(fmt.Sprintf("%s/storage/v1/bucket/%s", base, s.Bucket))
	if err != nil {
		return fmt.Errorf("supabase request: %w", err)
	}
	if resp.IsError() {
		return statusErr(resp)
	}
	return nil
}

func (s *SupabaseStore) Name() string { return "supabase" }
