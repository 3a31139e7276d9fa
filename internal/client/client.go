// Package client is the Go SDK for the webcarros HTTP API. It keeps the
// cookie session, optionally persists it between runs, and notifies
// subscribers whenever the signed-in user changes.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	carsvc "webcarros-backend/internal/application/cars"
	"webcarros-backend/internal/application/views"
	"webcarros-backend/internal/domain"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// SessionCookie is the cookie the API issues on login and register.
const SessionCookie = "webcarros.sid"

// User is the signed-in account as reported by the API.
type User struct {
	UID   string `json:"uid"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Page is a list response with its metadata.
type Page struct {
	Cards []views.Card
	Total int
}

type envelope[T any] struct {
	Status   string                 `json:"status"`
	Message  string                 `json:"message"`
	Data     T                      `json:"data"`
	Metadata map[string]interface{} `json:"metadata"`
}

type errorEnvelope struct {
	Status string `json:"status"`
	Error  struct {
		Message    string                 `json:"message"`
		StatusCode int                    `json:"statusCode"`
		Details    map[string]interface{} `json:"details"`
	} `json:"error"`
}

type userData struct {
	User *User `json:"user"`
}

// Client talks to one API base URL. Safe for concurrent use.
type Client struct {
	http  *resty.Client
	store SessionStore

	mu        sync.Mutex
	sid       string
	user      *User
	listeners map[int]func(*User)
	nextID    int
}

type Option func(*Client)

// WithSessionStore persists the session id between processes.
func WithSessionStore(s SessionStore) Option {
	return func(c *Client) { c.store = s }
}

// WithHTTPClient replaces the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = resty.NewWithClient(hc)
	}
}

// New builds a client for baseURL (e.g. http://localhost:8080).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http:      resty.New(),
		listeners: make(map[int]func(*User)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http.
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(30 * time.Second).
		SetCookieJar(nil).
		SetHeader("Accept", "application/json").
		OnBeforeRequest(c.attachSession).
		OnAfterResponse(c.captureSession)

	if c.store != nil {
		sid, err := c.store.Load()
		if err != nil {
			log.Warn().Err(err).Msg("client: could not load saved session")
		}
		c.sid = sid
	}
	return c
}

func (c *Client) attachSession(_ *resty.Client, r *resty.Request) error {
	c.mu.Lock()
	sid := c.sid
	c.mu.Unlock()
	if sid != "" {
		r.SetHeader("Cookie", SessionCookie+"="+sid)
	}
	return nil
}

func (c *Client) captureSession(_ *resty.Client, resp *resty.Response) error {
	for _, ck := range resp.Cookies() {
		if ck.Name != SessionCookie {
			continue
		}
		sid := ck.Value
		if ck.MaxAge < 0 {
			sid = ""
		}
		c.setSID(sid)
	}
	return nil
}

func (c *Client) setSID(sid string) {
	c.mu.Lock()
	changed := c.sid != sid
	c.sid = sid
	c.mu.Unlock()
	if changed && c.store != nil {
		if err := c.store.Save(sid); err != nil {
			log.Warn().Err(err).Msg("client: could not persist session")
		}
	}
}

// HasSession reports whether a session cookie is held.
func (c *Client) HasSession() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sid != ""
}

// CurrentUser is the last user delivered to subscribers, or nil.
func (c *Client) CurrentUser() *User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// OnAuthStateChanged registers fn for every sign-in and sign-out, including
// the one delivered by Restore. The returned func unsubscribes.
func (c *Client) OnAuthStateChanged(fn func(*User)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

func (c *Client) setUser(u *User) {
	c.mu.Lock()
	c.user = u
	fns := make([]func(*User), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(u)
	}
}

func (c *Client) req(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx)
}

func call[T any](r *resty.Request, method, path string) (T, map[string]interface{}, error) {
	var ok envelope[T]
	var fail errorEnvelope
	resp, err := r.SetResult(&ok).SetError(&fail).Execute(method, path)
	if err != nil {
		var zero T
		return zero, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		var zero T
		return zero, nil, newAPIError(resp.StatusCode(), fail)
	}
	return ok.Data, ok.Metadata, nil
}

// Restore asks the API who owns the current session and delivers the answer
// to subscribers. A missing or expired session delivers nil.
func (c *Client) Restore(ctx context.Context) (*User, error) {
	if !c.HasSession() {
		c.setUser(nil)
		return nil, nil
	}
	data, _, err := call[userData](c.req(ctx), http.MethodGet, "/api/v1/auth/me")
	if err != nil {
		if IsUnauthorized(err) {
			c.setSID("")
			c.setUser(nil)
			return nil, nil
		}
		return nil, err
	}
	c.setUser(data.User)
	return data.User, nil
}

// Register creates the account and signs it in. Any current session is signed out first.
func (c *Client) Register(ctx context.Context, name, email, password string) (*User, error) {
	c.signOutQuietly(ctx)
	body := map[string]string{"name": name, "email": email, "password": password}
	data, _, err := call[userData](c.req(ctx).SetBody(body), http.MethodPost, "/api/v1/auth/register")
	if err != nil {
		return nil, err
	}
	c.setUser(data.User)
	return data.User, nil
}

// Login signs in. Any current session is signed out first.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	c.signOutQuietly(ctx)
	body := map[string]string{"email": email, "password": password}
	data, _, err := call[userData](c.req(ctx).SetBody(body), http.MethodPost, "/api/v1/auth/login")
	if err != nil {
		return nil, err
	}
	c.setUser(data.User)
	return data.User, nil
}

func (c *Client) signOutQuietly(ctx context.Context) {
	if !c.HasSession() {
		return
	}
	if err := c.Logout(ctx); err != nil {
		log.Debug().Err(err).Msg("client: previous session not closed")
	}
}

// Logout ends the session on the server and locally.
func (c *Client) Logout(ctx context.Context) error {
	_, _, err := call[interface{}](c.req(ctx), http.MethodDelete, "/api/v1/auth/logout")
	c.setSID("")
	c.setUser(nil)
	return err
}

// UpdateProfile renames the signed-in user.
func (c *Client) UpdateProfile(ctx context.Context, name string) (*User, error) {
	body := map[string]string{"name": name}
	data, _, err := call[userData](c.req(ctx).SetBody(body), http.MethodPatch, "/api/v1/auth/profile")
	if err != nil {
		return nil, err
	}
	c.setUser(data.User)
	return data.User, nil
}

func total(meta map[string]interface{}, fallback int) int {
	if n, ok := meta["total"].(float64); ok {
		return int(n)
	}
	return fallback
}

// Browse lists the public catalog, newest first, or the names starting with search.
func (c *Client) Browse(ctx context.Context, search string) (Page, error) {
	r := c.req(ctx)
	if s := strings.TrimSpace(search); s != "" {
		r.SetQueryParam("search", s)
	}
	cards, meta, err := call[[]views.Card](r, http.MethodGet, "/api/v1/cars")
	if err != nil {
		return Page{}, err
	}
	return Page{Cards: cards, Total: total(meta, len(cards))}, nil
}

// Car is the public detail page of one listing.
func (c *Client) Car(ctx context.Context, id string) (*views.Detail, error) {
	d, _, err := call[*views.Detail](c.req(ctx).SetPathParam("id", id), http.MethodGet, "/api/v1/cars/{id}")
	return d, err
}

// MyCars lists the signed-in user's listings.
func (c *Client) MyCars(ctx context.Context) (Page, error) {
	cards, meta, err := call[[]views.Card](c.req(ctx), http.MethodGet, "/api/v1/dashboard/cars")
	if err != nil {
		return Page{}, err
	}
	return Page{Cards: cards, Total: total(meta, len(cards))}, nil
}

// MyCar loads one of the signed-in user's listings for editing.
func (c *Client) MyCar(ctx context.Context, id string) (*views.Detail, error) {
	d, _, err := call[*views.Detail](c.req(ctx).SetPathParam("id", id), http.MethodGet, "/api/v1/dashboard/cars/{id}")
	return d, err
}

// UploadImage sends one photo. The part is labelled with the sniffed type.
func (c *Client) UploadImage(ctx context.Context, filename string, data []byte) (domain.CarImage, error) {
	contentType := mimetype.Detect(data).String()
	r := c.req(ctx).SetMultipartField("file", filename, contentType, bytes.NewReader(data))
	img, _, err := call[domain.CarImage](r, http.MethodPost, "/api/v1/dashboard/images")
	return img, err
}

// DeleteImage removes an upload that is not attached to any listing yet.
func (c *Client) DeleteImage(ctx context.Context, uid string) error {
	_, _, err := call[interface{}](c.req(ctx).SetPathParam("uid", uid), http.MethodDelete, "/api/v1/dashboard/images/{uid}")
	return err
}

func (c *Client) CreateCar(ctx context.Context, in carsvc.Input) (*views.Detail, error) {
	d, _, err := call[*views.Detail](c.req(ctx).SetBody(in), http.MethodPost, "/api/v1/dashboard/cars")
	return d, err
}

func (c *Client) UpdateCar(ctx context.Context, id string, in carsvc.Input) (*views.Detail, error) {
	r := c.req(ctx).SetPathParam("id", id).SetBody(in)
	d, _, err := call[*views.Detail](r, http.MethodPut, "/api/v1/dashboard/cars/{id}")
	return d, err
}

// RemoveCarImage deletes an attached image; the listing is updated only after the blob is gone.
func (c *Client) RemoveCarImage(ctx context.Context, id, uid string) (*views.Detail, error) {
	r := c.req(ctx).SetPathParams(map[string]string{"id": id, "uid": uid})
	d, _, err := call[*views.Detail](r, http.MethodDelete, "/api/v1/dashboard/cars/{id}/images/{uid}")
	return d, err
}

// DeleteCar deletes a listing and all of its images.
func (c *Client) DeleteCar(ctx context.Context, id string) error {
	_, _, err := call[interface{}](c.req(ctx).SetPathParam("id", id), http.MethodDelete, "/api/v1/dashboard/cars/{id}")
	return err
}

// Events is the signed-in user's listing history.
func (c *Client) Events(ctx context.Context) ([]domain.CarEvent, error) {
	evs, _, err := call[[]domain.CarEvent](c.req(ctx), http.MethodGet, "/api/v1/dashboard/events")
	return evs, err
}

// APIError is a non-2xx answer decoded from the error envelope.
type APIError struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

func newAPIError(status int, env errorEnvelope) *APIError {
	e := &APIError{StatusCode: status, Message: env.Error.Message}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	for k, v := range env.Error.Details {
		if s, ok := v.(string); ok {
			if e.Fields == nil {
				e.Fields = make(map[string]string)
			}
			e.Fields[k] = s
		}
	}
	return e
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.StatusCode, e.Message)
}

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

func IsUnauthorized(err error) bool { return hasStatus(err, http.StatusUnauthorized) }
func IsForbidden(err error) bool    { return hasStatus(err, http.StatusForbidden) }
func IsNotFound(err error) bool     { return hasStatus(err, http.StatusNotFound) }
