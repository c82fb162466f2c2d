// Package client talks to the ECG modelling and analysis service over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/YuminosukeSato/ecgstudio/pkg/errors"
	"github.com/YuminosukeSato/ecgstudio/pkg/log"
	"github.com/YuminosukeSato/ecgstudio/schema"
)

// SessionClient is the service surface the orchestrators depend on.
type SessionClient interface {
	CreateTrainingSession(ctx context.Context, cfg schema.TrainingConfig) (string, error)
	GetTrainingSession(ctx context.Context, id string) (*TrainingStatus, error)
	CreateAnalysisSession(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error)
}

var _ SessionClient = (*Client)(nil)

// Client is the HTTP implementation of SessionClient.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	csrfToken string
	logger    log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. A cookie jar is added
// when the client has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithCSRFToken sets the token sent when the cookie jar holds none.
func WithCSRFToken(token string) Option {
	return func(c *Client) {
		c.csrfToken = token
	}
}

// WithTimeout sets a per-request timeout. Zero means none.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithLogger sets the request logger.
func WithLogger(logger log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New returns a client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "client: parse base url %q", baseURL)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Newf("client: base url %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{},
		logger:  log.GetLoggerWithName("client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, errors.Wrap(err, "client: create cookie jar")
		}
		c.http.Jar = jar
	}
	return c, nil
}

// BaseURL returns the service base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Prime fetches the landing page so the service sets its CSRF cookie.
func (c *Client) Prime(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, PrimePath, nil, "")
	if err != nil {
		return err
	}
	resp, err := c.do(req, "prime")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 400 {
		return errors.NewServerError("prime", resp.StatusCode, errors.FieldErrors{
			errors.FieldDetail: {http.StatusText(resp.StatusCode)},
		})
	}
	if c.CSRFToken() == "" {
		c.logger.Warn("Service set no CSRF cookie", log.HTTPPathKey, PrimePath)
	}
	return nil
}

// CSRFToken returns the token that accompanies unsafe requests: the
// csrftoken cookie when present, otherwise the configured token.
func (c *Client) CSRFToken() string {
	if c.http.Jar != nil {
		for _, cookie := range c.http.Jar.Cookies(c.baseURL) {
			if cookie.Name == CSRFCookieName && cookie.Value != "" {
				return cookie.Value
			}
		}
	}
	return c.csrfToken
}

// CreateTrainingSession submits cfg and returns the new session id.
func (c *Client) CreateTrainingSession(ctx context.Context, cfg schema.TrainingConfig) (string, error) {
	const op = "create training session"
	body, err := json.Marshal(cfg)
	if err != nil {
		return "", errors.Wrap(err, "client: encode training config")
	}
	req, err := c.newRequest(ctx, http.MethodPost, TrainingSessionPath, bytes.NewReader(body), "application/json")
	if err != nil {
		return "", err
	}

	var out createTrainingResponse
	if err := c.doJSON(req, op, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.NewServerError(op, http.StatusOK, errors.FieldErrors{
			errors.FieldDetail: {"response did not include a session id"},
		})
	}
	return out.ID, nil
}

// GetTrainingSession reads the status of session id.
func (c *Client) GetTrainingSession(ctx context.Context, id string) (*TrainingStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, TrainingSessionPath+url.PathEscape(id)+"/", nil, "")
	if err != nil {
		return nil, err
	}
	var out TrainingStatus
	if err := c.doJSON(req, "get training session", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateAnalysisSession uploads an ECG file and returns the analysis result.
func (c *Client) CreateAnalysisSession(ctx context.Context, ar AnalysisRequest) (*AnalysisResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(errors.FieldEcgFile, ar.FileName)
	if err != nil {
		return nil, errors.Wrap(err, "client: create file part")
	}
	if _, err := part.Write(ar.File); err != nil {
		return nil, errors.Wrap(err, "client: write file part")
	}
	if err := mw.WriteField(errors.FieldSamplingFrequency, strconv.Itoa(ar.SamplingFrequency)); err != nil {
		return nil, errors.Wrap(err, "client: write fs")
	}
	if err := mw.WriteField(errors.FieldTrainingSession, ar.TrainingSessionID); err != nil {
		return nil, errors.Wrap(err, "client: write training session id")
	}
	if err := mw.Close(); err != nil {
		return nil, errors.Wrap(err, "client: close multipart body")
	}

	req, err := c.newRequest(ctx, http.MethodPost, AnalysisSessionPath, &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	var out AnalysisResult
	if err := c.doJSON(req, "create analysis session", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	target := c.baseURL.ResolveReference(&url.URL{Path: c.baseURL.Path + path})
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, errors.Wrapf(err, "client: build %s %s", method, path)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if method != http.MethodGet && method != http.MethodHead {
		if token := c.CSRFToken(); token != "" {
			req.Header.Set(CSRFHeaderName, token)
		}
		// Django checks the referer of secure unsafe requests
		req.Header.Set("Referer", c.baseURL.String()+"/")
	}
	return req, nil
}

func (c *Client) do(req *http.Request, op string) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	fields := []any{
		log.HTTPMethodKey, req.Method,
		log.HTTPPathKey, req.URL.Path,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	}
	if err != nil {
		c.logger.Debug("Request failed", append(fields, "error", err.Error())...)
		return nil, errors.NewTransportError(op, err)
	}
	c.logger.Debug("Request completed", append(fields, log.HTTPStatusKey, resp.StatusCode)...)
	return resp, nil
}

func (c *Client) doJSON(req *http.Request, op string, out any) error {
	resp, err := c.do(req, op)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewTransportError(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.NewServerError(op, resp.StatusCode, parseErrorBody(resp.StatusCode, body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "client: %s: decode response", op)
	}
	return nil
}

// parseErrorBody normalises a service error body into field errors.
// {"field": ["msg"]}, {"field": "msg"} and nested objects (flattened as
// "parent.field") are understood; anything else becomes a detail message.
func parseErrorBody(status int, body []byte) errors.FieldErrors {
	out := errors.FieldErrors{}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err == nil && len(fields) > 0 {
		for name, raw := range fields {
			collectMessages(out, name, raw)
		}
		if len(out) > 0 {
			return out
		}
	}

	var list []string
	if err := json.Unmarshal(body, &list); err == nil && len(list) > 0 {
		out[errors.FieldNonField] = list
		return out
	}

	msg := http.StatusText(status)
	if msg == "" {
		msg = fmt.Sprintf("status %d", status)
	}
	out.Add(errors.FieldDetail, msg)
	return out
}

func collectMessages(out errors.FieldErrors, name string, raw json.RawMessage) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return
	}
	switch raw[0] {
	case '"':
		var s string
		if json.Unmarshal(raw, &s) == nil {
			out.Add(name, s)
		}
	case '[':
		var items []json.RawMessage
		if json.Unmarshal(raw, &items) != nil {
			return
		}
		for _, item := range items {
			collectMessages(out, name, item)
		}
	case '{':
		var nested map[string]json.RawMessage
		if json.Unmarshal(raw, &nested) != nil {
			return
		}
		for sub, v := range nested {
			collectMessages(out, name+"."+sub, v)
		}
	default:
		out.Add(name, string(raw))
	}
}
