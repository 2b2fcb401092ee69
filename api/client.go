package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"halisaha-bot/types"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
)

const maxBodyBytes = 4 << 20

var (
	// ErrTransport means the request never produced a response.
	ErrTransport = errors.New("api: no response from server")
	// ErrUnauthorized is returned after the session-expiry hook ran for a 401.
	// The returned error also wraps the server's *Error.
	ErrUnauthorized = errors.New("api: unauthorized")
)

// Error is an application failure reported by the server. Message is empty
// when the server gave none.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, msg)
}

// IsConflict reports whether the server rejected the request because the
// resource changed underneath it, e.g. a slot booked by someone else.
func IsConflict(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict
}

// ServerMessage returns the message supplied by the server, if any.
func ServerMessage(err error) (string, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message, true
	}
	return "", false
}

// Auth supplies the bearer token for the chat carried on ctx and is told
// when the server rejects it.
type Auth interface {
	Token(ctx context.Context) (string, bool)
	Expire(ctx context.Context)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       Auth
	logger     *slog.Logger
}

func New(baseURL string, timeout time.Duration, auth Auth, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		auth:   auth,
		logger: logger,
	}
}

// BaseURL is the API root every path is resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.send(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, out)
}

// do runs the request through the request hook (auth + request id), sends it
// and funnels the response through the single response pipeline.
func (c *Client) do(req *http.Request, out any) error {
	ctx := req.Context()
	requestID := uuid.NewString()

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.auth != nil {
		if token, ok := c.auth.Token(ctx); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, ctx.Err())
		}
		c.logger.Error("api request failed",
			"method", req.Method,
			"path", req.URL.Path,
			"request_id", requestID,
			"error", err,
		)
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrTransport, err)
	}

	c.logger.Debug("api request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	var env envelope
	decodeErr := decodeEnvelope(resp, raw, &env)

	if resp.StatusCode == http.StatusUnauthorized {
		if c.auth != nil {
			c.auth.Expire(ctx)
		}
		msg := env.Message
		if decodeErr != nil {
			msg = ""
		}
		return fmt.Errorf("%w: %w", ErrUnauthorized, &Error{Status: resp.StatusCode, Message: msg})
	}

	if decodeErr != nil {
		return &Error{Status: resp.StatusCode, Message: decodeErr.Error()}
	}

	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		return &Error{Status: resp.StatusCode, Message: env.Message}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

// decodeEnvelope parses the JSON envelope. Anything else (typically an HTML
// page from a proxy) is reduced to a readable message.
func decodeEnvelope(resp *http.Response, raw []byte, env *envelope) error {
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "text/html" {
		return errors.New(htmlText(raw))
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		env.Success = resp.StatusCode < http.StatusBadRequest
		return nil
	}
	if err := json.Unmarshal(raw, env); err != nil {
		return fmt.Errorf("unexpected response from server (status %d)", resp.StatusCode)
	}
	return nil
}

func htmlText(raw []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return "unexpected HTML response"
	}

	text := strings.TrimSpace(doc.Find("title").First().Text())
	if text == "" {
		text = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if text == "" {
		text = strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	}
	if r := []rune(text); len(r) > 200 {
		text = string(r[:200])
	}
	if text == "" {
		return "unexpected HTML response"
	}
	return text
}

// ListQuery carries page parameters and filters for server-paginated lists.
type ListQuery struct {
	Page    int
	Limit   int
	Filters map[string]string
}

func (q ListQuery) values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", fmt.Sprint(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", fmt.Sprint(q.Limit))
	}
	for key, val := range q.Filters {
		if val != "" {
			v.Set(key, val)
		}
	}
	return v
}

// getPaged fetches a page whose data is {<key>: [...], pagination: {...}}.
func getPaged[T any](ctx context.Context, c *Client, path, key string, q ListQuery) (types.Paged[T], error) {
	var data map[string]json.RawMessage
	if err := c.get(ctx, path, q.values(), &data); err != nil {
		return types.Paged[T]{}, err
	}

	var page types.Paged[T]
	if items, ok := data[key]; ok {
		if err := json.Unmarshal(items, &page.Items); err != nil {
			return types.Paged[T]{}, fmt.Errorf("decoding %s: %w", key, err)
		}
	}
	if p, ok := data["pagination"]; ok {
		if err := json.Unmarshal(p, &page.Pagination); err != nil {
			return types.Paged[T]{}, fmt.Errorf("decoding pagination: %w", err)
		}
	}
	return page, nil
}
