package httpclient

import (
	"context"
	"errors"
	"fmt"
	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"
)

// TokenSource supplies the bearer token attached to outgoing calls.
type TokenSource interface {
	Token(ctx context.Context) string
}

type Request struct {
	Method  string
	Path    string
	Body    any
	Headers map[string]string
}

// Response holds a normalized JSON payload. Body is nil for an empty JSON response.
type Response struct {
	Status int
	Body   json.RawMessage
}

func (r *Response) Decode(out any) error {
	if out == nil || len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return &Error{Kind: KindDecode, Status: r.Status, Message: err.Error(), Err: err}
	}
	return nil
}

// Message returns the "message" field of the payload, if any.
func (r *Response) Message() string {
	return gjson.GetBytes(r.Body, "message").String()
}

type Client struct {
	client  *resty.Client
	tokens  TokenSource
	timeout time.Duration
	log     *slog.Logger
}

func New(baseURL string, timeout time.Duration, tokens TokenSource, log *slog.Logger) *Client {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))

	return &Client{
		client:  client,
		tokens:  tokens,
		timeout: timeout,
		log:     log,
	}
}

func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json")

	if c.tokens != nil {
		if tok := c.tokens.Token(ctx); tok != "" {
			req.SetAuthToken(tok)
		}
	}
	req.SetHeaders(r.Headers)

	if r.Body != nil {
		raw, err := json.Marshal(r.Body)
		if err != nil {
			return nil, NewValidationError(fmt.Errorf("encode request body: %w", err))
		}
		req.SetBody(raw)
	}

	started := time.Now()
	resp, err := req.Execute(r.Method, r.Path)
	if err != nil {
		kind := KindTransport
		if errors.Is(err, context.DeadlineExceeded) {
			kind = KindTimeout
		}
		c.log.Warn("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.Path),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()))
		return nil, &Error{Kind: kind, Message: err.Error(), Err: err}
	}

	c.log.Debug("response received",
		slog.String("method", r.Method),
		slog.String("path", r.Path),
		slog.Int("status", resp.StatusCode()),
		slog.Duration("took", time.Since(started)))

	return normalize(resp.StatusCode(), resp.Header().Get("Content-Type"), resp.Body())
}

// Post sends body to path and decodes the payload into out (which may be nil).
func (c *Client) Post(ctx context.Context, path string, body any, out any) error {
	resp, err := c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

func normalize(status int, contentType string, body []byte) (*Response, error) {
	out := &Response{Status: status}

	if isJSON(contentType) {
		trimmed := strings.TrimSpace(string(body))
		if trimmed != "" {
			if !gjson.Valid(trimmed) {
				if status >= 200 && status < 300 {
					return nil, &Error{Kind: KindDecode, Status: status, Message: "response body is not valid JSON"}
				}
			} else {
				out.Body = json.RawMessage(trimmed)
			}
		}
	} else {
		raw, err := json.Marshal(map[string]string{"message": string(body)})
		if err != nil {
			return nil, &Error{Kind: KindDecode, Status: status, Message: err.Error(), Err: err}
		}
		out.Body = raw
	}

	if status < 200 || status >= 300 {
		msg := out.Message()
		if msg == "" {
			msg = fmt.Sprintf("HTTP error, status=%d", status)
		}
		return nil, &Error{Kind: KindApplication, Status: status, Message: msg}
	}

	return out, nil
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
