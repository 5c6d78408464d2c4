package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"docchat-client/internal/constant"
	"docchat-client/internal/pkg/logger"
	"docchat-client/pkg/apperror"
	"docchat-client/pkg/backend"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/oauth2"
)

const (
	module     = "ChatBackend"
	tracerName = "docchat-client/pkg/backend/rest"
)

type Client struct {
	baseURL string
	http    *http.Client
	logger  logger.ILogger
}

type Option func(*Client)

// WithTokenSource authenticates every request with the source's bearer token.
// The source is asked on every request, so identity changes apply at once.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) {
		if ts == nil {
			return
		}
		base := c.http.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		c.http = &http.Client{
			Timeout:   c.http.Timeout,
			Transport: &oauth2.Transport{Source: ts, Base: base},
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func NewClient(baseURL string, timeout time.Duration, log logger.ILogger, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = constant.DefaultGatewayTimeout
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ backend.ChatBackend = (*Client)(nil)

type chatRequest struct {
	SessionId string `json:"session_id"`
	Text      string `json:"text"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

type attachResponse struct {
	DocumentIds []string `json:"documentIds"`
}

func (c *Client) Answer(ctx context.Context, sessionId uuid.UUID, text string) (string, error) {
	const op = "ChatBackend.Answer"

	body, err := json.Marshal(chatRequest{SessionId: sessionId.String(), Text: text})
	if err != nil {
		return "", apperror.ReplyFailed(op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", apperror.ReplyFailed(op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := c.do(req, op, sessionId)
	if err != nil {
		return "", apperror.ReplyFailed(op, err)
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", apperror.ReplyFailed(op, fmt.Errorf("decode reply: %w", err))
	}
	return resp.Reply, nil
}

func (c *Client) AttachDocuments(ctx context.Context, sessionId uuid.UUID, files []backend.File) ([]string, error) {
	const op = "ChatBackend.AttachDocuments"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile(constant.UploadFormField, f.Name)
		if err != nil {
			return nil, apperror.UploadFailed(op, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, apperror.UploadFailed(op, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, apperror.UploadFailed(op, err)
	}

	url := fmt.Sprintf("%s/add_pdf/%s", c.baseURL, sessionId)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, apperror.UploadFailed(op, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	raw, err := c.do(req, op, sessionId)
	if err != nil {
		return nil, apperror.UploadFailed(op, err)
	}

	var resp attachResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, apperror.UploadFailed(op, fmt.Errorf("decode upload result: %w", err))
	}
	return resp.DocumentIds, nil
}

// do sends req inside a client span and returns the body of a 2xx response.
func (c *Client) do(req *http.Request, op string, sessionId uuid.UUID) (raw []byte, err error) {
	ctx, span := otel.Tracer(tracerName).Start(req.Context(), op)
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.path", req.URL.Path),
		attribute.String("docchat.session_id", sessionId.String()),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	req = req.WithContext(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn(module, "Request failed", map[string]interface{}{
			"path":       req.URL.Path,
			"session_id": sessionId,
			"error":      err.Error(),
		})
		return nil, err
	}
	defer resp.Body.Close()

	raw, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	c.logger.Debug(module, "Request completed", map[string]interface{}{
		"path":        req.URL.Path,
		"session_id":  sessionId,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("backend responded %d: %s", resp.StatusCode, truncate(string(raw), 256))
	}
	return raw, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
