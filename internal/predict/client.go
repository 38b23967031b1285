// Package predict talks to the remote story-quality service: per-criterion
// scoring, suggestion generation and tracker credential checks.
package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/storyqa/internal/model"
	"github.com/ppiankov/storyqa/internal/schemas"
	"github.com/ppiankov/storyqa/internal/util"
	"github.com/ppiankov/storyqa/internal/worker"
)

type endpoint struct {
	path   string
	field  string
	schema string
}

var criterionEndpoints = map[model.Criterion]endpoint{
	model.CriterionAmbiguity:  {path: "/predict/ambiguity", field: "ambiguity_prediction", schema: schemas.Ambiguity},
	model.CriterionWellFormed: {path: "/predict/well-formed", field: "well_formed_prediction", schema: schemas.WellFormed},
}

const (
	suggestionsPath = "/suggestions"
	verifyPath      = "/verify-credentials"
)

// Client is safe for concurrent use; it holds no per-call state
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	limiter    *worker.Limiter
	logger     *slog.Logger
}

// NewClient builds a client from service settings. limiter and logger may be nil.
func NewClient(cfg model.ServiceConfig, limiter *worker.Limiter, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, &model.ValidationError{Field: "service.base_url", Message: fmt.Sprintf("invalid url %q", cfg.BaseURL)}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: util.NewHTTPClient(cfg.Timeout, cfg.HTTPProxy, cfg.HTTPSProxy),
		userAgent:  cfg.UserAgent,
		maxBytes:   maxBytes,
		limiter:    limiter,
		logger:     logger,
	}, nil
}

// Evaluate scores text against one criterion
func (c *Client) Evaluate(ctx context.Context, criterion model.Criterion, text string) (model.Verdict, error) {
	ep, ok := criterionEndpoints[criterion]
	if !ok {
		return 0, &model.ValidationError{Field: "criterion", Message: fmt.Sprintf("no endpoint for %q", criterion)}
	}
	if strings.TrimSpace(text) == "" {
		return 0, &model.ValidationError{Field: "user_story", Message: "story text is empty"}
	}

	status, body, err := c.post(ctx, ep.path, map[string]string{"user_story": text})
	if err != nil {
		return 0, err
	}
	if !success(status) {
		return 0, &model.RemoteUnavailableError{Endpoint: ep.path, StatusCode: status}
	}
	if err := schemas.Validate(ep.schema, body); err != nil {
		return 0, &model.DecodeError{Endpoint: ep.path, Message: "unexpected response shape", Cause: err}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return 0, &model.DecodeError{Endpoint: ep.path, Message: "invalid JSON", Cause: err}
	}
	var verdict model.Verdict
	if err := json.Unmarshal(fields[ep.field], &verdict); err != nil || !verdict.Valid() {
		return 0, &model.DecodeError{Endpoint: ep.path, Message: fmt.Sprintf("%s is not 0 or 1", ep.field), Cause: err}
	}

	c.logger.Debug("criterion evaluated", "criterion", criterion, "verdict", int(verdict))
	return verdict, nil
}

// Suggest asks the service for raw improvement suggestions. A missing or
// non-list "suggestions" field is a decode failure; an empty list is not.
func (c *Client) Suggest(ctx context.Context, req model.SuggestionRequest) ([]string, error) {
	if strings.TrimSpace(req.UserStory) == "" {
		return nil, &model.ValidationError{Field: "user_story", Message: "story text is empty"}
	}

	status, body, err := c.post(ctx, suggestionsPath, req)
	if err != nil {
		return nil, err
	}
	if !success(status) {
		return nil, &model.RemoteUnavailableError{Endpoint: suggestionsPath, StatusCode: status}
	}
	if err := schemas.Validate(schemas.Suggestions, body); err != nil {
		return nil, &model.DecodeError{Endpoint: suggestionsPath, Message: "unexpected response shape", Cause: err}
	}

	var resp struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &model.DecodeError{Endpoint: suggestionsPath, Message: "invalid JSON", Cause: err}
	}
	if resp.Suggestions == nil {
		resp.Suggestions = []string{}
	}

	c.logger.Debug("suggestions received", "count", len(resp.Suggestions))
	return resp.Suggestions, nil
}

// Credentials is the payload of a tracker credential check
type Credentials struct {
	Email      string `json:"email"`
	APIToken   string `json:"apiToken"`
	JiraDomain string `json:"jiraDomain"`
	Board      string `json:"board"`
}

// Verification is the service's answer to a credential check
type Verification struct {
	Success bool
	Message string
}

// VerifyCredentials asks the service to check tracker credentials. A
// rejected login comes back as Success=false with a nil error.
func (c *Client) VerifyCredentials(ctx context.Context, creds Credentials) (Verification, error) {
	status, body, err := c.post(ctx, verifyPath, creds)
	if err != nil {
		return Verification{}, err
	}
	if !success(status) && status != http.StatusUnauthorized && status != http.StatusBadRequest {
		return Verification{}, &model.RemoteUnavailableError{Endpoint: verifyPath, StatusCode: status}
	}
	if err := schemas.Validate(schemas.Verify, body); err != nil {
		return Verification{}, &model.DecodeError{Endpoint: verifyPath, Message: "unexpected response shape", Cause: err}
	}

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Verification{}, &model.DecodeError{Endpoint: verifyPath, Message: "invalid JSON", Cause: err}
	}

	msg := resp.Message
	if msg == "" {
		msg = resp.Error
	}
	return Verification{Success: resp.Success, Message: msg}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (int, []byte, error) {
	target := c.baseURL + path

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, target); err != nil {
			return 0, nil, &model.RemoteUnavailableError{Endpoint: path, Cause: err}
		}
	}

	buf, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(buf))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &model.RemoteUnavailableError{Endpoint: path, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return 0, nil, &model.RemoteUnavailableError{Endpoint: path, Cause: fmt.Errorf("read body: %w", err)}
	}

	c.logger.Debug("service call", "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))
	return resp.StatusCode, body, nil
}

func success(status int) bool {
	return status >= 200 && status < 300
}
