package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ppiankov/storyqa/internal/model"
	"github.com/ppiankov/storyqa/internal/worker"
)

const (
	myselfPath      = "/rest/api/3/myself"
	searchPath      = "/rest/api/3/search"
	maxPageSize     = 100
	maxResponseBody = 16 << 20
)

// Story is one imported Jira issue
type Story struct {
	Key         string `json:"key"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// Client reads stories for one session
type Client struct {
	session    Session
	httpClient *http.Client
	limiter    *worker.Limiter
	pageSize   int
	userAgent  string
	logger     *slog.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithLimiter rate limits every request
func WithLimiter(l *worker.Limiter) ClientOption {
	return func(c *Client) { c.limiter = l }
}

// WithPageSize sets the search page size, capped at 100
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 && n <= maxPageSize {
			c.pageSize = n
		}
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient validates the session and builds a client
func NewClient(session Session, httpClient *http.Client, opts ...ClientOption) (*Client, error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	c := &Client{
		session:    session,
		httpClient: httpClient,
		pageSize:   maxPageSize,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Verify checks the credentials against /myself
func (c *Client) Verify(ctx context.Context) error {
	status, _, err := c.get(ctx, myselfPath, nil)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrInvalidCredentials
	default:
		return &model.RemoteUnavailableError{Endpoint: myselfPath, StatusCode: status}
	}
}

type searchResponse struct {
	StartAt    int           `json:"startAt"`
	MaxResults int           `json:"maxResults"`
	Total      int           `json:"total"`
	Issues     []searchIssue `json:"issues"`
}

type searchIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary     string          `json:"summary"`
		Description json.RawMessage `json:"description"`
		Status      struct {
			Name string `json:"name"`
		} `json:"status"`
	} `json:"fields"`
	RenderedFields struct {
		Description string `json:"description"`
	} `json:"renderedFields"`
}

// FetchStories pages through every Story issue of the session's project,
// newest first
func (c *Client) FetchStories(ctx context.Context) ([]Story, error) {
	jql := fmt.Sprintf("project = %s AND issuetype = Story ORDER BY created DESC", c.session.Project)

	var stories []Story
	startAt := 0
	for {
		params := url.Values{}
		params.Set("jql", jql)
		params.Set("fields", "summary,description,status")
		params.Set("expand", "renderedFields")
		params.Set("maxResults", strconv.Itoa(c.pageSize))
		params.Set("startAt", strconv.Itoa(startAt))

		status, body, err := c.get(ctx, searchPath, params)
		if err != nil {
			return nil, err
		}
		switch {
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return nil, ErrInvalidCredentials
		case status != http.StatusOK:
			return nil, &model.RemoteUnavailableError{Endpoint: searchPath, StatusCode: status}
		}

		var page searchResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, &model.DecodeError{Endpoint: searchPath, Message: "invalid search response", Cause: err}
		}
		if len(page.Issues) == 0 {
			break
		}

		for _, issue := range page.Issues {
			stories = append(stories, issue.toStory())
		}
		startAt += len(page.Issues)
		c.logger.Debug("fetched jira page", "start_at", startAt, "total", page.Total)
		if startAt >= page.Total {
			break
		}
	}

	c.logger.Info("imported jira stories", "project", c.session.Project, "count", len(stories))
	return stories, nil
}

func (i searchIssue) toStory() Story {
	desc := HTMLToText(i.RenderedFields.Description)
	if desc == "" {
		desc = adfText(i.Fields.Description)
	}
	return Story{
		Key:         i.Key,
		Summary:     i.Fields.Summary,
		Description: desc,
		Status:      i.Fields.Status.Name,
	}
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (int, []byte, error) {
	target := c.session.BaseURL() + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, target); err != nil {
			return 0, nil, &model.RemoteUnavailableError{Endpoint: path, Cause: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.session.Email, c.session.Token)
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &model.RemoteUnavailableError{Endpoint: path, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return 0, nil, &model.RemoteUnavailableError{Endpoint: path, Cause: fmt.Errorf("read body: %w", err)}
	}
	return resp.StatusCode, body, nil
}
