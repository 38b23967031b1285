package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/storyqa/internal/cache"
	"github.com/ppiankov/storyqa/internal/model"
)

// ErrStaleResponse is returned when a fetch finished after its story changed
// or was reset. The result is discarded.
var ErrStaleResponse = errors.New("stale suggestion response discarded")

// Client is anything that can produce raw suggestions for a story:
// the remote service or a local generator.
type Client interface {
	Suggest(ctx context.Context, req model.SuggestionRequest) ([]string, error)
}

// State is the observable state of one story's suggestion cycle
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateEmpty
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateEmpty:
		return "empty"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status reports a story's suggestion state; Err is set only in StateFailed
type Status struct {
	State State
	Count int
	Err   error
}

type call struct {
	done   chan struct{}
	result []string
	err    error
}

type entry struct {
	fingerprint string
	fetched     bool
	suggestions []string
	err         error
	inflight    *call
}

// Orchestrator fetches suggestions at most once per (story, fingerprint)
type Orchestrator struct {
	client   Client
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithCache adds a shared cache consulted before the client is called
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(o *Orchestrator) {
		o.cache = c
		o.cacheTTL = ttl
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewOrchestrator creates a suggestion orchestrator over client
func NewOrchestrator(client Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:  client,
		logger:  slog.New(slog.DiscardHandler),
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GetSuggestions returns raw suggestions for the story. Repeated calls with
// the same text and verdicts return the first successful result without
// another fetch; concurrent callers share one in-flight request. A changed
// fingerprint starts a new cycle and any older in-flight result is dropped
// with ErrStaleResponse. An empty list is a successful result. Cancelling
// ctx only stops this caller from waiting; the shared fetch keeps running.
func (o *Orchestrator) GetSuggestions(ctx context.Context, storyID, text string, verdicts model.VerdictMap) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &model.ValidationError{Field: "user_story", Message: "story text is empty"}
	}

	fp := Fingerprint(text, verdicts)

	o.mu.Lock()
	e := o.entries[storyID]
	if e == nil || e.fingerprint != fp {
		if e != nil && e.inflight != nil {
			o.logger.Debug("suggestion cycle restarted", "story", storyID)
		}
		e = &entry{fingerprint: fp}
		o.entries[storyID] = e
	}
	if e.fetched {
		out := append([]string{}, e.suggestions...)
		o.mu.Unlock()
		return out, nil
	}
	if c := e.inflight; c != nil {
		o.mu.Unlock()
		return wait(ctx, c)
	}
	c := &call{done: make(chan struct{})}
	e.inflight = c
	e.err = nil
	o.mu.Unlock()

	// The fetch is shared, so it outlives the caller that started it.
	go o.complete(context.WithoutCancel(ctx), storyID, e, c, model.NewSuggestionRequest(text, verdicts))
	return wait(ctx, c)
}

func (o *Orchestrator) complete(ctx context.Context, storyID string, e *entry, c *call, req model.SuggestionRequest) {
	result, err := o.fetch(ctx, e.fingerprint, req)

	o.mu.Lock()
	cur := o.entries[storyID]
	switch {
	case cur != e || cur.inflight != c:
		o.logger.Debug("dropping stale suggestions", "story", storyID)
		c.err = ErrStaleResponse
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// Not a verdict on the story; the next call retries.
		e.inflight = nil
		c.err = err
	case err != nil:
		e.inflight = nil
		e.err = err
		c.err = err
	default:
		e.inflight = nil
		e.fetched = true
		e.suggestions = result
		c.result = result
	}
	o.mu.Unlock()
	close(c.done)
}

func wait(ctx context.Context, c *call) ([]string, error) {
	select {
	case <-c.done:
		if c.err != nil {
			return nil, c.err
		}
		return append([]string{}, c.result...), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (o *Orchestrator) fetch(ctx context.Context, fp string, req model.SuggestionRequest) ([]string, error) {
	key := cache.Key("suggestions", fp)
	if o.cache != nil {
		if raw, ok := o.cache.Get(key); ok {
			var cached []string
			if err := json.Unmarshal(raw, &cached); err == nil {
				o.logger.Debug("suggestions cache hit", "key", key)
				return cached, nil
			}
		}
	}

	suggestions, err := o.client.Suggest(ctx, req)
	if err != nil {
		return nil, err
	}
	if suggestions == nil {
		suggestions = []string{}
	}

	if o.cache != nil {
		if raw, err := json.Marshal(suggestions); err == nil {
			if err := o.cache.Set(key, raw, o.cacheTTL); err != nil {
				o.logger.Warn("failed to cache suggestions", "error", err)
			}
		}
	}
	return suggestions, nil
}

// Status reports the current suggestion state for a story
func (o *Orchestrator) Status(storyID string) Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	e := o.entries[storyID]
	switch {
	case e == nil:
		return Status{State: StateIdle}
	case e.inflight != nil:
		return Status{State: StateLoading}
	case e.fetched && len(e.suggestions) == 0:
		return Status{State: StateEmpty}
	case e.fetched:
		return Status{State: StateReady, Count: len(e.suggestions)}
	case e.err != nil:
		return Status{State: StateFailed, Err: e.err}
	default:
		return Status{State: StateIdle}
	}
}

// Fetched reports whether the current cycle for a story completed successfully
func (o *Orchestrator) Fetched(storyID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	e := o.entries[storyID]
	return e != nil && e.fetched
}

// Reset forgets a story. Any in-flight fetch for it will be discarded.
func (o *Orchestrator) Reset(storyID string) {
	o.mu.Lock()
	delete(o.entries, storyID)
	o.mu.Unlock()
}
