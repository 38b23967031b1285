package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ppiankov/storyqa/internal/cache"
	"github.com/ppiankov/storyqa/internal/evaluate"
	"github.com/ppiankov/storyqa/internal/jira"
	"github.com/ppiankov/storyqa/internal/llm"
	"github.com/ppiankov/storyqa/internal/model"
	"github.com/ppiankov/storyqa/internal/predict"
	"github.com/ppiankov/storyqa/internal/suggest"
	"github.com/ppiankov/storyqa/internal/util"
	"github.com/ppiankov/storyqa/internal/worker"
)

// services is everything a command needs, built once from config
type services struct {
	cfg     *model.Config
	logger  *slog.Logger
	limiter *worker.Limiter
	service *predict.Client
	cache   cache.Cache // nil when caching is off
}

func newServices() (*services, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)
	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)

	client, err := predict.NewClient(cfg.Service, limiter, logger)
	if err != nil {
		return nil, err
	}

	s := &services{cfg: cfg, logger: logger, limiter: limiter, service: client}
	if cfg.Cache.Enabled {
		dir, err := cacheDir(cfg.Cache.Dir)
		if err != nil {
			logger.Warn("suggestion cache disabled", "error", err)
		} else {
			s.cache = cache.NewLayeredCache(cfg.Cache.MemoryTTL, dir, cfg.Cache.DiskTTL)
		}
	}
	return s, nil
}

func cacheDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("find cache directory: %w", err)
	}
	return filepath.Join(base, "storyqa"), nil
}

// evaluator scores stories through the prediction service
func (s *services) evaluator() *evaluate.Evaluator {
	return evaluate.NewEvaluator(s.service)
}

// orchestrator fans batch evaluation out over the configured worker count
func (s *services) orchestrator(workers int) *evaluate.Orchestrator {
	if workers < 0 {
		workers = s.cfg.Concurrency.Workers
	}
	return evaluate.NewOrchestrator(s.evaluator(), workers, s.logger)
}

// suggester picks the suggestion source: the service endpoint, or a
// local LLM provider when local is set
func (s *services) suggester(local bool) (suggest.Client, error) {
	if !local {
		return s.service, nil
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(s.cfg.LLM, s.cfg.Service))
	if err != nil {
		return nil, fmt.Errorf("create LLM provider: %w", err)
	}
	if provider == nil {
		return nil, &model.ValidationError{Field: "llm.provider", Message: "set llm.provider (openai, anthropic or ollama) to generate suggestions locally"}
	}
	return llm.NewGenerator(provider, s.cfg.LLM.MaxTokens, s.logger), nil
}

// suggestions wraps client in a once-per-revision orchestrator
func (s *services) suggestions(client suggest.Client) *suggest.Orchestrator {
	opts := []suggest.Option{suggest.WithLogger(s.logger)}
	if s.cache != nil {
		opts = append(opts, suggest.WithCache(s.cache, s.cfg.Cache.DiskTTL))
	}
	return suggest.NewOrchestrator(client, opts...)
}

// jiraSession reads tracker credentials from config and env
func (s *services) jiraSession() (jira.Session, error) {
	session := jira.SessionFromConfig(s.cfg.Jira)
	if err := session.Validate(); err != nil {
		return jira.Session{}, err
	}
	return session, nil
}

func (s *services) jiraClient() (*jira.Client, error) {
	session, err := s.jiraSession()
	if err != nil {
		return nil, err
	}
	httpClient := util.NewHTTPClient(s.cfg.Service.Timeout, s.cfg.Service.HTTPProxy, s.cfg.Service.HTTPSProxy)
	return jira.NewClient(session, httpClient,
		jira.WithLimiter(s.limiter),
		jira.WithPageSize(s.cfg.Jira.PageSize),
		jira.WithUserAgent(s.cfg.Service.UserAgent),
		jira.WithLogger(s.logger),
	)
}
