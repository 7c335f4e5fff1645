package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgallion1/bidrank/internal/config"
	"github.com/dgallion1/bidrank/internal/rater"
	"github.com/dgallion1/bidrank/internal/store"
)

// ErrNoAPIKey means neither the environment nor the key store holds a key
// for the configured rating provider.
var ErrNoAPIKey = errors.New("no api key configured for rating provider")

// KeyLookup finds a stored API key for a service.
type KeyLookup interface {
	APIKey(ctx context.Context, service string) (string, error)
}

// RaterSource builds raters for the configured provider. A rater is reused
// until its key changes so one rate limiter and one stats window span jobs.
type RaterSource struct {
	cfg   config.Config
	keys  KeyLookup
	stats *rater.LLMStats
	log   *slog.Logger

	// newClient is swapped in tests.
	newClient func(ctx context.Context, provider, apiKey, model, baseURL string) (rater.Client, error)

	mu      sync.Mutex
	key     string
	current *rater.Rater
}

func NewRaterSource(cfg config.Config, keys KeyLookup, stats *rater.LLMStats, log *slog.Logger) *RaterSource {
	if stats == nil {
		stats = rater.NewLLMStats(0)
	}
	return &RaterSource{
		cfg:       cfg,
		keys:      keys,
		stats:     stats,
		log:       log,
		newClient: rater.NewClient,
	}
}

// Provider is the configured rating provider name.
func (s *RaterSource) Provider() string { return s.cfg.RaterProvider }

// Stats returns the latency tracker shared by every rater built here.
func (s *RaterSource) Stats() *rater.LLMStats { return s.stats }

// Get returns a rater. The environment key wins over a stored one.
func (s *RaterSource) Get(ctx context.Context) (*rater.Rater, error) {
	key := s.cfg.RaterAPIKey
	if key == "" && s.keys != nil {
		stored, err := s.keys.APIKey(ctx, s.cfg.RaterProvider)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("lookup %s key: %w", s.cfg.RaterProvider, err)
		}
		key = stored
	}
	if key == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoAPIKey, s.cfg.RaterProvider)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.key == key {
		return s.current, nil
	}
	client, err := s.newClient(ctx, s.cfg.RaterProvider, key, s.cfg.RaterModel, s.cfg.RaterBaseURL)
	if err != nil {
		return nil, err
	}
	opts := s.cfg.RaterOptions()
	opts.Stats = s.stats
	opts.Logger = s.log
	s.current = rater.New(client, opts)
	s.key = key
	return s.current, nil
}
