package main

import (
	"context"
	"sync"

	"github.com/Fire-Hyun/naverPost-sub000/internal/config"
	"github.com/Fire-Hyun/naverPost-sub000/internal/editor"
	"github.com/Fire-Hyun/naverPost-sub000/internal/post"
	"github.com/Fire-Hyun/naverPost-sub000/internal/publish"
	"github.com/Fire-Hyun/naverPost-sub000/internal/session"
)

// publisherService backs the HTTP API. Publish calls are serialized: the
// browser profile is an exclusive resource and a second concurrent pipeline
// would deadlock on the profile lock anyway.
type publisherService struct {
	cfg      *config.Config
	catalog  *editor.Catalog
	attempts *publish.AttemptLog
	orch     *publish.Orchestrator

	mu sync.Mutex
}

func newPublisherService(cfg *config.Config, catalog *editor.Catalog, attempts *publish.AttemptLog) *publisherService {
	return &publisherService{
		cfg:      cfg,
		catalog:  catalog,
		attempts: attempts,
		orch:     publish.NewOrchestrator(cfg, catalog, attempts),
	}
}

func (s *publisherService) Publish(ctx context.Context, draft post.Draft) (*publish.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orch.Publish(ctx, draft)
}

// LoginStatus opens a short-lived session just to run login detection.
func (s *publisherService) LoginStatus(ctx context.Context) (session.LoginStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := session.New(s.cfg)
	if err := sess.Open(ctx); err != nil {
		return session.LoginStatus{}, err
	}
	defer sess.Close()
	return sess.EnsureLoggedIn(ctx)
}

func (s *publisherService) RecentAttempts(limit int) []publish.AttemptRecord {
	return s.attempts.Recent(limit)
}

func (s *publisherService) shutdown() {
	s.orch.RequestShutdown()
}
