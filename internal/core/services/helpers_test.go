package services

import (
	"context"
	"errors"
	"io"
	"sync"

	"userhub/internal/core/domain"
	"userhub/internal/core/ports"
	"userhub/internal/infrastructure/repositories/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Notification
}

func (p *recordingPublisher) record(n domain.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, n)
}

func (p *recordingPublisher) BroadcastCreated(user *domain.User) {
	p.record(domain.Notification{Type: domain.NotificationCreated, User: *user})
}

func (p *recordingPublisher) BroadcastUpdated(user *domain.User) {
	p.record(domain.Notification{Type: domain.NotificationUpdated, User: *user})
}

func (p *recordingPublisher) BroadcastDeleted(id domain.UserID) {
	p.record(domain.Notification{Type: domain.NotificationDeleted, User: domain.User{ID: id}})
}

func (p *recordingPublisher) Events() []domain.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Notification(nil), p.events...)
}

type recordingMetrics struct {
	mu       sync.Mutex
	ops      map[string]int
	batches  int
	created  int
	failures int
}

func (m *recordingMetrics) RecordUserOperation(op, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ops == nil {
		m.ops = map[string]int{}
	}
	m.ops[op+"/"+outcome]++
}

func (m *recordingMetrics) RecordBatch(created, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
	m.created += created
	m.failures += failed
}

func (m *recordingMetrics) count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ops[key]
}

// sliceSource replays requests and then either io.EOF or failWith.
type sliceSource struct {
	reqs     []*domain.CreateUserRequest
	failWith error
	pos      int
}

func (s *sliceSource) Recv() (*domain.CreateUserRequest, error) {
	if s.pos < len(s.reqs) {
		req := s.reqs[s.pos]
		s.pos++
		return req, nil
	}
	if s.failWith != nil {
		return nil, s.failWith
	}
	return nil, io.EOF
}

// failingRepository returns errStore from every write.
type failingRepository struct {
	ports.UserRepository
}

var errStore = errors.New("connection reset by peer")

func (failingRepository) Save(context.Context, *domain.User) (*domain.User, error) {
	return nil, errStore
}

type fixture struct {
	repo      ports.UserRepository
	publisher *recordingPublisher
	metrics   *recordingMetrics
	svc       ports.UserService
}

func newFixture() *fixture {
	return newFixtureWithRepo(memory.NewMemoryUserRepository())
}

func newFixtureWithRepo(repo ports.UserRepository) *fixture {
	f := &fixture{
		repo:      repo,
		publisher: &recordingPublisher{},
		metrics:   &recordingMetrics{},
	}
	f.svc = NewUserService(repo, NewUserValidator(repo), f.publisher, f.metrics, nil)
	return f
}
