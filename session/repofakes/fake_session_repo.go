package fakesessionrepo

import (
	"context"
	"sync"
	"time"

	"github.com/kilnworks/go-admin-gate/session"
)

var _ session.Repo = (*FakeSessionRepo)(nil)

type FakeSessionRepo struct {
	sessions map[string]*session.Session
	lock     sync.RWMutex
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		sessions: make(map[string]*session.Session),
	}
}

func (r *FakeSessionRepo) Upsert(_ context.Context, s *session.Session) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	copied := *s
	copied.Credential = "" // Metadata only, the credential is never stored
	r.sessions[s.JTI] = &copied
	return nil
}

func (r *FakeSessionRepo) Get(_ context.Context, jti string) (*session.Session, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	s, ok := r.sessions[jti]
	if !ok {
		return nil, session.ErrSessionInvalid
	}
	copied := *s
	return &copied, nil
}

func (r *FakeSessionRepo) Delete(_ context.Context, jti string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	delete(r.sessions, jti)
	return nil
}

func (r *FakeSessionRepo) DeleteExpired(_ context.Context, before time.Time) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	for jti, s := range r.sessions {
		if s.ExpiresAt.Before(before) {
			delete(r.sessions, jti)
		}
	}
	return nil
}
