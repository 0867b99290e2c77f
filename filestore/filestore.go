// Package filestore persists gate state (throttle counters, challenges,
// sessions) in a single JSON file so it survives restarts on deployments
// without a database.
package filestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kilnworks/go-admin-gate/challenge"
	"github.com/kilnworks/go-admin-gate/session"
	"github.com/kilnworks/go-admin-gate/throttle"
	"github.com/pkg/errors"
)

type gateState struct {
	Throttle   map[string]throttle.State       `json:"throttle"`
	Challenges map[string]*challenge.Challenge `json:"challenges"` // keyed channel|address
	Sessions   map[string]*session.Session     `json:"sessions"`   // keyed jti
}

// Store owns the state file. The repo views returned by ThrottleRepo,
// ChallengeRepo and SessionRepo share one mutex and flush every mutation
// to disk.
type Store struct {
	path  string
	mu    sync.Mutex
	state gateState
}

// Open loads the state file, creating an empty store when none exists.
func Open(path string) (*Store, error) {
	s := &Store{
		path: path,
		state: gateState{
			Throttle:   make(map[string]throttle.State),
			Challenges: make(map[string]*challenge.Challenge),
			Sessions:   make(map[string]*session.Session),
		},
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, errors.Wrap(err, "[filestore.Open] os.ReadFile")
	}
	if err := json.Unmarshal(raw, &s.state); err != nil {
		return nil, errors.Wrap(err, "[filestore.Open] json.Unmarshal")
	}
	return s, nil
}

// save writes the state atomically: temp file then rename. Callers must
// hold the mutex.
func (s *Store) save() error {
	raw, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "[filestore.save] json.MarshalIndent")
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, "[filestore.save] os.MkdirAll")
	}
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return errors.Wrap(err, "[filestore.save] os.WriteFile")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "[filestore.save] os.Rename")
	}
	return nil
}

func challengeKey(ch challenge.Channel, address string) string {
	return string(ch) + "|" + address
}

// ThrottleRepo returns the throttle.Repo view of the store.
func (s *Store) ThrottleRepo() throttle.Repo { return &throttleRepo{store: s} }

// ChallengeRepo returns the challenge.Repo view of the store.
func (s *Store) ChallengeRepo() challenge.Repo { return &challengeRepo{store: s} }

// SessionRepo returns the session.Repo view of the store.
func (s *Store) SessionRepo() session.Repo { return &sessionRepo{store: s} }

type throttleRepo struct{ store *Store }

var _ throttle.Repo = (*throttleRepo)(nil)

func (r *throttleRepo) Get(_ context.Context, key string) (throttle.State, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.state.Throttle[key], nil
}

func (r *throttleRepo) Upsert(_ context.Context, key string, state throttle.State) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.state.Throttle[key] = state
	return r.store.save()
}

func (r *throttleRepo) Delete(_ context.Context, key string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	delete(r.store.state.Throttle, key)
	return r.store.save()
}

type challengeRepo struct{ store *Store }

var _ challenge.Repo = (*challengeRepo)(nil)

func (r *challengeRepo) Upsert(_ context.Context, c *challenge.Challenge) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	copied := *c
	r.store.state.Challenges[challengeKey(c.Channel, c.Address)] = &copied
	return r.store.save()
}

func (r *challengeRepo) Get(_ context.Context, ch challenge.Channel, address string) (*challenge.Challenge, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	c, ok := r.store.state.Challenges[challengeKey(ch, address)]
	if !ok {
		return nil, challenge.ErrChallengeNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *challengeRepo) Consume(_ context.Context, ch challenge.Channel, address string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	c, ok := r.store.state.Challenges[challengeKey(ch, address)]
	if !ok {
		return challenge.ErrChallengeNotFound
	}
	c.Consumed = true
	return r.store.save()
}

func (r *challengeRepo) Delete(_ context.Context, ch challenge.Channel, address string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	delete(r.store.state.Challenges, challengeKey(ch, address))
	return r.store.save()
}

type sessionRepo struct{ store *Store }

var _ session.Repo = (*sessionRepo)(nil)

func (r *sessionRepo) Upsert(_ context.Context, sess *session.Session) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	copied := *sess
	copied.Credential = "" // Metadata only, the credential is never stored
	r.store.state.Sessions[sess.JTI] = &copied
	return r.store.save()
}

func (r *sessionRepo) Get(_ context.Context, jti string) (*session.Session, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	sess, ok := r.store.state.Sessions[jti]
	if !ok {
		return nil, session.ErrSessionInvalid
	}
	copied := *sess
	return &copied, nil
}

func (r *sessionRepo) Delete(_ context.Context, jti string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	delete(r.store.state.Sessions, jti)
	return r.store.save()
}

func (r *sessionRepo) DeleteExpired(_ context.Context, before time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	changed := false
	for jti, sess := range r.store.state.Sessions {
		if sess.ExpiresAt.Before(before) {
			delete(r.store.state.Sessions, jti)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return r.store.save()
}
