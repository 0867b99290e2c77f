package fakethrottlerepo

import (
	"context"
	"sync"

	"github.com/kilnworks/go-admin-gate/throttle"
)

var _ throttle.Repo = (*FakeThrottleRepo)(nil)

type FakeThrottleRepo struct {
	states map[string]throttle.State
	lock   sync.RWMutex
}

func NewFakeThrottleRepo() *FakeThrottleRepo {
	return &FakeThrottleRepo{
		states: make(map[string]throttle.State),
	}
}

func (r *FakeThrottleRepo) Get(_ context.Context, key string) (throttle.State, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return r.states[key], nil
}

func (r *FakeThrottleRepo) Upsert(_ context.Context, key string, state throttle.State) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.states[key] = state
	return nil
}

func (r *FakeThrottleRepo) Delete(_ context.Context, key string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	delete(r.states, key)
	return nil
}
