package fakechallengerepo

import (
	"context"
	"sync"

	"github.com/kilnworks/go-admin-gate/challenge"
)

var _ challenge.Repo = (*FakeChallengeRepo)(nil)

type FakeChallengeRepo struct {
	challenges map[string]*challenge.Challenge
	lock       sync.RWMutex
}

func NewFakeChallengeRepo() *FakeChallengeRepo {
	return &FakeChallengeRepo{
		challenges: make(map[string]*challenge.Challenge),
	}
}

func key(channel challenge.Channel, address string) string {
	return string(channel) + "|" + address
}

func (r *FakeChallengeRepo) Upsert(_ context.Context, c *challenge.Challenge) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	copied := *c
	r.challenges[key(c.Channel, c.Address)] = &copied
	return nil
}

func (r *FakeChallengeRepo) Get(_ context.Context, channel challenge.Channel, address string) (*challenge.Challenge, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	c, ok := r.challenges[key(channel, address)]
	if !ok {
		return nil, challenge.ErrChallengeNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *FakeChallengeRepo) Consume(_ context.Context, channel challenge.Channel, address string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	c, ok := r.challenges[key(channel, address)]
	if !ok {
		return challenge.ErrChallengeNotFound
	}
	c.Consumed = true
	return nil
}

func (r *FakeChallengeRepo) Delete(_ context.Context, channel challenge.Channel, address string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	delete(r.challenges, key(channel, address))
	return nil
}
