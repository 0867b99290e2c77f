package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kilnworks/go-admin-gate/challenge"
	"github.com/kilnworks/go-admin-gate/session"
	"github.com/kilnworks/go-admin-gate/throttle"
	"github.com/pkg/errors"
)

// ThrottleRepo persists throttle state in gate_throttle.
type ThrottleRepo struct {
	db *sql.DB
}

var _ throttle.Repo = (*ThrottleRepo)(nil)

func NewThrottleRepo(db *sql.DB) *ThrottleRepo {
	return &ThrottleRepo{db: db}
}

func (r *ThrottleRepo) Get(ctx context.Context, key string) (throttle.State, error) {
	var state throttle.State
	var lockedUntil sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT failures, locked_until
		FROM gate_throttle
		WHERE principal = $1
	`, key).Scan(&state.Failures, &lockedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return throttle.State{}, nil
		}
		return throttle.State{}, fmt.Errorf("query throttle state: %w", err)
	}
	if lockedUntil.Valid {
		state.LockedUntil = lockedUntil.Time.UTC()
	}
	return state, nil
}

func (r *ThrottleRepo) Upsert(ctx context.Context, key string, state throttle.State) error {
	var lockedUntil sql.NullTime
	if !state.LockedUntil.IsZero() {
		lockedUntil = sql.NullTime{Time: state.LockedUntil.UTC(), Valid: true}
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO gate_throttle (principal, failures, locked_until)
		VALUES ($1, $2, $3)
		ON CONFLICT (principal)
		DO UPDATE SET failures = $2, locked_until = $3
	`, key, state.Failures, lockedUntil); err != nil {
		return fmt.Errorf("upsert throttle state: %w", err)
	}
	return nil
}

func (r *ThrottleRepo) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM gate_throttle WHERE principal = $1`, key); err != nil {
		return fmt.Errorf("delete throttle state: %w", err)
	}
	return nil
}

// ChallengeRepo persists challenges in gate_challenges.
type ChallengeRepo struct {
	db *sql.DB
}

var _ challenge.Repo = (*ChallengeRepo)(nil)

func NewChallengeRepo(db *sql.DB) *ChallengeRepo {
	return &ChallengeRepo{db: db}
}

func (r *ChallengeRepo) Upsert(ctx context.Context, c *challenge.Challenge) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO gate_challenges (channel, address, id, code_hash, issued_at, expires_at, consumed)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (channel, address)
		DO UPDATE SET id = $3, code_hash = $4, issued_at = $5, expires_at = $6, consumed = $7
	`, string(c.Channel), c.Address, c.ID, c.CodeHash, c.IssuedAt.UTC(), c.ExpiresAt.UTC(), c.Consumed); err != nil {
		return fmt.Errorf("upsert challenge: %w", err)
	}
	return nil
}

func (r *ChallengeRepo) Get(ctx context.Context, ch challenge.Channel, address string) (*challenge.Challenge, error) {
	c := challenge.Challenge{Channel: ch, Address: address}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, code_hash, issued_at, expires_at, consumed
		FROM gate_challenges
		WHERE channel = $1 AND address = $2
	`, string(ch), address).Scan(&c.ID, &c.CodeHash, &c.IssuedAt, &c.ExpiresAt, &c.Consumed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, challenge.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("query challenge: %w", err)
	}
	return &c, nil
}

func (r *ChallengeRepo) Consume(ctx context.Context, ch challenge.Channel, address string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE gate_challenges SET consumed = TRUE
		WHERE channel = $1 AND address = $2
	`, string(ch), address)
	if err != nil {
		return fmt.Errorf("consume challenge: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume challenge rows affected: %w", err)
	}
	if affected == 0 {
		return challenge.ErrChallengeNotFound
	}
	return nil
}

func (r *ChallengeRepo) Delete(ctx context.Context, ch challenge.Channel, address string) error {
	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM gate_challenges WHERE channel = $1 AND address = $2
	`, string(ch), address); err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	return nil
}

// SessionRepo persists issued-session metadata in gate_sessions.
type SessionRepo struct {
	db *sql.DB
}

var _ session.Repo = (*SessionRepo)(nil)

func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) Upsert(ctx context.Context, s *session.Session) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO gate_sessions (jti, issued_at, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (jti)
		DO UPDATE SET issued_at = $2, expires_at = $3
	`, s.JTI, s.IssuedAt.UTC(), s.ExpiresAt.UTC()); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (r *SessionRepo) Get(ctx context.Context, jti string) (*session.Session, error) {
	s := session.Session{JTI: jti}

	err := r.db.QueryRowContext(ctx, `
		SELECT issued_at, expires_at
		FROM gate_sessions
		WHERE jti = $1
	`, jti).Scan(&s.IssuedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, session.ErrSessionInvalid
		}
		return nil, fmt.Errorf("query session: %w", err)
	}
	return &s, nil
}

func (r *SessionRepo) Delete(ctx context.Context, jti string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM gate_sessions WHERE jti = $1`, jti); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SessionRepo) DeleteExpired(ctx context.Context, before time.Time) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM gate_sessions WHERE expires_at < $1`, before.UTC()); err != nil {
		return fmt.Errorf("delete expired sessions: %w", err)
	}
	return nil
}
