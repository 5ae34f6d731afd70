package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/signup-gate/pkg/domain"
)

// RegistrationSessionsRepository stores registration sessions as JSONB rows
// and serializes updates with SELECT ... FOR UPDATE.
type RegistrationSessionsRepository struct {
	db      *sql.DB
	idleTTL time.Duration
	now     func() time.Time
}

// NewRegistrationSessionsRepository creates a new registration sessions
// repository. Sessions untouched for idleTTL are treated as absent.
func NewRegistrationSessionsRepository(db *sql.DB, idleTTL time.Duration) *RegistrationSessionsRepository {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	return &RegistrationSessionsRepository{db: db, idleTTL: idleTTL, now: time.Now}
}

// Load retrieves a live session.
func (r *RegistrationSessionsRepository) Load(ctx context.Context, id uuid.UUID) (*domain.RegistrationSession, error) {
	query := `
		SELECT state
		FROM registration_sessions
		WHERE id = $1 AND updated_at >= $2
	`
	var raw []byte
	err := r.db.QueryRowContext(ctx, query, id, r.cutoff()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return decodeSession(raw)
}

// Update locks the session row, applies fn and writes the result back in the
// same transaction. A missing or idle row starts from a fresh session. fn
// receives a context carrying the transaction, so repository writes made
// with it commit or roll back together with the session. When fn fails the
// transaction rolls back and fn's error is returned unwrapped.
func (r *RegistrationSessionsRepository) Update(ctx context.Context, id uuid.UUID, fn func(context.Context, *domain.RegistrationSession) error) (*domain.RegistrationSession, error) {
	var out *domain.RegistrationSession
	now := r.now().UTC()

	err := Tx(ctx, r.db, func(tx *sql.Tx) error {
		insert := `
			INSERT INTO registration_sessions (id, state, created_at, updated_at)
			VALUES ($1, $2, $3, $3)
			ON CONFLICT (id) DO NOTHING
		`
		fresh, err := encodeSession(domain.NewRegistrationSession(id, now))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insert, id, fresh, now); err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}

		var raw []byte
		var updatedAt time.Time
		err = tx.QueryRowContext(ctx,
			`SELECT state, updated_at FROM registration_sessions WHERE id = $1 FOR UPDATE`, id,
		).Scan(&raw, &updatedAt)
		if err != nil {
			return fmt.Errorf("failed to lock session: %w", err)
		}

		s := domain.NewRegistrationSession(id, now)
		if now.Sub(updatedAt) <= r.idleTTL {
			if s, err = decodeSession(raw); err != nil {
				return err
			}
		}

		if err := fn(WithTx(ctx, tx), s); err != nil {
			return err
		}
		s.UpdatedAt = now

		state, err := encodeSession(s)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE registration_sessions SET state = $2, updated_at = $3 WHERE id = $1`,
			id, state, now,
		); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a session.
func (r *RegistrationSessionsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM registration_sessions WHERE id = $1`, id)
	return err
}

// PurgeIdle deletes sessions idle longer than the idle TTL.
func (r *RegistrationSessionsRepository) PurgeIdle(ctx context.Context) (int, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM registration_sessions WHERE updated_at < $1`, r.cutoff())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *RegistrationSessionsRepository) cutoff() time.Time {
	return r.now().UTC().Add(-r.idleTTL)
}

func encodeSession(s *domain.RegistrationSession) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	return b, nil
}

func decodeSession(raw []byte) (*domain.RegistrationSession, error) {
	s := &domain.RegistrationSession{}
	if err := json.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return s, nil
}
