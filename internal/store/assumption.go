package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/structa-ai/verdict/internal/domain"
)

type AssumptionStore struct {
	db *pgxpool.Pool
}

func NewAssumptionStore(db *pgxpool.Pool) *AssumptionStore {
	return &AssumptionStore{db: db}
}

func (s *AssumptionStore) Create(ctx context.Context, a *domain.Assumption) error {
	value, err := json.Marshal(a.Value)
	if err != nil {
		return fmt.Errorf("marshal assumption value: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO assumptions (id, key, value, basis, source, confidence, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.Key, value, a.Basis, a.Source, a.Confidence, a.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *AssumptionStore) GetByID(ctx context.Context, id string) (*domain.Assumption, error) {
	a := &domain.Assumption{}
	var value []byte

	err := s.db.QueryRow(ctx,
		`SELECT id, key, value, basis, source, confidence, created_at
		 FROM assumptions WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.Key, &value, &a.Basis, &a.Source, &a.Confidence, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(value, &a.Value); err != nil {
		return nil, fmt.Errorf("unmarshal assumption value: %w", err)
	}
	return a, nil
}
