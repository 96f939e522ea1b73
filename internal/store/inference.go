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

type InferenceStore struct {
	db *pgxpool.Pool
}

func NewInferenceStore(db *pgxpool.Pool) *InferenceStore {
	return &InferenceStore{db: db}
}

func (s *InferenceStore) Create(ctx context.Context, inf *domain.Inference) error {
	value, err := json.Marshal(inf.Value)
	if err != nil {
		return fmt.Errorf("marshal inference value: %w", err)
	}
	alternatives, err := json.Marshal(inf.Alternatives)
	if err != nil {
		return fmt.Errorf("marshal inference alternatives: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO inferences (id, topic, value, confidence, method, used_evidence, used_assumptions, explanation, alternatives, stage, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		inf.ID, inf.Topic, value, inf.Confidence, inf.Method, inf.UsedEvidence, inf.UsedAssumptions,
		inf.Explanation, alternatives, inf.Stage, inf.CreatedAt,
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

func (s *InferenceStore) GetByID(ctx context.Context, id string) (*domain.Inference, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, topic, value, confidence, method, used_evidence, used_assumptions, explanation, alternatives, stage, created_at
		 FROM inferences WHERE id = $1`,
		id,
	)
	inf, err := scanInference(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return inf, nil
}

func (s *InferenceStore) ListByTopic(ctx context.Context, topic string) ([]domain.Inference, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, topic, value, confidence, method, used_evidence, used_assumptions, explanation, alternatives, stage, created_at
		 FROM inferences WHERE topic = $1
		 ORDER BY created_at`,
		topic,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var inferences []domain.Inference
	for rows.Next() {
		inf, err := scanInference(rows)
		if err != nil {
			return nil, err
		}
		inferences = append(inferences, *inf)
	}
	return inferences, rows.Err()
}

func scanInference(row pgx.Row) (*domain.Inference, error) {
	inf := &domain.Inference{}
	var value, alternatives []byte

	err := row.Scan(&inf.ID, &inf.Topic, &value, &inf.Confidence, &inf.Method, &inf.UsedEvidence,
		&inf.UsedAssumptions, &inf.Explanation, &alternatives, &inf.Stage, &inf.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(value, &inf.Value); err != nil {
		return nil, fmt.Errorf("unmarshal inference value: %w", err)
	}
	if len(alternatives) > 0 {
		if err := json.Unmarshal(alternatives, &inf.Alternatives); err != nil {
			return nil, fmt.Errorf("unmarshal inference alternatives: %w", err)
		}
	}
	return inf, nil
}
