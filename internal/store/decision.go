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

type DecisionStore struct {
	db *pgxpool.Pool
}

func NewDecisionStore(db *pgxpool.Pool) *DecisionStore {
	return &DecisionStore{db: db}
}

func (s *DecisionStore) Create(ctx context.Context, d *domain.Decision) error {
	value, err := json.Marshal(d.SelectedValue)
	if err != nil {
		return fmt.Errorf("marshal decision value: %w", err)
	}
	policyUsed, err := json.Marshal(d.PolicyUsed)
	if err != nil {
		return fmt.Errorf("marshal decision policy snapshot: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO decisions (id, topic, selected_value, selected_inference_id, competing_inferences, confidence, method, justification, policy_used, stage, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		d.ID, d.Topic, value, d.SelectedInferenceID, d.CompetingInferences, d.Confidence,
		d.Method, d.Justification, policyUsed, d.Stage, d.CreatedAt,
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

func (s *DecisionStore) GetByID(ctx context.Context, id string) (*domain.Decision, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, topic, selected_value, selected_inference_id, competing_inferences, confidence, method, justification, policy_used, stage, created_at
		 FROM decisions WHERE id = $1`,
		id,
	)
	d, err := scanDecision(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

func (s *DecisionStore) ListByStage(ctx context.Context, stage string, limit int) ([]domain.Decision, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, topic, selected_value, selected_inference_id, competing_inferences, confidence, method, justification, policy_used, stage, created_at
		 FROM decisions WHERE stage = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		stage, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []domain.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, *d)
	}
	return decisions, rows.Err()
}

func scanDecision(row pgx.Row) (*domain.Decision, error) {
	d := &domain.Decision{}
	var value, policyUsed []byte

	err := row.Scan(&d.ID, &d.Topic, &value, &d.SelectedInferenceID, &d.CompetingInferences,
		&d.Confidence, &d.Method, &d.Justification, &policyUsed, &d.Stage, &d.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(value, &d.SelectedValue); err != nil {
		return nil, fmt.Errorf("unmarshal decision value: %w", err)
	}
	if err := json.Unmarshal(policyUsed, &d.PolicyUsed); err != nil {
		return nil, fmt.Errorf("unmarshal decision policy snapshot: %w", err)
	}
	return d, nil
}
