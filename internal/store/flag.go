package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/structa-ai/verdict/internal/domain"
)

type FlagStore struct {
	db *pgxpool.Pool
}

func NewFlagStore(db *pgxpool.Pool) *FlagStore {
	return &FlagStore{db: db}
}

func (s *FlagStore) Create(ctx context.Context, f *domain.Flag) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO flags (id, type, severity, topic, message, evidence_ids, assumption_ids, inference_ids, decision_id, resolved, resolution_note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		f.ID, f.Type, f.Severity, f.Topic, f.Message, f.EvidenceIDs, f.AssumptionIDs,
		f.InferenceIDs, f.DecisionID, f.Resolved, f.ResolutionNote, f.CreatedAt,
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

func (s *FlagStore) GetByID(ctx context.Context, id string) (*domain.Flag, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, type, severity, topic, message, evidence_ids, assumption_ids, inference_ids, decision_id, resolved, resolution_note, created_at
		 FROM flags WHERE id = $1`,
		id,
	)
	f, err := scanFlag(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *FlagStore) ListOpen(ctx context.Context, limit int) ([]domain.Flag, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, type, severity, topic, message, evidence_ids, assumption_ids, inference_ids, decision_id, resolved, resolution_note, created_at
		 FROM flags WHERE resolved = FALSE
		 ORDER BY created_at
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFlags(rows)
}

func (s *FlagStore) ListByDecision(ctx context.Context, decisionID string) ([]domain.Flag, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, type, severity, topic, message, evidence_ids, assumption_ids, inference_ids, decision_id, resolved, resolution_note, created_at
		 FROM flags WHERE decision_id = $1
		 ORDER BY created_at`,
		decisionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFlags(rows)
}

func (s *FlagStore) SetResolved(ctx context.Context, id string, resolved bool, note string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE flags
		 SET resolved = $2,
		     resolution_note = CASE WHEN $3 = '' THEN resolution_note ELSE $3 END
		 WHERE id = $1`,
		id, resolved, note,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanFlag(row pgx.Row) (*domain.Flag, error) {
	f := &domain.Flag{}
	err := row.Scan(&f.ID, &f.Type, &f.Severity, &f.Topic, &f.Message, &f.EvidenceIDs,
		&f.AssumptionIDs, &f.InferenceIDs, &f.DecisionID, &f.Resolved, &f.ResolutionNote, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func collectFlags(rows pgx.Rows) ([]domain.Flag, error) {
	var flags []domain.Flag
	for rows.Next() {
		f, err := scanFlag(rows)
		if err != nil {
			return nil, err
		}
		flags = append(flags, *f)
	}
	return flags, rows.Err()
}
