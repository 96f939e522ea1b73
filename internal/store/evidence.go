package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/structa-ai/verdict/internal/domain"
)

type EvidenceStore struct {
	db *pgxpool.Pool
}

func NewEvidenceStore(db *pgxpool.Pool) *EvidenceStore {
	return &EvidenceStore{db: db}
}

func (s *EvidenceStore) Create(ctx context.Context, e *domain.Evidence) error {
	content, err := json.Marshal(e.Content)
	if err != nil {
		return fmt.Errorf("marshal evidence content: %w", err)
	}
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshal evidence metadata: %w", err)
	}

	var embedding *pgvector.Vector
	if len(e.Embedding) > 0 {
		v := pgvector.NewVector(e.Embedding)
		embedding = &v
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO evidence (id, type, document_id, page, extractor, extractor_confidence, content, metadata, embedding, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.Type, e.Source.DocumentID, e.Source.Page, e.Source.Extractor, e.Source.Confidence,
		content, metadata, embedding, e.CreatedAt,
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

func (s *EvidenceStore) GetByID(ctx context.Context, id string) (*domain.Evidence, error) {
	e := &domain.Evidence{}
	var content, metadata []byte
	var embedding *pgvector.Vector

	err := s.db.QueryRow(ctx,
		`SELECT id, type, document_id, page, extractor, extractor_confidence, content, metadata, embedding, created_at
		 FROM evidence WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.Type, &e.Source.DocumentID, &e.Source.Page, &e.Source.Extractor, &e.Source.Confidence,
		&content, &metadata, &embedding, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(content, &e.Content); err != nil {
		return nil, fmt.Errorf("unmarshal evidence content: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal evidence metadata: %w", err)
		}
	}
	if embedding != nil {
		e.Embedding = embedding.Slice()
	}
	return e, nil
}

// FindSimilar returns archived evidence ordered by cosine similarity to the
// given embedding.
func (s *EvidenceStore) FindSimilar(ctx context.Context, embedding []float32, limit int) ([]domain.EvidenceWithScore, error) {
	if limit <= 0 {
		limit = 10
	}
	vec := pgvector.NewVector(embedding)

	rows, err := s.db.Query(ctx,
		`SELECT id, type, document_id, page, extractor, extractor_confidence, content, metadata, created_at,
		        1 - (embedding <=> $1) AS score
		 FROM evidence
		 WHERE embedding IS NOT NULL
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		vec, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.EvidenceWithScore
	for rows.Next() {
		var ews domain.EvidenceWithScore
		var content, metadata []byte
		if err := rows.Scan(&ews.ID, &ews.Type, &ews.Source.DocumentID, &ews.Source.Page, &ews.Source.Extractor,
			&ews.Source.Confidence, &content, &metadata, &ews.CreatedAt, &ews.Score); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(content, &ews.Content); err != nil {
			return nil, fmt.Errorf("unmarshal evidence content: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &ews.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal evidence metadata: %w", err)
			}
		}
		results = append(results, ews)
	}
	return results, rows.Err()
}
