package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/bdougie/emotion/internal/embeddings"
	"github.com/bdougie/emotion/internal/models"
)

const schemaSQL = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS video_analyses (
    id SERIAL PRIMARY KEY,
    video_name VARCHAR(255) NOT NULL,
    frames_found INTEGER NOT NULL,
    frames_analyzed INTEGER NOT NULL,
    dominant_emotion VARCHAR(32) NOT NULL,
    emotions JSONB NOT NULL,
    embedding vector(%d) NOT NULL,
    elapsed_ms BIGINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_video_analyses_created_at ON video_analyses(created_at);
`

// PostgresStorage records finished analyses in PostgreSQL with pgvector
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage connects, makes sure the schema exists and registers
// the vector type on every pooled connection.
func NewPostgresStorage(ctx context.Context, databaseURL string) (*PostgresStorage, error) {
	if err := InitSchema(ctx, databaseURL); err != nil {
		return nil, err
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

// Close closes the database connection
func (s *PostgresStorage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Record stores the aggregate of one video
func (s *PostgresStorage) Record(ctx context.Context, report *models.Report) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO video_analyses
        (video_name, frames_found, frames_analyzed, dominant_emotion, emotions, embedding, elapsed_ms, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		report.VideoName,
		report.FramesFound,
		report.FramesAnalyzed,
		embeddings.Dominant(report.Averaged),
		report.Averaged,
		embeddings.FromEmotions(report.Averaged),
		report.Elapsed.Milliseconds(),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store analysis: %w", err)
	}
	return nil
}

// InitSchema creates the vector extension and table if they don't exist
func InitSchema(ctx context.Context, databaseURL string) error {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, fmt.Sprintf(schemaSQL, embeddings.Dimensions)); err != nil {
		return fmt.Errorf("failed to create database schema: %w", err)
	}
	return nil
}
