// Package storage persists finished analysis results: structured rows into a
// relational database and optional markdown snapshots of each page's main
// content. Persistence is strictly best-effort from the pipeline's point of
// view; a sink failure never fails the analysis record.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	pq "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/boopin/seo-url-analyzer/internal/config"
	"github.com/boopin/seo-url-analyzer/pkg/types"
)

// RelationalStore persists one analysis result row per (run, url).
type RelationalStore interface {
	SaveResult(ctx context.Context, runID string, result *types.AnalysisResult) error
}

// Snapshotter writes a content snapshot of a successfully analyzed page.
type Snapshotter interface {
	Write(ctx context.Context, result *types.AnalysisResult, page *types.Page) error
}

// Pipeline fans a finished (result, page) pair out to the configured sinks.
type Pipeline struct {
	relational RelationalStore
	snapshots  Snapshotter
}

// NewPipeline constructs a storage pipeline; nil when no sink is configured.
func NewPipeline(rel RelationalStore, snap Snapshotter) *Pipeline {
	if rel == nil && snap == nil {
		return nil
	}
	return &Pipeline{relational: rel, snapshots: snap}
}

// Persist stores the result in every configured sink. Failed results are
// persisted relationally (the error row is part of the batch record) but
// never snapshotted.
func (p *Pipeline) Persist(ctx context.Context, runID string, result *types.AnalysisResult, page *types.Page) error {
	if p == nil {
		return nil
	}
	if result == nil {
		return errors.New("nil analysis result")
	}

	if p.relational != nil {
		if err := p.relational.SaveResult(ctx, runID, result); err != nil {
			return fmt.Errorf("relational store: %w", err)
		}
	}
	if p.snapshots != nil && !result.Failed() && page != nil {
		if err := p.snapshots.Write(ctx, result, page); err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
	}
	return nil
}

// SQLWriter stores analysis rows via database/sql. It speaks postgres and
// sqlite; the same upsert works on both, only the placeholder style differs.
type SQLWriter struct {
	db          *sql.DB
	driver      string
	autoMigrate bool
}

// NewSQLWriter opens the configured database and, for postgres, creates it
// when missing.
func NewSQLWriter(cfg config.StorageConfig) (*SQLWriter, error) {
	if cfg.Driver == "" || cfg.DSN == "" {
		return nil, errors.New("storage config missing driver or dsn")
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sql connection: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		if cfg.CreateIfMissing && shouldAttemptCreateDatabase(cfg.Driver, err) {
			_ = db.Close()
			if err := createDatabase(ctx, cfg); err != nil {
				return nil, err
			}
			db, err = sql.Open(cfg.Driver, cfg.DSN)
			if err != nil {
				return nil, fmt.Errorf("open sql connection: %w", err)
			}
			if err := db.PingContext(ctx); err != nil {
				return nil, fmt.Errorf("ping sql connection: %w", err)
			}
		} else {
			return nil, fmt.Errorf("ping sql connection: %w", err)
		}
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime.Duration > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime.Duration)
	}

	writer := &SQLWriter{
		db:          db,
		driver:      cfg.Driver,
		autoMigrate: cfg.AutoMigrate,
	}
	if cfg.Driver == "sqlite" {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	}
	if cfg.AutoMigrate {
		if err := writer.ensureSchema(context.Background()); err != nil {
			return nil, err
		}
	}
	return writer, nil
}

// newSQLWriterWithDB wraps an existing connection. Used by tests.
func newSQLWriterWithDB(db *sql.DB, driver string, autoMigrate bool) *SQLWriter {
	return &SQLWriter{db: db, driver: driver, autoMigrate: autoMigrate}
}

// SaveResult upserts one row keyed on (run_id, url).
func (s *SQLWriter) SaveResult(ctx context.Context, runID string, result *types.AnalysisResult) error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.upsertResult(ctx, runID, result); err != nil {
		if s.autoMigrate && isUndefinedTableErr(err) {
			if schemaErr := s.ensureSchema(ctx); schemaErr != nil {
				return fmt.Errorf("ensure schema: %w", schemaErr)
			}
			if retryErr := s.upsertResult(ctx, runID, result); retryErr != nil {
				return fmt.Errorf("insert result: %w", retryErr)
			}
			return nil
		}
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (s *SQLWriter) upsertResult(ctx context.Context, runID string, r *types.AnalysisResult) error {
	keywords, err := json.Marshal(r.Keywords)
	if err != nil {
		return fmt.Errorf("encode keywords: %w", err)
	}

	query := s.rebind(`
        INSERT INTO analysis_results (
            run_id, url, status, load_time_ms, ssl_valid, ssl_expires_at,
            mobile_friendly, language, word_count, readability,
            meta_title, meta_description,
            h1_count, h2_count, h3_count, h4_count, h5_count, h6_count,
            image_count, images_missing_alt,
            internal_link_count, external_link_count,
            keywords, analyzed_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
        ON CONFLICT (run_id, url) DO UPDATE SET
            status = EXCLUDED.status,
            load_time_ms = EXCLUDED.load_time_ms,
            ssl_valid = EXCLUDED.ssl_valid,
            ssl_expires_at = EXCLUDED.ssl_expires_at,
            mobile_friendly = EXCLUDED.mobile_friendly,
            language = EXCLUDED.language,
            word_count = EXCLUDED.word_count,
            readability = EXCLUDED.readability,
            meta_title = EXCLUDED.meta_title,
            meta_description = EXCLUDED.meta_description,
            h1_count = EXCLUDED.h1_count,
            h2_count = EXCLUDED.h2_count,
            h3_count = EXCLUDED.h3_count,
            h4_count = EXCLUDED.h4_count,
            h5_count = EXCLUDED.h5_count,
            h6_count = EXCLUDED.h6_count,
            image_count = EXCLUDED.image_count,
            images_missing_alt = EXCLUDED.images_missing_alt,
            internal_link_count = EXCLUDED.internal_link_count,
            external_link_count = EXCLUDED.external_link_count,
            keywords = EXCLUDED.keywords,
            analyzed_at = EXCLUDED.analyzed_at
    `)

	_, err = s.db.ExecContext(ctx, query,
		runID,
		r.URL,
		r.Status,
		nullInt64(r.LoadTimeMS),
		nullBool(r.SSLValid),
		nullTime(r.SSLExpiresAt),
		nullBool(r.MobileFriendly),
		r.Language,
		r.WordCount,
		r.Readability,
		r.MetaTitle,
		r.MetaDescription,
		r.HeadingCounts[0],
		r.HeadingCounts[1],
		r.HeadingCounts[2],
		r.HeadingCounts[3],
		r.HeadingCounts[4],
		r.HeadingCounts[5],
		r.ImageCount,
		r.ImagesMissingAlt,
		len(r.InternalLinks),
		len(r.ExternalLinks),
		string(keywords),
		time.Now().UTC(),
	)
	return err
}

// Close closes the underlying DB connection.
func (s *SQLWriter) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var placeholderPattern = regexp.MustCompile(`\$\d+`)

// rebind rewrites postgres-style placeholders for sqlite.
func (s *SQLWriter) rebind(query string) string {
	if s.driver != "sqlite" {
		return query
	}
	return placeholderPattern.ReplaceAllString(query, "?")
}

func shouldAttemptCreateDatabase(driver string, err error) bool {
	if !strings.EqualFold(driver, "postgres") {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "3D000"
	}
	return strings.Contains(strings.ToLower(err.Error()), "does not exist")
}

func createDatabase(ctx context.Context, cfg config.StorageConfig) error {
	parsed, err := url.Parse(cfg.DSN)
	if err != nil {
		return fmt.Errorf("parse dsn: %w", err)
	}
	dbName := strings.TrimPrefix(parsed.Path, "/")
	if dbName == "" {
		return errors.New("dsn missing database name")
	}
	if strings.EqualFold(dbName, "postgres") {
		return fmt.Errorf("target database %q cannot be auto-created", dbName)
	}
	parsed.Path = "/postgres"
	adminDSN := parsed.String()
	adminDB, err := sql.Open(cfg.Driver, adminDSN)
	if err != nil {
		return fmt.Errorf("connect admin database: %w", err)
	}
	defer adminDB.Close()
	if err := adminDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping admin database: %w", err)
	}
	stmt := fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(dbName))
	if _, err := adminDB.ExecContext(ctx, stmt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "42P04" {
			return nil
		}
		return fmt.Errorf("create database %q: %w", dbName, err)
	}
	return nil
}

func (s *SQLWriter) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil || !s.autoMigrate {
		return nil
	}
	schemaCtx := ctx
	if schemaCtx == nil || schemaCtx.Err() != nil {
		schemaCtx = context.Background()
	}
	schemaCtx, cancel := context.WithTimeout(schemaCtx, 10*time.Second)
	defer cancel()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_results (
		    run_id TEXT NOT NULL,
		    url TEXT NOT NULL,
		    status TEXT NOT NULL,
		    load_time_ms BIGINT,
		    ssl_valid BOOLEAN,
		    ssl_expires_at TIMESTAMP,
		    mobile_friendly BOOLEAN,
		    language TEXT,
		    word_count INT,
		    readability DOUBLE PRECISION,
		    meta_title TEXT,
		    meta_description TEXT,
		    h1_count INT,
		    h2_count INT,
		    h3_count INT,
		    h4_count INT,
		    h5_count INT,
		    h6_count INT,
		    image_count INT,
		    images_missing_alt INT,
		    internal_link_count INT,
		    external_link_count INT,
		    keywords TEXT,
		    analyzed_at TIMESTAMP,
		    PRIMARY KEY (run_id, url)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_results_analyzed_at ON analysis_results (analyzed_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(schemaCtx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func isUndefinedTableErr(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "42P01"
	}
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "relation") && strings.Contains(lower, "does not exist") {
		return true
	}
	return strings.Contains(lower, "no such table")
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}
