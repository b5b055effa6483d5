// Package sqlite provides the persistent context store. Contexts and
// their chunks live in a SQLite database under the data directory;
// similarity scoring runs in-process over the stored text, reported as
// distance like a vector backend would.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/meridian-labs/ctxd/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/meridian-labs/ctxd/internal/core/domain"
	"github.com/meridian-labs/ctxd/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.ContextStorage = (*Store)(nil)

// Store is a SQLite-backed context store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.ctxd/data/contexts.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".ctxd", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "contexts.db")

	// WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db, path: dbPath}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// SaveContext stores or replaces a processed context and its chunks.
func (s *Store) SaveContext(ctx context.Context, pc *domain.ProcessedContext) error {
	if pc == nil || pc.ID == "" {
		return fmt.Errorf("saving context: %w", domain.ErrInvalidInput)
	}

	tagsJSON, err := json.Marshal(pc.Properties.Tags)
	if err != nil {
		return fmt.Errorf("marshalling tags: %w", err)
	}
	metadataJSON, err := json.Marshal(pc.Properties.AdditionalMetadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}
	extractedJSON, err := json.Marshal(pc.ExtractedData)
	if err != nil {
		return fmt.Errorf("marshalling extracted data: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO contexts
			(id, context_type, source, title, summary, content_path, content_format,
			 tags, additional_metadata, extracted_data, create_time, update_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			context_type = excluded.context_type,
			source = excluded.source,
			title = excluded.title,
			summary = excluded.summary,
			content_path = excluded.content_path,
			content_format = excluded.content_format,
			tags = excluded.tags,
			additional_metadata = excluded.additional_metadata,
			extracted_data = excluded.extracted_data,
			update_time = excluded.update_time
	`, pc.ID, string(pc.Properties.ContextType), string(pc.Properties.Source),
		pc.Properties.Title, pc.Properties.Summary, pc.Properties.ContentPath,
		string(pc.Properties.ContentFormat), string(tagsJSON), string(metadataJSON),
		string(extractedJSON), pc.Properties.CreateTime, pc.Properties.UpdateTime)
	if err != nil {
		return fmt.Errorf("saving context: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE context_id = ?", pc.ID); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (context_id, position, text, keywords, entities)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing chunk statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range pc.Chunks {
		keywordsJSON, err := json.Marshal(chunk.Keywords)
		if err != nil {
			return fmt.Errorf("marshalling chunk keywords: %w", err)
		}
		entitiesJSON, err := json.Marshal(chunk.Entities)
		if err != nil {
			return fmt.Errorf("marshalling chunk entities: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, pc.ID, chunk.Index, chunk.Text,
			string(keywordsJSON), string(entitiesJSON)); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetContextByID retrieves a context and its chunks.
func (s *Store) GetContextByID(ctx context.Context, id string) (*domain.ProcessedContext, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, context_type, source, title, summary, content_path, content_format,
		       tags, additional_metadata, extracted_data, create_time, update_time
		FROM contexts WHERE id = ?
	`, id)

	pc, err := scanContext(row)
	if err != nil {
		return nil, err
	}

	chunks, err := s.loadChunks(ctx, id)
	if err != nil {
		return nil, err
	}
	pc.Chunks = chunks

	return pc, nil
}

// DeleteContext removes a context; its chunks cascade.
func (s *Store) DeleteContext(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM contexts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting context: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("context %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Count returns the number of stored contexts.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM contexts").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting contexts: %w", err)
	}
	return count, nil
}

// SearchContext scores stored contexts against the query by token
// overlap over title, summary, tags and chunk text, and returns the topK
// closest. An empty query returns an unranked sample.
func (s *Store) SearchContext(ctx context.Context, query string, topK int, contextTypes []string) ([]driven.ContextHit, error) {
	if topK <= 0 {
		return nil, nil
	}

	sqlQuery := `
		SELECT c.id, c.context_type, c.title, c.summary, c.content_path, c.tags,
		       c.additional_metadata, c.extracted_data, c.create_time,
		       COALESCE(GROUP_CONCAT(ch.text, ' '), '')
		FROM contexts c
		LEFT JOIN chunks ch ON ch.context_id = c.id
	`
	var args []any
	if len(contextTypes) > 0 {
		placeholders := strings.Repeat("?,", len(contextTypes))
		sqlQuery += " WHERE c.context_type IN (" + placeholders[:len(placeholders)-1] + ")"
		for _, ct := range contextTypes {
			args = append(args, ct)
		}
	}
	sqlQuery += " GROUP BY c.id"

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("querying contexts: %w", err)
	}
	defer rows.Close()

	tokens := strings.Fields(strings.ToLower(query))
	var hits []driven.ContextHit //nolint:prealloc // size unknown from query

	for rows.Next() {
		var (
			id, contextType, title, summary, contentPath string
			tagsJSON, metadataJSON, extractedJSON        string
			createTime                                   time.Time
			chunkText                                    string
		)
		if err := rows.Scan(&id, &contextType, &title, &summary, &contentPath,
			&tagsJSON, &metadataJSON, &extractedJSON, &createTime, &chunkText); err != nil {
			return nil, fmt.Errorf("scanning context: %w", err)
		}

		var tags []string
		if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
			return nil, fmt.Errorf("unmarshalling tags: %w", err)
		}
		var extra map[string]any
		if err := json.Unmarshal([]byte(metadataJSON), &extra); err != nil {
			return nil, fmt.Errorf("unmarshalling metadata: %w", err)
		}
		var extracted domain.ExtractedData
		if err := json.Unmarshal([]byte(extractedJSON), &extracted); err != nil {
			return nil, fmt.Errorf("unmarshalling extracted data: %w", err)
		}

		text := strings.ToLower(title + " " + summary + " " +
			strings.Join(tags, " ") + " " + chunkText)

		hits = append(hits, driven.ContextHit{
			ID:       id,
			Distance: 1.0 - overlapScore(tokens, text),
			Metadata: hitMetadata(contextType, title, summary, contentPath, tags, extra, extracted, createTime),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating contexts: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *Store) loadChunks(ctx context.Context, contextID string) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, text, keywords, entities
		FROM chunks WHERE context_id = ?
		ORDER BY position
	`, contextID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunk domain.Chunk
		var keywordsJSON, entitiesJSON string
		if err := rows.Scan(&chunk.Index, &chunk.Text, &keywordsJSON, &entitiesJSON); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(keywordsJSON), &chunk.Keywords); err != nil {
			return nil, fmt.Errorf("unmarshalling chunk keywords: %w", err)
		}
		if err := json.Unmarshal([]byte(entitiesJSON), &chunk.Entities); err != nil {
			return nil, fmt.Errorf("unmarshalling chunk entities: %w", err)
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}

// scanContext scans a single context row without its chunks.
func scanContext(row *sql.Row) (*domain.ProcessedContext, error) {
	var pc domain.ProcessedContext
	var contextType, source, contentFormat string
	var tagsJSON, metadataJSON, extractedJSON string

	if err := row.Scan(&pc.ID, &contextType, &source,
		&pc.Properties.Title, &pc.Properties.Summary, &pc.Properties.ContentPath,
		&contentFormat, &tagsJSON, &metadataJSON, &extractedJSON,
		&pc.Properties.CreateTime, &pc.Properties.UpdateTime); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning context: %w", err)
	}

	pc.Properties.ContextType = domain.ContextType(contextType)
	pc.Properties.Source = domain.ContextSource(source)
	pc.Properties.ContentFormat = domain.ContentFormat(contentFormat)

	if err := json.Unmarshal([]byte(tagsJSON), &pc.Properties.Tags); err != nil {
		return nil, fmt.Errorf("unmarshalling tags: %w", err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &pc.Properties.AdditionalMetadata); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata: %w", err)
	}
	if err := json.Unmarshal([]byte(extractedJSON), &pc.ExtractedData); err != nil {
		return nil, fmt.Errorf("unmarshalling extracted data: %w", err)
	}

	return &pc, nil
}

// overlapScore is the fraction of query tokens present in the text.
func overlapScore(tokens []string, text string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	matched := 0
	for _, token := range tokens {
		if strings.Contains(text, token) {
			matched++
		}
	}
	return float64(matched) / float64(len(tokens))
}

// hitMetadata builds the metadata record the search service filters on.
func hitMetadata(
	contextType, title, summary, contentPath string,
	tags []string,
	extra map[string]any,
	extracted domain.ExtractedData,
	createTime time.Time,
) map[string]any {
	metadata := map[string]any{
		"context_type": contextType,
		"title":        title,
		"summary":      summary,
		"tags":         tags,
		"importance":   extracted.Importance,
	}

	if ext, ok := extra["file_extension"].(string); ok {
		metadata["file_extension"] = ext
	} else if contentPath != "" {
		metadata["file_extension"] = strings.ToLower(filepath.Ext(contentPath))
	}

	if created, ok := extra["created_time"].(string); ok {
		metadata["created_time"] = created
	} else if !createTime.IsZero() {
		metadata["created_time"] = createTime.Format(time.RFC3339)
	}

	return metadata
}
