package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"codelens/internal/graph"
	"codelens/internal/logging"

	_ "modernc.org/sqlite"
)

// SQLiteAdapter is a durable storage adapter over a single SQLite database.
// Entity and relationship metadata is stored as JSON text.
type SQLiteAdapter struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteAdapter opens (or creates) the database at path and initializes
// the schema. Use ":memory:" for an ephemeral database.
func NewSQLiteAdapter(path string) (*SQLiteAdapter, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewSQLiteAdapter")
	defer timer.Stop()

	logging.Store("Initializing SQLite adapter at path: %s", path)

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}

	a := &SQLiteAdapter{db: db, dbPath: path}
	if err := a.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("SQLite adapter ready")
	return a, nil
}

// initialize creates the required tables.
func (a *SQLiteAdapter) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entities (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		name TEXT NOT NULL,
		metadata TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(type);
	CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name);

	CREATE TABLE IF NOT EXISTS relationships (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		source_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		metadata TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(source_id);
	CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(target_id);
	CREATE INDEX IF NOT EXISTS idx_relationships_type ON relationships(type);
	`
	if _, err := a.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (a *SQLiteAdapter) Close() error {
	return a.db.Close()
}

func marshalMetadata(metadata map[string]interface{}) (string, error) {
	if len(metadata) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return string(raw), nil
}

func unmarshalMetadata(raw string) map[string]interface{} {
	if raw == "" {
		return nil
	}
	var metadata map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		// One corrupted row shouldn't fail a whole read, but don't fail silently.
		logging.StoreWarn("Metadata unmarshal failed: %v", err)
		return nil
	}
	return metadata
}

// StoreEntity inserts or replaces an entity.
func (a *SQLiteAdapter) StoreEntity(ctx context.Context, e graph.Entity) graph.OperationResult {
	if e.ID == "" {
		return graph.OperationResult{Error: "entity id must be non-empty"}
	}
	metaJSON, err := marshalMetadata(e.Metadata)
	if err != nil {
		return graph.OperationResult{Error: err.Error()}
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO entities (id, type, name, metadata) VALUES (?, ?, ?, ?)`,
		e.ID, e.Type, e.Name, metaJSON,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("StoreEntity %s failed: %v", e.ID, err)
		return graph.OperationResult{Error: err.Error()}
	}
	return graph.OperationResult{Success: true, Affected: 1}
}

// GetEntity returns the entity or (nil, nil) when absent.
func (a *SQLiteAdapter) GetEntity(ctx context.Context, id string) (*graph.Entity, error) {
	row := a.db.QueryRowContext(ctx, `SELECT id, type, name, metadata FROM entities WHERE id = ?`, id)

	var e graph.Entity
	var metaJSON sql.NullString
	if err := row.Scan(&e.ID, &e.Type, &e.Name, &metaJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	e.Metadata = unmarshalMetadata(metaJSON.String)
	return &e, nil
}

// UpdateEntity replaces the stored row with the merged copy provided by the caller.
func (a *SQLiteAdapter) UpdateEntity(ctx context.Context, id string, partial graph.Entity) graph.OperationResult {
	metaJSON, err := marshalMetadata(partial.Metadata)
	if err != nil {
		return graph.OperationResult{Error: err.Error()}
	}

	res, err := a.db.ExecContext(ctx,
		`UPDATE entities SET type = ?, name = ?, metadata = ? WHERE id = ?`,
		partial.Type, partial.Name, metaJSON, id,
	)
	if err != nil {
		return graph.OperationResult{Error: err.Error()}
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return graph.OperationResult{Error: fmt.Sprintf("entity not found: %s", id)}
	}
	return graph.OperationResult{Success: true, Affected: int(affected)}
}

// DeleteEntity removes an entity row.
func (a *SQLiteAdapter) DeleteEntity(ctx context.Context, id string) graph.OperationResult {
	res, err := a.db.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id)
	if err != nil {
		return graph.OperationResult{Error: err.Error()}
	}
	affected, _ := res.RowsAffected()
	return graph.OperationResult{Success: true, Affected: int(affected)}
}

// SearchEntities filters entities by the given criteria, ordered by id.
// When metadata criteria are present the candidate rows are filtered and
// paginated in Go; SQLite has no reliable typed JSON equality here.
func (a *SQLiteAdapter) SearchEntities(ctx context.Context, criteria graph.EntitySearch) ([]graph.Entity, error) {
	query := `SELECT id, type, name, metadata FROM entities WHERE 1=1`
	var args []interface{}

	if criteria.ID != "" {
		query += ` AND id = ?`
		args = append(args, criteria.ID)
	}
	if criteria.Type != "" {
		query += ` AND type = ?`
		args = append(args, criteria.Type)
	}
	if criteria.Name != "" {
		query += ` AND name = ?`
		args = append(args, criteria.Name)
	}
	if criteria.Query != "" {
		query += ` AND (LOWER(name) LIKE ? OR LOWER(COALESCE(metadata, '')) LIKE ?)`
		needle := "%" + escapeLike(criteria.Query) + "%"
		args = append(args, needle, needle)
	}
	query += ` ORDER BY id`

	goSideMetadata := len(criteria.Metadata) > 0
	if !goSideMetadata {
		if criteria.Limit > 0 {
			query += ` LIMIT ?`
			args = append(args, criteria.Limit)
			if criteria.Offset > 0 {
				query += ` OFFSET ?`
				args = append(args, criteria.Offset)
			}
		} else if criteria.Offset > 0 {
			query += ` LIMIT -1 OFFSET ?`
			args = append(args, criteria.Offset)
		}
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []graph.Entity
	for rows.Next() {
		var e graph.Entity
		var metaJSON sql.NullString
		if err := rows.Scan(&e.ID, &e.Type, &e.Name, &metaJSON); err != nil {
			logging.StoreWarn("Entity row scan failed: %v", err)
			continue
		}
		e.Metadata = unmarshalMetadata(metaJSON.String)
		if goSideMetadata && !metadataMatches(e.Metadata, criteria.Metadata) {
			continue
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if goSideMetadata {
		entities = paginate(entities, criteria.Limit, criteria.Offset)
	}
	return entities, nil
}

// StoreRelationship inserts or replaces a relationship.
func (a *SQLiteAdapter) StoreRelationship(ctx context.Context, r graph.Relationship) graph.OperationResult {
	if r.ID == "" {
		return graph.OperationResult{Error: "relationship id must be non-empty"}
	}
	metaJSON, err := marshalMetadata(r.Metadata)
	if err != nil {
		return graph.OperationResult{Error: err.Error()}
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO relationships (id, type, source_id, target_id, metadata) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Type, r.SourceID, r.TargetID, metaJSON,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("StoreRelationship %s failed: %v", r.ID, err)
		return graph.OperationResult{Error: err.Error()}
	}
	return graph.OperationResult{Success: true, Affected: 1}
}

// GetRelationship returns the relationship or (nil, nil) when absent.
func (a *SQLiteAdapter) GetRelationship(ctx context.Context, id string) (*graph.Relationship, error) {
	row := a.db.QueryRowContext(ctx,
		`SELECT id, type, source_id, target_id, metadata FROM relationships WHERE id = ?`, id)

	var r graph.Relationship
	var metaJSON sql.NullString
	if err := row.Scan(&r.ID, &r.Type, &r.SourceID, &r.TargetID, &metaJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	r.Metadata = unmarshalMetadata(metaJSON.String)
	return &r, nil
}

// DeleteRelationship removes a relationship row.
func (a *SQLiteAdapter) DeleteRelationship(ctx context.Context, id string) graph.OperationResult {
	res, err := a.db.ExecContext(ctx, `DELETE FROM relationships WHERE id = ?`, id)
	if err != nil {
		return graph.OperationResult{Error: err.Error()}
	}
	affected, _ := res.RowsAffected()
	return graph.OperationResult{Success: true, Affected: int(affected)}
}

// SearchRelationships filters relationships by the given criteria, ordered by id.
func (a *SQLiteAdapter) SearchRelationships(ctx context.Context, criteria graph.RelationshipSearch) ([]graph.Relationship, error) {
	query := `SELECT id, type, source_id, target_id, metadata FROM relationships WHERE 1=1`
	var args []interface{}

	if criteria.ID != "" {
		query += ` AND id = ?`
		args = append(args, criteria.ID)
	}
	if criteria.Type != "" {
		query += ` AND type = ?`
		args = append(args, criteria.Type)
	}
	if criteria.SourceID != "" {
		query += ` AND source_id = ?`
		args = append(args, criteria.SourceID)
	}
	if criteria.TargetID != "" {
		query += ` AND target_id = ?`
		args = append(args, criteria.TargetID)
	}
	query += ` ORDER BY id`

	goSideMetadata := len(criteria.Metadata) > 0
	if !goSideMetadata {
		if criteria.Limit > 0 {
			query += ` LIMIT ?`
			args = append(args, criteria.Limit)
			if criteria.Offset > 0 {
				query += ` OFFSET ?`
				args = append(args, criteria.Offset)
			}
		} else if criteria.Offset > 0 {
			query += ` LIMIT -1 OFFSET ?`
			args = append(args, criteria.Offset)
		}
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var relationships []graph.Relationship
	for rows.Next() {
		var r graph.Relationship
		var metaJSON sql.NullString
		if err := rows.Scan(&r.ID, &r.Type, &r.SourceID, &r.TargetID, &metaJSON); err != nil {
			logging.StoreWarn("Relationship row scan failed: %v", err)
			continue
		}
		r.Metadata = unmarshalMetadata(metaJSON.String)
		if goSideMetadata && !metadataMatches(r.Metadata, criteria.Metadata) {
			continue
		}
		relationships = append(relationships, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if goSideMetadata {
		relationships = paginate(relationships, criteria.Limit, criteria.Offset)
	}
	return relationships, nil
}

// Stats reports entity and relationship counts.
func (a *SQLiteAdapter) Stats(ctx context.Context) (graph.StorageStats, error) {
	var stats graph.StorageStats
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities`).Scan(&stats.EntityCount); err != nil {
		return stats, err
	}
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM relationships`).Scan(&stats.RelationshipCount); err != nil {
		return stats, err
	}
	return stats, nil
}

// Clear drops all rows from both tables.
func (a *SQLiteAdapter) Clear(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, `DELETE FROM relationships`); err != nil {
		return err
	}
	if _, err := a.db.ExecContext(ctx, `DELETE FROM entities`); err != nil {
		return err
	}
	logging.StoreDebug("SQLite adapter cleared")
	return nil
}

// AllEntities returns every entity, ordered by id.
func (a *SQLiteAdapter) AllEntities(ctx context.Context) ([]graph.Entity, error) {
	return a.SearchEntities(ctx, graph.EntitySearch{})
}

// AllRelationships returns every relationship, ordered by id.
func (a *SQLiteAdapter) AllRelationships(ctx context.Context) ([]graph.Relationship, error) {
	return a.SearchRelationships(ctx, graph.RelationshipSearch{})
}

// escapeLike lowercases the pattern to pair with LOWER() on the column and
// neutralizes LIKE wildcards in user input.
func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '%', '_':
			// Dropping the wildcard is safer than ESCAPE gymnastics for a
			// substring search.
			continue
		default:
			out = append(out, r)
		}
	}
	return strings.ToLower(string(out))
}
