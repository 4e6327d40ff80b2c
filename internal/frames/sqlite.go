package frames

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"archo/internal/logging"
)

// SQLiteStore persists frames in .archo/frames.db. Frame rows are append-only
// and keyed by frame id; the primary key plus ON CONFLICT DO NOTHING gives the
// idempotent put.
type SQLiteStore struct {
	conn   *sql.DB
	logger *logging.Logger
	dbPath string
}

const framesSchema = `
CREATE TABLE IF NOT EXISTS frames (
	frame_id      TEXT PRIMARY KEY,
	kind          TEXT NOT NULL,
	repo          TEXT NOT NULL,
	commit_sha    TEXT NOT NULL,
	scope_extra   TEXT NOT NULL DEFAULT '{}',
	inputs_hash   TEXT NOT NULL,
	payload       BLOB NOT NULL,
	part          INTEGER NOT NULL,
	total_parts   INTEGER NOT NULL,
	created_at    TEXT NOT NULL,
	payload_bytes INTEGER NOT NULL,
	encoded_bytes INTEGER NOT NULL,
	items         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_frames_kind_scope ON frames(kind, repo, commit_sha);
`

// OpenSQLiteStore opens or creates the frame database under dir/.archo.
func OpenSQLiteStore(dir string, logger *logging.Logger) (*SQLiteStore, error) {
	stateDir := filepath.Join(dir, ".archo")
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create .archo directory: %w", err)
	}

	dbPath := filepath.Join(stateDir, "frames.db")
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := conn.Exec(framesSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize frame schema: %w", err)
	}

	return &SQLiteStore{conn: conn, logger: logger, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Put implements Store. An existing frame id is left untouched and reported
// as Inserted=false.
func (s *SQLiteStore) Put(ctx context.Context, f Frame) (PutResult, error) {
	extra, err := json.Marshal(f.Scope.Extra)
	if err != nil {
		return PutResult{}, fmt.Errorf("marshal scope extra: %w", err)
	}

	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO frames (
			frame_id, kind, repo, commit_sha, scope_extra, inputs_hash,
			payload, part, total_parts, created_at,
			payload_bytes, encoded_bytes, items
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(frame_id) DO NOTHING
	`, f.FrameID, f.Kind, f.Scope.Repo, f.Scope.Commit, string(extra), f.InputsHash,
		f.Payload, f.Part, f.TotalParts, f.Timestamp.UTC().Format(time.RFC3339),
		f.Stats.PayloadBytes, f.Stats.EncodedBytes, f.Stats.Items)
	if err != nil {
		return PutResult{}, fmt.Errorf("failed to put frame %s: %w", f.FrameID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return PutResult{}, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return PutResult{FrameID: f.FrameID, Inserted: affected == 1}, nil
}

// Get implements Store. Frames are returned in (inputs_hash, part) order so a
// complete part set comes back contiguous and ordered. A limit <= 0 returns
// every matching frame; truncating a part set would make it look incomplete.
func (s *SQLiteStore) Get(ctx context.Context, kind string, scope Scope, limit int) ([]Frame, error) {
	if limit <= 0 {
		// SQLite treats a negative LIMIT as unbounded.
		limit = -1
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT frame_id, kind, repo, commit_sha, scope_extra, inputs_hash,
		       payload, part, total_parts, created_at,
		       payload_bytes, encoded_bytes, items
		FROM frames
		WHERE kind = ? AND repo = ? AND commit_sha = ?
		ORDER BY inputs_hash, part
		LIMIT ?
	`, kind, scope.Repo, scope.Commit, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	var out []Frame
	for rows.Next() {
		var f Frame
		var extra, createdAt string
		if err := rows.Scan(&f.FrameID, &f.Kind, &f.Scope.Repo, &f.Scope.Commit, &extra, &f.InputsHash,
			&f.Payload, &f.Part, &f.TotalParts, &createdAt,
			&f.Stats.PayloadBytes, &f.Stats.EncodedBytes, &f.Stats.Items); err != nil {
			return nil, fmt.Errorf("failed to scan frame row: %w", err)
		}
		if extra != "" && extra != "{}" && extra != "null" {
			if err := json.Unmarshal([]byte(extra), &f.Scope.Extra); err != nil {
				return nil, fmt.Errorf("frame %s: bad scope extra: %w", f.FrameID, err)
			}
		}
		if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
			f.Timestamp = ts
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
