package sessions

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/pe200012/llmq-horizon/pkg/models"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS messages (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	thread_id  TEXT NOT NULL,
	payload    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, seq);
`

// SQLiteHistory is a History persisted to a SQLite database, so transcripts
// survive restarts. Each thread keeps at most maxPerThread messages.
type SQLiteHistory struct {
	mu           sync.Mutex
	db           *sql.DB
	maxPerThread int
}

// NewSQLiteHistory opens (creating if needed) the database at path.
func NewSQLiteHistory(path string, maxPerThread int) (*SQLiteHistory, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return &SQLiteHistory{db: db, maxPerThread: maxPerThread}, nil
}

// Close releases the underlying database.
func (h *SQLiteHistory) Close() error {
	return h.db.Close()
}

func (h *SQLiteHistory) Append(threadID string, msgs ...*models.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	defer tx.Rollback()

	for _, msg := range msgs {
		payload, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO messages (thread_id, payload) VALUES (?, ?)`,
			threadID, string(payload),
		); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
	}

	if h.maxPerThread > 0 {
		if _, err := tx.Exec(
			`DELETE FROM messages WHERE thread_id = ? AND seq NOT IN (
				SELECT seq FROM messages WHERE thread_id = ? ORDER BY seq DESC LIMIT ?
			)`,
			threadID, threadID, h.maxPerThread,
		); err != nil {
			return fmt.Errorf("trim history: %w", err)
		}
	}
	return tx.Commit()
}

func (h *SQLiteHistory) Messages(threadID string) ([]*models.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rows, err := h.db.Query(
		`SELECT payload FROM messages WHERE thread_id = ? ORDER BY seq`, threadID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var out []*models.Message
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
		var msg models.Message
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		out = append(out, &msg)
	}
	return out, rows.Err()
}

func (h *SQLiteHistory) Clear(threadID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := h.db.Exec(`DELETE FROM messages WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}
