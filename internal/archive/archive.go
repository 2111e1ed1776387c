// Package archive keeps a local SQLite copy of confirmed messages so past
// conversations survive backend deletion and remain searchable offline.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/merchbot/console/internal/api"
	"github.com/merchbot/console/internal/logging"
)

// Archive is the local message archive. Writes are idempotent on the server
// message id, so replaying a history fetch never duplicates rows.
type Archive struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens (creating if needed) the archive database at path.
func Open(path string) (*Archive, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("archive path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to archive database: %w", err)
	}

	a := &Archive{db: db, logger: logging.Component("archive")}
	if err := a.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

// OpenInMemory opens a throwaway archive backed by memory.
func OpenInMemory() (*Archive, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}

	a := &Archive{db: db, logger: logging.Component("archive")}
	if err := a.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

// Close releases the underlying database.
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *Archive) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			peer_id TEXT NOT NULL,
			direction TEXT NOT NULL,
			text TEXT NOT NULL,
			sent_at TEXT NOT NULL,
			read_by_peer INTEGER NOT NULL DEFAULT 0,
			archived_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS messages_peer_idx ON messages(peer_id, sent_at)`,
	}

	for _, stmt := range statements {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize archive schema: %w", err)
		}
	}
	return nil
}

// RecordMessages upserts a batch of confirmed messages for one conversation.
func (a *Archive) RecordMessages(ctx context.Context, peerID string, messages []api.Message) error {
	if a == nil || a.db == nil {
		return errors.New("archive unavailable")
	}
	if strings.TrimSpace(peerID) == "" {
		return errors.New("peer id is required")
	}
	if len(messages) == 0 {
		return nil
	}

	archivedAt := time.Now().UTC().Format(time.RFC3339Nano)

	stmt, err := a.db.PrepareContext(ctx, `
		INSERT INTO messages (id, peer_id, direction, text, sent_at, read_by_peer, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			read_by_peer = excluded.read_by_peer
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare archive insert: %w", err)
	}
	defer stmt.Close()

	for _, msg := range messages {
		if msg.ID == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			msg.ID,
			peerID,
			string(msg.Direction),
			msg.Text,
			msg.SentAt.UTC().Format(time.RFC3339Nano),
			boolToInt(msg.ReadByPeer),
			archivedAt,
		); err != nil {
			return fmt.Errorf("failed to archive message: %w", err)
		}
	}
	return nil
}

// MessagesFor returns archived messages for one conversation in sent order.
func (a *Archive) MessagesFor(ctx context.Context, peerID string, limit int) ([]api.Message, error) {
	if a == nil || a.db == nil {
		return nil, errors.New("archive unavailable")
	}
	if limit <= 0 {
		limit = 500
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT id, peer_id, direction, text, sent_at, read_by_peer
		FROM messages
		WHERE peer_id = ?
		ORDER BY sent_at
		LIMIT ?
	`, peerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query archive: %w", err)
	}
	defer rows.Close()

	var messages []api.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating archive: %w", err)
	}
	return messages, nil
}

// Search returns archived messages whose text contains the query, newest first.
func (a *Archive) Search(ctx context.Context, query string, limit int) ([]api.Message, error) {
	if a == nil || a.db == nil {
		return nil, errors.New("archive unavailable")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query is required")
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT id, peer_id, direction, text, sent_at, read_by_peer
		FROM messages
		WHERE text LIKE ? ESCAPE '\'
		ORDER BY sent_at DESC
		LIMIT ?
	`, "%"+escapeLike(query)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search archive: %w", err)
	}
	defer rows.Close()

	var messages []api.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating archive: %w", err)
	}
	return messages, nil
}

// Count returns the total number of archived messages.
func (a *Archive) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count archived messages: %w", err)
	}
	return count, nil
}

func scanMessage(rows *sql.Rows) (api.Message, error) {
	var msg api.Message
	var direction, sentAt string
	var readByPeer int

	if err := rows.Scan(&msg.ID, &msg.PeerID, &direction, &msg.Text, &sentAt, &readByPeer); err != nil {
		return api.Message{}, fmt.Errorf("failed to scan archived message: %w", err)
	}

	msg.Direction = api.Direction(direction)
	msg.ReadByPeer = readByPeer != 0
	if t, err := time.Parse(time.RFC3339Nano, sentAt); err == nil {
		msg.SentAt = t
	}
	return msg, nil
}

func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
