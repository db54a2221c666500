package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"dialogue/internal/domain"
	"dialogue/internal/port"
)

var (
	_ port.ConversationStore = (*SQLiteStore)(nil)
	_ port.Reembedder        = (*SQLiteStore)(nil)
)

// SQLiteStore keeps conversations in a SQLite table with the embedding as a
// JSON array column.
type SQLiteStore struct {
	conn *sql.DB
	opts options
}

func NewSQLiteStore(path string, opts ...Option) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// a single connection serialises writers
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	s := &SQLiteStore{conn: conn, opts: buildOptions(opts)}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uid TEXT UNIQUE,
			location_id TEXT NOT NULL DEFAULT '',
			character_a_id TEXT NOT NULL DEFAULT '',
			character_a_name TEXT NOT NULL DEFAULT '',
			character_b_id TEXT NOT NULL DEFAULT '',
			character_b_name TEXT NOT NULL DEFAULT '',
			dialogue TEXT NOT NULL,
			embedding TEXT NOT NULL,
			accuracy_a REAL,
			accuracy_b REAL,
			creativity REAL,
			notes TEXT,
			automated_score REAL NOT NULL,
			created_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS store_info (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			schema_version INTEGER NOT NULL DEFAULT 0,
			model TEXT NOT NULL DEFAULT '',
			dimension INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE INDEX IF NOT EXISTS idx_conversations_created_at ON conversations(created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.conn.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readSQLInfo(ctx context.Context, q queryer) (domain.StoreInfo, error) {
	var info domain.StoreInfo
	err := q.QueryRowContext(ctx,
		`SELECT schema_version, model, dimension FROM store_info WHERE id = 1`,
	).Scan(&info.SchemaVersion, &info.Model, &info.Dimension)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StoreInfo{}, nil
	}
	return info, err
}

func writeSQLInfo(ctx context.Context, tx *sql.Tx, info domain.StoreInfo) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO store_info (id, schema_version, model, dimension) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET schema_version = excluded.schema_version,
		   model = excluded.model, dimension = excluded.dimension`,
		info.SchemaVersion, info.Model, info.Dimension)
	return err
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func (s *SQLiteStore) Save(ctx context.Context, conv domain.Conversation) (uint64, error) {
	if err := conv.Validate(0); err != nil {
		return 0, err
	}

	embJSON, err := json.Marshal(conv.Embedding)
	if err != nil {
		return 0, persistErr("save conversation", err)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, persistErr("save conversation", err)
	}
	defer tx.Rollback()

	info, err := readSQLInfo(ctx, tx)
	if err != nil {
		return 0, persistErr("save conversation", err)
	}
	if info.Dimension == 0 {
		info.Dimension = len(conv.Embedding)
		if info.SchemaVersion == 0 {
			info.SchemaVersion = CurrentSchemaVersion
		}
		if err := writeSQLInfo(ctx, tx, info); err != nil {
			return 0, persistErr("save conversation", err)
		}
	} else if len(conv.Embedding) != info.Dimension {
		return 0, fmt.Errorf("save conversation: %w: expected %d, got %d", domain.ErrDimensionMismatch, info.Dimension, len(conv.Embedding))
	}

	uid := sql.NullString{String: conv.UID, Valid: conv.UID != ""}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (uid, location_id, character_a_id, character_a_name,
			character_b_id, character_b_name, dialogue, embedding,
			accuracy_a, accuracy_b, creativity, notes, automated_score, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uid, conv.LocationID, conv.CharacterAID, conv.CharacterAName,
		conv.CharacterBID, conv.CharacterBName, conv.Dialogue, string(embJSON),
		nullFloat(conv.Feedback.AccuracyA), nullFloat(conv.Feedback.AccuracyB),
		nullFloat(conv.Feedback.Creativity), nullString(conv.Feedback.Notes),
		conv.AutomatedScore, conv.CreatedAt.UnixNano(),
	)
	if err != nil {
		var sqlErr sqlite3.Error
		if errors.As(err, &sqlErr) && sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return 0, fmt.Errorf("save conversation: %w: uid %s", domain.ErrDuplicate, conv.UID)
		}
		return 0, persistErr("save conversation", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, persistErr("save conversation", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, persistErr("save conversation", err)
	}
	return uint64(id), nil
}

func (s *SQLiteStore) UpdateFeedback(ctx context.Context, id uint64, update domain.FeedbackUpdate) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("update feedback", err)
	}
	defer tx.Rollback()

	var accA, accB, creativity sql.NullFloat64
	var notes sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT accuracy_a, accuracy_b, creativity, notes FROM conversations WHERE id = ?`, int64(id),
	).Scan(&accA, &accB, &creativity, &notes)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update feedback: %w: %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return persistErr("update feedback", err)
	}

	fb := update.Apply(domain.Feedback{
		AccuracyA:  floatPtr(accA),
		AccuracyB:  floatPtr(accB),
		Creativity: floatPtr(creativity),
		Notes:      stringPtr(notes),
	})
	if err := fb.Validate(); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET accuracy_a = ?, accuracy_b = ?, creativity = ?, notes = ? WHERE id = ?`,
		nullFloat(fb.AccuracyA), nullFloat(fb.AccuracyB), nullFloat(fb.Creativity), nullString(fb.Notes), int64(id))
	if err != nil {
		return persistErr("update feedback", err)
	}
	return persistErr("update feedback", tx.Commit())
}

const selectConversation = `SELECT id, uid, location_id, character_a_id, character_a_name,
	character_b_id, character_b_name, dialogue, embedding,
	accuracy_a, accuracy_b, creativity, notes, automated_score, created_at
	FROM conversations`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanConversation returns the row's id alongside any decode error so the
// caller can report which record was skipped.
func scanConversation(row rowScanner, dimension int) (uint64, domain.Conversation, error) {
	var (
		id                     int64
		uid                    sql.NullString
		embJSON                string
		accA, accB, creativity sql.NullFloat64
		notes                  sql.NullString
		createdAt              int64
		conv                   domain.Conversation
	)
	err := row.Scan(&id, &uid, &conv.LocationID, &conv.CharacterAID, &conv.CharacterAName,
		&conv.CharacterBID, &conv.CharacterBName, &conv.Dialogue, &embJSON,
		&accA, &accB, &creativity, &notes, &conv.AutomatedScore, &createdAt)
	if err != nil {
		return 0, conv, err
	}

	if err := json.Unmarshal([]byte(embJSON), &conv.Embedding); err != nil {
		return uint64(id), conv, fmt.Errorf("%w: conversation %d: %v", domain.ErrCorruptRecord, id, err)
	}
	if len(conv.Embedding) == 0 || (dimension > 0 && len(conv.Embedding) != dimension) {
		return uint64(id), conv, fmt.Errorf("%w: conversation %d has %d-dim embedding, store is %d-dim",
			domain.ErrCorruptRecord, id, len(conv.Embedding), dimension)
	}

	conv.ID = uint64(id)
	conv.UID = uid.String
	conv.Feedback = domain.Feedback{
		AccuracyA:  floatPtr(accA),
		AccuracyB:  floatPtr(accB),
		Creativity: floatPtr(creativity),
		Notes:      stringPtr(notes),
	}
	conv.CreatedAt = time.Unix(0, createdAt).UTC()
	return conv.ID, conv, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id uint64) (domain.Conversation, error) {
	info, err := readSQLInfo(ctx, s.conn)
	if err != nil {
		return domain.Conversation{}, persistErr("get conversation", err)
	}

	row := s.conn.QueryRowContext(ctx, selectConversation+` WHERE id = ?`, int64(id))
	_, conv, err := scanConversation(row, info.Dimension)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Conversation{}, fmt.Errorf("get conversation: %w: %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.Conversation{}, persistErr("get conversation", err)
	}
	return conv, nil
}

func (s *SQLiteStore) list(ctx context.Context, op, suffix string, args ...any) ([]domain.Conversation, error) {
	info, err := readSQLInfo(ctx, s.conn)
	if err != nil {
		return nil, persistErr(op, err)
	}

	rows, err := s.conn.QueryContext(ctx, selectConversation+suffix, args...)
	if err != nil {
		return nil, persistErr(op, err)
	}
	defer rows.Close()

	convs := []domain.Conversation{}
	for rows.Next() {
		id, conv, err := scanConversation(rows, info.Dimension)
		if err != nil {
			if errors.Is(err, domain.ErrCorruptRecord) {
				s.opts.onCorrupt(id, err)
				continue
			}
			return nil, persistErr(op, err)
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr(op, err)
	}
	return convs, nil
}

func (s *SQLiteStore) ListAll(ctx context.Context) ([]domain.Conversation, error) {
	return s.list(ctx, "list conversations", ` ORDER BY id ASC`)
}

func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]domain.Conversation, error) {
	if limit <= 0 {
		return s.list(ctx, "list recent conversations", ` ORDER BY id DESC`)
	}
	return s.list(ctx, "list recent conversations", ` ORDER BY id DESC LIMIT ?`, limit)
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&n)
	return n, persistErr("count conversations", err)
}

func (s *SQLiteStore) Info(ctx context.Context) (domain.StoreInfo, error) {
	info, err := readSQLInfo(ctx, s.conn)
	return info, persistErr("read store info", err)
}

func (s *SQLiteStore) SetInfo(ctx context.Context, info domain.StoreInfo) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("write store info", err)
	}
	defer tx.Rollback()

	if err := writeSQLInfo(ctx, tx, info); err != nil {
		return persistErr("write store info", err)
	}
	return persistErr("write store info", tx.Commit())
}

func (s *SQLiteStore) ReplaceEmbeddings(ctx context.Context, info domain.StoreInfo, embeddings map[uint64][]float32) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("replace embeddings", err)
	}
	defer tx.Rollback()

	for id, emb := range embeddings {
		if len(emb) != info.Dimension {
			return fmt.Errorf("replace embeddings: %w: conversation %d: expected %d, got %d",
				domain.ErrDimensionMismatch, id, info.Dimension, len(emb))
		}
		data, err := json.Marshal(emb)
		if err != nil {
			return persistErr("replace embeddings", err)
		}
		res, err := tx.ExecContext(ctx, `UPDATE conversations SET embedding = ? WHERE id = ?`, string(data), int64(id))
		if err != nil {
			return persistErr("replace embeddings", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("replace embeddings: %w: %d", domain.ErrNotFound, id)
		}
	}

	if err := writeSQLInfo(ctx, tx, info); err != nil {
		return persistErr("replace embeddings", err)
	}
	return persistErr("replace embeddings", tx.Commit())
}

func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
