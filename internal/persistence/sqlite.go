package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ChuLiYu/beaver-engine/pkg/types"
)

// SQLiteStore is the default Store, backing the recovery path with a
// small embedded database instead of an ad-hoc file format.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	const schema = `CREATE TABLE IF NOT EXISTS tasks (
		id    TEXT PRIMARY KEY,
		token TEXT NOT NULL,
		url   TEXT NOT NULL,
		args  TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save persists one task descriptor, upserting by id. It is not part
// of the Store interface: it's how a running engine host writes the
// descriptors that a later restart's All() will recover.
func (s *SQLiteStore) Save(desc types.TaskDescriptor) error {
	args, err := json.Marshal(desc.Args)
	if err != nil {
		return fmt.Errorf("marshal task args: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO tasks (id, token, url, args) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET token=excluded.token, url=excluded.url, args=excluded.args`,
		desc.ID, desc.Token, desc.URL, string(args),
	)
	return err
}

func (s *SQLiteStore) All() (map[string]types.TaskDescriptor, error) {
	rows, err := s.db.Query(`SELECT id, token, url, args FROM tasks`)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	out := make(map[string]types.TaskDescriptor)
	for rows.Next() {
		var id, token, url, rawArgs string
		if err := rows.Scan(&id, &token, &url, &rawArgs); err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		var args map[string]interface{}
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return nil, fmt.Errorf("unmarshal task args for %s: %w", id, err)
		}
		out[id] = types.TaskDescriptor{ID: id, Token: token, URL: url, Args: args}
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Purge() error {
	_, err := s.db.Exec(`DELETE FROM tasks`)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
