package driver

import (
	"database/sql"
	"time"

	"go.uber.org/zap"

	// embedded sqlite driver, no cgo
	_ "modernc.org/sqlite"
)

// SQLiteStore durable local KV storage backed by an embedded sqlite file.
//
// this is the agent's default persistence: state must survive process
// restarts without assuming any server-side database is reachable
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ KeyValueDB = &SQLiteStore{}

// NewSQLiteStore open (and if needed initialize) the agent state database
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single writer keeps the whole-blob read-modify-write cycle atomic
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS agent_state (
    k          TEXT PRIMARY KEY,
    v          TEXT NOT NULL,
    expires_at INTEGER NOT NULL DEFAULT 0
);
	`); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Set implement KeyValueDB
func (s *SQLiteStore) Set(key string, value string) error {
	return s.set(key, value, 0)
}

// SetEX implement KeyValueDB
func (s *SQLiteStore) SetEX(key string, value string, expiration time.Duration) error {
	return s.set(key, value, time.Now().Add(expiration).Unix())
}

func (s *SQLiteStore) set(key, value string, expiresAt int64) error {
	_, err := s.db.Exec(`
INSERT INTO agent_state (k, v, expires_at) VALUES ($1, $2, $3)
ON CONFLICT(k) DO UPDATE SET v = excluded.v, expires_at = excluded.expires_at;
	`, key, value, expiresAt)
	if err != nil {
		s.logger.Error(err.Error(), zap.String("db.method", "Set"), zap.String("db.key", key))
	}
	return err
}

// Get implement KeyValueDB
func (s *SQLiteStore) Get(key string) (string, error) {
	var (
		value     string
		expiresAt int64
	)
	err := s.db.QueryRow(`SELECT v, expires_at FROM agent_state WHERE k = $1;`, key).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return "", ErrKeyNotFound
	}
	if err != nil {
		s.logger.Error(err.Error(), zap.String("db.method", "Get"), zap.String("db.key", key))
		return "", err
	}
	if expiresAt > 0 && time.Now().Unix() >= expiresAt {
		s.Del(key)
		return "", ErrKeyNotFound
	}
	return value, nil
}

// Del implement KeyValueDB
func (s *SQLiteStore) Del(key string) error {
	_, err := s.db.Exec(`DELETE FROM agent_state WHERE k = $1;`, key)
	if err != nil {
		s.logger.Error(err.Error(), zap.String("db.method", "Del"), zap.String("db.key", key))
	}
	return err
}

// Exists implement KeyValueDB
func (s *SQLiteStore) Exists(key string) (bool, error) {
	if _, err := s.Get(key); err != nil {
		if err == ErrKeyNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Ping implement KeyValueDB
func (s *SQLiteStore) Ping() error {
	return s.db.Ping()
}

// Close implement KeyValueDB
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
