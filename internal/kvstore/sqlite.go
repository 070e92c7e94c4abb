package kvstore

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// SQLiteStore is the SQLite-backed blob store used in production. It keeps a
// single blobs table keyed by name. Blobs are expected to stay small (at most
// a few hundred kilobytes).
type SQLiteStore struct {
	conn   *sql.DB
	logger *logrus.Logger

	// Prepared statements for better performance
	getStmt    *sql.Stmt
	setStmt    *sql.Stmt
	deleteStmt *sql.Stmt
}

// NewSQLiteStore opens (or creates) a SQLite database at the provided path
// and ensures the blobs table exists. It also applies lightweight
// performance-oriented pragmas (WAL, cache sizing). Caller should Close() it
// when finished.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	conn, err := sql.Open("sqlite3", dbPath+"?cache=shared&mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works better with fewer connections
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA temp_store=memory;",
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			logger.WithError(err).WithField("pragma", pragma).Warn("Failed to set pragma")
		}
	}

	s := &SQLiteStore{
		conn:   conn,
		logger: logger,
	}

	if err := s.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := s.prepareStatements(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	logger.WithField("db_path", dbPath).Info("Blob store initialized successfully")
	return s, nil
}

// createTables creates the blobs table if it does not already exist. This is
// idempotent and safe to call multiple times.
func (s *SQLiteStore) createTables() error {
	blobsTable := `
	CREATE TABLE IF NOT EXISTS blobs (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	_, err := s.conn.Exec(blobsTable)
	return err
}

// prepareStatements prepares the commonly used SQL statements.
func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.getStmt, err = s.conn.Prepare(`SELECT value FROM blobs WHERE key = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get statement: %w", err)
	}

	s.setStmt, err = s.conn.Prepare(`
		INSERT INTO blobs (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value=excluded.value,
			updated_at=excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare set statement: %w", err)
	}

	s.deleteStmt, err = s.conn.Prepare(`DELETE FROM blobs WHERE key = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}

	return nil
}

// Get returns the blob stored under key, with a found flag.
func (s *SQLiteStore) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.getStmt.QueryRow(key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Error("Failed to read blob")
		return nil, false, err
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous blob.
func (s *SQLiteStore) Set(key string, value []byte) error {
	_, err := s.setStmt.Exec(key, value)
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Error("Failed to write blob")
	}
	return err
}

// Delete removes the blob stored under key.
func (s *SQLiteStore) Delete(key string) error {
	_, err := s.deleteStmt.Exec(key)
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Error("Failed to delete blob")
	}
	return err
}

// Close closes the prepared statements and the underlying connection.
func (s *SQLiteStore) Close() error {
	statements := []*sql.Stmt{s.getStmt, s.setStmt, s.deleteStmt}
	for _, stmt := range statements {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				s.logger.WithError(err).Error("Failed to close prepared statement")
			}
		}
	}

	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
