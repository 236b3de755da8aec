package db

import (
	"database/sql"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DefaultPath is used when neither the config file nor TASKTRACKER_DB_PATH names a store.
const DefaultPath = "data/tasktracker.db"

type Config struct {
	Path string
}

func (c Config) path() string {
	if c.Path == "" {
		return DefaultPath
	}
	return c.Path
}

// EnsureDir creates the directory holding the store file if missing.
func EnsureDir(path string) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Open opens the SQLite store with foreign keys on.
//
// Transactions begin IMMEDIATE and the pool holds a single connection, so
// write transactions serialize both inside the process and across processes
// sharing the file.
func Open(cfg Config) (*sql.DB, error) {
	path := cfg.path()
	if _, err := EnsureDir(path); err != nil {
		return nil, err
	}
	conn, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	return conn, nil
}

// dsn builds the SQLite URI. The path is percent-escaped so '?', '#' and '%'
// in a file name stay part of the name; SQLite decodes them again.
func dsn(path string) string {
	u := url.URL{Path: path}
	return "file:" + u.EscapedPath() + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
}

// Path returns the resolved store path.
func Path(cfg Config) string {
	return cfg.path()
}
