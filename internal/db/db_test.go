package db

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenPathWithURIMetacharacters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odd dir", "store?v=1#2 %20.db")
	conn, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Exec(`CREATE TABLE marker(id INTEGER)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	var fk int
	if err := conn.QueryRow(`PRAGMA foreign_keys`).Scan(&fk); err != nil || fk != 1 {
		t.Fatalf("foreign_keys = %d, %v; query parameters lost", fk, err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("store file not at %s: %v", path, err)
	}
}

func TestDefaultPath(t *testing.T) {
	if got := Path(Config{}); got != DefaultPath {
		t.Fatalf("Path = %q", got)
	}
}
