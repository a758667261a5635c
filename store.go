package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// KeyValueStore persists opaque values under string keys. Set replaces the
// whole value in a single write.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

type Store struct {
	db  *sql.DB
	log *log.Logger
}

const reqTable string = `
  CREATE TABLE IF NOT EXISTS reqdata (
      httpdata BLOB NOT NULL,
      hash TEXT NOT NULL,
      expiry INT NOT NULL
  )
`

const kvTable string = `
  CREATE TABLE IF NOT EXISTS kvdata (
      key TEXT PRIMARY KEY,
      value BLOB NOT NULL
  )
`

const dbFile string = "data/gallery.db"

func NewStore(filename string) (*Store, error) {
	logger := log.New(os.Stderr, "(store) ", log.LstdFlags)

	if filename == "" {
		filename = dbFile
	}
	if !strings.HasPrefix(filename, ":memory:") {
		if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite3", "file:"+filename)
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers; one connection keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	for _, table := range []string{reqTable, kvTable} {
		if _, err := db.Exec(table); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &Store{
		db:  db,
		log: logger,
	}, nil
}

func (store *Store) Close() error {
	return store.db.Close()
}

func (store *Store) DeleteBefore(expiry int64) {
	_, err := store.db.Exec("DELETE FROM reqdata WHERE expiry < ?", expiry)
	if err != nil {
		store.log.Println("DB Error", err.Error())
	}
}

func (store *Store) GetResponse(hash string, now int64) ([]byte, bool) {
	row := store.db.QueryRow("SELECT httpdata FROM reqdata WHERE hash = ? AND expiry >= ? ORDER BY expiry DESC", hash, now)
	var data []byte
	err := row.Scan(&data)
	if err == nil {
		return data, true
	} else if !errors.Is(err, sql.ErrNoRows) {
		store.log.Println("DB Error", err.Error())
	}
	return nil, false
}

func (store *Store) StoreResponse(hash string, res []byte, expiry int64) {
	_, err := store.db.Exec("INSERT INTO reqdata VALUES (?,?,?)",
		res,
		hash,
		expiry,
	)
	if err != nil {
		store.log.Println("DB Error", err.Error())
	}
}

func (store *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	row := store.db.QueryRowContext(ctx, "SELECT value FROM kvdata WHERE key = ?", key)
	var data []byte
	err := row.Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (store *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := store.db.ExecContext(ctx,
		"INSERT INTO kvdata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key,
		value,
	)
	return err
}
