package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"lode/internal/loader"
	"lode/internal/util/future"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DBStore keeps unit source in a units(name, source) table. The driver is
// picked from the DSN scheme: "sqlite3:lode.db", "mysql:user@/lode" or
// "postgres://localhost/lode".
type DBStore struct {
	db     *sql.DB
	driver string
}

// OpenDB connects to the database named by dsn. Postgres DSNs are passed
// through whole because lib/pq understands the postgres:// URL form.
func OpenDB(dsn string) (*DBStore, error) {
	driver, source, err := splitDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("opening unit store %q: %w", dsn, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to unit store %q: %w", dsn, err)
	}
	return &DBStore{db: db, driver: driver}, nil
}

// rebind rewrites ? placeholders to the $N form postgres expects.
func (s *DBStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func splitDSN(dsn string) (driver, source string, err error) {
	switch {
	case strings.HasPrefix(dsn, "sqlite3:"):
		return "sqlite3", strings.TrimPrefix(dsn, "sqlite3:"), nil
	case strings.HasPrefix(dsn, "mysql:"):
		return "mysql", strings.TrimPrefix(dsn, "mysql:"), nil
	case strings.HasPrefix(dsn, "postgres:"):
		return "postgres", dsn, nil
	default:
		return "", "", fmt.Errorf("unit store DSN %q: unknown scheme", dsn)
	}
}

// Init creates the units table if it does not exist.
func (s *DBStore) Init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS units (
		name   TEXT PRIMARY KEY,
		source TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("creating units table: %w", err)
	}
	return nil
}

// Put inserts or replaces the source for a unit name.
func (s *DBStore) Put(name, source string) error {
	_, err := s.db.Exec(s.rebind(`DELETE FROM units WHERE name = ?`), name)
	if err != nil {
		return fmt.Errorf("replacing unit %q: %w", name, err)
	}
	_, err = s.db.Exec(s.rebind(`INSERT INTO units (name, source) VALUES (?, ?)`), name, source)
	if err != nil {
		return fmt.Errorf("storing unit %q: %w", name, err)
	}
	return nil
}

// Get reads the source for a unit name. sql.ErrNoRows passes through so
// callers can tell a missing unit from a broken store.
func (s *DBStore) Get(name string) (string, error) {
	var source string
	err := s.db.QueryRow(s.rebind(`SELECT source FROM units WHERE name = ?`), name).Scan(&source)
	if err != nil {
		return "", err
	}
	return source, nil
}

func (s *DBStore) Close() error {
	return s.db.Close()
}

// DBHooks serves unit source from a DBStore. Names resolve to themselves;
// the table is keyed by unit name, so no address mapping is needed.
type DBHooks struct {
	loader.Defaults
	Store *DBStore
}

func NewDBHooks(store *DBStore) *DBHooks {
	return &DBHooks{Store: store}
}

func (h *DBHooks) Resolve(name string, metadata any) (loader.Resolved, error) {
	return loader.Resolved{Address: name}, nil
}

func (h *DBHooks) Fetch(req *loader.Request, cb *loader.FetchCallback) {
	address := req.Address
	store := h.Store

	f := future.New(func() (string, error) {
		source, err := store.Get(address)
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("unit %q not found in store", address)
		}
		if err != nil {
			return "", fmt.Errorf("loading unit %q: %w", address, err)
		}
		return source, nil
	})

	go func() {
		source, err := f.Await()
		if err != nil {
			cb.Reject(err)
			return
		}
		slog.Debug("fetched unit source", slog.String("unit", address))
		cb.Fulfill(source, address)
	}()
}
