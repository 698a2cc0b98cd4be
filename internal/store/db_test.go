package store

import (
	"database/sql"
	"testing"

	"lode/internal/loader"
)

func openTestStore(t *testing.T) *DBStore {
	t.Helper()
	// shared cache keeps the in-memory database visible across the pool's
	// connections
	s, err := OpenDB("sqlite3:file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	return s
}

func TestSplitDSN(t *testing.T) {
	tests := []struct {
		dsn     string
		driver  string
		source  string
		wantErr bool
	}{
		{dsn: "sqlite3:lode.db", driver: "sqlite3", source: "lode.db"},
		{dsn: "sqlite3::memory:", driver: "sqlite3", source: ":memory:"},
		{dsn: "mysql:user@/lode", driver: "mysql", source: "user@/lode"},
		{dsn: "postgres://localhost/lode", driver: "postgres", source: "postgres://localhost/lode"},
		{dsn: "redis:whatever", wantErr: true},
	}

	for _, tt := range tests {
		driver, source, err := splitDSN(tt.dsn)
		if tt.wantErr {
			if err == nil {
				t.Errorf("splitDSN(%q): expected error", tt.dsn)
			}
			continue
		}
		if err != nil {
			t.Errorf("splitDSN(%q): %v", tt.dsn, err)
			continue
		}
		if driver != tt.driver || source != tt.source {
			t.Errorf("splitDSN(%q) = %q, %q, want %q, %q", tt.dsn, driver, source, tt.driver, tt.source)
		}
	}
}

func TestRebindPostgres(t *testing.T) {
	s := &DBStore{driver: "postgres"}
	got := s.rebind(`INSERT INTO units (name, source) VALUES (?, ?)`)
	want := `INSERT INTO units (name, source) VALUES ($1, $2)`
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}

	s.driver = "sqlite3"
	q := `SELECT source FROM units WHERE name = ?`
	if got := s.rebind(q); got != q {
		t.Errorf("rebind changed a sqlite query: %q", got)
	}
}

func TestDBPutGet(t *testing.T) {
	s := openTestStore(t)

	if err := s.Put("math.calc", "export let answer = 42\n"); err != nil {
		t.Fatalf("put: %v", err)
	}
	src, err := s.Get("math.calc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if src != "export let answer = 42\n" {
		t.Errorf("get = %q", src)
	}

	// Put replaces.
	if err := s.Put("math.calc", "export let answer = 7\n"); err != nil {
		t.Fatalf("replace: %v", err)
	}
	src, err = s.Get("math.calc")
	if err != nil {
		t.Fatalf("get after replace: %v", err)
	}
	if src != "export let answer = 7\n" {
		t.Errorf("get after replace = %q", src)
	}

	if _, err := s.Get("ghost"); err != sql.ErrNoRows {
		t.Errorf("get missing = %v, want sql.ErrNoRows", err)
	}
}

func TestDBFetchImport(t *testing.T) {
	s := openTestStore(t)
	if err := s.Put("math.calc", "export let answer = 42\n"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put("main", "module m from \"math.calc\"\nexport let out = m.answer\n"); err != nil {
		t.Fatalf("put: %v", err)
	}

	ld := loader.New(NewDBHooks(s))
	f := ld.ImportFuture("main")
	ld.Run()

	u, err := f.Await()
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if got := u.Exports["out"].Value.Inspect(); got != "42" {
		t.Errorf("out = %s, want 42", got)
	}
}

func TestDBFetchMissing(t *testing.T) {
	s := openTestStore(t)

	ld := loader.New(NewDBHooks(s))
	f := ld.ImportFuture("ghost")
	ld.Run()

	if _, err := f.Await(); err == nil {
		t.Fatal("expected an error for a missing unit")
	}
}
