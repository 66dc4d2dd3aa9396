// Package catalog stores RTTI snapshots in SQLite so external tools can
// query the classes, interfaces and units of a runtime without linking it.
package catalog

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fxamacker/cbor/v2"
	_ "modernc.org/sqlite"

	"github.com/chazu/rtl/rtl"
	"github.com/chazu/rtl/wire"
)

// ErrNotFound indicates the requested entry is not in the catalog.
var ErrNotFound = errors.New("not found in catalog")

var schema = []string{
	`CREATE TABLE IF NOT EXISTS classes (
		name     TEXT PRIMARY KEY COLLATE NOCASE,
		ancestor TEXT,
		ord      INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS methods (
		class   TEXT NOT NULL COLLATE NOCASE,
		ordinal INTEGER NOT NULL,
		name    TEXT NOT NULL,
		kind    TEXT NOT NULL,
		result  TEXT,
		params  BLOB,
		PRIMARY KEY (class, ordinal)
	)`,
	`CREATE TABLE IF NOT EXISTS fields (
		class   TEXT NOT NULL COLLATE NOCASE,
		ordinal INTEGER NOT NULL,
		name    TEXT NOT NULL,
		type    TEXT NOT NULL,
		PRIMARY KEY (class, ordinal)
	)`,
	`CREATE TABLE IF NOT EXISTS interfaces (
		name     TEXT PRIMARY KEY COLLATE NOCASE,
		guid     TEXT NOT NULL,
		ancestor TEXT,
		kind     TEXT NOT NULL,
		methods  TEXT,
		ord      INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS implements (
		class TEXT NOT NULL COLLATE NOCASE,
		guid  TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS units (
		name TEXT PRIMARY KEY,
		form TEXT NOT NULL,
		path TEXT,
		ord  INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

// Catalog is an open catalog database.
type Catalog struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// ClassRow is one row of the classes table.
type ClassRow struct {
	Name     string
	Ancestor string
}

// Open opens (creating if needed) the catalog at path.
func Open(path string) (*Catalog, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating catalog dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating tables: %w", err)
		}
	}

	return &Catalog{db: db, dbPath: path}, nil
}

// Path returns the database file path.
func (c *Catalog) Path() string {
	return c.dbPath
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Save replaces the catalog content with the snapshot in one transaction.
func (c *Catalog) Save(s *wire.Snapshot) (err error) {
	if err := s.Validate(); err != nil {
		return err
	}
	digest, err := s.Digest()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, table := range []string{"classes", "methods", "fields", "interfaces", "implements", "units", "meta"} {
		if _, err = tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	for i, cls := range s.Classes {
		if _, err = tx.Exec("INSERT INTO classes (name, ancestor, ord) VALUES (?, ?, ?)",
			cls.Name, nullable(cls.Ancestor), i); err != nil {
			return fmt.Errorf("saving class %s: %w", cls.Name, err)
		}
		for _, m := range cls.Methods {
			var params []byte
			if len(m.Params) > 0 {
				if params, err = cbor.Marshal(m.Params); err != nil {
					return err
				}
			}
			if _, err = tx.Exec("INSERT INTO methods (class, ordinal, name, kind, result, params) VALUES (?, ?, ?, ?, ?, ?)",
				cls.Name, m.Ordinal, m.Name, m.Kind, nullable(m.Result), params); err != nil {
				return fmt.Errorf("saving method %s.%s: %w", cls.Name, m.Name, err)
			}
		}
		for _, f := range cls.Fields {
			if _, err = tx.Exec("INSERT INTO fields (class, ordinal, name, type) VALUES (?, ?, ?, ?)",
				cls.Name, f.Ordinal, f.Name, f.Type); err != nil {
				return fmt.Errorf("saving field %s.%s: %w", cls.Name, f.Name, err)
			}
		}
		for _, g := range cls.Interfaces {
			if _, err = tx.Exec("INSERT INTO implements (class, guid) VALUES (?, ?)", cls.Name, g); err != nil {
				return fmt.Errorf("saving %s implements %s: %w", cls.Name, g, err)
			}
		}
	}

	for i, intf := range s.Interfaces {
		if _, err = tx.Exec("INSERT INTO interfaces (name, guid, ancestor, kind, methods, ord) VALUES (?, ?, ?, ?, ?, ?)",
			intf.Name, intf.GUID, nullable(intf.Ancestor), intf.Kind, strings.Join(intf.Methods, ","), i); err != nil {
			return fmt.Errorf("saving interface %s: %w", intf.Name, err)
		}
	}

	for _, u := range s.Units {
		if _, err = tx.Exec("INSERT INTO units (name, form, path, ord) VALUES (?, ?, ?, ?)",
			u.Name, u.Form, nullable(u.Path), u.Order); err != nil {
			return fmt.Errorf("saving unit %s: %w", u.Name, err)
		}
	}

	if _, err = tx.Exec("INSERT INTO meta (key, value) VALUES ('digest', ?)", hex.EncodeToString(digest[:])); err != nil {
		return fmt.Errorf("saving digest: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing catalog: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Digest returns the hex digest of the last saved snapshot, or "" if the
// catalog is empty.
func (c *Catalog) Digest() (string, error) {
	var digest string
	err := c.db.QueryRow("SELECT value FROM meta WHERE key = 'digest'").Scan(&digest)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying digest: %w", err)
	}
	return digest, nil
}

// Classes returns every class in registration order.
func (c *Catalog) Classes() ([]ClassRow, error) {
	rows, err := c.db.Query("SELECT name, COALESCE(ancestor, '') FROM classes ORDER BY ord")
	if err != nil {
		return nil, fmt.Errorf("querying classes: %w", err)
	}
	defer rows.Close()

	var result []ClassRow
	for rows.Next() {
		var row ClassRow
		if err := rows.Scan(&row.Name, &row.Ancestor); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// Methods returns the methods a class publishes itself, in ordinal order.
// Class names match without regard to case.
func (c *Catalog) Methods(class string) ([]wire.MethodRecord, error) {
	var exists int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM classes WHERE name = ?", class).Scan(&exists); err != nil {
		return nil, fmt.Errorf("querying class: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: class %s", ErrNotFound, class)
	}

	rows, err := c.db.Query(
		"SELECT ordinal, name, kind, COALESCE(result, ''), params FROM methods WHERE class = ? ORDER BY ordinal", class)
	if err != nil {
		return nil, fmt.Errorf("querying methods: %w", err)
	}
	defer rows.Close()

	var result []wire.MethodRecord
	for rows.Next() {
		var m wire.MethodRecord
		var params []byte
		if err := rows.Scan(&m.Ordinal, &m.Name, &m.Kind, &m.Result, &params); err != nil {
			return nil, err
		}
		if len(params) > 0 {
			if err := cbor.Unmarshal(params, &m.Params); err != nil {
				return nil, fmt.Errorf("decoding params of %s.%s: %w", class, m.Name, err)
			}
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// Fields returns the fields a class publishes itself, in ordinal order.
func (c *Catalog) Fields(class string) ([]wire.FieldRecord, error) {
	rows, err := c.db.Query("SELECT ordinal, name, type FROM fields WHERE class = ? ORDER BY ordinal", class)
	if err != nil {
		return nil, fmt.Errorf("querying fields: %w", err)
	}
	defer rows.Close()

	var result []wire.FieldRecord
	for rows.Next() {
		var f wire.FieldRecord
		if err := rows.Scan(&f.Ordinal, &f.Name, &f.Type); err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

// InterfaceByGUID returns the first-registered interface with the GUID.
// guid may be in any form ParseGUID accepts.
func (c *Catalog) InterfaceByGUID(guid string) (*wire.InterfaceRecord, error) {
	g, err := rtl.ParseGUID(guid)
	if err != nil {
		return nil, err
	}

	var rec wire.InterfaceRecord
	var methods string
	err = c.db.QueryRow(
		"SELECT name, guid, COALESCE(ancestor, ''), kind, COALESCE(methods, '') FROM interfaces WHERE guid = ? ORDER BY ord LIMIT 1",
		g.String(),
	).Scan(&rec.Name, &rec.GUID, &rec.Ancestor, &rec.Kind, &methods)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: interface %s", ErrNotFound, g)
	}
	if err != nil {
		return nil, fmt.Errorf("querying interface: %w", err)
	}
	if methods != "" {
		rec.Methods = strings.Split(methods, ",")
	}
	return &rec, nil
}

// Implementors returns the classes that declare the interface themselves.
func (c *Catalog) Implementors(guid string) ([]string, error) {
	g, err := rtl.ParseGUID(guid)
	if err != nil {
		return nil, err
	}
	rows, err := c.db.Query(
		"SELECT i.class FROM implements i JOIN classes c ON c.name = i.class WHERE i.guid = ? ORDER BY c.ord", g.String())
	if err != nil {
		return nil, fmt.Errorf("querying implementors: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		result = append(result, name)
	}
	return result, rows.Err()
}

// Units returns the unit journal in initialization order.
func (c *Catalog) Units() ([]wire.UnitRecord, error) {
	rows, err := c.db.Query("SELECT name, form, COALESCE(path, ''), ord FROM units ORDER BY ord")
	if err != nil {
		return nil, fmt.Errorf("querying units: %w", err)
	}
	defer rows.Close()

	var result []wire.UnitRecord
	for rows.Next() {
		var u wire.UnitRecord
		if err := rows.Scan(&u.Name, &u.Form, &u.Path, &u.Order); err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}
