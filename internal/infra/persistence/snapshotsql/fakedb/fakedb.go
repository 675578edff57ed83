// Package fakedb is a database/sql driver holding the snapshot table in
// memory. It understands only the statements issued by package snapshotsql.
package fakedb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Failure points accepted by Conn.FailOn. Saves of one record set fail with
// SaveOf(name).
const (
	OpPing   = "ping"
	OpBegin  = "begin"
	OpCommit = "commit"
	OpQuery  = "query"
	OpCreate = "create"
)

// SaveOf names the failure point for upserts of record set name.
func SaveOf(name string) string { return "save:" + name }

// Conn is the shared state behind every handle returned by DB.
type Conn struct {
	mu         sync.Mutex
	statements []string
	sets       map[string][]byte
	fail       map[string]bool
	commits    int
}

// New returns an empty fake database.
func New() *Conn {
	return &Conn{sets: make(map[string][]byte), fail: make(map[string]bool)}
}

// DB opens a sql.DB handle on c.
func (c *Conn) DB() *sql.DB { return sql.OpenDB(connector{c}) }

// FailOn makes the named operation fail until Recover is called.
func (c *Conn) FailOn(op string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail[op] = true
}

// Recover clears every injected failure.
func (c *Conn) Recover() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.fail)
}

// Put stores body under name as if it had been saved earlier.
func (c *Conn) Put(name string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets[name] = slices.Clone(body)
}

// Get returns the stored body of name.
func (c *Conn) Get(name string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	body, ok := c.sets[name]
	return slices.Clone(body), ok
}

// Names lists the stored record sets in sorted order.
func (c *Conn) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Sorted(maps.Keys(c.sets))
}

// Statements returns every statement executed so far.
func (c *Conn) Statements() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.statements)
}

// Commits counts committed transactions.
func (c *Conn) Commits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commits
}

func (c *Conn) failing(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail[op] {
		return fmt.Errorf("fakedb: %s failed", op)
	}
	return nil
}

type connector struct{ c *Conn }

func (k connector) Connect(context.Context) (driver.Conn, error) { return session{k.c}, nil }
func (k connector) Driver() driver.Driver                         { return fakeDriver{k.c} }

type fakeDriver struct{ c *Conn }

func (d fakeDriver) Open(string) (driver.Conn, error) { return session{d.c}, nil }

// session is one driver connection over the shared state.
type session struct{ c *Conn }

var (
	_ driver.Pinger         = session{}
	_ driver.ExecerContext  = session{}
	_ driver.QueryerContext = session{}
	_ driver.ConnBeginTx    = session{}
)

func (s session) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("fakedb: prepared statements are not supported")
}

func (s session) Close() error { return nil }

func (s session) Begin() (driver.Tx, error) {
	return s.BeginTx(context.Background(), driver.TxOptions{})
}

func (s session) Ping(context.Context) error { return s.c.failing(OpPing) }

func (s session) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if err := s.c.failing(OpBegin); err != nil {
		return nil, err
	}
	return tx{s.c}, nil
}

func (s session) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	s.c.mu.Lock()
	s.c.statements = append(s.c.statements, query)
	s.c.mu.Unlock()

	stmt := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(stmt, "CREATE TABLE"):
		if err := s.c.failing(OpCreate); err != nil {
			return nil, err
		}
		return driver.RowsAffected(0), nil
	case strings.HasPrefix(stmt, "INSERT INTO"):
		return s.upsert(args)
	default:
		return nil, fmt.Errorf("fakedb: unsupported statement %q", query)
	}
}

func (s session) upsert(args []driver.NamedValue) (driver.Result, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("fakedb: upsert wants 2 arguments, got %d", len(args))
	}
	name, ok := args[0].Value.(string)
	if !ok {
		return nil, fmt.Errorf("fakedb: record set name is %T", args[0].Value)
	}
	if err := s.c.failing(SaveOf(name)); err != nil {
		return nil, err
	}
	var body []byte
	switch v := args[1].Value.(type) {
	case []byte:
		body = v
	case string:
		body = []byte(v)
	default:
		return nil, fmt.Errorf("fakedb: body is %T", v)
	}
	s.c.Put(name, body)
	return driver.RowsAffected(1), nil
}

func (s session) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	if err := s.c.failing(OpQuery); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT RECORD_SET, BODY") {
		return nil, fmt.Errorf("fakedb: unsupported query %q", query)
	}
	var out [][]driver.Value
	for _, name := range s.c.Names() {
		body, _ := s.c.Get(name)
		out = append(out, []driver.Value{name, body})
	}
	return &rows{data: out}, nil
}

type tx struct{ c *Conn }

func (t tx) Commit() error {
	if err := t.c.failing(OpCommit); err != nil {
		return err
	}
	t.c.mu.Lock()
	t.c.commits++
	t.c.mu.Unlock()
	return nil
}

func (t tx) Rollback() error { return nil }

type rows struct {
	data [][]driver.Value
	next int
}

func (r *rows) Columns() []string { return []string{"record_set", "body"} }
func (r *rows) Close() error      { return nil }

func (r *rows) Next(dest []driver.Value) error {
	if r.next >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.next])
	r.next++
	return nil
}
