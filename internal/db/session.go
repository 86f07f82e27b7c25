package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"graf/internal/model"
)

// Session is a single transaction. Every read, check and write a request
// performs goes through one Session so they commit or roll back together.
type Session struct {
	tx     *sql.Tx
	driver DriverType
}

// Commit commits the session.
func (s *Session) Commit() error {
	return s.tx.Commit()
}

// Rollback aborts the session. It is safe to call after Commit.
func (s *Session) Rollback() error {
	err := s.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (s *Session) query(ctx context.Context, q string, args ...interface{}) (*sql.Rows, error) {
	return s.tx.QueryContext(ctx, rebind(s.driver, q), args...)
}

func (s *Session) queryRow(ctx context.Context, q string, args ...interface{}) *sql.Row {
	return s.tx.QueryRowContext(ctx, rebind(s.driver, q), args...)
}

func (s *Session) exec(ctx context.Context, q string, args ...interface{}) (sql.Result, error) {
	res, err := s.tx.ExecContext(ctx, rebind(s.driver, q), args...)
	if err != nil && isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return res, err
}

// exists runs a query selecting at most one row and reports whether it found one.
func (s *Session) exists(ctx context.Context, q string, args ...interface{}) (bool, error) {
	var one int
	err := s.queryRow(ctx, q, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ----- Nodes -----

// scanNode scans a row holding id, name, x, y, year, sex.
func scanNode(scanner interface{ Scan(dest ...any) error }) (model.Node, error) {
	var n model.Node
	err := scanner.Scan(&n.ID, &n.Name, &n.X, &n.Y, &n.Year, &n.Sex)
	return n, err
}

// HighestNodeID returns the largest node id in [min, max).
func (s *Session) HighestNodeID(ctx context.Context, min, max int64) (int64, bool, error) {
	var id int64
	err := s.queryRow(ctx,
		"SELECT id FROM nodes WHERE id < ? AND id >= ? ORDER BY id DESC LIMIT 1",
		max, min,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// NodeExists reports whether a node with the given id exists.
func (s *Session) NodeExists(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, "SELECT 1 FROM nodes WHERE id = ?", id)
}

// GetNode retrieves a node by id.
func (s *Session) GetNode(ctx context.Context, id int64) (*model.Node, error) {
	n, err := scanNode(s.queryRow(ctx,
		"SELECT id, name, x, y, year, sex FROM nodes WHERE id = ?", id,
	))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// InsertNode inserts a node with a caller-allocated id.
func (s *Session) InsertNode(ctx context.Context, n model.Node) error {
	_, err := s.exec(ctx,
		"INSERT INTO nodes (id, name, x, y, year, sex) VALUES (?, ?, ?, ?, ?, ?)",
		n.ID, n.Name, n.X, n.Y, n.Year, n.Sex,
	)
	if err != nil {
		return fmt.Errorf("inserting node: %w", err)
	}
	return nil
}

// NodeUpdate lists the columns to change; nil fields are left alone.
type NodeUpdate struct {
	Name *string
	X    *int64
	Y    *int64
	Year *int64
	Sex  *string
}

// Empty reports whether the update changes nothing.
func (u NodeUpdate) Empty() bool {
	return u.Name == nil && u.X == nil && u.Y == nil && u.Year == nil && u.Sex == nil
}

// UpdateNode applies all supplied columns in one statement.
func (s *Session) UpdateNode(ctx context.Context, id int64, u NodeUpdate) error {
	if u.Empty() {
		return nil
	}

	var sets []string
	var args []interface{}
	if u.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *u.Name)
	}
	if u.X != nil {
		sets = append(sets, "x = ?")
		args = append(args, *u.X)
	}
	if u.Y != nil {
		sets = append(sets, "y = ?")
		args = append(args, *u.Y)
	}
	if u.Year != nil {
		sets = append(sets, "year = ?")
		args = append(args, *u.Year)
	}
	if u.Sex != nil {
		sets = append(sets, "sex = ?")
		args = append(args, *u.Sex)
	}
	args = append(args, id)

	if _, err := s.exec(ctx, "UPDATE nodes SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...); err != nil {
		return fmt.Errorf("updating node: %w", err)
	}
	return nil
}

// DeleteNode deletes a node by id.
func (s *Session) DeleteNode(ctx context.Context, id int64) error {
	if _, err := s.exec(ctx, "DELETE FROM nodes WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting node: %w", err)
	}
	return nil
}

// NodeHasEdges reports whether any edge uses the node as an endpoint.
func (s *Session) NodeHasEdges(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, "SELECT 1 FROM edges WHERE a = ? OR b = ? LIMIT 1", id, id)
}

// ListNodes returns all nodes ordered by id.
func (s *Session) ListNodes(ctx context.Context) ([]model.Node, error) {
	rows, err := s.query(ctx, "SELECT id, name, x, y, year, sex FROM nodes ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []model.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// ----- Edges -----

// scanEdge scans a row holding id, a, b, votes.
func scanEdge(scanner interface{ Scan(dest ...any) error }) (model.Edge, error) {
	var e model.Edge
	err := scanner.Scan(&e.ID, &e.A, &e.B, &e.Votes)
	return e, err
}

// FindEdge retrieves the edge for a canonical pair.
func (s *Session) FindEdge(ctx context.Context, a, b int64) (*model.Edge, error) {
	e, err := scanEdge(s.queryRow(ctx,
		"SELECT id, a, b, votes FROM edges WHERE a = ? AND b = ?", a, b,
	))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetEdge retrieves an edge by id.
func (s *Session) GetEdge(ctx context.Context, id int64) (*model.Edge, error) {
	e, err := scanEdge(s.queryRow(ctx,
		"SELECT id, a, b, votes FROM edges WHERE id = ?", id,
	))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// InsertEdge inserts an edge for a canonical pair with one vote.
func (s *Session) InsertEdge(ctx context.Context, a, b int64) error {
	if _, err := s.exec(ctx, "INSERT INTO edges (votes, a, b) VALUES (1, ?, ?)", a, b); err != nil {
		return fmt.Errorf("inserting edge: %w", err)
	}
	return nil
}

// DeleteEdge deletes an edge by id.
func (s *Session) DeleteEdge(ctx context.Context, id int64) error {
	if _, err := s.exec(ctx, "DELETE FROM edges WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting edge: %w", err)
	}
	return nil
}

// ListEdges returns all edges ordered by id.
func (s *Session) ListEdges(ctx context.Context) ([]model.Edge, error) {
	rows, err := s.query(ctx, "SELECT id, a, b, votes FROM edges ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []model.Edge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// ----- Audit -----

// WriteAudit records a mutation in the current transaction.
func (s *Session) WriteAudit(ctx context.Context, action, targetType, targetID string, data interface{}) error {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding audit data: %w", err)
	}
	_, err = s.exec(ctx,
		"INSERT INTO audit (id, action, target_type, target_id, data, ts) VALUES (?, ?, ?, ?, ?, ?)",
		uuid.New().String(), action, targetType, targetID, string(dataJSON), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("writing audit: %w", err)
	}
	return nil
}
