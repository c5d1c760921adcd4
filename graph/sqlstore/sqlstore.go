// Package sqlstore persists the property graph in SQLite using the
// pure-Go modernc.org/sqlite driver. It is the only backend with a query
// engine, so complex relationship patterns run here verbatim.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO

	"github.com/kohr2/dashboard-killer-graph-sub005/errors"
	"github.com/kohr2/dashboard-killer-graph-sub005/graph"
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	id         TEXT PRIMARY KEY,
	properties TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS node_labels (
	node_id  TEXT NOT NULL REFERENCES nodes(id),
	label    TEXT NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (node_id, label)
);
CREATE INDEX IF NOT EXISTS idx_node_labels_label ON node_labels(label);
CREATE TABLE IF NOT EXISTS edges (
	id         TEXT NOT NULL,
	type       TEXT NOT NULL,
	from_id    TEXT NOT NULL,
	to_id      TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 0,
	properties TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL,
	PRIMARY KEY (type, from_id, to_id)
);
CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(from_id);
`

// Store implements graph.Store over a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the database at path. Use ":memory:" for an
// ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.WrapFatal(err, "sqlstore", "Open", "open database")
	}
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, errors.WrapFatal(err, "sqlstore", "Open", "enable WAL")
		}
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, errors.WrapFatal(err, "sqlstore", "Open", "enable foreign keys")
	}
	// The memory DSN is per-connection; keep a single connection so the
	// schema and the data share one database.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.WrapFatal(err, "sqlstore", "Open", "apply schema")
	}
	return &Store{db: db}, nil
}

// UpsertNode implements graph.Store. Updates replace labels and merge
// properties.
func (s *Store) UpsertNode(ctx context.Context, write graph.NodeWrite) error {
	if write.ID == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "sqlstore", "UpsertNode", "validate node id")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "sqlstore", "UpsertNode", "begin transaction")
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT properties FROM nodes WHERE id = ?`, write.ID).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		props, mErr := marshalProps(write.Properties)
		if mErr != nil {
			return errors.WrapInvalid(mErr, "sqlstore", "UpsertNode", "encode properties")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO nodes (id, properties, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			write.ID, props, now, now); err != nil {
			return errors.Wrap(err, "sqlstore", "UpsertNode", "insert node")
		}
	case err != nil:
		return errors.Wrap(err, "sqlstore", "UpsertNode", "read node")
	default:
		merged := map[string]any{}
		if err := json.Unmarshal([]byte(existing), &merged); err != nil {
			return errors.Wrap(err, "sqlstore", "UpsertNode", "decode properties")
		}
		for k, v := range write.Properties {
			merged[k] = v
		}
		props, mErr := marshalProps(merged)
		if mErr != nil {
			return errors.WrapInvalid(mErr, "sqlstore", "UpsertNode", "encode properties")
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE nodes SET properties = ?, updated_at = ? WHERE id = ?`,
			props, now, write.ID); err != nil {
			return errors.Wrap(err, "sqlstore", "UpsertNode", "update node")
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM node_labels WHERE node_id = ?`, write.ID); err != nil {
		return errors.Wrap(err, "sqlstore", "UpsertNode", "clear labels")
	}
	for i, label := range write.Labels {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO node_labels (node_id, label, position) VALUES (?, ?, ?)`,
			write.ID, label, i); err != nil {
			return errors.Wrap(err, "sqlstore", "UpsertNode", "insert label "+label)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "sqlstore", "UpsertNode", "commit")
	}
	return nil
}

// CreateEdge implements graph.Store.
func (s *Store) CreateEdge(ctx context.Context, write graph.EdgeWrite) error {
	if write.Type == "" || write.FromID == "" || write.ToID == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "sqlstore", "CreateEdge", "validate edge")
	}
	id := write.ID
	if id == "" {
		id = uuid.NewString()
	}
	props, err := marshalProps(write.Properties)
	if err != nil {
		return errors.WrapInvalid(err, "sqlstore", "CreateEdge", "encode properties")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO edges (id, type, from_id, to_id, confidence, properties, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (type, from_id, to_id) DO UPDATE SET
			confidence = excluded.confidence,
			properties = excluded.properties`,
		id, write.Type, write.FromID, write.ToID, write.Confidence, props,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return errors.Wrap(err, "sqlstore", "CreateEdge", "insert edge")
	}
	return nil
}

// GetNode implements graph.Store.
func (s *Store) GetNode(ctx context.Context, id string) (*graph.Node, error) {
	var (
		props              string
		createdAt, updated string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT properties, created_at, updated_at FROM nodes WHERE id = ?`, id).
		Scan(&props, &createdAt, &updated)
	if err == sql.ErrNoRows {
		return nil, errors.WrapInvalid(errors.ErrNodeNotFound, "sqlstore", "GetNode", "lookup "+id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "sqlstore", "GetNode", "read node")
	}

	node := &graph.Node{ID: id}
	if err := json.Unmarshal([]byte(props), &node.Properties); err != nil {
		return nil, errors.Wrap(err, "sqlstore", "GetNode", "decode properties")
	}
	node.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	node.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)

	rows, err := s.db.QueryContext(ctx,
		`SELECT label FROM node_labels WHERE node_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, errors.Wrap(err, "sqlstore", "GetNode", "read labels")
	}
	defer rows.Close()
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, errors.Wrap(err, "sqlstore", "GetNode", "scan label")
		}
		node.Labels = append(node.Labels, label)
	}
	return node, rows.Err()
}

// NodesByLabel implements graph.Store.
func (s *Store) NodesByLabel(ctx context.Context, label string) ([]*graph.Node, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT node_id FROM node_labels WHERE label = ? ORDER BY node_id`, label)
	if err != nil {
		return nil, errors.Wrap(err, "sqlstore", "NodesByLabel", "query label "+label)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "sqlstore", "NodesByLabel", "scan node id")
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlstore", "NodesByLabel", "iterate rows")
	}

	out := make([]*graph.Node, 0, len(ids))
	for _, id := range ids {
		node, err := s.GetNode(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	return out, nil
}

// EdgesFrom implements graph.Store.
func (s *Store) EdgesFrom(ctx context.Context, nodeID string) ([]*graph.Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, from_id, to_id, confidence, properties, created_at
		FROM edges WHERE from_id = ? ORDER BY created_at, id`, nodeID)
	if err != nil {
		return nil, errors.Wrap(err, "sqlstore", "EdgesFrom", "query edges")
	}
	defer rows.Close()

	var out []*graph.Edge
	for rows.Next() {
		var (
			edge    graph.Edge
			props   string
			created string
		)
		if err := rows.Scan(&edge.ID, &edge.Type, &edge.FromID, &edge.ToID, &edge.Confidence, &props, &created); err != nil {
			return nil, errors.Wrap(err, "sqlstore", "EdgesFrom", "scan edge")
		}
		if err := json.Unmarshal([]byte(props), &edge.Properties); err != nil {
			return nil, errors.Wrap(err, "sqlstore", "EdgesFrom", "decode properties")
		}
		edge.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, &edge)
	}
	return out, rows.Err()
}

// RawQuery implements graph.Store. The statement runs verbatim; params
// bind by name (":name" or "@name" placeholders).
func (s *Store) RawQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "sqlstore", "RawQuery", "validate query")
	}
	args := make([]any, 0, len(params))
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		args = append(args, sql.Named(name, params[name]))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "sqlstore", "RawQuery", "execute query")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "sqlstore", "RawQuery", "read columns")
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "sqlstore", "RawQuery", "scan row")
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Close implements graph.Store.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, "sqlstore", "Close", "close database")
	}
	return nil
}

func marshalProps(props map[string]any) (string, error) {
	if len(props) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(props)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
