// Package badgerstore persists the property graph in BadgerDB. Nodes and
// edges are stored as JSON values under prefixed keys, with a label index
// for NodesByLabel and an outgoing-edge index for EdgesFrom.
package badgerstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/google/uuid"

	"github.com/kohr2/dashboard-killer-graph-sub005/errors"
	"github.com/kohr2/dashboard-killer-graph-sub005/graph"
)

// Key prefixes for the stored record kinds.
const (
	nodePrefix  = "n:"
	labelPrefix = "l:" // l:<label>:<nodeID> -> nodeID
	edgePrefix  = "e:" // e:<fromID>:<type>:<toID> -> edge JSON
)

// Store implements graph.Store over BadgerDB.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// Open opens the database at path, creating the directory if needed. An
// empty path opens an in-memory database.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, errors.WrapFatal(err, "badgerstore", "Open", "create directory")
		}
		opts = badger.DefaultOptions(path)
	}
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.WrapFatal(err, "badgerstore", "Open", "open database")
	}
	return &Store{db: db, logger: logger}, nil
}

func nodeKey(id string) []byte          { return []byte(nodePrefix + id) }
func labelKey(label, id string) []byte  { return []byte(labelPrefix + label + ":" + id) }
func edgeKey(w graph.EdgeWrite) []byte  { return []byte(edgePrefix + w.FromID + ":" + w.Type + ":" + w.ToID) }
func edgeScanPrefix(from string) []byte { return []byte(edgePrefix + from + ":") }

// UpsertNode implements graph.Store. Updates replace labels (index
// entries for dropped labels are removed) and merge properties.
func (s *Store) UpsertNode(_ context.Context, write graph.NodeWrite) error {
	if write.ID == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "badgerstore", "UpsertNode", "validate node id")
	}
	err := s.db.Update(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		node := &graph.Node{
			ID:         write.ID,
			Labels:     append([]string(nil), write.Labels...),
			Properties: map[string]any{},
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		item, err := tx.Get(nodeKey(write.ID))
		switch {
		case err == badger.ErrKeyNotFound:
			// new node
		case err != nil:
			return err
		default:
			var existing graph.Node
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &existing)
			}); err != nil {
				return err
			}
			node.CreatedAt = existing.CreatedAt
			for k, v := range existing.Properties {
				node.Properties[k] = v
			}
			for _, label := range existing.Labels {
				if err := tx.Delete(labelKey(label, write.ID)); err != nil {
					return err
				}
			}
		}

		for k, v := range write.Properties {
			node.Properties[k] = v
		}

		val, err := json.Marshal(node)
		if err != nil {
			return err
		}
		if err := tx.Set(nodeKey(write.ID), val); err != nil {
			return err
		}
		for _, label := range node.Labels {
			if err := tx.Set(labelKey(label, write.ID), []byte(write.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "badgerstore", "UpsertNode", "write node")
	}
	return nil
}

// CreateEdge implements graph.Store.
func (s *Store) CreateEdge(_ context.Context, write graph.EdgeWrite) error {
	if write.Type == "" || write.FromID == "" || write.ToID == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "badgerstore", "CreateEdge", "validate edge")
	}
	edge := &graph.Edge{
		ID:         write.ID,
		Type:       write.Type,
		FromID:     write.FromID,
		ToID:       write.ToID,
		Confidence: write.Confidence,
		Properties: write.Properties,
		CreatedAt:  time.Now().UTC(),
	}
	if edge.ID == "" {
		edge.ID = uuid.NewString()
	}
	val, err := json.Marshal(edge)
	if err != nil {
		return errors.WrapInvalid(err, "badgerstore", "CreateEdge", "encode edge")
	}
	err = s.db.Update(func(tx *badger.Txn) error {
		return tx.Set(edgeKey(write), val)
	})
	if err != nil {
		return errors.Wrap(err, "badgerstore", "CreateEdge", "write edge")
	}
	return nil
}

// GetNode implements graph.Store.
func (s *Store) GetNode(_ context.Context, id string) (*graph.Node, error) {
	var node graph.Node
	err := s.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get(nodeKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &node)
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, errors.WrapInvalid(errors.ErrNodeNotFound, "badgerstore", "GetNode", "lookup "+id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "badgerstore", "GetNode", "read node")
	}
	return &node, nil
}

// NodesByLabel implements graph.Store.
func (s *Store) NodesByLabel(ctx context.Context, label string) ([]*graph.Node, error) {
	var ids []string
	err := s.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(labelPrefix + label + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := iter.Item().Value(func(val []byte) error {
				ids = append(ids, string(val))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "badgerstore", "NodesByLabel", "scan label index")
	}
	sort.Strings(ids)

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
func (s *Store) EdgesFrom(_ context.Context, nodeID string) ([]*graph.Edge, error) {
	var out []*graph.Edge
	err := s.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = edgeScanPrefix(nodeID)
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			var edge graph.Edge
			if err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &edge)
			}); err != nil {
				return err
			}
			out = append(out, &edge)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "badgerstore", "EdgesFrom", "scan edges")
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// RawQuery implements graph.Store. Badger has no query engine.
func (s *Store) RawQuery(_ context.Context, _ string, _ map[string]any) ([]map[string]any, error) {
	return nil, errors.WrapInvalid(errors.ErrQueryNotSupported, "badgerstore", "RawQuery", "execute query")
}

// Close implements graph.Store.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, "badgerstore", "Close", "close database")
	}
	return nil
}
