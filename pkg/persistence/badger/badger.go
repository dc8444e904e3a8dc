package badger

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/merklekit/merklekit/pkg/persistence"
)

// Key prefixes for namespacing
const (
	keyPrefixTree        = "tree:"
	keyPrefixProof       = "proof:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerStore is a production-ready tree store using Badger.
// Provides durable, disk-based storage with ACID guarantees.
type BadgerStore struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

// NewBadgerStore creates a new Badger-backed tree store.
// The database is opened at the specified path with SyncWrites enabled for
// durability. A background goroutine is started for garbage collection.
func NewBadgerStore(dataPath string, logger *zap.Logger) (*BadgerStore, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true // fsync on every write
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bs := &BadgerStore{
		db:     db,
		logger: logger,
	}

	if err := bs.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bs.gcCancel = cancel
	bs.gcWg.Add(1)
	go bs.runGC(ctx)

	logger.Sugar().Infow("Badger tree store initialized", "path", absPath)

	return bs, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerStore) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}

		return nil
	})
}

// runGC runs periodic garbage collection in the background
func (b *BadgerStore) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func treeKey(id string) []byte {
	return []byte(keyPrefixTree + id)
}

func proofKey(treeID string, leafIndex int) []byte {
	return []byte(fmt.Sprintf("%s%s:%d", keyPrefixProof, treeID, leafIndex))
}

// SaveTree persists a tree record
func (b *BadgerStore) SaveTree(record *persistence.TreeRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil TreeRecord")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("tree store is closed")
	}

	data, err := persistence.MarshalTreeRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal TreeRecord: %w", err)
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(treeKey(record.ID), data)
	})
}

// LoadTree retrieves a tree record by ID
func (b *BadgerStore) LoadTree(id string) (*persistence.TreeRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("tree store is closed")
	}

	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(treeKey(id))
		if err == badgerdb.ErrKeyNotFound {
			return nil // Not found is not an error
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...) // Copy value
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to load TreeRecord: %w", err)
	}

	if data == nil {
		return nil, nil // Not found
	}

	record, err := persistence.UnmarshalTreeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal TreeRecord: %w", err)
	}

	return record, nil
}

// ListTreeIDs returns all tree IDs sorted ascending
func (b *BadgerStore) ListTreeIDs() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("tree store is closed")
	}

	ids := make([]string, 0)

	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixTree)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			ids = append(ids, strings.TrimPrefix(key, keyPrefixTree))
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list TreeRecords: %w", err)
	}

	sort.Strings(ids)
	return ids, nil
}

// DeleteTree removes a tree record and all proofs stored for it
func (b *BadgerStore) DeleteTree(id string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("tree store is closed")
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		if err := txn.Delete(treeKey(id)); err != nil {
			return err
		}

		// Collect and delete proof keys for this tree
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixProof + id + ":")
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		return nil
	})
}

// SaveProof persists a proof record
func (b *BadgerStore) SaveProof(record *persistence.ProofRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil ProofRecord")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("tree store is closed")
	}

	data, err := persistence.MarshalProofRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal ProofRecord: %w", err)
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(proofKey(record.TreeID, record.LeafIndex), data)
	})
}

// LoadProof retrieves a proof record by tree ID and leaf index
func (b *BadgerStore) LoadProof(treeID string, leafIndex int) (*persistence.ProofRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("tree store is closed")
	}

	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(proofKey(treeID, leafIndex))
		if err == badgerdb.ErrKeyNotFound {
			return nil // Not found is not an error
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...) // Copy value
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to load ProofRecord: %w", err)
	}

	if data == nil {
		return nil, nil // Not found
	}

	record, err := persistence.UnmarshalProofRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal ProofRecord: %w", err)
	}

	return record, nil
}

// Close shuts down the store
func (b *BadgerStore) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil // Already closed, idempotent
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger tree store closed")
	return nil
}

// HealthCheck verifies the store is operational
func (b *BadgerStore) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("tree store is closed")
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}
