package redis

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/merklekit/merklekit/pkg/persistence"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixTree        = "merkle:tree:"
	keyPrefixProof       = "merkle:proof:"
	keySchemaVersion     = "merkle:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Key set for listing operations (Redis doesn't support prefix iteration natively)
	keySetTrees = "merkle:trees:index"
)

// RedisStore is a production-ready tree store using Redis.
// Provides durable, distributed storage suitable for cloud-native deployments.
type RedisStore struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string // Custom prefix for all keys
	mu        sync.RWMutex
	closed    bool
}

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is an optional custom prefix for all keys (for multi-tenant
	// setups). If set, it is prepended to all keys, e.g. "myapp:" results in
	// keys like "myapp:merkle:tree:<id>".
	KeyPrefix string
}

// NewRedisStore creates a new Redis-backed tree store.
func NewRedisStore(cfg *RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	opts := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rs := &RedisStore{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rs.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis tree store initialized", "address", cfg.Address, "db", cfg.DB)

	return rs, nil
}

// prefixKey adds the custom key prefix (if configured) to a key
func (r *RedisStore) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

// initSchema initializes or validates the schema version
func (r *RedisStore) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}

	return nil
}

func (r *RedisStore) treeKey(id string) string {
	return r.prefixKey(keyPrefixTree + id)
}

func (r *RedisStore) proofKey(treeID string, leafIndex int) string {
	return r.prefixKey(fmt.Sprintf("%s%s:%d", keyPrefixProof, treeID, leafIndex))
}

// SaveTree persists a tree record
func (r *RedisStore) SaveTree(record *persistence.TreeRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil TreeRecord")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("tree store is closed")
	}

	ctx := context.Background()

	data, err := persistence.MarshalTreeRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal TreeRecord: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.treeKey(record.ID), data, 0)
	pipe.SAdd(ctx, r.prefixKey(keySetTrees), record.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save TreeRecord: %w", err)
	}

	return nil
}

// LoadTree retrieves a tree record by ID
func (r *RedisStore) LoadTree(id string) (*persistence.TreeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("tree store is closed")
	}

	ctx := context.Background()

	data, err := r.client.Get(ctx, r.treeKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load TreeRecord: %w", err)
	}

	record, err := persistence.UnmarshalTreeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal TreeRecord: %w", err)
	}

	return record, nil
}

// ListTreeIDs returns all tree IDs sorted ascending
func (r *RedisStore) ListTreeIDs() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("tree store is closed")
	}

	ctx := context.Background()

	ids, err := r.client.SMembers(ctx, r.prefixKey(keySetTrees)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tree IDs: %w", err)
	}

	sort.Strings(ids)
	return ids, nil
}

// DeleteTree removes a tree record and all proofs stored for it
func (r *RedisStore) DeleteTree(id string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("tree store is closed")
	}

	ctx := context.Background()

	// Collect proof keys for this tree before deleting
	pattern := r.prefixKey(keyPrefixProof + id + ":*")
	proofKeys, err := r.client.Keys(ctx, pattern).Result()
	if err != nil {
		return fmt.Errorf("failed to scan proof keys: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.treeKey(id))
	pipe.SRem(ctx, r.prefixKey(keySetTrees), id)
	if len(proofKeys) > 0 {
		pipe.Del(ctx, proofKeys...)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete TreeRecord: %w", err)
	}

	return nil
}

// SaveProof persists a proof record
func (r *RedisStore) SaveProof(record *persistence.ProofRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil ProofRecord")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("tree store is closed")
	}

	ctx := context.Background()

	data, err := persistence.MarshalProofRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal ProofRecord: %w", err)
	}

	key := r.proofKey(record.TreeID, record.LeafIndex)
	if err := r.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save ProofRecord: %w", err)
	}

	return nil
}

// LoadProof retrieves a proof record by tree ID and leaf index
func (r *RedisStore) LoadProof(treeID string, leafIndex int) (*persistence.ProofRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("tree store is closed")
	}

	ctx := context.Background()

	data, err := r.client.Get(ctx, r.proofKey(treeID, leafIndex)).Bytes()
	if err == redis.Nil {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ProofRecord: %w", err)
	}

	record, err := persistence.UnmarshalProofRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal ProofRecord: %w", err)
	}

	return record, nil
}

// Close shuts down the store
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil // Already closed, idempotent
	}
	r.closed = true

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis tree store closed")
	return nil
}

// HealthCheck verifies the store is operational
func (r *RedisStore) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("tree store is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	return nil
}
