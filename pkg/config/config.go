package config

import (
	"strings"

	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/merklekit/merklekit/pkg/hasher"
)

// Environment variable names for server configuration
const (
	EnvMerklePort          = "MERKLE_PORT"
	EnvMerkleAlgorithm     = "MERKLE_ALGORITHM"
	EnvMerkleStoreBackend  = "MERKLE_STORE_BACKEND"
	EnvMerkleDataDir       = "MERKLE_DATA_DIR"
	EnvMerkleRedisAddress  = "MERKLE_REDIS_ADDRESS"
	EnvMerkleRedisPassword = "MERKLE_REDIS_PASSWORD"
	EnvMerkleRedisDB       = "MERKLE_REDIS_DB"
	EnvMerkleVerbose       = "MERKLE_VERBOSE"
)

// StoreBackend selects the persistence implementation
type StoreBackend string

func (s StoreBackend) String() string {
	return string(s)
}

const (
	StoreBackendMemory StoreBackend = "memory"
	StoreBackendBadger StoreBackend = "badger"
	StoreBackendRedis  StoreBackend = "redis"
)

// SupportedStoreBackends returns all valid store backends
func SupportedStoreBackends() []StoreBackend {
	return []StoreBackend{StoreBackendMemory, StoreBackendBadger, StoreBackendRedis}
}

// SupportedStoreBackendsString returns backend names for CLI help
func SupportedStoreBackendsString() string {
	names := make([]string, 0)
	for _, b := range SupportedStoreBackends() {
		names = append(names, string(b))
	}
	return strings.Join(names, ", ")
}

// ServerConfig represents the complete configuration for a merkle tree server
type ServerConfig struct {
	// HTTP server port
	Port int `json:"port"`

	// Algorithm is the default hash algorithm for new trees
	Algorithm string `json:"algorithm"`

	// Persistence
	StoreBackend  StoreBackend `json:"store_backend"`
	DataDir       string       `json:"data_dir"`                 // badger only
	RedisAddress  string       `json:"redis_address"`            // redis only
	RedisPassword string       `json:"redis_password,omitempty"` // redis only
	RedisDB       int          `json:"redis_db"`                 // redis only

	// RequestsPerSecond caps tree creation throughput; 0 disables limiting
	RequestsPerSecond float64 `json:"requests_per_second"`

	// Operational settings
	Verbose bool `json:"verbose"`
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	var allErrors field.ErrorList

	if c.Port < 1 || c.Port > 65535 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("port"), c.Port, "port must be between 1-65535"))
	}

	if !isSupportedAlgorithm(c.Algorithm) {
		allErrors = append(allErrors, field.NotSupported(field.NewPath("algorithm"), c.Algorithm, hasher.SupportedAlgorithms()))
	}

	switch c.StoreBackend {
	case StoreBackendMemory:
		// No extra settings required
	case StoreBackendBadger:
		if c.DataDir == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("dataDir"), "data directory is required for the badger backend"))
		}
	case StoreBackendRedis:
		if c.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("redisAddress"), "redis address is required for the redis backend"))
		}
		if c.RedisDB < 0 || c.RedisDB > 15 {
			allErrors = append(allErrors, field.Invalid(field.NewPath("redisDB"), c.RedisDB, "redis DB must be between 0-15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("storeBackend"), string(c.StoreBackend), backendNames()))
	}

	if c.RequestsPerSecond < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("requestsPerSecond"), c.RequestsPerSecond, "rate limit cannot be negative"))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

func isSupportedAlgorithm(name string) bool {
	for _, a := range hasher.SupportedAlgorithms() {
		if a == name {
			return true
		}
	}
	return false
}

func backendNames() []string {
	names := make([]string, 0)
	for _, b := range SupportedStoreBackends() {
		names = append(names, string(b))
	}
	return names
}

// GetSupportedAlgorithmsString returns algorithm names for CLI help
func GetSupportedAlgorithmsString() string {
	return strings.Join(hasher.SupportedAlgorithms(), ", ")
}
