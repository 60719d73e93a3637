// Package config handles shimmy's environment-variable configuration.
//
// shimmy takes all of its configuration from environment variables so it
// can run unmodified in a container, a systemd unit, or a developer's shell.
// Configuration is organized into logical sections and loaded with
// LoadFromEnv, then validated with Validate before use.
//
// Example Usage:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
//
// Environment Variables:
//
//   - SHIMMY_BASE_GGUF: default base model path, seeds one registry entry
//   - SHIMMY_LORA_GGUF: default LoRA adapter path for that entry
//   - SHIMMY_MODEL_PATHS: semicolon-separated extra discovery roots
//   - OLLAMA_MODELS: Ollama root to scan
//   - SHIMMY_BIND_ADDRESS: HTTP bind address when the CLI requests "auto"
//   - SHIMMY_PORT: HTTP port when SHIMMY_BIND_ADDRESS is unset
//   - SHIMMY_GPU_BACKEND: auto|cpu|cuda|vulkan|opencl
//   - SHIMMY_CACHE_DIR, SHIMMY_CACHE_MAX_ENTRIES, SHIMMY_CACHE_TTL
//   - SHIMMY_PRELOAD: semicolon-separated model names to load at startup
//   - SHIMMY_WORKER_POOL_SIZE: concurrent generation slots (0 = GOMAXPROCS)
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all of shimmy's configuration loaded from the environment.
type Config struct {
	Discovery DiscoveryConfig
	Server    ServerConfig
	Engine    EngineConfig
	Cache     CacheConfig
	Logging   LoggingConfig
}

// DiscoveryConfig controls model auto-discovery.
type DiscoveryConfig struct {
	// BaseGGUF seeds one manual registry entry pointing at a single GGUF file.
	BaseGGUF string
	// LoRAGGUF is the adapter paired with BaseGGUF, if any.
	LoRAGGUF string
	// ExtraPaths are additional roots to scan, beyond the built-in defaults.
	ExtraPaths []string
	// OllamaRoot overrides the default Ollama models directory.
	OllamaRoot string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// BindAddress is the address to listen on. Empty means "auto": listen on
	// all interfaces using Port.
	BindAddress string
	// Port is used when BindAddress is empty.
	Port int
	// Preload lists model names to load eagerly before accepting connections.
	Preload []string
	// WorkerPoolSize bounds concurrent blocking generation calls. 0 means
	// GOMAXPROCS; a negative value disables pooling entirely.
	WorkerPoolSize int
}

// EngineConfig holds inference-engine settings.
type EngineConfig struct {
	// GPUBackend is one of "auto", "cpu", "cuda", "vulkan", "opencl".
	GPUBackend string
}

// CacheConfig holds response-cache settings.
type CacheConfig struct {
	// Enabled turns the response cache on or off entirely.
	Enabled bool
	// Dir is the Badger data directory backing the cache.
	Dir string
	// MaxEntries bounds the in-memory cache size; the least recently used
	// entry is evicted past it.
	MaxEntries int
	// TTL is the per-entry time-to-live.
	TTL time.Duration
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Verbose enables debug-level log lines.
	Verbose bool
}

// LoadFromEnv builds a Config from the process environment, applying
// defaults for anything unset.
func LoadFromEnv() *Config {
	return &Config{
		Discovery: DiscoveryConfig{
			BaseGGUF:   getEnv("SHIMMY_BASE_GGUF", ""),
			LoRAGGUF:   getEnv("SHIMMY_LORA_GGUF", ""),
			ExtraPaths: getEnvSemicolonSlice("SHIMMY_MODEL_PATHS", nil),
			OllamaRoot: getEnv("OLLAMA_MODELS", ""),
		},
		Server: ServerConfig{
			BindAddress:    getEnv("SHIMMY_BIND_ADDRESS", ""),
			Port:           getEnvInt("SHIMMY_PORT", 11435),
			Preload:        getEnvSemicolonSlice("SHIMMY_PRELOAD", nil),
			WorkerPoolSize: getEnvInt("SHIMMY_WORKER_POOL_SIZE", 0),
		},
		Engine: EngineConfig{
			GPUBackend: strings.ToLower(getEnv("SHIMMY_GPU_BACKEND", "auto")),
		},
		Cache: CacheConfig{
			Enabled:    getEnvBool("SHIMMY_CACHE_ENABLED", true),
			Dir:        getEnv("SHIMMY_CACHE_DIR", "./.shimmy-cache"),
			MaxEntries: getEnvInt("SHIMMY_CACHE_MAX_ENTRIES", 10000),
			TTL:        getEnvDuration("SHIMMY_CACHE_TTL", time.Hour),
		},
		Logging: LoggingConfig{
			Verbose: getEnvBool("SHIMMY_VERBOSE", false),
		},
	}
}

// Validate checks the config for internally inconsistent values.
func (c *Config) Validate() error {
	switch c.Engine.GPUBackend {
	case "auto", "cpu", "cuda", "vulkan", "opencl":
	default:
		return fmt.Errorf("invalid SHIMMY_GPU_BACKEND %q: must be one of auto|cpu|cuda|vulkan|opencl", c.Engine.GPUBackend)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SHIMMY_PORT %d: must be in 1..65535", c.Server.Port)
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("invalid SHIMMY_CACHE_MAX_ENTRIES %d: must be >= 0", c.Cache.MaxEntries)
	}
	if c.Discovery.LoRAGGUF != "" && c.Discovery.BaseGGUF == "" {
		return fmt.Errorf("SHIMMY_LORA_GGUF set without SHIMMY_BASE_GGUF")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

func getEnvSemicolonSlice(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parts := strings.Split(val, ";")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultVal
	}
	return result
}
