package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration
type Config struct {
	// Assistant identity configuration
	Assistant AssistantConfig

	// Local database locations
	Store StoreConfig

	// Sync engine configuration
	Sync SyncConfig

	// HTTP control API configuration
	API APIConfig

	// Registry seed: chat jids registered at startup
	RegisteredChats []string

	// Debug mode
	Debug bool
}

// AssistantConfig identifies the assistant in chat threads
type AssistantConfig struct {
	// Name is the display prefix for bot messages
	Name string

	// HasOwnNumber is true when the assistant sends from a dedicated
	// address. When false the assistant shares the user's address and is
	// identified by the "Name: " text prefix instead.
	HasOwnNumber bool
}

// StoreConfig locates the local databases
type StoreConfig struct {
	// ChatDBPath is the read-only Messages chat.db
	ChatDBPath string

	// StateDBPath is the durable router-state database
	StateDBPath string
}

// SyncConfig controls the polling loop
type SyncConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// APIConfig controls the HTTP control surface; Port 0 disables it
type APIConfig struct {
	Port int
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	homeDir, _ := os.UserHomeDir()

	chatDBPath := os.Getenv("CHAT_DB_PATH")
	if chatDBPath == "" {
		chatDBPath = filepath.Join(homeDir, "Library", "Messages", "chat.db")
	}

	stateDBPath := os.Getenv("STATE_DB_PATH")
	if stateDBPath == "" {
		stateDBPath = filepath.Join(homeDir, ".imessage-channel", "state.db")
	}

	assistantName := os.Getenv("ASSISTANT_NAME")
	if assistantName == "" {
		assistantName = "Andy"
	}

	return &Config{
		Assistant: AssistantConfig{
			Name:         assistantName,
			HasOwnNumber: os.Getenv("ASSISTANT_HAS_OWN_NUMBER") == "true",
		},
		Store: StoreConfig{
			ChatDBPath:  chatDBPath,
			StateDBPath: stateDBPath,
		},
		Sync: SyncConfig{
			PollInterval: time.Duration(getEnvInt("POLL_INTERVAL_MS", 2000)) * time.Millisecond,
			BatchSize:    getEnvInt("BATCH_SIZE", 500),
		},
		API: APIConfig{
			Port: getEnvInt("API_PORT", 9877),
		},
		RegisteredChats: splitList(os.Getenv("REGISTERED_CHATS")),
		Debug:           os.Getenv("DEBUG") == "true",
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Assistant.Name == "" {
		return &ConfigError{Field: "ASSISTANT_NAME", Message: "must not be empty"}
	}
	if c.Sync.BatchSize <= 0 {
		return &ConfigError{Field: "BATCH_SIZE", Message: "must be positive"}
	}
	if c.Sync.PollInterval <= 0 {
		return &ConfigError{Field: "POLL_INTERVAL_MS", Message: "must be positive"}
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		return &ConfigError{Field: "API_PORT", Message: "out of range"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func splitList(val string) []string {
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
