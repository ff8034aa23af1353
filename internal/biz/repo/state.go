package repo

// StateRepo is the durable key/value state interface
// Responsible for persisting the poll cursor across restarts (SQLite)
type StateRepo interface {
	// Get returns the stored value for a key, or "" when absent
	Get(key string) (string, error)

	// Set stores a value under a key
	Set(key, value string) error

	// Close closes the underlying store
	Close() error
}
