package driven

// ConfigStore provides persistent application configuration.
// Keys are flat strings such as "storage.backend" or
// "code.max_lines_per_chunk".
type ConfigStore interface {
	// Get retrieves a configuration value by key.
	Get(key string) (any, bool)

	// GetString retrieves a string value ("" when absent or wrong type).
	GetString(key string) string

	// GetInt retrieves an integer value (0 when absent or wrong type).
	GetInt(key string) int

	// GetBool retrieves a boolean value (false when absent or wrong type).
	GetBool(key string) bool

	// Set stores a configuration value.
	Set(key string, value any) error

	// Save persists the configuration.
	Save() error

	// Load reads the configuration from its backing store.
	Load() error
}
