package backend

import (
	"fmt"

	"compta/internal/config"
	"compta/internal/settings"
)

// FromAppConfig converts the application config to backend config. A
// storage_dir chosen in the settings document wins over COMPTA_DATA_DIR.
func FromAppConfig(appConfig *config.Config, doc settings.Document) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.LedgerBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.LedgerBackend)
	}

	dir := appConfig.DataDir
	if doc.StorageDir != "" {
		dir = doc.StorageDir
	}

	return Config{
		Type:          backendType,
		DataDirectory: dir,
		SQLiteDBPath:  appConfig.SQLiteDBPath,
		AMQPURL:       appConfig.AMQPURL,
		AMQPExchange:  appConfig.AMQPExchange,
		AMQPQueue:     appConfig.AMQPQueue,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case XLSXBackend:
		if c.DataDirectory == "" {
			return fmt.Errorf("data directory is required for xlsx backend")
		}
	case MemoryBackend:
	}

	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return fmt.Errorf("AMQP exchange and queue are required when AMQP URL is set")
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{XLSXBackend, MemoryBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	strings := make([]string, len(types))
	for i, t := range types {
		strings[i] = t.String()
	}
	return strings
}
