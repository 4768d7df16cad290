package transport

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/carlosrabelo/stbmon/core/domain/entities"
)

var (
	clientCache   = make(map[string]Client)
	clientCacheMu sync.Mutex
)

func cacheKey(cfg entities.DeviceConfig) string {
	keyData := struct {
		Transport string
		Address   string
		Username  string
		Password  string
	}{
		Transport: cfg.Transport,
		Address:   cfg.Address(),
		Username:  cfg.Username,
		Password:  cfg.Password,
	}
	bytes, _ := json.Marshal(keyData)
	hash := sha256.Sum256(bytes)
	return hex.EncodeToString(hash[:])
}

// Get returns a cached client for the provided configuration or creates a new one
func Get(cfg entities.DeviceConfig, dialect Dialect, logger *slog.Logger) Client {
	clientCacheMu.Lock()
	defer clientCacheMu.Unlock()
	key := cacheKey(cfg)
	if client, exists := clientCache[key]; exists {
		return client
	}
	client := newClient(cfg, dialect, logger)
	clientCache[key] = client
	return client
}

// CloseAll releases every cached client session
func CloseAll() {
	clientCacheMu.Lock()
	defer clientCacheMu.Unlock()
	for key, client := range clientCache {
		client.Disconnect()
		delete(clientCache, key)
	}
}

func newClient(cfg entities.DeviceConfig, dialect Dialect, logger *slog.Logger) Client {
	if cfg.Transport == "ssh" {
		return NewSSHClient(cfg, dialect, logger)
	}
	return NewTelnetClient(cfg, dialect, logger)
}
