//go:build integration

package containers

import (
	"sync"
)

// Manager hands out shared containers so suites in the same package reuse one
// instance instead of paying startup cost per suite. Ryuk reaps everything
// when the test process exits.
type Manager struct {
	mu       sync.Mutex
	postgres *PostgresContainer
	redis    *RedisContainer
}

var (
	managerOnce sync.Once
	manager     *Manager
)

// GetManager returns the process-wide container manager.
func GetManager() *Manager {
	managerOnce.Do(func() {
		manager = &Manager{}
	})
	return manager
}
