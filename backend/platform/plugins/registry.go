package plugins

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vitiko98/mopidy-qobuz/backend"
	"github.com/vitiko98/mopidy-qobuz/backend/config"
	logpkg "github.com/vitiko98/mopidy-qobuz/backend/logger"
	"github.com/vitiko98/mopidy-qobuz/backend/metrics"
	"github.com/vitiko98/mopidy-qobuz/backend/platform"
)

// Contribution describes the components a plugin can provide.
type Contribution struct {
	Backend platform.Backend
}

// Deps carries the shared services a plugin factory may use.
type Deps struct {
	Config   *config.Config
	Logger   *logpkg.Logger
	Sessions backend.SessionRepository
	Pool     backend.WorkerPool
	Metrics  *metrics.Metrics
}

// Factory creates a plugin contribution from shared dependencies.
type Factory func(deps Deps) (*Contribution, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register registers a plugin factory by name.
func Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("plugin name required")
	}
	if factory == nil {
		return fmt.Errorf("plugin factory required")
	}
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[name]; exists {
		return fmt.Errorf("plugin %s already registered", name)
	}
	factories[name] = factory
	return nil
}

// Get returns a registered factory by name.
func Get(name string) (Factory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	factory, ok := factories[name]
	return factory, ok
}

// Names returns all registered plugin names.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	nameList := make([]string, 0, len(factories))
	for name := range factories {
		nameList = append(nameList, name)
	}
	sort.Strings(nameList)
	return nameList
}
