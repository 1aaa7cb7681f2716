package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// Factory builds an unconnected adapter. A nil logger means discard.
type Factory func(*slog.Logger) Adapter

// Driver describes a target type an adapter package provides.
type Driver struct {
	// Name is the target.type value selecting this driver
	Name string
	// New builds an unconnected adapter
	New Factory
	// DefaultSchema is used when the target leaves schema empty
	DefaultSchema string
	// DefaultPort is used for network targets that leave port unset
	DefaultPort int
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// Register makes a driver available under its lower-cased name. Adapter
// packages call it from init(); registering a name twice replaces it.
func Register(d Driver) {
	if d.Name == "" || d.New == nil {
		panic("adapter: Register needs a name and a factory")
	}
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[strings.ToLower(d.Name)] = d
}

// Lookup returns the driver registered for a target type.
func Lookup(name string) (Driver, bool) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[strings.ToLower(name)]
	return d, ok
}

// Names returns the registered target types, sorted.
func Names() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Open builds the adapter for cfg.Type. The adapter is not connected yet.
func Open(cfg Config, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, errors.New("adapter type not specified")
	}
	d, ok := Lookup(cfg.Type)
	if !ok {
		return nil, &UnknownAdapterError{Type: cfg.Type, Available: Names()}
	}
	return d.New(logger), nil
}

// UnknownAdapterError is returned for a target type no driver provides.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown target type %q (available: %s); check target.type in strata.yaml",
		e.Type, strings.Join(e.Available, ", "))
}
