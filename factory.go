package prefixdb

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
)

// Factory resolves connection names to configurations and lazily opens one
// Connection per name. A Connection, once opened, is kept until Close.
type Factory struct {
	mu          sync.RWMutex
	configs     map[string]Config
	connections map[string]*Connection
	locks       *keyedMutex
	options     Options
	closed      bool
}

// NewFactory returns a Factory over a copy of configs. The options are passed
// to every Connection the factory opens.
func NewFactory(configs map[string]Config, opts ...Options) *Factory {
	f := &Factory{
		configs:     make(map[string]Config, len(configs)),
		connections: make(map[string]*Connection),
		locks:       newKeyedMutex(),
		options:     mergeOptions(opts...),
	}
	maps.Copy(f.configs, configs)
	return f
}

// GetConnection returns the Connection for name, opening it on first use.
// An unknown name yields a *ConfigurationError; open failures are returned
// as is and nothing is memoized, so a later call tries again.
func (f *Factory) GetConnection(ctx context.Context, name string) (*Connection, error) {
	if conn, ok, err := f.lookup(name); ok || err != nil {
		return conn, err
	}

	// Opening holds only this name's lock; other names are not blocked.
	unlock := f.locks.Lock(name)
	defer unlock()

	if conn, ok, err := f.lookup(name); ok || err != nil {
		return conn, err
	}

	cfg, err := f.GetConfig(name)
	if err != nil {
		return nil, err
	}
	conn, err := Open(ctx, cfg, f.options)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		_ = conn.Close()
		return nil, ErrClosed
	}
	f.connections[name] = conn
	f.logEvent(ctx, "connection created", name)
	return conn, nil
}

func (f *Factory) lookup(name string) (*Connection, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, false, ErrClosed
	}
	conn, ok := f.connections[name]
	return conn, ok, nil
}

// GetConfig returns a copy of the configuration stored for name.
func (f *Factory) GetConfig(name string) (Config, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	cfg, ok := f.configs[name]
	if !ok {
		return Config{}, &ConfigurationError{Connection: name}
	}
	return cfg, nil
}

// SetConfig stores cfg for name and returns f for chaining.
// A Connection already opened for name keeps its original configuration.
func (f *Factory) SetConfig(name string, cfg Config) *Factory {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs[name] = cfg
	return f
}

// Names returns the configured connection names in sorted order.
func (f *Factory) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Sorted(maps.Keys(f.configs))
}

// Close closes every opened Connection. The factory cannot be used afterwards.
func (f *Factory) Close() error {
	f.mu.Lock()
	conns := f.connections
	f.connections = make(map[string]*Connection)
	f.closed = true
	f.mu.Unlock()

	var errs []error
	for _, name := range slices.Sorted(maps.Keys(conns)) {
		errs = append(errs, conns[name].Close())
		f.logEvent(context.Background(), "connection closed", name)
	}
	return errors.Join(errs...)
}
