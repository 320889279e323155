package hdb

import (
	"fmt"
	"slices"
)

// Driver registers a connector constructor with an availability check.
type Driver struct {
	New       func() Connector
	Available func() bool
}

// registry maps driver names to their constructors.
var registry = map[string]Driver{}

// DefaultPreference is the order Probe tries drivers in when none is given.
var DefaultPreference = []string{GoHDBDriver, HdbsqlDriver}

// Register adds a driver to the registry.
func Register(name string, d Driver) {
	registry[name] = d
}

// New returns a new connector by driver name, or an error if not found.
func New(name string) (Connector, error) {
	d, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown driver %q (valid: %v)", name, ValidDrivers())
	}
	return d.New(), nil
}

// Probe returns the first available driver out of preference, or
// DefaultPreference when preference is empty.
func Probe(preference ...string) (string, error) {
	if len(preference) == 0 {
		preference = DefaultPreference
	}
	for _, name := range preference {
		d, ok := registry[name]
		if !ok {
			continue
		}
		if d.Available == nil || d.Available() {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: tried %v", ErrDriverNotAvailable, preference)
}

// Open probes for a driver when name is "auto" or empty and returns a new
// connector for it.
func Open(name string) (Connector, error) {
	if name == "" || name == "auto" {
		probed, err := Probe()
		if err != nil {
			return nil, err
		}
		name = probed
	}
	return New(name)
}

// ValidDrivers returns the sorted list of registered driver names.
func ValidDrivers() []string {
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}
