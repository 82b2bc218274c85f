package invalidation

import (
	"go.uber.org/zap"

	"github.com/restcache/restcache/types"
)

const (
	depKeysPrefix = "dep:"
	revDepsPrefix = "revdep:"
)

// DependencyStrategy models one-to-many data relationships between cache
// entries ("this cached list depends on post:123"). Invalidation cascades
// exactly one level: direct dependents go, transitive ones stay.
type DependencyStrategy struct {
	backend types.CacheBackend
	logger  types.Logger
}

func NewDependencyStrategy(backend types.CacheBackend, logger types.Logger) *DependencyStrategy {
	return &DependencyStrategy{backend: backend, logger: logger}
}

// AddDependency records that key depends on dependency, updating both sides
// of the index idempotently.
func (d *DependencyStrategy) AddDependency(key, dependency string) error {
	if key == "" {
		return types.ErrCacheKeyEmpty
	}
	if dependency == "" {
		return nil
	}

	dependents := readStringSet(d.backend, depKeysPrefix+dependency)
	if !contains(dependents, key) {
		dependents = append(dependents, key)
		if err := d.backend.Set(depKeysPrefix+dependency, dependents, types.NoExpiration); err != nil {
			return err
		}
	}

	deps := readStringSet(d.backend, revDepsPrefix+key)
	if !contains(deps, dependency) {
		deps = append(deps, dependency)
		if err := d.backend.Set(revDepsPrefix+key, deps, types.NoExpiration); err != nil {
			return err
		}
	}

	return nil
}

func (d *DependencyStrategy) AddDependencies(key string, dependencies []string) error {
	for _, dependency := range dependencies {
		if err := d.AddDependency(key, dependency); err != nil {
			return err
		}
	}
	return nil
}

// InvalidateKey removes every direct dependent of key, then the key's own
// index entries, then the key itself. The cascade is one level deep by
// design; callers needing transitive invalidation chain explicit calls.
func (d *DependencyStrategy) InvalidateKey(key string) error {
	dependents := readStringSet(d.backend, depKeysPrefix+key)

	for _, dependent := range dependents {
		d.backend.Delete(dependent)
		d.backend.Delete(revDepsPrefix + dependent)
	}

	d.backend.Delete(depKeysPrefix + key)
	d.backend.Delete(key)
	d.backend.Delete(revDepsPrefix + key)

	if len(dependents) > 0 {
		d.logger.Debug("Invalidated key with dependents",
			zap.String("key", key), zap.Int("dependents", len(dependents)))
	}

	return nil
}

// InvalidateDependency is the same one-level cascade addressed by
// dependency name; the dependency itself is an index label, not a cache
// entry, so only its index record is removed.
func (d *DependencyStrategy) InvalidateDependency(dependency string) error {
	dependents := readStringSet(d.backend, depKeysPrefix+dependency)

	for _, dependent := range dependents {
		d.backend.Delete(dependent)
		d.backend.Delete(revDepsPrefix + dependent)
	}

	d.backend.Delete(depKeysPrefix + dependency)

	if len(dependents) > 0 {
		d.logger.Debug("Invalidated dependency",
			zap.String("dependency", dependency), zap.Int("dependents", len(dependents)))
	}

	return nil
}

func (d *DependencyStrategy) Dependencies(key string) []string {
	return readStringSet(d.backend, revDepsPrefix+key)
}

func (d *DependencyStrategy) Dependents(key string) []string {
	return readStringSet(d.backend, depKeysPrefix+key)
}

func (d *DependencyStrategy) Invalidate(pattern string) error {
	return d.InvalidateDependency(pattern)
}

func (d *DependencyStrategy) Bind(key string, labels []string) error {
	return d.AddDependencies(key, labels)
}

func (d *DependencyStrategy) MetadataHeader() string {
	return "X-Cache-Dependencies"
}
