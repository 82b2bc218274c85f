package invalidation

import (
	"github.com/restcache/restcache/types"
	"github.com/restcache/restcache/utils"
)

const (
	StrategyTags         = "tags"
	StrategyDependencies = "dependencies"
)

// Strategy groups cache entries under logical labels and busts them in bulk.
// Index entries live in the same backend as the data, under reserved key
// prefixes, and are maintained with plain read-modify-write: concurrent
// writers of the same label can race. That staleness window is accepted;
// the backend only offers get/set/delete, not transactions.
type Strategy interface {
	types.Invalidatable

	// Bind associates an entry with the strategy's labels (tags or
	// dependencies).
	Bind(key string, labels []string) error

	// MetadataHeader names the response header the strategy reads its
	// labels from.
	MetadataHeader() string
}

// NewStrategy resolves the configured strategy. A disabled config yields a
// nil strategy; unknown names are rejected at construction time.
func NewStrategy(config *types.InvalidationConfig, backend types.CacheBackend, logger types.Logger) (Strategy, error) {
	if config == nil || !config.Enabled {
		return nil, nil
	}

	switch config.Strategy {
	case StrategyTags:
		return NewTagStrategy(backend, logger), nil
	case StrategyDependencies:
		return NewDependencyStrategy(backend, logger), nil
	default:
		return nil, types.Errorf(types.ErrInvalidationStrategyUnknown, "strategy: %s", config.Strategy)
	}
}

// readStringSet loads an index entry, tolerating the generic shapes a
// remote backend's serializer hands back.
func readStringSet(backend types.CacheBackend, key string) []string {
	value, ok := backend.Get(key)
	if !ok {
		return nil
	}
	return toStringSlice(value)
}

func toStringSlice(value interface{}) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []byte:
		var out []string
		if err := utils.Unmarshal(v, &out); err != nil {
			return nil
		}
		return out
	default:
		return nil
	}
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
