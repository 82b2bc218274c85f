package invalidation

import (
	"go.uber.org/zap"

	"github.com/restcache/restcache/types"
)

const (
	tagKeysPrefix = "tag:"
	keyTagsPrefix = "tags:"
)

// TagStrategy maintains a two-sided index between free-form tags and cache
// keys so that all entries sharing a tag can be invalidated in one call.
type TagStrategy struct {
	backend types.CacheBackend
	logger  types.Logger
}

func NewTagStrategy(backend types.CacheBackend, logger types.Logger) *TagStrategy {
	return &TagStrategy{backend: backend, logger: logger}
}

// Tag idempotently adds key to each tag's key-set and each tag to the key's
// tag-set.
func (t *TagStrategy) Tag(key string, tags []string) error {
	if key == "" {
		return types.ErrCacheKeyEmpty
	}

	for _, tag := range tags {
		if tag == "" {
			continue
		}

		keys := readStringSet(t.backend, tagKeysPrefix+tag)
		if !contains(keys, key) {
			keys = append(keys, key)
			if err := t.backend.Set(tagKeysPrefix+tag, keys, types.NoExpiration); err != nil {
				return err
			}
		}

		tagsForKey := readStringSet(t.backend, keyTagsPrefix+key)
		if !contains(tagsForKey, tag) {
			tagsForKey = append(tagsForKey, tag)
			if err := t.backend.Set(keyTagsPrefix+key, tagsForKey, types.NoExpiration); err != nil {
				return err
			}
		}
	}

	return nil
}

// InvalidateTag deletes every key indexed under the tag, then the index
// entry itself. Keys already gone are skipped silently, so invalidating the
// same tag twice is safe.
func (t *TagStrategy) InvalidateTag(tag string) error {
	keys := readStringSet(t.backend, tagKeysPrefix+tag)

	for _, key := range keys {
		t.backend.Delete(key)
	}
	t.backend.Delete(tagKeysPrefix + tag)

	if len(keys) > 0 {
		t.logger.Debug("Invalidated tag", zap.String("tag", tag), zap.Int("keys", len(keys)))
	}

	return nil
}

// InvalidateTags runs a sequential per-tag invalidation; it is not a single
// atomic batch.
func (t *TagStrategy) InvalidateTags(tags []string) error {
	for _, tag := range tags {
		if err := t.InvalidateTag(tag); err != nil {
			return err
		}
	}
	return nil
}

func (t *TagStrategy) KeysForTag(tag string) []string {
	return readStringSet(t.backend, tagKeysPrefix+tag)
}

func (t *TagStrategy) Invalidate(pattern string) error {
	return t.InvalidateTag(pattern)
}

func (t *TagStrategy) Bind(key string, labels []string) error {
	return t.Tag(key, labels)
}

func (t *TagStrategy) MetadataHeader() string {
	return "X-Cache-Tags"
}
