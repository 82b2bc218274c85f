package middleware

import (
	"encoding/hex"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/restcache/restcache/types"
)

// buildCacheKey hashes method, path, the sorted query set and the values of
// whichever vary headers the request actually carries. Sorting both the
// query pairs and the header names means neither arrival order nor config
// order can change the key, and blake2b keeps it stable across restarts.
func buildCacheKey(req *types.Request, varyHeaders []string) string {
	parts := make([]string, 0, 3+len(varyHeaders))
	parts = append(parts, req.Method, req.Path)

	if len(req.QueryParams) > 0 {
		pairs := make([]string, 0, len(req.QueryParams))
		for _, qp := range req.QueryParams {
			pairs = append(pairs, qp.Key+"="+qp.Value)
		}
		sort.Strings(pairs)
		parts = append(parts, strings.Join(pairs, "&"))
	}

	names := append([]string(nil), varyHeaders...)
	sort.Strings(names)
	for _, name := range names {
		if value, ok := req.Header(name); ok {
			parts = append(parts, name+":"+value)
		}
	}

	sum := blake2b.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// normalizeHeaderNames lowercases and dedupes a vary-header list.
func normalizeHeaderNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		lowered := strings.ToLower(name)
		if _, dup := seen[lowered]; dup || lowered == "" {
			continue
		}
		seen[lowered] = struct{}{}
		out = append(out, lowered)
	}
	return out
}
