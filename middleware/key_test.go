package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/restcache/restcache/types"
)

func TestBuildCacheKeyIsStable(t *testing.T) {
	req := func() *types.Request {
		return types.NewRequest("GET", "/users").
			AddQueryParam("page", "2").
			AddQueryParam("sort", "name").
			SetHeader("Accept", "application/json")
	}

	a := buildCacheKey(req(), []string{"accept"})
	b := buildCacheKey(req(), []string{"accept"})

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestBuildCacheKeyQueryOrderIndependent(t *testing.T) {
	a := buildCacheKey(types.NewRequest("GET", "/u").AddQueryParam("a", "1").AddQueryParam("b", "2"), nil)
	b := buildCacheKey(types.NewRequest("GET", "/u").AddQueryParam("b", "2").AddQueryParam("a", "1"), nil)

	assert.Equal(t, a, b)
}

func TestBuildCacheKeyDiscriminates(t *testing.T) {
	base := buildCacheKey(types.NewRequest("GET", "/users"), []string{"accept"})

	otherPath := buildCacheKey(types.NewRequest("GET", "/posts"), []string{"accept"})
	otherMethod := buildCacheKey(types.NewRequest("HEAD", "/users"), []string{"accept"})
	withQuery := buildCacheKey(types.NewRequest("GET", "/users").AddQueryParam("p", "1"), []string{"accept"})
	withVary := buildCacheKey(types.NewRequest("GET", "/users").SetHeader("Accept", "text/html"), []string{"accept"})

	assert.NotEqual(t, base, otherPath)
	assert.NotEqual(t, base, otherMethod)
	assert.NotEqual(t, base, withQuery)
	assert.NotEqual(t, base, withVary)
}

func TestBuildCacheKeyVaryListOrderIndependent(t *testing.T) {
	req := func() *types.Request {
		return types.NewRequest("GET", "/users").
			SetHeader("Accept", "application/json").
			SetHeader("Accept-Encoding", "gzip")
	}

	a := buildCacheKey(req(), []string{"accept", "accept-encoding"})
	b := buildCacheKey(req(), []string{"accept-encoding", "accept"})

	assert.Equal(t, a, b)
}

func TestNormalizeHeaderNames(t *testing.T) {
	names := normalizeHeaderNames([]string{"Accept", "accept", "", "Authorization"})
	assert.Equal(t, []string{"accept", "authorization"}, names)
}
