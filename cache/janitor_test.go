package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restcache/restcache/types"
)

func TestNewJanitorDisabled(t *testing.T) {
	janitor, err := NewJanitor(nil, testLogger())
	require.NoError(t, err)
	assert.Nil(t, janitor)

	janitor, err = NewJanitor(&types.JanitorConfig{Enabled: false}, testLogger())
	require.NoError(t, err)
	assert.Nil(t, janitor)
}

func TestNewJanitorRejectsBadSchedule(t *testing.T) {
	_, err := NewJanitor(&types.JanitorConfig{Enabled: true, Schedule: "whenever"}, testLogger())
	require.Error(t, err)
	assert.True(t, types.IsError(err, types.ErrJanitorBadSchedule))
}

func TestJanitorLifecycle(t *testing.T) {
	janitor, err := NewJanitor(&types.JanitorConfig{Enabled: true, Schedule: "@every 1h"}, testLogger())
	require.NoError(t, err)
	require.NotNil(t, janitor)

	backend := newTestMemoryBackend(t, nil)
	janitor.Register(backend)

	require.NoError(t, janitor.Start())
	assert.Error(t, janitor.Start())
	require.NoError(t, janitor.Stop())
}

func TestJanitorSweepsRegisteredBackends(t *testing.T) {
	janitor, err := NewJanitor(&types.JanitorConfig{Enabled: true, Schedule: "@every 1h"}, testLogger())
	require.NoError(t, err)

	backend := newTestMemoryBackend(t, nil)
	require.NoError(t, backend.Set("dead", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	janitor.Register(backend)
	janitor.sweepAll()

	assert.Equal(t, 0, backend.Stats().ItemCount)
}
