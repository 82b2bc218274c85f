package types

import (
	"errors"
	"fmt"
)

var (
	ErrConfigNotFound       = errors.New("config not found")
	ErrConfigParseFailed    = errors.New("config parse failed")
	ErrConfigValidateFailed = errors.New("config validate failed")
)

var (
	ErrCacheKeyEmpty               = errors.New("cache key empty")
	ErrCacheTypeUnknown            = errors.New("cache type unknown")
	ErrCacheIsDisabled             = errors.New("cache is disabled")
	ErrEvictionPolicyUnknown       = errors.New("eviction policy unknown")
	ErrInvalidationStrategyUnknown = errors.New("invalidation strategy unknown")
	ErrSerializationFailed         = errors.New("serialization failed")
)

var (
	ErrServerAlreadyRunning = errors.New("server already running")
	ErrServerNotRunning     = errors.New("server not running")
	ErrHandlerIsNil         = errors.New("handler is nil")
	ErrRouteNotFound        = errors.New("route not found")
)

var (
	ErrMetricsTypeUnknown = errors.New("metrics type unknown")
	ErrJanitorBadSchedule = errors.New("janitor schedule invalid")
)

func Errorf(baseErr error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", baseErr, fmt.Sprintf(format, args...))
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func NewErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

func IsError(err, target error) bool {
	return errors.Is(err, target)
}
