package cache

import (
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/restcache/restcache/types"
)

// Janitor drives forced expiry sweeps on a cron schedule, complementing the
// lazy sweep the memory backend runs from its own write path.
type Janitor struct {
	logger   types.Logger
	config   *types.JanitorConfig
	cron     *cron.Cron
	mu       sync.Mutex
	sweepers []types.Sweeper
	running  bool
}

func NewJanitor(config *types.JanitorConfig, logger types.Logger) (*Janitor, error) {
	if config == nil || !config.Enabled {
		return nil, nil
	}

	if _, err := cron.ParseStandard(config.Schedule); err != nil {
		return nil, types.Errorf(types.ErrJanitorBadSchedule, "schedule %q: %v", config.Schedule, err)
	}

	return &Janitor{
		logger: logger,
		config: config,
		cron:   cron.New(),
	}, nil
}

// Register adds a backend to the sweep rotation. Backends that expose no
// Sweep are ignored.
func (j *Janitor) Register(backend types.CacheBackend) {
	sweeper, ok := backend.(types.Sweeper)
	if !ok {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.sweepers = append(j.sweepers, sweeper)
}

func (j *Janitor) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		return types.ErrServerAlreadyRunning
	}

	if _, err := j.cron.AddFunc(j.config.Schedule, j.sweepAll); err != nil {
		return types.Errorf(types.ErrJanitorBadSchedule, "schedule %q: %v", j.config.Schedule, err)
	}

	j.cron.Start()
	j.running = true
	j.logger.Info("Cache janitor started", zap.String("schedule", j.config.Schedule))
	return nil
}

func (j *Janitor) Stop() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.running {
		return types.ErrServerNotRunning
	}

	<-j.cron.Stop().Done()
	j.running = false
	j.logger.Info("Cache janitor stopped")
	return nil
}

func (j *Janitor) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

func (j *Janitor) sweepAll() {
	j.mu.Lock()
	sweepers := make([]types.Sweeper, len(j.sweepers))
	copy(sweepers, j.sweepers)
	j.mu.Unlock()

	total := 0
	for _, sweeper := range sweepers {
		total += sweeper.Sweep()
	}

	if total > 0 {
		j.logger.Debug("Janitor sweep completed", zap.Int("expired_entries", total))
	}
}
