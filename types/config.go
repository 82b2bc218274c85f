package types

type ConfigManager interface {
	Load() error
	GetConfig() *ServiceConfig
}

type ServiceConfig struct {
	Name         string              `yaml:"name" json:"name" validate:"required"`
	Version      string              `yaml:"version" json:"version"`
	Server       *ServerConfig       `yaml:"server" json:"server"`
	Logger       *LoggerConfig       `yaml:"logger" json:"logger"`
	Cache        *CacheConfig        `yaml:"cache" json:"cache"`
	Invalidation *InvalidationConfig `yaml:"invalidation" json:"invalidation"`
	Middleware   *MiddlewareConfig   `yaml:"middleware" json:"middleware"`
	Metrics      *MetricsConfig      `yaml:"metrics" json:"metrics"`
	Janitor      *JanitorConfig      `yaml:"janitor" json:"janitor"`
}

type ServerConfig struct {
	Host            string `yaml:"host" json:"host"`
	Port            int    `yaml:"port" json:"port" validate:"min=1,max=65535"`
	ReadTimeout     int    `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    int    `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout     int    `yaml:"idle_timeout" json:"idle_timeout"`
	ShutdownTimeout int    `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

type LoggerConfig struct {
	Level  string      `yaml:"level" json:"level"`
	Config interface{} `yaml:"config" json:"config"`
}

type CacheConfig struct {
	Enabled    bool        `yaml:"enabled" json:"enabled"`
	Type       string      `yaml:"type" json:"type" validate:"required_if=Enabled true"`
	Config     interface{} `yaml:"config" json:"config"`
	DefaultTTL int         `yaml:"default_ttl" json:"default_ttl" validate:"min=0"`
}

type InvalidationConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Strategy string `yaml:"strategy" json:"strategy" validate:"required_if=Enabled true"`
}

// MiddlewareConfig configures the response cache middleware. TTL values are
// seconds. EndpointTTLs keys are exact paths or wildcard prefixes
// ("/api/*").
type MiddlewareConfig struct {
	Enabled              bool           `yaml:"enabled" json:"enabled"`
	DefaultTTL           int            `yaml:"default_ttl" json:"default_ttl" validate:"min=0"`
	Methods              []string       `yaml:"methods" json:"methods"`
	IgnorePaths          []string       `yaml:"ignore_paths" json:"ignore_paths"`
	VaryHeaders          []string       `yaml:"vary_headers" json:"vary_headers"`
	CacheControlHeader   bool           `yaml:"cache_control_header" json:"cache_control_header"`
	AutoVary             bool           `yaml:"auto_vary" json:"auto_vary"`
	Compression          bool           `yaml:"compression" json:"compression"`
	CompressionThreshold int            `yaml:"compression_threshold" json:"compression_threshold" validate:"min=0"`
	EndpointTTLs         map[string]int `yaml:"endpoint_ttls" json:"endpoint_ttls"`
}

type MetricsConfig struct {
	Enabled bool        `yaml:"enabled" json:"enabled"`
	Type    string      `yaml:"type" json:"type" validate:"required_if=Enabled true"`
	Config  interface{} `yaml:"config" json:"config"`
}

type JanitorConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Schedule string `yaml:"schedule" json:"schedule" validate:"required_if=Enabled true"`
}
