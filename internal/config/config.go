package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"shred-sage/internal/shredder"
)

// ShredCfg mirrors shredder.Config. Pointer fields distinguish "unset" from
// an explicit false or zero so the utility defaults apply only when omitted.
type ShredCfg struct {
	UtilityPath string `yaml:"utility_path" json:"utility_path"`
	Force       *bool  `yaml:"force" json:"force"`
	Iterations  *uint  `yaml:"iterations" json:"iterations"`
	Size        string `yaml:"size" json:"size"` // ^\d+[KMG]?$, anything else is ignored
	Remove      *bool  `yaml:"remove" json:"remove"`
	Zero        *bool  `yaml:"zero" json:"zero"`
	Debug       *bool  `yaml:"debug" json:"debug"`
}

type PrometheusCfg struct {
	Port int `yaml:"port" json:"port"`
}

type LoggingCfg struct {
	Dir          string `yaml:"dir" json:"dir"`
	RotationDays int    `yaml:"rotation_days" json:"rotation_days"` // Days to keep logs before rotation
	Level        string `yaml:"level" json:"level"`                 // debug, info, warn or error
}

type ResourceLimits struct {
	MaxCPUPercent float64 `yaml:"max_cpu_percent" json:"max_cpu_percent"` // Maximum CPU usage (e.g., 10.0)
}

type WorkerPoolConfig struct {
	Concurrency int `yaml:"concurrency" json:"concurrency"` // Concurrent shred invocations
	BatchSize   int `yaml:"batch_size" json:"batch_size"`   // Files per invocation
}

type Config struct {
	Shred           ShredCfg         `yaml:"shred" json:"shred"`
	SpoolPaths      []string         `yaml:"spool_paths" json:"spool_paths"`
	Recursive       bool             `yaml:"recursive" json:"recursive"`
	AgeOffMinutes   int              `yaml:"age_off_minutes" json:"age_off_minutes"`
	MaxUsedPercent  float64          `yaml:"max_used_percent" json:"max_used_percent"` // 0 disables pressure-based selection
	IntervalMinutes int              `yaml:"interval_minutes" json:"interval_minutes"`
	ProtectedPaths  []string         `yaml:"protected_paths" json:"protected_paths"`
	Prometheus      PrometheusCfg    `yaml:"prometheus" json:"prometheus"`
	Logging         LoggingCfg       `yaml:"logging" json:"logging"`
	ResourceLimits  ResourceLimits   `yaml:"resource_limits" json:"resource_limits"`
	WorkerPool      WorkerPoolConfig `yaml:"worker_pool" json:"worker_pool"`
	NFSTimeout      int              `yaml:"nfs_timeout_seconds" json:"nfs_timeout_seconds"` // Timeout for NFS operations
	DatabasePath    string           `yaml:"database_path" json:"database_path"`             // Path to SQLite database for shred history
}

var (
	errInvalidPath     = errors.New("path must be absolute")
	errNegativeAge     = errors.New("age_off_minutes cannot be negative")
	errInvalidPercent  = errors.New("max_used_percent must be between 0 and 100")
	errInvalidPort     = errors.New("prometheus.port must be between 0 and 65535")
	errInvalidWorkers  = errors.New("worker_pool values cannot be negative")
	errEmptyUtility    = errors.New("shred.utility_path cannot be empty")
	errInvalidInterval = errors.New("interval_minutes cannot be negative")
)

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	_ = cfg.validateAndDefault()
	return cfg
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, err
	}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

func (c *Config) validateAndDefault() error {
	if c.AgeOffMinutes < 0 {
		return errNegativeAge
	}
	if c.MaxUsedPercent < 0 || c.MaxUsedPercent > 100 {
		return errInvalidPercent
	}
	if c.Prometheus.Port < 0 || c.Prometheus.Port > 65535 {
		return errInvalidPort
	}
	if c.WorkerPool.Concurrency < 0 || c.WorkerPool.BatchSize < 0 {
		return errInvalidWorkers
	}
	if c.IntervalMinutes < 0 {
		return errInvalidInterval
	}

	if c.IntervalMinutes == 0 {
		c.IntervalMinutes = 15
	}

	if c.Prometheus.Port == 0 {
		c.Prometheus.Port = 9091
	}

	if c.Logging.Dir == "" {
		c.Logging.Dir = "/var/log/shred-sage"
	}
	if c.Logging.RotationDays <= 0 {
		c.Logging.RotationDays = 30
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.ResourceLimits.MaxCPUPercent <= 0 {
		c.ResourceLimits.MaxCPUPercent = 10.0
	}

	if c.WorkerPool.Concurrency == 0 {
		c.WorkerPool.Concurrency = 2
	}
	if c.WorkerPool.BatchSize == 0 {
		c.WorkerPool.BatchSize = 50
	}

	if c.NFSTimeout <= 0 {
		c.NFSTimeout = 5
	}

	if c.DatabasePath == "" {
		c.DatabasePath = "/var/lib/shred-sage/history.db"
	}

	if err := c.Shred.applyDefaults(); err != nil {
		return err
	}

	cleaned := make([]string, 0, len(c.SpoolPaths))
	for _, p := range c.SpoolPaths {
		cp, err := cleanAbsolute(p)
		if err != nil {
			return err
		}
		cleaned = append(cleaned, cp)
	}
	c.SpoolPaths = cleaned

	protected := make([]string, 0, len(c.ProtectedPaths))
	for _, p := range c.ProtectedPaths {
		cp, err := cleanAbsolute(p)
		if err != nil {
			return err
		}
		protected = append(protected, cp)
	}
	c.ProtectedPaths = protected

	return nil
}

func (s *ShredCfg) applyDefaults() error {
	defaults := shredder.DefaultConfig()

	if s.UtilityPath == "" {
		s.UtilityPath = defaults.UtilityPath
	}
	if s.UtilityPath == "" {
		return errEmptyUtility
	}
	if s.Force == nil {
		s.Force = boolPtr(defaults.ForceWritable)
	}
	if s.Iterations == nil {
		n := defaults.Iterations
		s.Iterations = &n
	}
	if s.Remove == nil {
		s.Remove = boolPtr(defaults.RemoveAfter)
	}
	if s.Zero == nil {
		s.Zero = boolPtr(defaults.FinalZeroPass)
	}
	if s.Debug == nil {
		s.Debug = boolPtr(defaults.Debug)
	}
	return nil
}

func cleanAbsolute(p string) (string, error) {
	if p == "" {
		return "", errInvalidPath
	}
	cp := filepath.Clean(p)
	if !filepath.IsAbs(cp) {
		return "", fmt.Errorf("%w: %s", errInvalidPath, p)
	}
	return cp, nil
}

// ShredderConfig converts the shred block into the utility settings.
// Unset fields fall back to shredder.DefaultConfig.
func (c *Config) ShredderConfig() shredder.Config {
	out := shredder.DefaultConfig()
	s := c.Shred

	if s.UtilityPath != "" {
		out.UtilityPath = s.UtilityPath
	}
	if s.Force != nil {
		out.ForceWritable = *s.Force
	}
	if s.Iterations != nil {
		out.Iterations = *s.Iterations
	}
	out.SizeLimit = s.Size
	if s.Remove != nil {
		out.RemoveAfter = *s.Remove
	}
	if s.Zero != nil {
		out.FinalZeroPass = *s.Zero
	}
	if s.Debug != nil {
		out.Debug = *s.Debug
	}
	return out
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

func (c *Config) AgeOff() time.Duration {
	return time.Duration(c.AgeOffMinutes) * time.Minute
}

func (c *Config) PrometheusAddress() string {
	return fmt.Sprintf(":%d", c.Prometheus.Port)
}

func (c *Config) NFSTimeoutDuration() time.Duration {
	return time.Duration(c.NFSTimeout) * time.Second
}

func boolPtr(b bool) *bool {
	return &b
}
