package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/danielpatrickdp/path-memory/internal/agent"
	"github.com/danielpatrickdp/path-memory/internal/decay"
	"github.com/danielpatrickdp/path-memory/internal/planner"
	"github.com/danielpatrickdp/path-memory/internal/terrain"
	"github.com/danielpatrickdp/path-memory/internal/waypoint"
	"github.com/danielpatrickdp/path-memory/internal/world"
)

// #region types
type Config struct {
	Memory  MemoryConfig  `yaml:"memory" mapstructure:"memory"`
	Planner PlannerConfig `yaml:"planner" mapstructure:"planner"`
	World   WorldConfig   `yaml:"world" mapstructure:"world"`
	Sim     SimConfig     `yaml:"sim" mapstructure:"sim"`
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

type MemoryConfig struct {
	WMax           float64                `yaml:"w_max" mapstructure:"w_max"`
	AnchorRadius   int                    `yaml:"anchor_radius" mapstructure:"anchor_radius"`
	Decay          float64                `yaml:"decay" mapstructure:"decay"`
	Classification terrain.Classification `yaml:"classification" mapstructure:"classification"`
}

type PlannerConfig struct {
	MaxSampleAttempts int `yaml:"max_sample_attempts" mapstructure:"max_sample_attempts"`
}

// WorldConfig selects the terrain: a map file, or a generated island when
// Map is empty. Seed 0 picks a random seed.
type WorldConfig struct {
	Map     string `yaml:"map" mapstructure:"map"`
	Width   int    `yaml:"width" mapstructure:"width"`
	Height  int    `yaml:"height" mapstructure:"height"`
	Patches int    `yaml:"patches" mapstructure:"patches"`
	Seed    uint64 `yaml:"seed" mapstructure:"seed"`
}

type SimConfig struct {
	AgentID         string  `yaml:"agent_id" mapstructure:"agent_id"`
	Steps           int     `yaml:"steps" mapstructure:"steps"`
	CheckpointEvery int     `yaml:"checkpoint_every" mapstructure:"checkpoint_every"`
	SensorNoise     float64 `yaml:"sensor_noise" mapstructure:"sensor_noise"`
	Resume          bool    `yaml:"resume" mapstructure:"resume"`
}

type StorageConfig struct {
	DBPath string `yaml:"db_path" mapstructure:"db_path"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// #endregion types

// #region defaults
func DefaultConfig() *Config {
	wp := waypoint.DefaultConfig()
	return &Config{
		Memory: MemoryConfig{
			WMax:           wp.WMax,
			AnchorRadius:   wp.AnchorRadius,
			Decay:          decay.DefaultConfig().Decay,
			Classification: wp.Classification,
		},
		Planner: PlannerConfig{MaxSampleAttempts: planner.DefaultConfig().MaxSampleAttempts},
		World:   WorldConfig{Width: 40, Height: 30, Patches: 9},
		Sim:     SimConfig{Steps: 5000, CheckpointEvery: 500},
		Storage: StorageConfig{DBPath: "pathmem.db"},
		Server:  ServerConfig{Addr: "localhost:50061"},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// setDefaults registers every key so environment variables can override
// values that no config file mentions.
func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("memory.w_max", c.Memory.WMax)
	v.SetDefault("memory.anchor_radius", c.Memory.AnchorRadius)
	v.SetDefault("memory.decay", c.Memory.Decay)
	v.SetDefault("memory.classification.anchorable", labels(c.Memory.Classification.Anchorable))
	v.SetDefault("memory.classification.hazardous", labels(c.Memory.Classification.Hazardous))
	v.SetDefault("memory.classification.impassable", labels(c.Memory.Classification.Impassable))
	v.SetDefault("planner.max_sample_attempts", c.Planner.MaxSampleAttempts)
	v.SetDefault("world.map", c.World.Map)
	v.SetDefault("world.width", c.World.Width)
	v.SetDefault("world.height", c.World.Height)
	v.SetDefault("world.patches", c.World.Patches)
	v.SetDefault("world.seed", c.World.Seed)
	v.SetDefault("sim.agent_id", c.Sim.AgentID)
	v.SetDefault("sim.steps", c.Sim.Steps)
	v.SetDefault("sim.checkpoint_every", c.Sim.CheckpointEvery)
	v.SetDefault("sim.sensor_noise", c.Sim.SensorNoise)
	v.SetDefault("sim.resume", c.Sim.Resume)
	v.SetDefault("storage.db_path", c.Storage.DBPath)
	v.SetDefault("server.addr", c.Server.Addr)
	v.SetDefault("log.level", c.Log.Level)
	v.SetDefault("log.format", c.Log.Format)
}

func labels(ls []terrain.Label) []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = string(l)
	}
	return out
}

// #endregion defaults

// #region load
// Load reads the configuration. An explicit path must exist; with an empty
// path pathmem.yaml is searched in the working directory and the user config
// directory, and its absence is not an error. PATHMEM_* environment variables
// override both, e.g. PATHMEM_MEMORY_DECAY=0.02.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	v := viper.New()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pathmem")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "pathmem"))
		}
	}

	v.SetEnvPrefix("PATHMEM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// #endregion load

// #region validate
// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Memory.WMax <= 0 {
		return fmt.Errorf("config: memory.w_max must be positive, got %v", c.Memory.WMax)
	}
	if c.Memory.Decay <= 0 {
		return fmt.Errorf("config: memory.decay must be positive, got %v", c.Memory.Decay)
	}
	if c.Memory.AnchorRadius < 0 {
		return fmt.Errorf("config: memory.anchor_radius must not be negative, got %d", c.Memory.AnchorRadius)
	}
	if err := c.Memory.Classification.Validate(); err != nil {
		return fmt.Errorf("config: memory.classification: %w", err)
	}
	if c.Planner.MaxSampleAttempts < 1 {
		return fmt.Errorf("config: planner.max_sample_attempts must be at least 1, got %d", c.Planner.MaxSampleAttempts)
	}
	if c.World.Map == "" && (c.World.Width < 3 || c.World.Height < 3) {
		return fmt.Errorf("config: generated world needs width and height >= 3, got %dx%d", c.World.Width, c.World.Height)
	}
	if c.Sim.Steps < 0 || c.Sim.CheckpointEvery < 0 {
		return fmt.Errorf("config: sim.steps and sim.checkpoint_every must not be negative")
	}
	if c.Sim.SensorNoise < 0 || c.Sim.SensorNoise > 1 {
		return fmt.Errorf("config: sim.sensor_noise must be in [0, 1], got %v", c.Sim.SensorNoise)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// #endregion validate

// #region derived
// AgentConfig converts the memory and planner sections into agent.Config.
func (c *Config) AgentConfig() agent.Config {
	return agent.Config{
		Graph: waypoint.Config{
			WMax:           c.Memory.WMax,
			AnchorRadius:   c.Memory.AnchorRadius,
			Classification: c.Memory.Classification,
		},
		Decay:   decay.Config{Decay: c.Memory.Decay},
		Planner: planner.Config{MaxSampleAttempts: c.Planner.MaxSampleAttempts},
	}
}

// Build loads the map file, or generates an island when none is set. The
// returned random source is seeded from Seed (or randomly when Seed is 0)
// and has already been used for generation.
func (c WorldConfig) Build() (*world.Grid, *rand.Rand, uint64, error) {
	seed := c.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	if c.Map != "" {
		g, err := world.Load(c.Map)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("config: world: %w", err)
		}
		return g, rng, seed, nil
	}
	return world.Generate(c.Width, c.Height, c.Patches, rng), rng, seed, nil
}

// Logger builds the structured logger described by the log section.
func (c LogConfig) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: log.level: %w", err)
	}
	return l, nil
}

// #endregion derived
