package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/AndrewGaspar/parthenon/internal/dispatch"
	"github.com/AndrewGaspar/parthenon/internal/integrator"
	"github.com/AndrewGaspar/parthenon/internal/model"
	"github.com/AndrewGaspar/parthenon/internal/outputs"
)

const (
	defaultListenAddr = ":8080"
	defaultDBPath     = "parthenon.db"

	envPrefix = "PARTHENON"
	envConfig = "PARTHENON_CONFIG"
)

// Config holds application configuration loaded from a run file and the
// environment.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level

	Run     RunConfig
	Problem ProblemConfig
	Outputs OutputConfig
	Group   GroupConfig
}

// RunConfig controls the driver loop and the execution spaces.
type RunConfig struct {
	Integrator  string
	Pattern     string
	Space       string
	TimeLimit   float64
	CycleLimit  int
	InitialTime float64

	HostWorkers           int
	DeviceMultiprocessors int
	DeviceTeamSize        int
	UnitWorkers           int
	MaxPasses             int

	WallTime            time.Duration
	DiagnosticsInterval int
}

// ProblemConfig sizes the sample advection problem.
type ProblemConfig struct {
	Cells      [3]int
	BlockCells [3]int
	Velocity   [3]float64
	CFL        float64
}

// OutputConfig selects the per-cycle outputs.
type OutputConfig struct {
	HistoryPath   string
	HistoryFormat string
	DT            float64
	RecordCycles  bool
	Object        ObjectConfig
}

// ObjectConfig locates an S3-compatible bucket. An empty endpoint disables
// object uploads.
type ObjectConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// Enabled reports whether object uploads are configured.
func (o ObjectConfig) Enabled() bool {
	return strings.TrimSpace(o.Endpoint) != ""
}

// GroupConfig places this process in a process group. Rank 0 listens on
// Coordinator; other ranks dial it.
type GroupConfig struct {
	Rank        int
	Size        int
	Coordinator string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", defaultListenAddr)
	v.SetDefault("db_path", defaultDBPath)
	v.SetDefault("log_level", "info")

	v.SetDefault("run.integrator", "rk2")
	v.SetDefault("run.pattern", model.PatternMDRange)
	v.SetDefault("run.space", model.SpaceAuto)
	v.SetDefault("run.time_limit", 1.0)
	v.SetDefault("run.cycle_limit", -1)
	v.SetDefault("run.initial_time", 0.0)
	v.SetDefault("run.host_workers", 0)
	v.SetDefault("run.device_multiprocessors", 4)
	v.SetDefault("run.device_team_size", 8)
	v.SetDefault("run.unit_workers", 0)
	v.SetDefault("run.max_passes", 0)
	v.SetDefault("run.wall_time", "0s")
	v.SetDefault("run.diagnostics_interval", 1)

	v.SetDefault("problem.nx", 64)
	v.SetDefault("problem.ny", 64)
	v.SetDefault("problem.nz", 1)
	v.SetDefault("problem.block_nx", 16)
	v.SetDefault("problem.block_ny", 16)
	v.SetDefault("problem.block_nz", 1)
	v.SetDefault("problem.vx", 1.0)
	v.SetDefault("problem.vy", 0.5)
	v.SetDefault("problem.vz", 0.0)
	v.SetDefault("problem.cfl", 0.4)

	v.SetDefault("outputs.history_path", "")
	v.SetDefault("outputs.history_format", outputs.FormatJSONL)
	v.SetDefault("outputs.dt", 0.0)
	v.SetDefault("outputs.record_cycles", true)
	v.SetDefault("outputs.object.endpoint", "")
	v.SetDefault("outputs.object.access_key", "")
	v.SetDefault("outputs.object.secret_key", "")
	v.SetDefault("outputs.object.region", "us-east-1")
	v.SetDefault("outputs.object.bucket", "parthenon")
	v.SetDefault("outputs.object.prefix", "runs")
	v.SetDefault("outputs.object.use_ssl", false)

	v.SetDefault("group.rank", 0)
	v.SetDefault("group.size", 1)
	v.SetDefault("group.coordinator", "127.0.0.1:7070")
}

// Load reads defaults, then the run file at path (or $PARTHENON_CONFIG when
// path is empty), then PARTHENON_* environment overrides such as
// PARTHENON_RUN_TIME_LIMIT. The result is validated.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv(envConfig)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		ListenAddr: v.GetString("listen_addr"),
		DBPath:     v.GetString("db_path"),
		LogLevel:   parseLogLevel(v.GetString("log_level")),
		Run: RunConfig{
			Integrator:            v.GetString("run.integrator"),
			Pattern:               v.GetString("run.pattern"),
			Space:                 v.GetString("run.space"),
			TimeLimit:             v.GetFloat64("run.time_limit"),
			CycleLimit:            v.GetInt("run.cycle_limit"),
			InitialTime:           v.GetFloat64("run.initial_time"),
			HostWorkers:           v.GetInt("run.host_workers"),
			DeviceMultiprocessors: v.GetInt("run.device_multiprocessors"),
			DeviceTeamSize:        v.GetInt("run.device_team_size"),
			UnitWorkers:           v.GetInt("run.unit_workers"),
			MaxPasses:             v.GetInt("run.max_passes"),
			WallTime:              v.GetDuration("run.wall_time"),
			DiagnosticsInterval:   v.GetInt("run.diagnostics_interval"),
		},
		Problem: ProblemConfig{
			Cells:      [3]int{v.GetInt("problem.nx"), v.GetInt("problem.ny"), v.GetInt("problem.nz")},
			BlockCells: [3]int{v.GetInt("problem.block_nx"), v.GetInt("problem.block_ny"), v.GetInt("problem.block_nz")},
			Velocity:   [3]float64{v.GetFloat64("problem.vx"), v.GetFloat64("problem.vy"), v.GetFloat64("problem.vz")},
			CFL:        v.GetFloat64("problem.cfl"),
		},
		Outputs: OutputConfig{
			HistoryPath:   v.GetString("outputs.history_path"),
			HistoryFormat: v.GetString("outputs.history_format"),
			DT:            v.GetFloat64("outputs.dt"),
			RecordCycles:  v.GetBool("outputs.record_cycles"),
			Object: ObjectConfig{
				Endpoint:  v.GetString("outputs.object.endpoint"),
				AccessKey: v.GetString("outputs.object.access_key"),
				SecretKey: v.GetString("outputs.object.secret_key"),
				Region:    v.GetString("outputs.object.region"),
				Bucket:    v.GetString("outputs.object.bucket"),
				Prefix:    v.GetString("outputs.object.prefix"),
				UseSSL:    v.GetBool("outputs.object.use_ssl"),
			},
		},
		Group: GroupConfig{
			Rank:        v.GetInt("group.rank"),
			Size:        v.GetInt("group.size"),
			Coordinator: v.GetString("group.coordinator"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the run cannot start with.
func (c Config) Validate() error {
	var errs []error

	if _, err := integrator.Named(c.Run.Integrator); err != nil {
		errs = append(errs, err)
	}
	if _, err := dispatch.ParsePattern(c.Run.Pattern); err != nil {
		errs = append(errs, err)
	}
	switch dispatch.CanonicalSpace(c.Run.Space) {
	case model.SpaceAuto, model.SpaceSerial, model.SpaceHost, model.SpaceDevice:
	default:
		errs = append(errs, fmt.Errorf("unknown execution space %q", c.Run.Space))
	}
	if c.Run.TimeLimit < c.Run.InitialTime {
		errs = append(errs, fmt.Errorf("time limit %v is before initial time %v", c.Run.TimeLimit, c.Run.InitialTime))
	}
	if c.Run.UnitWorkers < 0 || c.Run.MaxPasses < 0 || c.Run.HostWorkers < 0 {
		errs = append(errs, errors.New("worker counts and max passes must not be negative"))
	}
	if c.Run.DeviceMultiprocessors < 1 || c.Run.DeviceTeamSize < 1 {
		errs = append(errs, errors.New("device multiprocessors and team size must be positive"))
	}
	if c.Run.WallTime < 0 {
		errs = append(errs, errors.New("wall time must not be negative"))
	}

	switch strings.ToLower(c.Outputs.HistoryFormat) {
	case outputs.FormatJSONL, outputs.FormatYAML:
	default:
		errs = append(errs, fmt.Errorf("unknown history format %q", c.Outputs.HistoryFormat))
	}
	if c.Outputs.DT < 0 {
		errs = append(errs, errors.New("output dt must not be negative"))
	}
	if c.Outputs.Object.Enabled() {
		if err := c.Outputs.Object.outputs().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("object store: %w", err))
		}
	}

	if c.Group.Size < 1 {
		errs = append(errs, fmt.Errorf("group size must be at least 1, got %d", c.Group.Size))
	} else if c.Group.Rank < 0 || c.Group.Rank >= c.Group.Size {
		errs = append(errs, fmt.Errorf("group rank %d out of range for size %d", c.Group.Rank, c.Group.Size))
	}
	if c.Group.Size > 1 && strings.TrimSpace(c.Group.Coordinator) == "" {
		errs = append(errs, errors.New("group coordinator address is required for more than one rank"))
	}

	return errors.Join(errs...)
}

func (o ObjectConfig) outputs() outputs.ObjectConfig {
	return outputs.ObjectConfig{
		Endpoint:  o.Endpoint,
		AccessKey: o.AccessKey,
		SecretKey: o.SecretKey,
		Region:    o.Region,
		Bucket:    o.Bucket,
		Prefix:    o.Prefix,
		UseSSL:    o.UseSSL,
	}
}

// ObjectStore returns the uploader configuration.
func (c Config) ObjectStore() outputs.ObjectConfig {
	return c.Outputs.Object.outputs()
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
