package main

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joeycumines/logiface"
)

type (
	// Config is the jobstress configuration, loaded from an (optional) TOML
	// file, then overridden by flags.
	Config struct {
		// Workers is the number of workers, 0 for one per CPU.
		Workers       uint8    `toml:"workers"`
		FiberCapacity int      `toml:"fiber_capacity"`
		PollInterval  Duration `toml:"poll_interval"`
		MutexSpin     int      `toml:"mutex_spin"`
		Pinning       bool     `toml:"pinning"`
		LogLevel      string   `toml:"log_level"`
		// Timeout bounds shutdown.
		Timeout Duration `toml:"timeout"`

		FanOut FanOutConfig `toml:"fan_out"`
		Tree   TreeConfig   `toml:"tree"`
		Mutex  MutexConfig  `toml:"mutex"`
		Backup BackupConfig `toml:"backup"`
	}

	FanOutConfig struct {
		Jobs       int `toml:"jobs"`
		Submitters int `toml:"submitters"`
	}

	TreeConfig struct {
		Depth  int `toml:"depth"`
		Fanout int `toml:"fanout"`
	}

	MutexConfig struct {
		Jobs   int `toml:"jobs"`
		Rounds int `toml:"rounds"`
	}

	BackupConfig struct {
		Workers int `toml:"workers"`
	}

	// Duration is a time.Duration that decodes from strings like "10ms".
	Duration struct {
		time.Duration
	}
)

func (x *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	x.Duration = v
	return nil
}

func (x Duration) MarshalText() ([]byte, error) {
	return []byte(x.Duration.String()), nil
}

// DefaultConfig returns the configuration used for anything not set.
func DefaultConfig() Config {
	return Config{
		FiberCapacity: 512,
		PollInterval:  Duration{time.Millisecond},
		MutexSpin:     400,
		Pinning:       true,
		LogLevel:      `info`,
		Timeout:       Duration{10 * time.Second},
		FanOut:        FanOutConfig{Jobs: 1000, Submitters: 4},
		Tree:          TreeConfig{Depth: 3, Fanout: 4},
		Mutex:         MutexConfig{Jobs: 8, Rounds: 1000},
		Backup:        BackupConfig{Workers: 2},
	}
}

// LoadConfig decodes the TOML file at path on top of the defaults. Unknown
// keys are an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf(`jobstress: decode config: %w`, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf(`jobstress: unknown config keys: %s`, strings.Join(keys, `, `))
	}
	return cfg, nil
}

// Validate checks the scenario sizes.
func (x *Config) Validate() error {
	var errs []error
	if x.FiberCapacity < 0 {
		errs = append(errs, errors.New(`fiber_capacity: must not be negative`))
	}
	if x.FanOut.Jobs < 0 || x.FanOut.Submitters < 1 {
		errs = append(errs, errors.New(`fan_out: jobs must not be negative, and submitters must be positive`))
	}
	if x.Tree.Depth < 0 || x.Tree.Fanout < 1 {
		errs = append(errs, errors.New(`tree: depth must not be negative, and fanout must be positive`))
	}
	if x.Mutex.Jobs < 0 || x.Mutex.Rounds < 0 {
		errs = append(errs, errors.New(`mutex: jobs and rounds must not be negative`))
	}
	if x.Backup.Workers < 0 {
		errs = append(errs, errors.New(`backup: workers must not be negative`))
	}
	if _, err := parseLevel(x.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// parseFlags loads the config file (if any), then applies every flag that
// was explicitly set.
func parseFlags(args []string) (Config, error) {
	fs := flag.NewFlagSet(`jobstress`, flag.ContinueOnError)
	var (
		path          = fs.String(`config`, ``, `path to a TOML config file`)
		workers       = fs.Uint(`workers`, 0, `number of workers, 0 for one per CPU`)
		fiberCapacity = fs.Int(`fiber-capacity`, 0, `fiber pool capacity`)
		pinning       = fs.Bool(`pinning`, true, `pin workers to CPUs`)
		logLevel      = fs.String(`log-level`, ``, `log level (trace, debug, info, notice, warning, err)`)
		jobs          = fs.Int(`jobs`, 0, `fan-out scenario job count`)
		submitters    = fs.Int(`submitters`, 0, `fan-out scenario concurrent submitters`)
		backups       = fs.Int(`backups`, 0, `backup workers to toggle`)
		timeout       = fs.Duration(`timeout`, 0, `shutdown timeout`)
	)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()
	if *path != `` {
		var err error
		if cfg, err = LoadConfig(*path); err != nil {
			return Config{}, err
		}
	}

	var err error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case `workers`:
			if *workers > 255 {
				err = fmt.Errorf(`jobstress: invalid workers: %d`, *workers)
			}
			cfg.Workers = uint8(*workers)
		case `fiber-capacity`:
			cfg.FiberCapacity = *fiberCapacity
		case `pinning`:
			cfg.Pinning = *pinning
		case `log-level`:
			cfg.LogLevel = *logLevel
		case `jobs`:
			cfg.FanOut.Jobs = *jobs
		case `submitters`:
			cfg.FanOut.Submitters = *submitters
		case `backups`:
			cfg.Backup.Workers = *backups
		case `timeout`:
			cfg.Timeout.Duration = *timeout
		}
	})
	if err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf(`jobstress: invalid config: %w`, err)
	}
	return cfg, nil
}

func parseLevel(s string) (logiface.Level, error) {
	for level := logiface.LevelEmergency; level <= logiface.LevelTrace; level++ {
		if level.String() == s {
			return level, nil
		}
	}
	if s == `disabled` {
		return logiface.LevelDisabled, nil
	}
	return 0, fmt.Errorf(`log_level: unknown level %q`, s)
}
