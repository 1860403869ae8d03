package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/tuannm99/novadb/internal/record"
	"github.com/tuannm99/novadb/internal/storage"
)

var ErrInvalid = errors.New("config: invalid")

type ColumnConfig struct {
	Name string `mapstructure:"name"`
	Type string `mapstructure:"type"`
	Len  int    `mapstructure:"len"`
}

// TableConfig declares a heap file and its schema. File is resolved against
// storage.data_dir unless absolute.
type TableConfig struct {
	Name    string         `mapstructure:"name"`
	File    string         `mapstructure:"file"`
	Columns []ColumnConfig `mapstructure:"columns"`
}

type Config struct {
	Storage struct {
		DataDir  string `mapstructure:"data_dir"`
		PageSize int    `mapstructure:"page_size"`
	} `mapstructure:"storage"`

	BufferPool struct {
		Capacity int `mapstructure:"capacity"`
	} `mapstructure:"bufferpool"`

	Stats struct {
		HistogramBins int `mapstructure:"histogram_bins"`
		IOCostPerPage int `mapstructure:"io_cost_per_page"`
		Parallelism   int `mapstructure:"parallelism"`
	} `mapstructure:"stats"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	Tables []TableConfig `mapstructure:"tables"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.page_size", storage.DefaultPageSize)
	v.SetDefault("bufferpool.capacity", 128)
	v.SetDefault("stats.histogram_bins", 100)
	v.SetDefault("stats.io_cost_per_page", 1000)
	v.SetDefault("stats.parallelism", 4)
	v.SetDefault("log.level", "info")
}

// Load reads the YAML file at path (optional when empty) over the defaults.
// Scalar keys can be overridden from the environment, e.g.
// NOVADB_STORAGE_PAGE_SIZE=8192.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("NOVADB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Storage.PageSize < storage.MinPageSize {
		return fmt.Errorf("%w: storage.page_size %d below %d", ErrInvalid, c.Storage.PageSize, storage.MinPageSize)
	}
	if c.BufferPool.Capacity <= 0 {
		return fmt.Errorf("%w: bufferpool.capacity must be positive", ErrInvalid)
	}
	if c.Stats.HistogramBins <= 0 || c.Stats.IOCostPerPage <= 0 || c.Stats.Parallelism <= 0 {
		return fmt.Errorf("%w: stats settings must be positive", ErrInvalid)
	}
	seen := make(map[string]bool, len(c.Tables))
	for _, t := range c.Tables {
		if t.Name == "" || t.File == "" {
			return fmt.Errorf("%w: table needs a name and a file", ErrInvalid)
		}
		if seen[t.Name] {
			return fmt.Errorf("%w: table %q declared twice", ErrInvalid, t.Name)
		}
		seen[t.Name] = true
		if _, err := t.Desc(); err != nil {
			return err
		}
	}
	return nil
}

// LogLevel parses log.level, falling back to info.
func (c *Config) LogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func (c *Config) TablePath(t TableConfig) string {
	if filepath.IsAbs(t.File) {
		return t.File
	}
	return filepath.Join(c.Storage.DataDir, t.File)
}

// Desc builds the table's tuple descriptor.
func (t TableConfig) Desc() (*record.TupleDesc, error) {
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("%w: table %q has no columns", ErrInvalid, t.Name)
	}
	fields := make([]record.FieldType, len(t.Columns))
	for i, col := range t.Columns {
		typ, err := record.ParseType(col.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: table %q column %q: %w", ErrInvalid, t.Name, col.Name, err)
		}
		switch typ {
		case record.StringType:
			fields[i] = record.StringCol(col.Name, col.Len)
		default:
			fields[i] = record.IntCol(col.Name)
		}
	}
	return record.NewTupleDesc(fields...), nil
}
