package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen     string        `yaml:"listen"`
	LogLevel   string        `yaml:"logLevel"`
	Seed       *int64        `yaml:"seed"`
	Split      *int          `yaml:"split"`
	Partitions int           `yaml:"partitions"`
	Values     []int32       `yaml:"values"`
	CacheTTL   time.Duration `yaml:"cacheTTL"`
}

// DefaultConfig is the six element demo run. With no split set the input is
// halved, so the demo splits after the third value.
func DefaultConfig() Config {
	values := make([]int32, 6)
	for i := range values {
		values[i] = math.MaxInt32 - int32(i)
	}
	return Config{
		LogLevel: "info",
		Values:   values,
		CacheTTL: 15 * time.Minute,
	}
}

// LoadConfig decodes the yaml file at path over DefaultConfig. A missing file
// is not an error.
func LoadConfig(path string) (Config, error) {
	conf := DefaultConfig()
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return conf, nil
	}
	if err != nil {
		return conf, err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&conf); err != nil && !errors.Is(err, io.EOF) {
		return conf, fmt.Errorf("decode %s: %w", path, err)
	}
	return conf, conf.Validate()
}

// Validate rejects settings that cannot describe a partitioning.
func (c Config) Validate() error {
	if c.Split != nil && c.Partitions != 0 {
		return errors.New("split and partitions are mutually exclusive")
	}
	if c.Partitions < 0 {
		return fmt.Errorf("partitions must not be negative, got %d", c.Partitions)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cacheTTL must not be negative, got %s", c.CacheTTL)
	}
	return nil
}

// Partitioner picks the partition strategy described by the config. It is nil
// when neither split nor partitions is set, which halves the input.
func (c Config) Partitioner() Partitioner {
	if c.Partitions > 0 {
		return Even(c.Partitions)
	}
	if c.Split != nil {
		return SplitAt(*c.Split)
	}
	return nil
}
