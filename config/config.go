package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/mit-pdos/go-journal/util"
	"gopkg.in/yaml.v3"

	"github.com/mit-pdos/go-lfs/client"
	"github.com/mit-pdos/go-lfs/dir"
	"github.com/mit-pdos/go-lfs/fs"
)

const envVarPrefix = "LFS"

type Config struct {
	Disk    string `envconfig:"LFS_DISK"    yaml:"disk"`
	Blocks  uint64 `envconfig:"LFS_BLOCKS"  yaml:"blocks"`
	Fanout  uint64 `envconfig:"LFS_FANOUT"  yaml:"fanout"`
	Debug   uint64 `envconfig:"LFS_DEBUG"   yaml:"debug"`
	Stats   bool   `envconfig:"LFS_STATS"   yaml:"stats"`
	Clients int    `envconfig:"LFS_CLIENTS" yaml:"clients"`
	Cache   string `envconfig:"LFS_CACHE"   yaml:"cache"`
	Seed    uint64 `envconfig:"LFS_SEED"    yaml:"seed"`
}

func Default() Config {
	return Config{
		Blocks:  4096,
		Fanout:  dir.NDIRENT,
		Clients: 2,
		Cache:   client.CacheIncoherent.String(),
		Seed:    1,
	}
}

// Load layers the defaults, the YAML file at path (LFS_CONFIG_FILE if
// path is empty; no file if both are) and LFS_* environment variables.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(envVarPrefix + "_CONFIG_FILE")
	}
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := decode(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshaling config file: %w", err)
		}
	}
	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func decode(data []byte, c *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Blocks == 0 {
		return fmt.Errorf("blocks / %s_BLOCKS must be positive", envVarPrefix)
	}
	if c.Fanout == 0 || c.Fanout > dir.NDIRENT {
		return fmt.Errorf("fanout / %s_FANOUT must be in 1..%d", envVarPrefix, dir.NDIRENT)
	}
	if c.Clients < 1 {
		return fmt.Errorf("clients / %s_CLIENTS must be positive", envVarPrefix)
	}
	if _, err := client.ParseCachePolicy(c.Cache); err != nil {
		return fmt.Errorf("cache / %s_CACHE: %w", envVarPrefix, err)
	}
	return nil
}

// Apply sets process-wide settings.
func (c *Config) Apply() {
	util.Debug = c.Debug
}

func (c *Config) FsOpts() fs.Opts {
	return fs.Opts{Fanout: c.Fanout}
}

func (c *Config) CachePolicy() client.CachePolicy {
	p, err := client.ParseCachePolicy(c.Cache)
	if err != nil {
		panic(err)
	}
	return p
}
