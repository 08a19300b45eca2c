package main

import (
	"fmt"
	"os"
	"time"

	"github.com/AdguardTeam/procfilter"
	"gopkg.in/yaml.v3"
)

// fileConfig is the optional YAML configuration file.  Command-line options
// take precedence over it.
type fileConfig struct {
	// Filters are the paths to the filter lists.
	Filters []string `yaml:"filters"`

	Reapply reapplyConfig `yaml:"reapply"`

	PayloadCacheSize int `yaml:"payload_cache_size"`
	FlushLimit       int `yaml:"flush_limit"`
}

// reapplyConfig is the YAML form of procfilter.ReapplyConfig.
type reapplyConfig struct {
	Quota            int           `yaml:"quota"`
	Debounce         time.Duration `yaml:"debounce"`
	Settle           time.Duration `yaml:"settle"`
	AttachRetries    int           `yaml:"attach_retries"`
	AttachRetryDelay time.Duration `yaml:"attach_retry_delay"`
}

// toInternal returns the library form of c.
func (c *reapplyConfig) toInternal() (conf *procfilter.ReapplyConfig) {
	return &procfilter.ReapplyConfig{
		Quota:            c.Quota,
		Debounce:         c.Debounce,
		Settle:           c.Settle,
		AttachRetries:    c.AttachRetries,
		AttachRetryDelay: c.AttachRetryDelay,
	}
}

// readConfig reads the configuration file at path.
func readConfig(path string) (c *fileConfig, err error) {
	// #nosec G304 -- Trust the path from the command line.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	c = &fileConfig{}
	err = yaml.Unmarshal(data, c)
	if err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}

	return c, nil
}

// merge fills the unset options from c.
func (c *fileConfig) merge(options *Options) {
	if len(options.FilterLists) == 0 {
		options.FilterLists = c.Filters
	}
}
