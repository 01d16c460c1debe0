// Copyright (c) 2025 The Quazaa Development Team.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "g2hostcached.conf"
	defaultLogFilename    = "g2hostcached.log"
	defaultSnapshotName   = "hostcache.dat"
	defaultLogLevel       = "info"
)

// config holds every setting the daemon accepts, either from its config
// file or from the command line, which always takes precedence.
type config struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir    string `short:"b" long:"datadir" description:"Directory to store the host cache snapshot in"`
	LogDir     string `long:"logdir" description:"Directory to log output to"`
	Debug      string `short:"d" long:"debuglevel" description:"Logging level: trace, debug, info, warn, error, critical"`

	FailureLimit      uint8  `long:"failurelimit" description:"Maximum consecutive connection failures before a host is evicted"`
	HostCacheSize     uint32 `long:"maxhosts" description:"Maximum number of hosts to retain"`
	HostExpireSeconds uint32 `long:"hostexpire" description:"Seconds after which an unconnected host is pruned"`
}

// defaultConfig returns a config pre-populated with the same defaults the
// hostcache package itself uses, so a fresh install behaves identically
// whether or not a config file exists yet.
func defaultConfig() config {
	dataDir, err := os.UserConfigDir()
	if err != nil {
		dataDir = "."
	}
	dataDir = filepath.Join(dataDir, "g2hostcached")

	return config{
		ConfigFile:        filepath.Join(dataDir, defaultConfigFilename),
		DataDir:           dataDir,
		LogDir:            filepath.Join(dataDir, "logs"),
		Debug:             defaultLogLevel,
		FailureLimit:      7,
		HostCacheSize:     4000,
		HostExpireSeconds: 6 * 60 * 60,
	}
}

// loadConfig parses the config file, if any, then overlays command line
// flags on top, following the same two-pass precedence dcrd's own
// loadConfig uses: flags override file settings, which override built-in
// defaults.
func loadConfig() (*config, []string, error) {
	preCfg := defaultConfig()
	preParser := flags.NewParser(&preCfg, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := preParser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, nil, err
	}

	cfg := preCfg
	if _, err := os.Stat(preCfg.ConfigFile); err == nil {
		fileParser := flags.NewParser(&cfg, flags.Default)
		if err := flags.NewIniParser(fileParser).ParseFile(preCfg.ConfigFile); err != nil {
			return nil, nil, fmt.Errorf("g2hostcached: parsing config file %s: %w", preCfg.ConfigFile, err)
		}
	}

	parser := flags.NewParser(&cfg, flags.Default)
	remaining, err := parser.Parse()
	if err != nil {
		return nil, nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("g2hostcached: creating data directory %s: %w", cfg.DataDir, err)
	}
	if err := os.MkdirAll(cfg.LogDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("g2hostcached: creating log directory %s: %w", cfg.LogDir, err)
	}

	return &cfg, remaining, nil
}

// snapshotPath returns the host cache snapshot file path derived from the
// configured data directory.
func (cfg *config) snapshotPath() string {
	return filepath.Join(cfg.DataDir, defaultSnapshotName)
}

// logFilePath returns the rotating log file path derived from the
// configured log directory.
func (cfg *config) logFilePath() string {
	return filepath.Join(cfg.LogDir, defaultLogFilename)
}
