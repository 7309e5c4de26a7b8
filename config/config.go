// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package config loads spvnode's command-line flags and config-file
// options into a single validated Config, following the go-flags
// long/short-option and ini-parsing conventions used throughout the
// btcd/dcrd family of nodes.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"

	"github.com/btcspv/spvnode/internal/log"
)

const (
	defaultConfigFilename = "spvnode.conf"
	defaultDataDirname    = "data"
	defaultLogFilename    = "spvnode.log"
	defaultLogLevel       = "info"
	defaultNetwork        = "mainnet"
	defaultMaxPeers       = 8
	defaultMaxLogRolls    = 10
)

// Config holds every option spvnode accepts on the command line or in
// its ini-formatted config file.
type Config struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir    string `short:"b" long:"datadir" description:"Directory to store headers and wallet data"`
	LogDir     string `long:"logdir" description:"Directory to log output"`

	Network    string   `long:"network" description:"Network to connect to: mainnet, testnet"`
	Connect    []string `long:"connect" description:"Connect only to the specified peers at startup"`
	MaxPeers   int      `long:"maxpeers" description:"Maximum number of outbound peers"`
	DisableDNS bool     `long:"nodnsseed" description:"Disable DNS seed lookups on cold start"`

	WalletPass string `long:"walletpass" description:"Passphrase used to encrypt/decrypt imported private keys"`
	ImportWIF  string `long:"importwif" description:"Import a WIF-encoded private key and rescan for its transactions on startup"`

	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level: trace, debug, info, warn, error, critical"`
}

// defaultHomeDir is the application's default base directory, following
// the usual $HOME/.appname convention for data and log directories.
func defaultHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".spvnode")
}

func defaultConfig() *Config {
	home := defaultHomeDir()
	return &Config{
		ConfigFile: filepath.Join(home, defaultConfigFilename),
		DataDir:    filepath.Join(home, defaultDataDirname),
		LogDir:     home,
		Network:    defaultNetwork,
		MaxPeers:   defaultMaxPeers,
		DebugLevel: defaultLogLevel,
	}
}

// Load parses command-line arguments, then layers any ini-formatted
// config file found at ConfigFile underneath them, and validates the
// merged result. Command-line flags always win over file settings.
func Load(args []string) (*Config, error) {
	preCfg := defaultConfig()
	preParser := flags.NewParser(preCfg, flags.Default)
	if _, err := preParser.ParseArgs(args); err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if _, err := os.Stat(preCfg.ConfigFile); err == nil {
		fileParser := flags.NewParser(cfg, flags.Default)
		if err := flags.NewIniParser(fileParser).ParseFile(preCfg.ConfigFile); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.MkdirAll(cfg.LogDir, 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	if cfg.MaxPeers <= 0 {
		return fmt.Errorf("maxpeers must be positive, got %d", cfg.MaxPeers)
	}
	switch cfg.Network {
	case "mainnet", "testnet", "regtest", "":
	default:
		return fmt.Errorf("unknown network %q", cfg.Network)
	}
	return nil
}

// LogFilePath returns the fully qualified path of the rotated log file.
func (cfg *Config) LogFilePath() string {
	return filepath.Join(cfg.LogDir, defaultLogFilename)
}

// LogLevel resolves the parsed --debuglevel flag into a log.Level.
func (cfg *Config) LogLevel() log.Level {
	return log.LevelFromString(cfg.DebugLevel)
}

// MaxLogRolls is the number of rotated log files kept alongside the
// active one.
func (cfg *Config) MaxLogRolls() int { return defaultMaxLogRolls }
