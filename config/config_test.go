// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/btcspv/spvnode/internal/log"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load([]string{
		"--datadir", filepath.Join(dir, "data"),
		"--logdir", filepath.Join(dir, "logs"),
	})
	require.NoError(t, err)
	require.Equal(t, defaultNetwork, cfg.Network)
	require.Equal(t, defaultMaxPeers, cfg.MaxPeers)
	require.Equal(t, log.LevelInfo, cfg.LogLevel())
}

func TestLoadRejectsUnknownNetwork(t *testing.T) {
	dir := t.TempDir()
	_, err := Load([]string{
		"--datadir", filepath.Join(dir, "data"),
		"--logdir", filepath.Join(dir, "logs"),
		"--network", "moonnet",
	})
	require.Error(t, err)
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	confPath := filepath.Join(dir, "spvnode.conf")
	require.NoError(t, os.WriteFile(confPath, []byte("network = testnet\nmaxpeers = 3\n"), 0600))

	cfg, err := Load([]string{
		"--configfile", confPath,
		"--datadir", filepath.Join(dir, "data"),
		"--logdir", filepath.Join(dir, "logs"),
	})
	require.NoError(t, err)
	require.Equal(t, "testnet", cfg.Network)
	require.Equal(t, 3, cfg.MaxPeers)
}

func TestLoadCommandLineOverridesConfigFile(t *testing.T) {
	dir := t.TempDir()
	confPath := filepath.Join(dir, "spvnode.conf")
	require.NoError(t, os.WriteFile(confPath, []byte("network = testnet\n"), 0600))

	cfg, err := Load([]string{
		"--configfile", confPath,
		"--datadir", filepath.Join(dir, "data"),
		"--logdir", filepath.Join(dir, "logs"),
		"--network", "mainnet",
	})
	require.NoError(t, err)
	require.Equal(t, "mainnet", cfg.Network)
}
