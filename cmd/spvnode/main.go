// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Command spvnode runs a headers-only SPV wallet node: it syncs block
// headers from its peers, verifies Merkle proofs for Bloom-filtered
// transactions, and maintains a local wallet store of the resulting
// balance.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/btcspv/spvnode/chaincfg"
	"github.com/btcspv/spvnode/config"
	"github.com/btcspv/spvnode/internal/log"
	"github.com/btcspv/spvnode/node"
	"github.com/btcspv/spvnode/walletcrypto"
	"github.com/btcspv/spvnode/walletdb"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "spvnode: %v\n", err)
		return 1
	}

	backend, err := log.NewBackend(cfg.LogFilePath(), cfg.MaxLogRolls())
	if err != nil {
		fmt.Fprintf(os.Stderr, "spvnode: %v\n", err)
		return 1
	}
	defer backend.Close()

	logger := backend.Logger("NODE", cfg.LogLevel())

	params, err := chaincfg.ParamsForNetwork(cfg.Network)
	if err != nil {
		logger.Criticalf("%v", err)
		return 1
	}

	storePath := filepath.Join(cfg.DataDir, params.Name)
	store, err := walletdb.OpenLevelStore(storePath)
	if err != nil {
		logger.Criticalf("open wallet store: %v", err)
		return 1
	}
	defer store.Close()

	n, err := node.New(node.Config{
		Store:      store,
		Params:     params,
		Connect:    cfg.Connect,
		MaxPeers:   cfg.MaxPeers,
		DisableDNS: cfg.DisableDNS,
		Log:        backend.Logger("SYNC", cfg.LogLevel()),
	})
	if err != nil {
		logger.Criticalf("start node: %v", err)
		return 1
	}

	if cfg.ImportWIF != "" {
		priv, _, err := walletcrypto.DecodeWIF(cfg.ImportWIF)
		if err != nil {
			logger.Criticalf("decode imported WIF: %v", err)
			return 1
		}
		encPriv, err := walletcrypto.Seal(priv, cfg.WalletPass)
		if err != nil {
			logger.Criticalf("encrypt imported key: %v", err)
			return 1
		}
		if err := n.ImportKey(&walletdb.Key{
			PubKey:        walletcrypto.PubKeyFromPriv(priv),
			EncryptedPriv: encPriv,
			CreationTime:  time.Now(),
		}); err != nil {
			logger.Criticalf("import key: %v", err)
			return 1
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infof("spvnode starting on %s", params.Name)
	if err := n.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Criticalf("node exited: %v", err)
		return 1
	}
	logger.Infof("spvnode shutting down")
	return 0
}
