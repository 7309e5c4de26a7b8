// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chaincfg defines the network parameters (magic numbers, genesis
// header, DNS seeds, checkpoints, address version bytes) selected by the
// `network` configuration option.
package chaincfg

import (
	"github.com/btcspv/spvnode/chaincfg/chainhash"
	"github.com/btcspv/spvnode/wire"
)

// DNSSeed identifies a DNS seed used for peer discovery on cold start.
type DNSSeed struct {
	Host string
}

// Checkpoint identifies a block by height and hash that is hard-coded to
// be work-equivalent, enforced by the header-chain engine before any swap
// commits.
type Checkpoint struct {
	Height uint32
	Hash   chainhash.Hash
}

// Params defines the network parameters selected by the `network` option.
type Params struct {
	Name        string
	Net         wire.BitcoinNet
	DefaultPort string
	DNSSeeds    []DNSSeed

	GenesisHeader wire.BlockHeader
	GenesisHash   chainhash.Hash

	// PowLimitBits is the compact-form maximum target, used only to
	// sanity check headers; this chain does not perform full
	// proof-of-work retargeting.
	PowLimitBits uint32

	Checkpoints []Checkpoint

	// PubKeyHashAddrID / PrivateKeyID are the Base58Check version bytes
	// for P2PKH addresses and WIF private keys. The matching engine
	// itself only ever consumes/produces the 20-byte hash160 and
	// 32-byte scalar these wrap; walletcrypto uses the version byte
	// only to format a human-readable address for display.
	PubKeyHashAddrID byte
	PrivateKeyID     byte
}

func mustHash(s string) chainhash.Hash {
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		panic(err)
	}
	return *h
}

// MainNetParams returns the network parameters for the production bitcoin
// network.
func MainNetParams() *Params {
	genesis := wire.BlockHeader{
		Version:    1,
		PrevBlock:  chainhash.Hash{},
		MerkleRoot: mustHash("4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"),
		Timestamp:  1231006505,
		Bits:       0x1d00ffff,
		Nonce:      2083236893,
	}

	p := &Params{
		Name:        "mainnet",
		Net:         wire.MainNet,
		DefaultPort: "8333",
		DNSSeeds: []DNSSeed{
			{"seed.bitcoin.sipa.be"},
			{"dnsseed.bluematt.me"},
			{"dnsseed.bitcoin.dashjr.org"},
			{"seed.bitcoinstats.com"},
			{"seed.bitcoin.jonasschnelli.ch"},
		},
		GenesisHeader:    genesis,
		PowLimitBits:     0x1d00ffff,
		PubKeyHashAddrID: 0x00,
		PrivateKeyID:     0x80,
	}
	p.GenesisHash = genesis.BlockHash()

	p.Checkpoints = []Checkpoint{
		{11111, mustHash("0000000069e244f73d78e8fd29ba2fd2ed618bd6fa2ee92559f542fdb26e7c1d")},
		{33333, mustHash("000000002dd5588a74784eaa7ab0507a18ad16a236e7b1ce69f00d7ddfb5d0a6")},
		{74000, mustHash("0000000000573993a3c9e41ce34471c079dcf5f52a0e824a81e7f953b8661a20")},
		{105000, mustHash("00000000000291ce28027faea320c8d2b054b2e0fe44a773f3eefb151d6bdc97")},
		{134444, mustHash("00000000000005b12ffd4cd315cd34ffd4a594f430ac814c91184a0d42d2b0fe")},
		{168000, mustHash("000000000000099e61ea72015e79632f216fe6cb33d7899acb35b75c8303b763")},
	}

	return p
}

// TestNetParams returns the network parameters for the regression test
// network.
func TestNetParams() *Params {
	genesis := wire.BlockHeader{
		Version:    1,
		PrevBlock:  chainhash.Hash{},
		MerkleRoot: mustHash("4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"),
		Timestamp:  1296688602,
		Bits:       0x207fffff,
		Nonce:      2,
	}

	p := &Params{
		Name:             "testnet",
		Net:              wire.TestNet,
		DefaultPort:      "18444",
		DNSSeeds:         nil,
		GenesisHeader:    genesis,
		PowLimitBits:     0x207fffff,
		PubKeyHashAddrID: 0x6f,
		PrivateKeyID:     0xef,
	}
	p.GenesisHash = genesis.BlockHash()
	return p
}

// ParamsForNetwork resolves the `network` configuration option to a
// concrete Params value.
func ParamsForNetwork(network string) (*Params, error) {
	switch network {
	case "", "prod", "mainnet":
		return MainNetParams(), nil
	case "test", "testnet", "regtest":
		return TestNetParams(), nil
	default:
		return nil, &unknownNetworkError{network}
	}
}

type unknownNetworkError struct{ network string }

func (e *unknownNetworkError) Error() string {
	return "unknown network: " + e.network
}
