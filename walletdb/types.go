// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package walletdb defines the storage-agnostic wallet store interface
// and the data model it persists: headers, receive/send
// rows, keys and addresses. It also defines the PeerRequest record, which
// the sync coordinator keeps in memory and the Store does not persist.
package walletdb

import (
	"math/big"
	"time"

	"github.com/btcspv/spvnode/chaincfg/chainhash"
	"github.com/btcspv/spvnode/wire"
)

// HeaderEntry is a stored BlockHeader plus chain-placement metadata
// maintained by the header-chain engine.
type HeaderEntry struct {
	Header    wire.BlockHeader
	OnChain   bool
	Height    uint32
	ChainWork *big.Int
	Matched   []chainhash.Hash
}

// Hash returns the block hash of the stored header.
func (e *HeaderEntry) Hash() chainhash.Hash {
	return e.Header.BlockHash()
}

// ReceiveRow is a wallet-owned output discovered by the tx-matching
// engine. (tx_hash, output_index) is unique.
type ReceiveRow struct {
	NormID      chainhash.Hash
	TxHash      chainhash.Hash
	OutputIndex uint32
	Time        time.Time
	BlockHash   chainhash.Hash // zero = unconfirmed
	Address     [20]byte
	Value       *big.Int
	ScriptBytes []byte
	Spent       bool
	Change      bool
	Coinbase    bool
	InSafe      bool
	Deleted     bool
}

// SendRow is a wallet-originated payment recorded by the tx-matching
// engine. TxHash is unique.
type SendRow struct {
	NormID    chainhash.Hash
	TxHash    chainhash.Hash
	Time      time.Time
	BlockHash chainhash.Hash
	Address   [20]byte
	Value     *big.Int
	Fee       *big.Int
	Deleted   bool
	TxBytes   []byte
}

// Key is a wallet-owned public/private key pair, with the private half
// stored only in its encrypted envelope form.
type Key struct {
	PubKey        []byte
	EncryptedPriv []byte
	CreationTime  time.Time
	Label         string
	Change        bool
}

// Hash160 returns the 20-byte hash160 of the public key, the value used to
// index the ADDRESSES collection and to match P2PKH outputs.
func (k *Key) Hash160() [20]byte {
	return Hash160Of(k.PubKey)
}

// Address is a label attached to a 20-byte hash160, independent of whether
// this wallet holds the corresponding private key.
type Address struct {
	Hash160 [20]byte
	Label   string
}

// PeerRequest tracks an outstanding getdata request for a tx or
// filtered-block, owned by the sync coordinator.
type PeerRequest struct {
	Type     wire.InvType
	Hash     chainhash.Hash
	Contacted map[string]bool
	Timestamp time.Time
	InFlight  bool
	Origin    string
}
