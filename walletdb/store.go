// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package walletdb

import (
	"time"

	"github.com/btcspv/spvnode/chaincfg/chainhash"
)

// Store is the storage-agnostic surface any backend (ordered KV, SQL,
// flat files) must satisfy. Implementations: LevelStore (an
// ordered-KV backend over goleveldb) and MemStore (an in-memory backend
// for tests).
type Store interface {
	// Headers.
	PutHeader(entry *HeaderEntry) error
	GetHeader(hash chainhash.Hash) (*HeaderEntry, error)
	GetChildOf(prevHash chainhash.Hash) (*HeaderEntry, error)
	GetBlockAtHeight(height uint32) (*HeaderEntry, error)
	IsNewBlock(hash chainhash.Hash) (bool, error)
	UpdateMatched(hash chainhash.Hash, matched []chainhash.Hash) error

	// Chain head.
	ChainHead() (hash chainhash.Hash, height uint32, err error)

	// GetJunction walks backward via PrevBlock from startingHash until an
	// on-chain header is reached, returning the headers strictly above
	// that junction up to and including startingHash, ordered oldest
	// first. The junction header itself is not included. Returns
	// *errs.BlockNotFound if a predecessor is absent.
	GetJunction(startingHash chainhash.Hash) ([]*HeaderEntry, error)

	// SetChainHead performs the atomic chain-head swap. oldPath
	// lists the headers from the current chain head back to (but not
	// including) the junction — each is demoted off-chain and any
	// receive/send row referencing it is unconfirmed. newPath lists the
	// headers from just after the junction up to the new head, each
	// already carrying its freshly computed Height/ChainWork/OnChain —
	// each is promoted on-chain and any receive/send row for one of its
	// Matched tx hashes is (re)confirmed into that block. Implementations
	// must apply both halves atomically with respect to concurrent
	// readers.
	SetChainHead(oldPath, newPath []*HeaderEntry) error

	// Keys, addresses, labels.
	StoreKey(k *Key) error
	GetKeys() ([]*Key, error)
	StoreAddress(a *Address) error
	GetAddresses() ([]*Address, error)
	SetAddressLabel(hash160 [20]byte, label string) error

	// Receive/send rows.
	IsNewTx(hash chainhash.Hash) (bool, error)
	StoreReceive(r *ReceiveRow) error
	StoreSend(s *SendRow) error
	GetReceiveList() ([]*ReceiveRow, error)
	GetSendList() ([]*SendRow, error)
	SetReceiveSpent(txHash chainhash.Hash, outputIndex uint32, spent bool) error
	SetReceiveSafe(txHash chainhash.Hash, outputIndex uint32, safe bool) error
	SetReceiveDeleted(txHash chainhash.Hash, outputIndex uint32, deleted bool) error
	SetSendDeleted(txHash chainhash.Hash, deleted bool) error

	// TxDepth returns 0 if unconfirmed or in a stale block, else
	// chain_height - block_height + 1.
	TxDepth(txHash chainhash.Hash) (uint32, error)

	// RescanHeight returns the height of the latest on-chain block with
	// time < t, or 0.
	RescanHeight(t time.Time) (uint32, error)

	Close() error
}
