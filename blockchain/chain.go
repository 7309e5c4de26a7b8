// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blockchain implements the header-chain engine: header
// acceptance, junction discovery between a candidate fork and the
// current chain head, chain-work accumulation and comparison, checkpoint
// enforcement, and the orchestration of a chain-head swap against a
// walletdb.Store.
package blockchain

import (
	"math/big"
	"time"

	"github.com/btcspv/spvnode/chaincfg"
	"github.com/btcspv/spvnode/chaincfg/chainhash"
	"github.com/btcspv/spvnode/errs"
	"github.com/btcspv/spvnode/walletdb"
	"github.com/btcspv/spvnode/wire"
)

// maxTimeDrift bounds how far a header's timestamp may exceed the local
// clock before it is rejected as invalid.
const maxTimeDrift = 2 * time.Hour

// Chain wraps a walletdb.Store with header-acceptance and chain-head
// maintenance logic. It holds no header state of its own; the store is
// the single source of truth so that concurrent readers always see a
// consistent chain.
type Chain struct {
	store  walletdb.Store
	params *chaincfg.Params
}

// New returns a Chain bound to store, seeding the genesis header on an
// empty store.
func New(store walletdb.Store, params *chaincfg.Params) (*Chain, error) {
	c := &Chain{store: store, params: params}

	head, _, err := store.ChainHead()
	if err != nil {
		return nil, err
	}
	if head == (chainhash.Hash{}) {
		genesis := &walletdb.HeaderEntry{
			Header:    params.GenesisHeader,
			OnChain:   true,
			Height:    0,
			ChainWork: big.NewInt(1),
		}
		if err := store.PutHeader(genesis); err != nil {
			return nil, err
		}
		if err := store.SetChainHead(nil, []*walletdb.HeaderEntry{genesis}); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Tip returns the current chain-head hash and height.
func (c *Chain) Tip() (chainhash.Hash, uint32, error) {
	return c.store.ChainHead()
}

// BuildLocator returns a block locator for the current chain head,
// suitable for a getheaders/getblocks request.
func (c *Chain) BuildLocator() ([]*chainhash.Hash, error) {
	_, height, err := c.store.ChainHead()
	if err != nil {
		return nil, err
	}

	var ancestorErr error
	locator := wire.BuildLocator(height, func(back uint32) *chainhash.Hash {
		if back > height {
			return nil
		}
		entry, err := c.store.GetBlockAtHeight(height - back)
		if err != nil {
			ancestorErr = err
			return nil
		}
		if entry == nil {
			return nil
		}
		h := entry.Hash()
		return &h
	})
	if ancestorErr != nil {
		return nil, ancestorErr
	}
	return locator, nil
}

// AcceptHeader validates and stores a single header, performing a chain
// reorganization if the header now represents more accumulated work than
// the current chain head.
// Returns true if the chain head changed.
func (c *Chain) AcceptHeader(header *wire.BlockHeader) (bool, error) {
	hash := header.BlockHash()

	isNew, err := c.store.IsNewBlock(hash)
	if err != nil {
		return false, err
	}
	if !isNew {
		return false, nil
	}

	if time.Unix(int64(header.Timestamp), 0).After(time.Now().Add(maxTimeDrift)) {
		return false, &errs.Verification{Reason: errs.ReasonTimestamp, Hash: &hash}
	}

	prevEntry, err := c.store.GetHeader(header.PrevBlock)
	if err != nil {
		return false, err
	}
	if prevEntry == nil {
		return false, &errs.BlockNotFound{Hash: header.PrevBlock}
	}

	entry := &walletdb.HeaderEntry{Header: *header}
	if err := c.store.PutHeader(entry); err != nil {
		return false, err
	}

	return c.maybeSwap(hash)
}

// maybeSwap walks the candidate tip's junction with the current chain,
// and if the candidate's accumulated work exceeds the current head's,
// performs the swap.
func (c *Chain) maybeSwap(candidateTip chainhash.Hash) (bool, error) {
	newPath, err := c.store.GetJunction(candidateTip)
	if err != nil {
		return false, err
	}

	junctionEntry, err := c.store.GetHeader(newPath[0].Header.PrevBlock)
	if err != nil {
		return false, err
	}
	if junctionEntry == nil {
		return false, &errs.BlockNotFound{Hash: newPath[0].Header.PrevBlock}
	}

	// Compute height and cumulative work for each header on the
	// candidate path, building forward from the junction.
	work := new(big.Int).Set(junctionEntry.ChainWork)
	height := junctionEntry.Height
	for _, e := range newPath {
		height++
		work = new(big.Int).Add(work, CalcWork(e.Header.Bits))
		e.Height = height
		e.ChainWork = new(big.Int).Set(work)
		e.OnChain = true
	}

	headHash, _, err := c.store.ChainHead()
	if err != nil {
		return false, err
	}
	headEntry, err := c.store.GetHeader(headHash)
	if err != nil {
		return false, err
	}

	// A strictly greater work total is required to swap; ties keep the
	// current chain.
	if headEntry != nil && work.Cmp(headEntry.ChainWork) <= 0 {
		return false, nil
	}

	if err := c.enforceCheckpoints(newPath); err != nil {
		return false, err
	}

	oldPath, err := c.pathFromHeadToJunction(headEntry, junctionEntry.Hash())
	if err != nil {
		return false, err
	}

	if err := c.store.SetChainHead(oldPath, newPath); err != nil {
		return false, err
	}
	return true, nil
}

// pathFromHeadToJunction returns the on-chain headers strictly between
// junction (exclusive) and the current head (inclusive), ordered from
// the head backward — the set that SetChainHead must demote.
func (c *Chain) pathFromHeadToJunction(head *walletdb.HeaderEntry, junction chainhash.Hash) ([]*walletdb.HeaderEntry, error) {
	if head == nil || head.Hash() == junction {
		return nil, nil
	}
	var path []*walletdb.HeaderEntry
	cur := head
	for cur.Hash() != junction {
		path = append(path, cur)
		prev, err := c.store.GetHeader(cur.Header.PrevBlock)
		if err != nil {
			return nil, err
		}
		if prev == nil {
			return nil, &errs.BlockNotFound{Hash: cur.Header.PrevBlock}
		}
		cur = prev
	}
	return path, nil
}

// enforceCheckpoints aborts the swap before any store write commits if
// the candidate path would pass through a checkpoint height with a hash
// that doesn't match the hard-coded one.
func (c *Chain) enforceCheckpoints(path []*walletdb.HeaderEntry) error {
	for _, cp := range c.params.Checkpoints {
		for _, e := range path {
			if e.Height != cp.Height {
				continue
			}
			if e.Hash() != cp.Hash {
				return &errs.Verification{Reason: errs.ReasonCheckpoint, Hash: func() *chainhash.Hash { h := e.Hash(); return &h }()}
			}
		}
	}
	return nil
}
