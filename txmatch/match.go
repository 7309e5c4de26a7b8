// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txmatch implements the transaction-matching engine: Bloom
// filter construction from the wallet's watched key/address set,
// recognition of pay-to-pubkey-hash outputs the wallet owns, and
// construction of the receive/send rows a matched transaction produces.
package txmatch

import (
	"math/big"
	"time"

	"github.com/btcspv/spvnode/bloom"
	"github.com/btcspv/spvnode/chaincfg/chainhash"
	"github.com/btcspv/spvnode/txscript"
	"github.com/btcspv/spvnode/walletdb"
	"github.com/btcspv/spvnode/wire"
)

// falsePositiveRate is the Bloom filter false-positive rate requested of
// peers (BIP-0037 recommends well under 1% for a privacy/bandwidth
// balance acceptable to an SPV client).
const falsePositiveRate = 0.0001

// selfSendShift is the amount a self-send's receive leg is shifted
// forward relative to its send leg so the two rows sort deterministically
// in a time-ordered history view instead of tying.
const selfSendShift = 15 * time.Second

// BuildFilter constructs a Bloom filter sized for the wallet's current
// watch set: every owned public key, every owned hash160 and every
// outpoint of an unspent, undeleted receive row (so a later spend of our
// own output is matched even though its input doesn't reference our
// pubkey directly). The element count follows the 2n+15 rule of thumb
// that leaves headroom for addresses generated between filter refreshes.
func BuildFilter(store walletdb.Store) (*bloom.Filter, error) {
	keys, err := store.GetKeys()
	if err != nil {
		return nil, err
	}
	addrs, err := store.GetAddresses()
	if err != nil {
		return nil, err
	}
	receives, err := store.GetReceiveList()
	if err != nil {
		return nil, err
	}

	n := len(keys) + len(addrs)
	for _, r := range receives {
		if !r.Spent && !r.Deleted {
			n++
		}
	}

	elements := uint32(2*n + 15)
	if elements < 15 {
		elements = 15
	}
	filter := bloom.NewFilter(elements, 0, falsePositiveRate, wire.BloomUpdateAll)

	for _, k := range keys {
		filter.Add(k.PubKey)
		h160 := k.Hash160()
		filter.Add(h160[:])
	}
	for _, a := range addrs {
		filter.Add(a.Hash160[:])
	}
	for _, r := range receives {
		if r.Spent || r.Deleted {
			continue
		}
		op := wire.OutPoint{Hash: r.TxHash, Index: r.OutputIndex}
		filter.Add(outpointBytes(op))
	}
	return filter, nil
}

func outpointBytes(op wire.OutPoint) []byte {
	b := make([]byte, chainhash.HashSize+4)
	copy(b, op.Hash[:])
	b[chainhash.HashSize] = byte(op.Index)
	b[chainhash.HashSize+1] = byte(op.Index >> 8)
	b[chainhash.HashSize+2] = byte(op.Index >> 16)
	b[chainhash.HashSize+3] = byte(op.Index >> 24)
	return b
}

// watchSet indexes the wallet's owned hash160es (keys and watched
// addresses alike) for O(1) script recognition while scanning a
// transaction's outputs. It does not record which one is the change key;
// loadChangeKey resolves that separately.
type watchSet map[[20]byte]bool

func loadWatchSet(store walletdb.Store) (watchSet, error) {
	ws := make(watchSet)
	keys, err := store.GetKeys()
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		ws[k.Hash160()] = true
	}
	addrs, err := store.GetAddresses()
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		ws[a.Hash160] = true
	}
	return ws, nil
}

// loadChangeKey returns the hash160 of the wallet's designated change key,
// and whether one is configured.
func loadChangeKey(store walletdb.Store) (hash160 [20]byte, ok bool, err error) {
	keys, err := store.GetKeys()
	if err != nil {
		return hash160, false, err
	}
	for _, k := range keys {
		if k.Change {
			return k.Hash160(), true, nil
		}
	}
	return hash160, false, nil
}

// Process examines tx for outputs paying a wallet-owned address and
// inputs spending a wallet-owned previous output, storing the resulting
// receive/send rows. blockHash is the zero hash for an unconfirmed
// (mempool) transaction. blockTime is the time attributed to the rows:
// the caller passes the containing block's timestamp for a confirmed
// transaction and the wall-clock time for an unconfirmed one. Returns
// whether the wallet matched anything in tx.
func Process(store walletdb.Store, tx *wire.MsgTx, blockHash chainhash.Hash, blockTime time.Time) (bool, error) {
	txHash := tx.TxHash()
	isNew, err := store.IsNewTx(txHash)
	if err != nil {
		return false, err
	}
	if !isNew {
		return false, nil
	}

	ws, err := loadWatchSet(store)
	if err != nil {
		return false, err
	}
	changeKey, haveChangeKey, err := loadChangeKey(store)
	if err != nil {
		return false, err
	}

	normID := tx.NormID()
	isCoinbase := tx.IsCoinBase()
	matched := false

	// Inputs: does this transaction spend one of our own receive rows?
	var spentTotal int64
	var spendsOurs bool
	for _, in := range tx.TxIn {
		if isCoinbase {
			break
		}
		row, err := findReceive(store, in.PreviousOutPoint.Hash, in.PreviousOutPoint.Index)
		if err != nil {
			return false, err
		}
		if row == nil {
			continue
		}
		spendsOurs = true
		spentTotal += row.Value.Int64()
		if err := store.SetReceiveSpent(row.TxHash, row.OutputIndex, true); err != nil {
			return false, err
		}
	}

	// Outputs: does this transaction pay one of our own addresses?
	var outTotal int64
	var selfPay int64
	var payAddr [20]byte
	var havePayAddr bool
	for i, out := range tx.TxOut {
		outTotal += out.Value
		hash160 := txscript.ExtractPubKeyHash(out.PkScript)
		if hash160 == nil {
			continue
		}
		var h20 [20]byte
		copy(h20[:], hash160)
		if !ws[h20] {
			continue
		}

		matched = true
		if spendsOurs {
			selfPay += out.Value
		}
		if !havePayAddr {
			payAddr = h20
			havePayAddr = true
		}

		row := &walletdb.ReceiveRow{
			NormID:      normID,
			TxHash:      txHash,
			OutputIndex: uint32(i),
			Time:        blockTime,
			BlockHash:   blockHash,
			Address:     h20,
			Value:       big.NewInt(out.Value),
			ScriptBytes: out.PkScript,
			Change:      haveChangeKey && h20 == changeKey,
			Coinbase:    isCoinbase,
		}
		if spendsOurs {
			row.Time = blockTime.Add(selfSendShift)
		}
		if err := store.StoreReceive(row); err != nil {
			return false, err
		}
	}

	if spendsOurs {
		matched = true
		fee := spentTotal - outTotal
		send := &walletdb.SendRow{
			NormID:    normID,
			TxHash:    txHash,
			Time:      blockTime,
			BlockHash: blockHash,
			Value:     big.NewInt(spentTotal - selfPay),
			Fee:       big.NewInt(fee),
		}
		if havePayAddr {
			send.Address = payAddr
		}
		if err := store.StoreSend(send); err != nil {
			return false, err
		}
	}

	return matched, nil
}

func findReceive(store walletdb.Store, txHash chainhash.Hash, index uint32) (*walletdb.ReceiveRow, error) {
	rows, err := store.GetReceiveList()
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if r.TxHash == txHash && r.OutputIndex == index {
			return r, nil
		}
	}
	return nil, nil
}
