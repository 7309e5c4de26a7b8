// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txmatch

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/btcspv/spvnode/chaincfg/chainhash"
	"github.com/btcspv/spvnode/txscript"
	"github.com/btcspv/spvnode/walletdb"
	"github.com/btcspv/spvnode/wire"
)

func newStore(t *testing.T) *walletdb.MemStore {
	t.Helper()
	genesis := &walletdb.HeaderEntry{ChainWork: big.NewInt(1)}
	return walletdb.NewMemStore(genesis)
}

func TestProcessMatchesOwnedOutput(t *testing.T) {
	store := newStore(t)
	var hash160 [20]byte
	hash160[0] = 0xAB
	require.NoError(t, store.StoreAddress(&walletdb.Address{Hash160: hash160, Label: "incoming"}))

	tx := &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{{
			PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{0x01}, Index: 0xffffffff},
		}},
		TxOut: []*wire.TxOut{
			{Value: 50000, PkScript: txscript.PayToPubKeyHashScript(hash160)},
		},
	}

	matched, err := Process(store, tx, chainhash.Hash{0xaa}, time.Unix(1000, 0))
	require.NoError(t, err)
	require.True(t, matched)

	rows, err := store.GetReceiveList()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, int64(50000), rows[0].Value.Int64())
	require.False(t, rows[0].Spent)
}

func TestProcessIgnoresUnrelatedOutput(t *testing.T) {
	store := newStore(t)
	var other [20]byte
	other[0] = 0xCD

	tx := &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{{
			PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{0x01}, Index: 0xffffffff},
		}},
		TxOut: []*wire.TxOut{
			{Value: 50000, PkScript: txscript.PayToPubKeyHashScript(other)},
		},
	}

	matched, err := Process(store, tx, chainhash.Hash{0xaa}, time.Unix(1000, 0))
	require.NoError(t, err)
	require.False(t, matched)
}

func TestProcessComputesSendFeeAndSelfSendShift(t *testing.T) {
	store := newStore(t)
	var hash160 [20]byte
	hash160[0] = 0xAB
	require.NoError(t, store.StoreAddress(&walletdb.Address{Hash160: hash160, Label: "mine"}))

	fundingTx := &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{{
			PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{0x01}, Index: 0xffffffff},
		}},
		TxOut: []*wire.TxOut{
			{Value: 100000, PkScript: txscript.PayToPubKeyHashScript(hash160)},
		},
	}
	_, err := Process(store, fundingTx, chainhash.Hash{0xaa}, time.Unix(1000, 0))
	require.NoError(t, err)
	fundingHash := fundingTx.TxHash()

	var changeAddr [20]byte
	changeAddr[0] = 0xAB // self-send back to the same address (change)
	spendTx := &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{{
			PreviousOutPoint: wire.OutPoint{Hash: fundingHash, Index: 0},
		}},
		TxOut: []*wire.TxOut{
			{Value: 90000, PkScript: txscript.PayToPubKeyHashScript(changeAddr)},
		},
	}
	sendTime := time.Unix(2000, 0)
	matched, err := Process(store, spendTx, chainhash.Hash{0xbb}, sendTime)
	require.NoError(t, err)
	require.True(t, matched)

	sends, err := store.GetSendList()
	require.NoError(t, err)
	require.Len(t, sends, 1)
	require.Equal(t, int64(10000), sends[0].Fee.Int64())

	receives, err := store.GetReceiveList()
	require.NoError(t, err)
	require.Len(t, receives, 2)

	spent, err := findReceive(store, fundingHash, 0)
	require.NoError(t, err)
	require.True(t, spent.Spent)

	var changeRow *walletdb.ReceiveRow
	for _, r := range receives {
		if r.TxHash == spendTx.TxHash() {
			changeRow = r
		}
	}
	require.NotNil(t, changeRow)
	require.True(t, changeRow.Time.After(sendTime), "self-send change row must be shifted after the send time")
}

// TestProcessFlagsChangeByDesignatedKeyNotBySelfSpend verifies that a
// self-send with two wallet-owned outputs only flags the output paying the
// designated change key as change; an output paying a different owned
// receiving key, even though the transaction also spends one of our own
// inputs, must not be flagged.
func TestProcessFlagsChangeByDesignatedKeyNotBySelfSpend(t *testing.T) {
	store := newStore(t)

	receiveKey := &walletdb.Key{PubKey: []byte{0x02, 0x01}, Change: false}
	changeKey := &walletdb.Key{PubKey: []byte{0x02, 0x02}, Change: true}
	require.NoError(t, store.StoreKey(receiveKey))
	require.NoError(t, store.StoreKey(changeKey))

	fundingTx := &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{{
			PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{0x01}, Index: 0xffffffff},
		}},
		TxOut: []*wire.TxOut{
			{Value: 100000, PkScript: txscript.PayToPubKeyHashScript(receiveKey.Hash160())},
		},
	}
	_, err := Process(store, fundingTx, chainhash.Hash{0xaa}, time.Unix(1000, 0))
	require.NoError(t, err)
	fundingHash := fundingTx.TxHash()

	// Spends our own funding output and pays both of our owned keys: one
	// is an ordinary receive (not change), the other is the designated
	// change key.
	spendTx := &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{{
			PreviousOutPoint: wire.OutPoint{Hash: fundingHash, Index: 0},
		}},
		TxOut: []*wire.TxOut{
			{Value: 40000, PkScript: txscript.PayToPubKeyHashScript(receiveKey.Hash160())},
			{Value: 50000, PkScript: txscript.PayToPubKeyHashScript(changeKey.Hash160())},
		},
	}
	matched, err := Process(store, spendTx, chainhash.Hash{0xbb}, time.Unix(2000, 0))
	require.NoError(t, err)
	require.True(t, matched)

	receives, err := store.GetReceiveList()
	require.NoError(t, err)

	var receiveRow, changeRow *walletdb.ReceiveRow
	for _, r := range receives {
		if r.TxHash != spendTx.TxHash() {
			continue
		}
		if r.Address == receiveKey.Hash160() {
			receiveRow = r
		}
		if r.Address == changeKey.Hash160() {
			changeRow = r
		}
	}
	require.NotNil(t, receiveRow)
	require.NotNil(t, changeRow)
	require.False(t, receiveRow.Change, "ordinary receive to an owned non-change key must not be flagged change")
	require.True(t, changeRow.Change, "output paying the designated change key must be flagged change")
}
