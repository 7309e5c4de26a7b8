// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/btcspv/spvnode/chaincfg/chainhash"
	"github.com/btcspv/spvnode/wire"
)

func TestHandleNotFoundReroutesToAnotherPeer(t *testing.T) {
	var sent []string
	send := func(peerID string, typ wire.InvType, hash chainhash.Hash) error {
		sent = append(sent, peerID)
		return nil
	}
	pick := func(exclude map[string]bool) string {
		for _, candidate := range []string{"peerA", "peerB"} {
			if !exclude[candidate] {
				return candidate
			}
		}
		return ""
	}

	c := New(send, pick)
	hash := chainhash.Hash{0x01}
	require.NoError(t, c.Request("peerA", wire.InvTypeTx, hash))
	require.NoError(t, c.HandleNotFound(wire.InvTypeTx, hash))

	require.Equal(t, []string{"peerA", "peerB"}, sent)
	require.Equal(t, 1, c.Pending())
}

func TestHandleNotFoundDropsWhenNoPeersLeft(t *testing.T) {
	send := func(peerID string, typ wire.InvType, hash chainhash.Hash) error { return nil }
	pick := func(exclude map[string]bool) string { return "" }

	c := New(send, pick)
	hash := chainhash.Hash{0x02}
	require.NoError(t, c.Request("peerA", wire.InvTypeTx, hash))
	require.NoError(t, c.HandleNotFound(wire.InvTypeTx, hash))
	require.Equal(t, 0, c.Pending())
}

func TestCheckTimeoutsReroutesStaleRequests(t *testing.T) {
	var sent []string
	send := func(peerID string, typ wire.InvType, hash chainhash.Hash) error {
		sent = append(sent, peerID)
		return nil
	}
	pick := func(exclude map[string]bool) string {
		if !exclude["peerB"] {
			return "peerB"
		}
		return ""
	}

	c := New(send, pick)
	hash := chainhash.Hash{0x03}
	require.NoError(t, c.Request("peerA", wire.InvTypeBlock, hash))

	require.NoError(t, c.CheckTimeouts(time.Now().Add(120*time.Second)))
	require.Equal(t, []string{"peerA", "peerB"}, sent)
}

func TestRescanDriverRequestsWithinWindow(t *testing.T) {
	var requested []uint32
	send := func(peerID string, typ wire.InvType, hash chainhash.Hash) error {
		requested = append(requested, uint32(hash[0]))
		return nil
	}
	pick := func(exclude map[string]bool) string { return "" }
	c := New(send, pick)

	blockHash := func(height uint32) (chainhash.Hash, error) {
		var h chainhash.Hash
		h[0] = byte(height)
		return h, nil
	}

	d := NewRescanDriver(c, "peerA", 0, 20, blockHash)
	require.NoError(t, d.Pump())
	require.Len(t, requested, 16, "pump should stop at the in-flight window")
	require.False(t, d.Done())

	for i := 0; i < 16; i++ {
		d.OnBlockReceived()
	}
	require.NoError(t, d.Pump())
	require.Len(t, requested, 21)
	require.False(t, d.Done())

	for i := 0; i < 5; i++ {
		d.OnBlockReceived()
	}
	require.True(t, d.Done())
}
