// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/btcspv/spvnode/chaincfg"
	"github.com/btcspv/spvnode/internal/log"
	"github.com/btcspv/spvnode/walletdb"
	"github.com/btcspv/spvnode/wire"
)

func testParams() *chaincfg.Params {
	p := chaincfg.TestNetParams()
	p.Checkpoints = nil
	return p
}

// newTestStore seeds genesis with ChainWork == 1, the on-disk
// compatibility constant blockchain.New also uses, not a computed work
// value.
func newTestStore(params *chaincfg.Params) *walletdb.MemStore {
	genesis := &walletdb.HeaderEntry{
		Header:    params.GenesisHeader,
		ChainWork: big.NewInt(1),
	}
	return walletdb.NewMemStore(genesis)
}

func discardLogger() *log.Logger {
	return log.NewLogger("TEST", log.LevelOff, discardWriter{})
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestNewWiresChainAndFilter(t *testing.T) {
	params := testParams()
	store := newTestStore(params)

	n, err := New(Config{
		Store:      store,
		Params:     params,
		DisableDNS: true,
		MaxPeers:   8,
		Log:        discardLogger(),
	})
	require.NoError(t, err)
	require.NotNil(t, n.chain)
	require.NotNil(t, n.filter)

	hash, height, err := n.chain.Tip()
	require.NoError(t, err)
	require.Equal(t, uint32(0), height)
	require.Equal(t, params.GenesisHash, hash)
}

func TestPickAlternatePeerExcludesGivenAddresses(t *testing.T) {
	params := testParams()
	store := newTestStore(params)
	n, err := New(Config{
		Store:      store,
		Params:     params,
		DisableDNS: true,
		MaxPeers:   8,
		Log:        discardLogger(),
	})
	require.NoError(t, err)

	require.Equal(t, "", n.pickAlternatePeer(nil))
}

func TestMustPortParsesDefaultPort(t *testing.T) {
	require.Equal(t, uint16(18444), mustPort("18444"))
	require.Equal(t, uint16(0), mustPort("not-a-port"))
}

// TestOnHandshakeCompleteSendsGetAddrToOutboundPeer verifies an outbound
// peer is sent a getaddr once the handshake reaches verack, so the addr
// peer-discovery path has a real requester.
func TestOnHandshakeCompleteSendsGetAddrToOutboundPeer(t *testing.T) {
	params := testParams()
	store := newTestStore(params)
	n, err := New(Config{
		Store:      store,
		Params:     params,
		DisableDNS: true,
		MaxPeers:   8,
		Log:        discardLogger(),
	})
	require.NoError(t, err)

	a, b := net.Pipe()
	defer b.Close()
	p := n.newOutboundPeer(a)
	defer p.Disconnect()

	// Drain the version message our own outbound peer sent first.
	_, _, err = wire.ReadMessage(b, wire.ProtocolVersion, params.Net)
	require.NoError(t, err)

	// Simulate the remote side completing the handshake.
	require.NoError(t, wire.WriteMessage(b, &wire.MsgVersion{ProtocolVersion: int32(wire.ProtocolVersion)}, wire.ProtocolVersion, params.Net))
	require.NoError(t, wire.WriteMessage(b, &wire.MsgVerAck{}, wire.ProtocolVersion, params.Net))

	var sawGetAddr bool
	for i := 0; i < 6; i++ {
		require.NoError(t, b.SetReadDeadline(time.Now().Add(2*time.Second)))
		msg, _, err := wire.ReadMessage(b, wire.ProtocolVersion, params.Net)
		require.NoError(t, err)
		if _, ok := msg.(*wire.MsgGetAddr); ok {
			sawGetAddr = true
			break
		}
	}
	require.True(t, sawGetAddr, "outbound peer must be sent a getaddr once the handshake completes")
}

// TestImportKeyStoresKeyAndRebuildsFilter verifies a key import is
// persisted and folded into the Bloom filter even with no peer connected
// to rescan against.
func TestImportKeyStoresKeyAndRebuildsFilter(t *testing.T) {
	params := testParams()
	store := newTestStore(params)
	n, err := New(Config{
		Store:      store,
		Params:     params,
		DisableDNS: true,
		MaxPeers:   8,
		Log:        discardLogger(),
	})
	require.NoError(t, err)

	k := &walletdb.Key{PubKey: []byte{0x02, 0x03, 0x04}, CreationTime: time.Unix(1, 0)}
	require.NoError(t, n.ImportKey(k))

	keys, err := store.GetKeys()
	require.NoError(t, err)
	require.Len(t, keys, 1)

	h160 := k.Hash160()
	require.True(t, n.filter.Matches(h160[:]), "filter must be rebuilt to include the imported key")
	require.Nil(t, n.rescan, "no connected peer means no rescan driver to start")
}

// TestImportKeyStartsRescanDriverAgainstConnectedPeer verifies a key
// import starts a rescan driver once a peer is Ready to serve it.
func TestImportKeyStartsRescanDriverAgainstConnectedPeer(t *testing.T) {
	params := testParams()
	store := newTestStore(params)
	n, err := New(Config{
		Store:      store,
		Params:     params,
		DisableDNS: true,
		MaxPeers:   8,
		Log:        discardLogger(),
	})
	require.NoError(t, err)

	a, b := net.Pipe()
	defer b.Close()
	p := n.newOutboundPeer(a)
	defer p.Disconnect()

	_, _, err = wire.ReadMessage(b, wire.ProtocolVersion, params.Net)
	require.NoError(t, err)
	require.NoError(t, wire.WriteMessage(b, &wire.MsgVersion{ProtocolVersion: int32(wire.ProtocolVersion)}, wire.ProtocolVersion, params.Net))
	require.NoError(t, wire.WriteMessage(b, &wire.MsgVerAck{}, wire.ProtocolVersion, params.Net))
	require.Eventually(t, func() bool { return n.connectedCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	// Drain our verack and the handshake-completion messages (filterload,
	// getaddr, getheaders) before importing the key.
	for i := 0; i < 4; i++ {
		require.NoError(t, b.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err := wire.ReadMessage(b, wire.ProtocolVersion, params.Net)
		require.NoError(t, err)
	}

	k := &walletdb.Key{PubKey: []byte{0x02, 0x05, 0x06}, CreationTime: time.Unix(1, 0)}
	require.NoError(t, n.ImportKey(k))
	require.NotNil(t, n.rescan, "a connected peer must receive a started rescan driver")

	// ImportKey pushes the rebuilt filter before the rescan's getdata.
	require.NoError(t, b.SetReadDeadline(time.Now().Add(2*time.Second)))
	msg, _, err := wire.ReadMessage(b, wire.ProtocolVersion, params.Net)
	require.NoError(t, err)
	_, ok := msg.(*wire.MsgFilterLoad)
	require.True(t, ok, "the rebuilt filter must be pushed to the peer before the rescan starts")

	require.NoError(t, b.SetReadDeadline(time.Now().Add(2*time.Second)))
	msg, _, err = wire.ReadMessage(b, wire.ProtocolVersion, params.Net)
	require.NoError(t, err)
	_, ok = msg.(*wire.MsgGetData)
	require.True(t, ok, "the rescan driver must issue a getdata for the rescan's starting block")
}
