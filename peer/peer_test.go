// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/btcspv/spvnode/wire"
)

func TestHandshakeReachesReady(t *testing.T) {
	a, b := net.Pipe()

	cfgA := Config{Net: wire.MainNet, UserAgent: "/spvnode:test/", ProtoVer: wire.ProtocolVersion}
	cfgB := cfgA

	outbound := NewOutbound(a, cfgA)
	inbound := NewInbound(b, cfgB)
	defer outbound.Disconnect()
	defer inbound.Disconnect()

	require.Eventually(t, func() bool {
		return outbound.State() == StateReady && inbound.State() == StateReady
	}, 2*time.Second, 5*time.Millisecond)
}

func TestBanScoreThreshold(t *testing.T) {
	a, b := net.Pipe()
	p := NewOutbound(a, Config{Net: wire.MainNet, ProtoVer: wire.ProtocolVersion})
	defer p.Disconnect()
	defer b.Close()

	require.False(t, p.AddBanScore(BanScoreMalformed))
	require.False(t, p.AddBanScore(BanScoreMalformed))
	for i := 0; i < 18; i++ {
		p.AddBanScore(BanScoreMalformed)
	}
	require.True(t, p.AddBanScore(BanScoreMalformed))
}

func TestDisconnectIsIdempotent(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	p := NewOutbound(a, Config{Net: wire.MainNet, ProtoVer: wire.ProtocolVersion})

	p.Disconnect()
	p.Disconnect()
	p.WaitForDisconnect()
}
