// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package connmgr

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/btcspv/spvnode/addrmgr"
	"github.com/btcspv/spvnode/peer"
	"github.com/btcspv/spvnode/wire"
)

func TestFillOutboundStopsAtTarget(t *testing.T) {
	addrs := addrmgr.New()
	for i := 0; i < 5; i++ {
		addrs.AddStatic(&wire.NetAddress{IP: net.IPv4(127, 0, 0, byte(i+1)), Port: 8333})
	}

	var dialed int32
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		atomic.AddInt32(&dialed, 1)
		c1, c2 := net.Pipe()
		go func() { <-ctx.Done(); c2.Close() }()
		return c1, nil
	}

	var mu sync.Mutex
	var connected int
	mgr := New(Config{
		Addrs: addrs,
		Dial:  dial,
		NewPeer: func(conn net.Conn) *peer.Peer {
			mu.Lock()
			connected++
			mu.Unlock()
			return nil
		},
		Target:    3,
		Connected: func() int { mu.Lock(); defer mu.Unlock(); return connected },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr.fillOutbound(ctx)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&dialed) == 3
	}, time.Second, 5*time.Millisecond)
}

func TestFillOutboundNoopWhenAtTarget(t *testing.T) {
	addrs := addrmgr.New()
	addrs.AddStatic(&wire.NetAddress{IP: net.IPv4(127, 0, 0, 1), Port: 8333})

	mgr := New(Config{
		Addrs:     addrs,
		Dial:      func(ctx context.Context, network, addr string) (net.Conn, error) { t.Fatal("should not dial"); return nil, nil },
		NewPeer:   func(conn net.Conn) *peer.Peer { return nil },
		Target:    1,
		Connected: func() int { return 1 },
	})

	mgr.fillOutbound(context.Background())
}
