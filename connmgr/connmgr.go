// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package connmgr maintains the node's outbound connection set: it
// dials peers discovered from the configured static address list, DNS
// seeds and addr messages relayed by existing peers, keeping a target
// number of outbound connections alive and retrying at a fixed interval
// when the pool drops below target.
package connmgr

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/btcspv/spvnode/addrmgr"
	"github.com/btcspv/spvnode/peer"
)

// TargetOutbound is the number of outbound connections the manager tries
// to keep alive.
const TargetOutbound = 8

const (
	dialTimeout   = 10 * time.Second
	retryInterval = 10 * time.Second
)

// Dialer abstracts net.Dialer for tests.
type Dialer func(ctx context.Context, network, addr string) (net.Conn, error)

// PeerFactory constructs a peer.Peer from a freshly dialed connection.
type PeerFactory func(conn net.Conn) *peer.Peer

// Manager drives outbound connection establishment against an
// addrmgr.Manager's known-address set.
type Manager struct {
	addrs       *addrmgr.Manager
	dial        Dialer
	newPeer     PeerFactory
	target      int
	connectedFn func() int

	mu        sync.Mutex
	attempted map[string]time.Time

	cancel context.CancelFunc
}

// Config bundles the dependencies the connection manager needs.
type Config struct {
	Addrs   *addrmgr.Manager
	Dial    Dialer
	NewPeer PeerFactory
	Target  int
	// Connected reports the number of currently live outbound peers, so
	// the manager knows how many more to dial.
	Connected func() int
}

// New returns a connection manager using cfg.
func New(cfg Config) *Manager {
	target := cfg.Target
	if target <= 0 {
		target = TargetOutbound
	}
	return &Manager{
		addrs:       cfg.Addrs,
		dial:        cfg.Dial,
		newPeer:     cfg.NewPeer,
		target:      target,
		connectedFn: cfg.Connected,
		attempted:   make(map[string]time.Time),
	}
}

// Run starts the connection loop; it returns when ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	m.fillOutbound(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.fillOutbound(ctx)
		}
	}
}

// Stop cancels the connection loop.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *Manager) fillOutbound(ctx context.Context) {
	need := m.target - m.connectedFn()
	if need <= 0 {
		return
	}

	exclude := m.excludeSet()
	for dialed := 0; dialed < need; dialed++ {
		ka := m.addrs.GetAddress(exclude)
		if ka == nil {
			return
		}
		addr := ka.NetAddress.String()
		exclude[addr] = true
		m.markAttempted(addr)
		go m.dialOne(ctx, addr)
	}
}

func (m *Manager) excludeSet() map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	exclude := make(map[string]bool, len(m.attempted))
	for addr, last := range m.attempted {
		if time.Since(last) < retryInterval {
			exclude[addr] = true
		}
	}
	return exclude
}

func (m *Manager) dialOne(ctx context.Context, addr string) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, err := m.dial(dialCtx, "tcp", addr)
	if err != nil {
		return
	}
	m.newPeer(conn)
}

func (m *Manager) markAttempted(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempted[addr] = time.Now()
}
