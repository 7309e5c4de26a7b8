// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package peer implements a single peer connection: the version
// handshake, a goroutine-per-connection reader/writer pair bridged by
// channels, ban-score tracking and ping/pong liveness. Replacing the
// blocking-queue-plus-wakeup() reactor of a single-threaded NIO
// dispatcher, each connection here runs its own pair of goroutines and
// communicates with the rest of the node purely by channel send — the
// idiomatic Go shape for the same one-goroutine-drives-one-socket model.
package peer

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcspv/spvnode/wire"
)

// State is the peer connection lifecycle.
type State int

const (
	StateConnecting State = iota
	StateVersionSent
	StateVersionExchanged
	StateReady
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateVersionSent:
		return "version-sent"
	case StateVersionExchanged:
		return "version-exchanged"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Ban score thresholds: AddBanScore reports when a peer has accumulated
// 100 or more points, and the caller then disconnects it. The score
// belongs to the connection only; the address is not barred from being
// dialed again.
const (
	BanScoreMalformed = 5
	BanScoreInvalid   = 5
	BanScoreThreshold = 100
)

const (
	pingInterval = 5 * time.Minute
	idleTimeout  = 10 * time.Minute
	sendQueueLen = 64
)

// MessageHandler is invoked by the peer's reader goroutine for every
// message successfully framed and decoded off the wire. It runs on the
// reader goroutine, so long-running work should be handed off.
type MessageHandler func(p *Peer, msg wire.Message)

// Config bundles callbacks and identity the node supplies to every Peer
// it creates.
type Config struct {
	Net            wire.BitcoinNet
	UserAgent      string
	ProtoVer       uint32
	Services       wire.ServiceFlag
	StartingHeight int32
	OnMessage      MessageHandler
	OnDisconnect   func(p *Peer)
}

// Peer owns a single net.Conn and the two goroutines driving it.
type Peer struct {
	cfg  Config
	conn net.Conn
	addr string

	state   atomic.Int32
	score   atomic.Int32
	inbound bool

	sendCh chan wire.Message
	quit   chan struct{}
	wg     sync.WaitGroup

	mu            sync.Mutex
	lastActivity  time.Time
	remoteVersion *wire.MsgVersion
}

// NewOutbound wraps conn as an outbound connection and starts the
// handshake and I/O goroutines.
func NewOutbound(conn net.Conn, cfg Config) *Peer {
	return newPeer(conn, cfg, false)
}

// NewInbound wraps conn as an inbound connection and starts the
// handshake and I/O goroutines.
func NewInbound(conn net.Conn, cfg Config) *Peer {
	return newPeer(conn, cfg, true)
}

func newPeer(conn net.Conn, cfg Config, inbound bool) *Peer {
	p := &Peer{
		cfg:          cfg,
		conn:         conn,
		addr:         conn.RemoteAddr().String(),
		inbound:      inbound,
		sendCh:       make(chan wire.Message, sendQueueLen),
		quit:         make(chan struct{}),
		lastActivity: time.Now(),
	}
	p.state.Store(int32(StateConnecting))

	p.wg.Add(2)
	go p.readLoop()
	go p.writeLoop()

	if !inbound {
		p.startHandshake()
	}
	return p
}

func (p *Peer) Addr() string { return p.addr }
func (p *Peer) Inbound() bool { return p.inbound }
func (p *Peer) State() State { return State(p.state.Load()) }
func (p *Peer) BanScore() int32 { return p.score.Load() }

// AddBanScore adds delta to the peer's cumulative ban score and
// reports whether the peer has now crossed the disconnect threshold.
func (p *Peer) AddBanScore(delta int32) (exceeded bool) {
	score := p.score.Add(delta)
	return score >= BanScoreThreshold
}

// QueueMessage enqueues msg for the write goroutine without blocking the
// caller; if the send queue is full the peer is disconnected rather than
// backing up an unbounded amount of memory against a stalled peer.
func (p *Peer) QueueMessage(msg wire.Message) {
	select {
	case p.sendCh <- msg:
	case <-p.quit:
	default:
		p.Disconnect()
	}
}

// Disconnect closes the connection and stops both goroutines. Safe to
// call more than once and from any goroutine.
func (p *Peer) Disconnect() {
	if p.state.Swap(int32(StateClosing)) == int32(StateClosed) {
		return
	}
	select {
	case <-p.quit:
		return
	default:
		close(p.quit)
	}
	p.conn.Close()
}

// WaitForDisconnect blocks until both I/O goroutines have exited.
func (p *Peer) WaitForDisconnect() {
	p.wg.Wait()
}

func (p *Peer) startHandshake() {
	version := &wire.MsgVersion{
		ProtocolVersion: int32(p.cfg.ProtoVer),
		Services:        p.cfg.Services,
		Timestamp:       time.Now().Unix(),
		Nonce:           pingNonce(),
		UserAgent:       p.cfg.UserAgent,
		LastBlock:       p.cfg.StartingHeight,
	}
	p.state.Store(int32(StateVersionSent))
	p.QueueMessage(version)
}

func (p *Peer) readLoop() {
	defer p.wg.Done()
	defer p.finish()

	for {
		if err := p.conn.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
			return
		}
		msg, _, err := wire.ReadMessage(p.conn, p.cfg.ProtoVer, p.cfg.Net)
		if err != nil {
			return
		}
		if msg == nil {
			// Unknown command: wire.ReadMessage returns no message for
			// it, and it is dropped here without being logged.
			continue
		}

		p.mu.Lock()
		p.lastActivity = time.Now()
		p.mu.Unlock()

		p.handleMessage(msg)

		select {
		case <-p.quit:
			return
		default:
		}
	}
}

func (p *Peer) handleMessage(msg wire.Message) {
	switch m := msg.(type) {
	case *wire.MsgVersion:
		p.onVersion(m)
	case *wire.MsgVerAck:
		p.onVerAck()
	case *wire.MsgPing:
		p.QueueMessage(&wire.MsgPong{Nonce: m.Nonce})
	case *wire.MsgPong:
		// Liveness only; no outstanding-ping bookkeeping beyond the idle
		// deadline reset already applied above.
	}

	if p.cfg.OnMessage != nil {
		p.cfg.OnMessage(p, msg)
	}
}

func (p *Peer) onVersion(v *wire.MsgVersion) {
	p.mu.Lock()
	p.remoteVersion = v
	p.mu.Unlock()

	if p.inbound {
		myVersion := &wire.MsgVersion{
			ProtocolVersion: int32(p.cfg.ProtoVer),
			Services:        p.cfg.Services,
			Timestamp:       time.Now().Unix(),
			Nonce:           pingNonce(),
			UserAgent:       p.cfg.UserAgent,
			LastBlock:       p.cfg.StartingHeight,
		}
		p.QueueMessage(myVersion)
	}
	p.state.Store(int32(StateVersionExchanged))
	p.QueueMessage(&wire.MsgVerAck{})
}

func (p *Peer) onVerAck() {
	p.state.Store(int32(StateReady))
}

func (p *Peer) writeLoop() {
	defer p.wg.Done()
	defer p.finish()

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case msg := <-p.sendCh:
			if err := wire.WriteMessage(p.conn, msg, p.cfg.ProtoVer, p.cfg.Net); err != nil {
				return
			}
		case <-pingTicker.C:
			if p.State() == StateReady {
				p.QueueMessage(&wire.MsgPing{Nonce: pingNonce()})
			}
		case <-p.quit:
			return
		}
	}
}

var pingNonceCounter atomic.Uint64

func pingNonce() uint64 {
	return pingNonceCounter.Add(1)
}

func (p *Peer) finish() {
	p.Disconnect()
	if p.state.Swap(int32(StateClosed)) != int32(StateClosed) {
		if p.cfg.OnDisconnect != nil {
			p.cfg.OnDisconnect(p)
		}
	}
}

func (p *Peer) String() string {
	return fmt.Sprintf("%s (%s)", p.addr, p.State())
}
