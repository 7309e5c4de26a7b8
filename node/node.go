// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package node wires the header-chain engine, transaction matcher, peer
// pool, connection manager and sync coordinator into a single running
// wallet process bound to a walletdb.Store.
package node

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/btcspv/spvnode/addrmgr"
	"github.com/btcspv/spvnode/blockchain"
	"github.com/btcspv/spvnode/bloom"
	"github.com/btcspv/spvnode/chaincfg"
	"github.com/btcspv/spvnode/chaincfg/chainhash"
	"github.com/btcspv/spvnode/chainsync"
	"github.com/btcspv/spvnode/connmgr"
	"github.com/btcspv/spvnode/errs"
	"github.com/btcspv/spvnode/internal/log"
	"github.com/btcspv/spvnode/peer"
	"github.com/btcspv/spvnode/txmatch"
	"github.com/btcspv/spvnode/walletcrypto"
	"github.com/btcspv/spvnode/walletdb"
	"github.com/btcspv/spvnode/wire"
)

const userAgent = "/spvnode:0.1.0/"

// Config bundles everything the node needs to start: its storage, the
// network it speaks, and where to find peers.
type Config struct {
	Store      walletdb.Store
	Params     *chaincfg.Params
	Connect    []string
	MaxPeers   int
	DisableDNS bool
	Log        *log.Logger
}

// confirmingBlock records which block a merkleblock proved a tx's
// inclusion in, and that block's own timestamp, so a following tx
// message can be stored as confirmed rather than as unconfirmed.
type confirmingBlock struct {
	hash chainhash.Hash
	time time.Time
}

// Node owns the live peer set and drives header sync, transaction
// matching and rescans against a single walletdb.Store.
type Node struct {
	cfg   Config
	chain *blockchain.Chain
	addrs *addrmgr.Manager
	conns *connmgr.Manager
	sync  *chainsync.Coordinator
	log   *log.Logger

	mu        sync.Mutex
	peers     map[string]*peer.Peer
	filter    *bloom.Filter
	confirmed map[chainhash.Hash]confirmingBlock
	rescan    *chainsync.RescanDriver
}

// New constructs a Node from cfg, seeding genesis on an empty store and
// building the initial Bloom filter from whatever keys/addresses are
// already present.
func New(cfg Config) (*Node, error) {
	chain, err := blockchain.New(cfg.Store, cfg.Params)
	if err != nil {
		return nil, err
	}

	filter, err := txmatch.BuildFilter(cfg.Store)
	if err != nil {
		return nil, err
	}

	addrs := addrmgr.New()
	defaultPort := mustPort(cfg.Params.DefaultPort)
	for _, addr := range cfg.Connect {
		if ip := net.ParseIP(addr); ip != nil {
			addrs.AddStatic(&wire.NetAddress{IP: ip, Port: defaultPort})
		}
	}
	if !cfg.DisableDNS && len(cfg.Connect) == 0 {
		addrs.AddAddresses(lookupDNSSeeds(cfg.Params.DNSSeeds, defaultPort, cfg.Log))
	}

	n := &Node{
		cfg:       cfg,
		chain:     chain,
		addrs:     addrs,
		log:       cfg.Log,
		peers:     make(map[string]*peer.Peer),
		filter:    filter,
		confirmed: make(map[chainhash.Hash]confirmingBlock),
	}

	logWatchedAddresses(cfg.Store, cfg.Params, cfg.Log)

	n.sync = chainsync.New(n.sendGetData, n.pickAlternatePeer)

	n.conns = connmgr.New(connmgr.Config{
		Addrs: addrs,
		Dial: func(ctx context.Context, network, addr string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
		NewPeer:   n.newOutboundPeer,
		Target:    cfg.MaxPeers,
		Connected: n.connectedCount,
	})

	return n, nil
}

// Run starts the connection manager and blocks until ctx is canceled.
func (n *Node) Run(ctx context.Context) error {
	go n.conns.Run(ctx)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			n.conns.Stop()
			n.disconnectAll()
			return ctx.Err()
		case now := <-ticker.C:
			if err := n.sync.CheckTimeouts(now); err != nil {
				n.log.Warnf("check timeouts: %v", err)
			}
		}
	}
}

func (n *Node) newOutboundPeer(conn net.Conn) *peer.Peer {
	_, height, _ := n.chain.Tip()
	p := peer.NewOutbound(conn, peer.Config{
		Net:            n.cfg.Params.Net,
		UserAgent:      userAgent,
		ProtoVer:       wire.ProtocolVersion,
		Services:       0,
		StartingHeight: int32(height),
		OnMessage:      n.handleMessage,
		OnDisconnect:   n.removePeer,
	})
	n.addPeer(p)
	return p
}

func (n *Node) addPeer(p *peer.Peer) {
	n.mu.Lock()
	n.peers[p.Addr()] = p
	n.mu.Unlock()
}

func (n *Node) removePeer(p *peer.Peer) {
	n.mu.Lock()
	delete(n.peers, p.Addr())
	n.mu.Unlock()
}

func (n *Node) connectedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, p := range n.peers {
		if p.State() == peer.StateReady {
			count++
		}
	}
	return count
}

func (n *Node) disconnectAll() {
	n.mu.Lock()
	peers := make([]*peer.Peer, 0, len(n.peers))
	for _, p := range n.peers {
		peers = append(peers, p)
	}
	n.mu.Unlock()

	for _, p := range peers {
		p.Disconnect()
	}
}

// pickAlternatePeer returns a Ready peer not already in exclude, used by
// the sync coordinator to re-route timed-out or notfound requests.
func (n *Node) pickAlternatePeer(exclude map[string]bool) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	for addr, p := range n.peers {
		if p.State() == peer.StateReady && !exclude[addr] {
			return addr
		}
	}
	return ""
}

// sendGetData issues a getdata for (typ, hash) against the named peer.
func (n *Node) sendGetData(peerAddr string, typ wire.InvType, hash chainhash.Hash) error {
	n.mu.Lock()
	p, ok := n.peers[peerAddr]
	n.mu.Unlock()
	if !ok {
		return n.sync.HandleNotFound(typ, hash)
	}

	msg := wire.NewMsgGetData()
	if err := msg.AddInvVect(wire.NewInvVect(typ, &hash)); err != nil {
		return err
	}
	p.QueueMessage(msg)
	return nil
}

// handleMessage is the peer.MessageHandler invoked on each peer's reader
// goroutine for every decoded message; dispatch work is kept cheap here
// and handed off to the chain/txmatch packages which own their own
// locking.
func (n *Node) handleMessage(p *peer.Peer, msg wire.Message) {
	switch m := msg.(type) {
	case *wire.MsgVerAck:
		n.onHandshakeComplete(p)
	case *wire.MsgInv:
		n.onInv(p, m)
	case *wire.MsgHeaders:
		n.onHeaders(p, m)
	case *wire.MsgMerkleBlock:
		n.onMerkleBlock(p, m)
	case *wire.MsgTx:
		n.onTx(p, m)
	case *wire.MsgNotFound:
		n.onNotFound(m)
	case *wire.MsgAddr:
		n.addrs.AddAddresses(m.AddrList)
	}
}

func (n *Node) onHandshakeComplete(p *peer.Peer) {
	p.QueueMessage(n.filter.MsgFilterLoad())

	if !p.Inbound() {
		p.QueueMessage(&wire.MsgGetAddr{})
	}

	locator, err := n.chain.BuildLocator()
	if err != nil {
		n.log.Warnf("build locator: %v", err)
		return
	}
	p.QueueMessage(&wire.MsgGetHeaders{
		ProtocolVersion:    wire.ProtocolVersion,
		BlockLocatorHashes: locator,
	})
}

func (n *Node) onInv(p *peer.Peer, m *wire.MsgInv) {
	for _, iv := range m.InvList {
		switch iv.Type {
		case wire.InvTypeBlock:
			if err := n.sync.Request(p.Addr(), wire.InvTypeFilteredBlock, iv.Hash); err != nil {
				n.log.Warnf("request filtered block: %v", err)
			}
		case wire.InvTypeTx:
			if err := n.sync.Request(p.Addr(), wire.InvTypeTx, iv.Hash); err != nil {
				n.log.Warnf("request tx: %v", err)
			}
		}
	}
}

func (n *Node) onHeaders(p *peer.Peer, m *wire.MsgHeaders) {
	for _, bh := range m.Headers {
		accepted, err := n.chain.AcceptHeader(bh)
		if err != nil {
			n.log.Warnf("reject header from %s: %v", p.Addr(), err)
			if p.AddBanScore(5) {
				p.Disconnect()
			}
			return
		}
		if accepted {
			n.log.Debugf("accepted header %s from %s", bh.BlockHash(), p.Addr())
		}
	}
	if len(m.Headers) > 0 {
		locator, err := n.chain.BuildLocator()
		if err != nil {
			n.log.Warnf("build locator: %v", err)
			return
		}
		p.QueueMessage(&wire.MsgGetHeaders{
			ProtocolVersion:    wire.ProtocolVersion,
			BlockLocatorHashes: locator,
		})
	}
}

func (n *Node) onMerkleBlock(p *peer.Peer, m *wire.MsgMerkleBlock) {
	matches, err := bloom.ExtractMatches(m)
	if err != nil {
		n.log.Warnf("bad merkleblock from %s: %v", p.Addr(), err)
		n.log.TraceDump("rejected merkleblock", m)
		if p.AddBanScore(20) {
			p.Disconnect()
		}
		return
	}

	blockHash := m.Header.BlockHash()
	if err := n.cfg.Store.UpdateMatched(blockHash, matches); err != nil {
		n.log.Warnf("record matched txs: %v", err)
	}

	blockTime := time.Unix(int64(m.Header.Timestamp), 0)
	n.mu.Lock()
	for _, txHash := range matches {
		n.confirmed[txHash] = confirmingBlock{hash: blockHash, time: blockTime}
	}
	n.mu.Unlock()

	n.sync.Fulfilled(wire.InvTypeFilteredBlock, blockHash)
	n.pumpRescan()
}

// pumpRescan advances the active rescan, if any, by one received block,
// requesting further filtered blocks up to the in-flight window and
// clearing the driver once every height through its target has been
// requested and none remain in flight.
func (n *Node) pumpRescan() {
	n.mu.Lock()
	r := n.rescan
	n.mu.Unlock()
	if r == nil {
		return
	}

	r.OnBlockReceived()
	if err := r.Pump(); err != nil {
		n.log.Warnf("rescan pump: %v", err)
	}
	if r.Done() {
		n.mu.Lock()
		if n.rescan == r {
			n.rescan = nil
		}
		n.mu.Unlock()
	}
}

func (n *Node) onTx(p *peer.Peer, m *wire.MsgTx) {
	txHash := m.TxHash()

	blockHash := chainhash.Hash{}
	blockTime := time.Now()
	n.mu.Lock()
	if cb, ok := n.confirmed[txHash]; ok {
		blockHash = cb.hash
		blockTime = cb.time
		delete(n.confirmed, txHash)
	}
	n.mu.Unlock()

	matched, err := txmatch.Process(n.cfg.Store, m, blockHash, blockTime)
	if err != nil {
		n.log.Warnf("process tx from %s: %v", p.Addr(), err)
		return
	}
	n.sync.Fulfilled(wire.InvTypeTx, txHash)
	if matched {
		refreshed, err := txmatch.BuildFilter(n.cfg.Store)
		if err == nil {
			n.mu.Lock()
			n.filter = refreshed
			n.mu.Unlock()
			n.broadcastFilter()
		}
	}
}

func (n *Node) onNotFound(m *wire.MsgNotFound) {
	for _, iv := range m.InvList {
		if err := n.sync.HandleNotFound(iv.Type, iv.Hash); err != nil {
			n.log.Warnf("re-route notfound: %v", err)
		}
	}
}

// broadcastFilter pushes the freshly rebuilt Bloom filter to every Ready
// peer so newly derived keys are matched by future blocks.
func (n *Node) broadcastFilter() {
	n.mu.Lock()
	filter := n.filter
	peers := make([]*peer.Peer, 0, len(n.peers))
	for _, p := range n.peers {
		if p.State() == peer.StateReady {
			peers = append(peers, p)
		}
	}
	n.mu.Unlock()

	for _, p := range peers {
		p.QueueMessage(filter.MsgFilterLoad())
	}
}

// ImportKey stores a newly added key, rebuilds and broadcasts the Bloom
// filter to include it, and starts a rescan from the block preceding the
// key's creation time so any payment already on chain before the key was
// known to this process is still discovered.
func (n *Node) ImportKey(k *walletdb.Key) error {
	if err := n.cfg.Store.StoreKey(k); err != nil {
		return err
	}

	filter, err := txmatch.BuildFilter(n.cfg.Store)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.filter = filter
	n.mu.Unlock()
	n.broadcastFilter()

	start, err := chainsync.RescanStart(n.cfg.Store, []time.Time{k.CreationTime})
	if err != nil {
		return err
	}
	_, tip, err := n.chain.Tip()
	if err != nil {
		return err
	}
	if start > tip {
		return nil
	}

	peerAddr := n.pickAlternatePeer(nil)
	if peerAddr == "" {
		n.log.Warnf("import key: no connected peer available to rescan from height %d", start)
		return nil
	}

	driver := chainsync.NewRescanDriver(n.sync, peerAddr, start, tip, n.blockHashAtHeight)
	n.mu.Lock()
	n.rescan = driver
	n.mu.Unlock()
	return driver.Pump()
}

// blockHashAtHeight resolves an on-chain height to its header hash,
// satisfying the chainsync.RescanDriver's height-to-hash dependency.
func (n *Node) blockHashAtHeight(height uint32) (chainhash.Hash, error) {
	entry, err := n.cfg.Store.GetBlockAtHeight(height)
	if err != nil {
		return chainhash.Hash{}, err
	}
	if entry == nil {
		return chainhash.Hash{}, &errs.BlockNotFound{}
	}
	return entry.Hash(), nil
}

// lookupDNSSeeds resolves each configured DNS seed to its candidate peer
// addresses, used to bootstrap the address manager on a cold start with
// no static peers configured.
func lookupDNSSeeds(seeds []chaincfg.DNSSeed, port uint16, logger *log.Logger) []*wire.NetAddress {
	var out []*wire.NetAddress
	for _, seed := range seeds {
		ips, err := net.LookupHost(seed.Host)
		if err != nil {
			if logger != nil {
				logger.Warnf("dns seed %s: %v", seed.Host, err)
			}
			continue
		}
		for _, ipStr := range ips {
			ip := net.ParseIP(ipStr)
			if ip == nil {
				continue
			}
			out = append(out, &wire.NetAddress{IP: ip, Port: port})
		}
	}
	return out
}

// logWatchedAddresses writes the node's watched keys and addresses to the
// log in human-readable Base58Check form once at startup, so an operator
// can confirm which funds this process is guarding without reaching
// into the store directly.
func logWatchedAddresses(store walletdb.Store, params *chaincfg.Params, logger *log.Logger) {
	if logger == nil {
		return
	}
	keys, err := store.GetKeys()
	if err != nil {
		logger.Warnf("list watched keys: %v", err)
	}
	for _, k := range keys {
		logger.Infof("watching key address %s", walletcrypto.EncodeAddress(k.Hash160(), params.PubKeyHashAddrID))
	}
	addrs, err := store.GetAddresses()
	if err != nil {
		logger.Warnf("list watched addresses: %v", err)
	}
	for _, a := range addrs {
		logger.Infof("watching address %s", walletcrypto.EncodeAddress(a.Hash160, params.PubKeyHashAddrID))
	}
}

func mustPort(s string) uint16 {
	port, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0
	}
	return uint16(port)
}
