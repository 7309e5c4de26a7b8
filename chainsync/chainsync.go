// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chainsync coordinates outstanding block and transaction
// requests across peers: it tracks which peer a request was sent to,
// re-routes requests that time out or come back notfound, and drives a
// rescan from the wallet's earliest key-creation time forward.
package chainsync

import (
	"sync"
	"time"

	"github.com/btcspv/spvnode/chaincfg/chainhash"
	"github.com/btcspv/spvnode/walletdb"
	"github.com/btcspv/spvnode/wire"
)

// requestTimeout is how long a getdata request may go unanswered before
// the coordinator considers the contacted peer unresponsive and
// re-routes to another.
const requestTimeout = 60 * time.Second

// rescanWindow bounds how many filtered-block requests the rescan driver
// keeps in flight at once, so a long rescan doesn't flood a single peer.
const rescanWindow = 16

type reqKey struct {
	typ  wire.InvType
	hash chainhash.Hash
}

// SendFunc dispatches a getdata for (typ, hash) to the named peer.
type SendFunc func(peerID string, typ wire.InvType, hash chainhash.Hash) error

// PeerPicker returns a connected peer id other than the ones in exclude,
// or "" if none is available.
type PeerPicker func(exclude map[string]bool) string

// Coordinator owns the pending/in-flight request bookkeeping built on
// the PeerRequest model.
type Coordinator struct {
	mu      sync.Mutex
	pending map[reqKey]*walletdb.PeerRequest

	send     SendFunc
	pickPeer PeerPicker
}

// New returns a Coordinator that dispatches requests with send and picks
// alternate peers with pickPeer.
func New(send SendFunc, pickPeer PeerPicker) *Coordinator {
	return &Coordinator{
		pending:  make(map[reqKey]*walletdb.PeerRequest),
		send:     send,
		pickPeer: pickPeer,
	}
}

// Request issues a getdata for (typ, hash) to peerID, recording it as
// in-flight. If the request already exists, peerID is added to its
// contacted set without re-sending.
func (c *Coordinator) Request(peerID string, typ wire.InvType, hash chainhash.Hash) error {
	c.mu.Lock()
	key := reqKey{typ, hash}
	req, ok := c.pending[key]
	if !ok {
		req = &walletdb.PeerRequest{
			Type:      typ,
			Hash:      hash,
			Contacted: make(map[string]bool),
		}
		c.pending[key] = req
	}
	req.Contacted[peerID] = true
	req.Origin = peerID
	req.Timestamp = time.Now()
	req.InFlight = true
	c.mu.Unlock()

	return c.send(peerID, typ, hash)
}

// Fulfilled removes a completed request from the pending set.
func (c *Coordinator) Fulfilled(typ wire.InvType, hash chainhash.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, reqKey{typ, hash})
}

// HandleNotFound re-routes a request to a peer that hasn't already been
// asked, or drops it if every connected peer has already been asked.
func (c *Coordinator) HandleNotFound(typ wire.InvType, hash chainhash.Hash) error {
	c.mu.Lock()
	key := reqKey{typ, hash}
	req, ok := c.pending[key]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	exclude := make(map[string]bool, len(req.Contacted))
	for addr := range req.Contacted {
		exclude[addr] = true
	}
	c.mu.Unlock()

	next := c.pickPeer(exclude)
	if next == "" {
		c.mu.Lock()
		delete(c.pending, key)
		c.mu.Unlock()
		return nil
	}
	return c.Request(next, typ, hash)
}

// CheckTimeouts re-routes every pending request whose Timestamp is older
// than requestTimeout, as measured against now.
func (c *Coordinator) CheckTimeouts(now time.Time) error {
	c.mu.Lock()
	var stale []reqKey
	for key, req := range c.pending {
		if req.InFlight && now.Sub(req.Timestamp) >= requestTimeout {
			stale = append(stale, key)
		}
	}
	c.mu.Unlock()

	for _, key := range stale {
		if err := c.HandleNotFound(key.typ, key.hash); err != nil {
			return err
		}
	}
	return nil
}

// Pending returns the number of outstanding requests, for diagnostics
// and tests.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// RescanStart returns the height a rescan should begin from: the height
// of the latest on-chain block whose timestamp precedes the earliest of
// the given key creation times, so every transaction a newly imported
// key could plausibly own gets re-examined.
func RescanStart(store walletdb.Store, keyTimes []time.Time) (uint32, error) {
	if len(keyTimes) == 0 {
		return 0, nil
	}
	earliest := keyTimes[0]
	for _, t := range keyTimes[1:] {
		if t.Before(earliest) {
			earliest = t
		}
	}
	return store.RescanHeight(earliest)
}

// RescanDriver issues sequential filtered-block requests from height
// start through tipHeight, keeping at most rescanWindow requests
// in flight at a time so a long rescan doesn't starve other traffic to
// the chosen peer.
type RescanDriver struct {
	coord     *Coordinator
	blockHash func(height uint32) (chainhash.Hash, error)

	mu       sync.Mutex
	next     uint32
	tip      uint32
	inFlight int
	peerID   string
}

// NewRescanDriver returns a driver that requests filtered blocks for
// [start, tip] from peerID, resolving heights to hashes with blockHash.
func NewRescanDriver(coord *Coordinator, peerID string, start, tip uint32, blockHash func(height uint32) (chainhash.Hash, error)) *RescanDriver {
	return &RescanDriver{
		coord:     coord,
		blockHash: blockHash,
		next:      start,
		tip:       tip,
		peerID:    peerID,
	}
}

// Pump requests as many additional filtered blocks as the in-flight
// window allows.
func (d *RescanDriver) Pump() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for d.inFlight < rescanWindow && d.next <= d.tip {
		hash, err := d.blockHash(d.next)
		if err != nil {
			return err
		}
		if err := d.coord.Request(d.peerID, wire.InvTypeFilteredBlock, hash); err != nil {
			return err
		}
		d.inFlight++
		d.next++
	}
	return nil
}

// OnBlockReceived marks one in-flight request complete, freeing a slot
// for Pump to fill.
func (d *RescanDriver) OnBlockReceived() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inFlight > 0 {
		d.inFlight--
	}
}

// Done reports whether every height through tip has been requested and
// none remain in flight.
func (d *RescanDriver) Done() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.next > d.tip && d.inFlight == 0
}
