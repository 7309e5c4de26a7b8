// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package addrmgr maintains the process-wide set of known peer addresses
// behind a single short-term lock rather than per-bucket locking, since
// the candidate set is small enough that contention never matters.
package addrmgr

import (
	"crypto/rand"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/aead/siphash"

	"github.com/btcspv/spvnode/wire"
)

// candidateWindow bounds how many of the most-recently-seen addresses are
// eligible for keyed selection, so a node still prefers fresh addresses
// over stale ones while not being fully predictable among the freshest.
const candidateWindow = 3

// KnownAddress tracks a PeerAddress plus the bookkeeping needed to prefer
// recently-seen, non-static candidates on reconnect.
type KnownAddress struct {
	NetAddress *wire.NetAddress
	LastSeen   time.Time
	Static     bool
}

func (ka *KnownAddress) key() string {
	return net.JoinHostPort(ka.NetAddress.IP.String(), fmt.Sprintf("%d", ka.NetAddress.Port))
}

// Manager owns the set of known peer addresses, populated from static
// connect= entries, DNS seed lookups and addr messages.
type Manager struct {
	mtx   sync.Mutex
	addrs map[string]*KnownAddress

	// selectionKey is a process-local SipHash key used to pick among the
	// freshest candidates in GetAddress, so an adversary feeding addr
	// messages with manipulated timestamps can't force which peer a
	// restart will dial next.
	selectionKey []byte
}

// New returns an empty address manager with a fresh random selection key.
// Panics if the system entropy source fails, since a silently all-zero
// key would make every restart's peer selection fully predictable.
func New() *Manager {
	key := make([]byte, 16)
	if _, err := rand.Read(key); err != nil {
		panic(fmt.Sprintf("addrmgr: read random selection key: %v", err))
	}
	return &Manager{addrs: make(map[string]*KnownAddress), selectionKey: key}
}

// AddStatic registers a user-configured connect= peer. Static peers are
// never evicted and are tried last on reconnect ("preferring
// recently-seen non-static ones").
func (m *Manager) AddStatic(addr *wire.NetAddress) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	ka := &KnownAddress{NetAddress: addr, LastSeen: time.Now(), Static: true}
	m.addrs[ka.key()] = ka
}

// AddAddresses merges a batch of addresses learned from a DNS seed lookup
// or an addr message.
func (m *Manager) AddAddresses(addrs []*wire.NetAddress) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	for _, a := range addrs {
		ka := &KnownAddress{NetAddress: a, LastSeen: time.Unix(int64(a.Timestamp), 0)}
		key := ka.key()
		if existing, ok := m.addrs[key]; ok {
			if ka.LastSeen.After(existing.LastSeen) {
				existing.LastSeen = ka.LastSeen
			}
			continue
		}
		m.addrs[key] = ka
	}
}

// GetAddress returns a connection candidate not present in exclude,
// preferring non-static addresses over static ones and, among the
// candidateWindow freshest non-static candidates, breaking the tie with a
// keyed hash rather than always returning the single newest.
func (m *Manager) GetAddress(exclude map[string]bool) *KnownAddress {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	var nonStatic, static []*KnownAddress
	for key, ka := range m.addrs {
		if exclude[key] {
			continue
		}
		if ka.Static {
			static = append(static, ka)
			continue
		}
		nonStatic = append(nonStatic, ka)
	}

	if len(nonStatic) > 0 {
		sort.Slice(nonStatic, func(i, j int) bool {
			return nonStatic[i].LastSeen.After(nonStatic[j].LastSeen)
		})
		if len(nonStatic) > candidateWindow {
			nonStatic = nonStatic[:candidateWindow]
		}
		return m.selectKeyed(nonStatic)
	}
	if len(static) > 0 {
		sort.Slice(static, func(i, j int) bool {
			return static[i].LastSeen.After(static[j].LastSeen)
		})
		return static[0]
	}
	return nil
}

// selectKeyed picks the candidate whose SipHash score under the
// manager's selection key is lowest, deterministic within a process but
// not predictable to a peer that only controls recency timestamps.
func (m *Manager) selectKeyed(candidates []*KnownAddress) *KnownAddress {
	best := candidates[0]
	bestScore := siphash.Sum64(m.selectionKey, []byte(best.key()))
	for _, ka := range candidates[1:] {
		score := siphash.Sum64(m.selectionKey, []byte(ka.key()))
		if score < bestScore {
			bestScore = score
			best = ka
		}
	}
	return best
}

// Addresses returns a snapshot of every known address, for building an
// outgoing addr message response to getaddr.
func (m *Manager) Addresses() []*wire.NetAddress {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	out := make([]*wire.NetAddress, 0, len(m.addrs))
	for _, ka := range m.addrs {
		out = append(out, ka.NetAddress)
	}
	return out
}

// Count returns the number of known addresses.
func (m *Manager) Count() int {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return len(m.addrs)
}
