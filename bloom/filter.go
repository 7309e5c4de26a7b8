// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package bloom implements the BIP-0037 Bloom filter used by the
// transaction-matching engine to ask peers for only the transactions
// that touch this wallet's keys.
package bloom

import (
	"math"
	"sync"

	"github.com/btcspv/spvnode/wire"
)

const (
	// ln2Squared and ln2 are used in the standard BIP-0037 filter sizing
	// formula.
	ln2Squared = 0.4804530139182014246671025263266649717305529515945455
	ln2        = 0.6931471805599453094172321214581765680755001343602552

	// maxFilterBits caps the bit vector before it is shrunk to bytes,
	// mirroring wire.MaxFilterLoadFilterSize.
	maxFilterBits = wire.MaxFilterLoadFilterSize * 8
)

// Filter defines a wrapper type around a concurrent-safe BIP-0037 Bloom
// filter, supporting loading, adding elements and testing membership.
type Filter struct {
	mtx       sync.RWMutex
	bits      []byte
	hashFuncs uint32
	tweak     uint32
	updateTyp wire.BloomUpdateType
}

// NewFilter creates a new Bloom filter tuned for n elements with false
// positive rate fp, matching the BIP-0037 sizing formula.
func NewFilter(n, tweak uint32, fp float64, updateType wire.BloomUpdateType) *Filter {
	bitsCount := uint32(math.Min(-1*float64(n)*math.Log(fp)/ln2Squared, maxFilterBits))
	if bitsCount == 0 {
		bitsCount = 8
	}
	bitsCount -= bitsCount % 8

	hashFuncs := uint32(math.Min(float64(bitsCount)/float64(n)*ln2, wire.MaxFilterLoadHashFuncs))
	if hashFuncs == 0 {
		hashFuncs = 1
	}

	return &Filter{
		bits:      make([]byte, bitsCount/8),
		hashFuncs: hashFuncs,
		tweak:     tweak,
		updateTyp: updateType,
	}
}

// LoadFilter wraps an already-serialized filterload message back into a
// queryable Filter, for the rare case a client needs to inspect a peer's
// filter rather than build its own.
func LoadFilter(msg *wire.MsgFilterLoad) *Filter {
	return &Filter{
		bits:      msg.Filter,
		hashFuncs: msg.HashFuncs,
		tweak:     msg.Tweak,
		updateTyp: msg.Flags,
	}
}

// hash computes the murmur3-style BIP-0037 hash of data for hash function
// number hashNum.
func (f *Filter) hash(hashNum uint32, data []byte) uint32 {
	return murmurHash3(hashNum*0xfba4c795+f.tweak, data) % (uint32(len(f.bits)) * 8)
}

// matches reports whether data may be a member of the filter (with the
// filter's configured false-positive rate).
func (f *Filter) matches(data []byte) bool {
	if len(f.bits) == 0 {
		return false
	}
	for i := uint32(0); i < f.hashFuncs; i++ {
		idx := f.hash(i, data)
		if f.bits[idx/8]&(1<<(idx%8)) == 0 {
			return false
		}
	}
	return true
}

// Matches returns true if data is a member of the filter.
func (f *Filter) Matches(data []byte) bool {
	f.mtx.RLock()
	defer f.mtx.RUnlock()
	return f.matches(data)
}

// add inserts data into the filter's bit vector.
func (f *Filter) add(data []byte) {
	if len(f.bits) == 0 {
		return
	}
	for i := uint32(0); i < f.hashFuncs; i++ {
		idx := f.hash(i, data)
		f.bits[idx/8] |= 1 << (idx % 8)
	}
}

// Add inserts a raw element (public key or script) into the filter.
func (f *Filter) Add(data []byte) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.add(data)
}

// AddHash inserts a transaction/block hash into the filter.
func (f *Filter) AddHash(hash interface{ CloneBytes() []byte }) {
	f.Add(hash.CloneBytes())
}

// UpdateType reports the configured BloomUpdateType.
func (f *Filter) UpdateType() wire.BloomUpdateType {
	f.mtx.RLock()
	defer f.mtx.RUnlock()
	return f.updateTyp
}

// MsgFilterLoad serializes the filter into a wire filterload message, ready
// to broadcast to every Ready peer.
func (f *Filter) MsgFilterLoad() *wire.MsgFilterLoad {
	f.mtx.RLock()
	defer f.mtx.RUnlock()
	filterData := make([]byte, len(f.bits))
	copy(filterData, f.bits)
	return &wire.MsgFilterLoad{
		Filter:    filterData,
		HashFuncs: f.hashFuncs,
		Tweak:     f.tweak,
		Flags:     f.updateTyp,
	}
}

// murmurHash3 implements the 32-bit murmur3 hash used by BIP-0037 Bloom
// filters.
func murmurHash3(seed uint32, data []byte) uint32 {
	const (
		c1 = 0xcc9e2d51
		c2 = 0x1b873593
	)

	h1 := seed
	nblocks := len(data) / 4

	for i := 0; i < nblocks; i++ {
		k1 := uint32(data[i*4]) | uint32(data[i*4+1])<<8 |
			uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24

		k1 *= c1
		k1 = (k1 << 15) | (k1 >> 17)
		k1 *= c2

		h1 ^= k1
		h1 = (h1 << 13) | (h1 >> 19)
		h1 = h1*5 + 0xe6546b64
	}

	tailStart := nblocks * 4
	var k1 uint32
	switch len(data) & 3 {
	case 3:
		k1 ^= uint32(data[tailStart+2]) << 16
		fallthrough
	case 2:
		k1 ^= uint32(data[tailStart+1]) << 8
		fallthrough
	case 1:
		k1 ^= uint32(data[tailStart])
		k1 *= c1
		k1 = (k1 << 15) | (k1 >> 17)
		k1 *= c2
		h1 ^= k1
	}

	h1 ^= uint32(len(data))
	h1 ^= h1 >> 16
	h1 *= 0x85ebca6b
	h1 ^= h1 >> 13
	h1 *= 0xc2b2ae35
	h1 ^= h1 >> 16

	return h1
}
