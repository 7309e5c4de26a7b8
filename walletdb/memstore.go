// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package walletdb

import (
	"errors"
	"sync"
	"time"

	"github.com/btcspv/spvnode/chaincfg/chainhash"
	"github.com/btcspv/spvnode/errs"
)

var (
	errDuplicateKey = errors.New("duplicate primary key")
	errNotFound     = errors.New("row not found")
)

// MemStore is an in-memory Store implementation used by package tests and
// by short-lived tooling that does not need durability.
type MemStore struct {
	mtx sync.RWMutex

	headers map[chainhash.Hash]*HeaderEntry
	child   map[chainhash.Hash]chainhash.Hash
	byHeight map[uint32]chainhash.Hash

	headHash   chainhash.Hash
	headHeight uint32

	keys      []*Key
	addresses map[[20]byte]*Address

	receive map[receiveKey]*ReceiveRow
	send    map[chainhash.Hash]*SendRow
}

type receiveKey struct {
	tx  chainhash.Hash
	idx uint32
}

// NewMemStore returns an empty in-memory store seeded with the given
// genesis header as the initial chain head.
func NewMemStore(genesis *HeaderEntry) *MemStore {
	s := &MemStore{
		headers:   make(map[chainhash.Hash]*HeaderEntry),
		child:     make(map[chainhash.Hash]chainhash.Hash),
		byHeight:  make(map[uint32]chainhash.Hash),
		addresses: make(map[[20]byte]*Address),
		receive:   make(map[receiveKey]*ReceiveRow),
		send:      make(map[chainhash.Hash]*SendRow),
	}
	genesis.OnChain = true
	genesis.Height = 0
	hash := genesis.Hash()
	s.headers[hash] = genesis
	s.byHeight[0] = hash
	s.headHash = hash
	s.headHeight = 0
	return s
}

func (s *MemStore) PutHeader(entry *HeaderEntry) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	hash := entry.Hash()
	s.headers[hash] = entry
	s.child[entry.Header.PrevBlock] = hash
	return nil
}

func (s *MemStore) GetHeader(hash chainhash.Hash) (*HeaderEntry, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	e, ok := s.headers[hash]
	if !ok {
		return nil, nil
	}
	return e, nil
}

func (s *MemStore) GetChildOf(prevHash chainhash.Hash) (*HeaderEntry, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	child, ok := s.child[prevHash]
	if !ok {
		return nil, nil
	}
	return s.headers[child], nil
}

func (s *MemStore) GetBlockAtHeight(height uint32) (*HeaderEntry, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	hash, ok := s.byHeight[height]
	if !ok {
		return nil, nil
	}
	e := s.headers[hash]
	if !e.OnChain {
		return nil, nil
	}
	return e, nil
}

func (s *MemStore) IsNewBlock(hash chainhash.Hash) (bool, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	_, ok := s.headers[hash]
	return !ok, nil
}

func (s *MemStore) UpdateMatched(hash chainhash.Hash, matched []chainhash.Hash) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	e, ok := s.headers[hash]
	if !ok {
		return &errs.BlockNotFound{Hash: hash}
	}
	e.Matched = matched
	return nil
}

func (s *MemStore) ChainHead() (chainhash.Hash, uint32, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.headHash, s.headHeight, nil
}

func (s *MemStore) GetJunction(startingHash chainhash.Hash) ([]*HeaderEntry, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	var path []*HeaderEntry
	cur := startingHash
	for {
		e, ok := s.headers[cur]
		if !ok {
			return nil, &errs.BlockNotFound{Hash: cur}
		}
		if e.OnChain {
			return path, nil
		}
		path = append([]*HeaderEntry{e}, path...)
		cur = e.Header.PrevBlock
	}
}

func (s *MemStore) SetChainHead(oldPath, newPath []*HeaderEntry) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for _, e := range oldPath {
		delete(s.byHeight, e.Height)
		e.OnChain = false
		e.Height = 0
		for _, txHash := range e.Matched {
			s.unconfirmTx(txHash)
		}
	}

	for _, e := range newPath {
		e.OnChain = true
		s.byHeight[e.Height] = e.Hash()
		for _, txHash := range e.Matched {
			s.confirmTx(txHash, e.Hash())
		}
	}

	if len(newPath) > 0 {
		last := newPath[len(newPath)-1]
		s.headHash = last.Hash()
		s.headHeight = last.Height
	}
	return nil
}

func (s *MemStore) unconfirmTx(txHash chainhash.Hash) {
	for k, r := range s.receive {
		if r.TxHash == txHash {
			r.BlockHash = chainhash.Hash{}
			s.receive[k] = r
		}
	}
	if sr, ok := s.send[txHash]; ok {
		sr.BlockHash = chainhash.Hash{}
	}
}

func (s *MemStore) confirmTx(txHash chainhash.Hash, blockHash chainhash.Hash) {
	for k, r := range s.receive {
		if r.TxHash == txHash {
			r.BlockHash = blockHash
			s.receive[k] = r
		}
	}
	if sr, ok := s.send[txHash]; ok {
		sr.BlockHash = blockHash
	}
}

func (s *MemStore) StoreKey(k *Key) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for _, existing := range s.keys {
		if string(existing.PubKey) == string(k.PubKey) {
			*existing = *k
			return nil
		}
	}
	s.keys = append(s.keys, k)
	return nil
}

func (s *MemStore) GetKeys() ([]*Key, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	out := make([]*Key, len(s.keys))
	copy(out, s.keys)
	return out, nil
}

func (s *MemStore) StoreAddress(a *Address) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.addresses[a.Hash160] = a
	return nil
}

func (s *MemStore) GetAddresses() ([]*Address, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	out := make([]*Address, 0, len(s.addresses))
	for _, a := range s.addresses {
		out = append(out, a)
	}
	return out, nil
}

func (s *MemStore) SetAddressLabel(hash160 [20]byte, label string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	a, ok := s.addresses[hash160]
	if !ok {
		a = &Address{Hash160: hash160}
		s.addresses[hash160] = a
	}
	a.Label = label
	return nil
}

func (s *MemStore) IsNewTx(hash chainhash.Hash) (bool, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	for _, r := range s.receive {
		if r.TxHash == hash {
			return false, nil
		}
	}
	_, ok := s.send[hash]
	return !ok, nil
}

func (s *MemStore) StoreReceive(r *ReceiveRow) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	key := receiveKey{r.TxHash, r.OutputIndex}
	if _, exists := s.receive[key]; exists {
		return &errs.WalletStore{Op: "StoreReceive", Err: errDuplicateKey}
	}
	s.receive[key] = r
	return nil
}

func (s *MemStore) StoreSend(sr *SendRow) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if _, exists := s.send[sr.TxHash]; exists {
		return &errs.WalletStore{Op: "StoreSend", Err: errDuplicateKey}
	}
	s.send[sr.TxHash] = sr
	return nil
}

// GetReceiveList returns every receive row, collapsing duplicate norm_ids
// the row with a non-zero block_hash wins if one exists,
// otherwise the first one encountered.
func (s *MemStore) GetReceiveList() ([]*ReceiveRow, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	byNorm := make(map[chainhash.Hash]*ReceiveRow)
	order := make([]chainhash.Hash, 0, len(s.receive))
	for _, r := range s.receive {
		existing, ok := byNorm[r.NormID]
		if !ok {
			byNorm[r.NormID] = r
			order = append(order, r.NormID)
			continue
		}
		if existing.BlockHash == (chainhash.Hash{}) && r.BlockHash != (chainhash.Hash{}) {
			byNorm[r.NormID] = r
		}
	}

	out := make([]*ReceiveRow, 0, len(order))
	for _, n := range order {
		out = append(out, byNorm[n])
	}
	return out, nil
}

// GetSendList returns every send row with the same norm_id-collapsing
// policy as GetReceiveList.
func (s *MemStore) GetSendList() ([]*SendRow, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	byNorm := make(map[chainhash.Hash]*SendRow)
	order := make([]chainhash.Hash, 0, len(s.send))
	for _, r := range s.send {
		existing, ok := byNorm[r.NormID]
		if !ok {
			byNorm[r.NormID] = r
			order = append(order, r.NormID)
			continue
		}
		if existing.BlockHash == (chainhash.Hash{}) && r.BlockHash != (chainhash.Hash{}) {
			byNorm[r.NormID] = r
		}
	}

	out := make([]*SendRow, 0, len(order))
	for _, n := range order {
		out = append(out, byNorm[n])
	}
	return out, nil
}

func (s *MemStore) SetReceiveSpent(txHash chainhash.Hash, outputIndex uint32, spent bool) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	r, ok := s.receive[receiveKey{txHash, outputIndex}]
	if !ok {
		return &errs.WalletStore{Op: "SetReceiveSpent", Err: errNotFound}
	}
	r.Spent = spent
	return nil
}

func (s *MemStore) SetReceiveSafe(txHash chainhash.Hash, outputIndex uint32, safe bool) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	r, ok := s.receive[receiveKey{txHash, outputIndex}]
	if !ok {
		return &errs.WalletStore{Op: "SetReceiveSafe", Err: errNotFound}
	}
	r.InSafe = safe
	return nil
}

func (s *MemStore) SetReceiveDeleted(txHash chainhash.Hash, outputIndex uint32, deleted bool) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	r, ok := s.receive[receiveKey{txHash, outputIndex}]
	if !ok {
		return &errs.WalletStore{Op: "SetReceiveDeleted", Err: errNotFound}
	}
	r.Deleted = deleted
	return nil
}

func (s *MemStore) SetSendDeleted(txHash chainhash.Hash, deleted bool) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	sr, ok := s.send[txHash]
	if !ok {
		return &errs.WalletStore{Op: "SetSendDeleted", Err: errNotFound}
	}
	sr.Deleted = deleted
	return nil
}

func (s *MemStore) TxDepth(txHash chainhash.Hash) (uint32, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	var blockHash chainhash.Hash
	found := false
	for _, r := range s.receive {
		if r.TxHash == txHash {
			blockHash = r.BlockHash
			found = true
			break
		}
	}
	if !found {
		if sr, ok := s.send[txHash]; ok {
			blockHash = sr.BlockHash
			found = true
		}
	}
	if !found || blockHash == (chainhash.Hash{}) {
		return 0, nil
	}

	e, ok := s.headers[blockHash]
	if !ok || !e.OnChain {
		return 0, nil
	}
	return s.headHeight - e.Height + 1, nil
}

func (s *MemStore) RescanHeight(t time.Time) (uint32, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	var best uint32
	for h := uint32(0); h <= s.headHeight; h++ {
		hash, ok := s.byHeight[h]
		if !ok {
			continue
		}
		e := s.headers[hash]
		if time.Unix(int64(e.Header.Timestamp), 0).Before(t) {
			best = h
		}
	}
	return best, nil
}

func (s *MemStore) Close() error { return nil }
