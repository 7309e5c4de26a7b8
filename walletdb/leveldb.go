// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package walletdb

import (
	"encoding/binary"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/btcspv/spvnode/chaincfg/chainhash"
	"github.com/btcspv/spvnode/errs"
)

// Key-space prefixes for the ordered KV backend: HEADERS, BLOCK_CHAIN
// (ordered by height for range scan), RECEIVED (prefixed by tx_hash for
// prefix scan), SENT, KEYS, ADDRESSES and the CHILD resume index.
const (
	prefixHeader   = 'H'
	prefixChain    = 'C' // height (BE u32) -> hash
	prefixChild    = 'D' // prev hash -> child hash
	prefixReceive  = 'R' // tx_hash || output_index (BE u32)
	prefixSend     = 'S'
	prefixKey      = 'K'
	prefixAddress  = 'A'
	keyChainHead   = "head"
)

// LevelStore is an ordered-KV Store backend over goleveldb:
// suitable because BLOCK_CHAIN needs an ordered-by-height range scan and
// RECEIVED needs a tx_hash prefix scan, both of which goleveldb's sorted
// keyspace provides directly.
type LevelStore struct {
	db *leveldb.DB
}

// OpenLevelStore opens (creating if absent) a goleveldb-backed wallet
// store at path.
func OpenLevelStore(path string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, &errs.WalletStore{Op: "OpenLevelStore", Err: err}
	}
	return &LevelStore{db: db}, nil
}

func headerKey(hash chainhash.Hash) []byte {
	k := make([]byte, 1+chainhash.HashSize)
	k[0] = prefixHeader
	copy(k[1:], hash[:])
	return k
}

func chainKey(height uint32) []byte {
	k := make([]byte, 5)
	k[0] = prefixChain
	binary.BigEndian.PutUint32(k[1:], height)
	return k
}

func childKey(prevHash chainhash.Hash) []byte {
	k := make([]byte, 1+chainhash.HashSize)
	k[0] = prefixChild
	copy(k[1:], prevHash[:])
	return k
}

func receiveKeyBytes(tx chainhash.Hash, idx uint32) []byte {
	k := make([]byte, 1+chainhash.HashSize+4)
	k[0] = prefixReceive
	copy(k[1:], tx[:])
	binary.BigEndian.PutUint32(k[1+chainhash.HashSize:], idx)
	return k
}

func receivePrefix(tx chainhash.Hash) []byte {
	k := make([]byte, 1+chainhash.HashSize)
	k[0] = prefixReceive
	copy(k[1:], tx[:])
	return k
}

func sendKeyBytes(tx chainhash.Hash) []byte {
	k := make([]byte, 1+chainhash.HashSize)
	k[0] = prefixSend
	copy(k[1:], tx[:])
	return k
}

func keyKeyBytes(pub []byte) []byte {
	k := make([]byte, 1+len(pub))
	k[0] = prefixKey
	copy(k[1:], pub)
	return k
}

func addressKeyBytes(hash160 [20]byte) []byte {
	k := make([]byte, 1+20)
	k[0] = prefixAddress
	copy(k[1:], hash160[:])
	return k
}

func (s *LevelStore) PutHeader(entry *HeaderEntry) error {
	data, err := encodeHeaderEntry(entry)
	if err != nil {
		return &errs.WalletStore{Op: "PutHeader", Err: err}
	}
	hash := entry.Hash()
	batch := new(leveldb.Batch)
	batch.Put(headerKey(hash), data)
	batch.Put(childKey(entry.Header.PrevBlock), hash[:])
	if entry.OnChain {
		batch.Put(chainKey(entry.Height), hash[:])
	}
	if err := s.db.Write(batch, nil); err != nil {
		return &errs.WalletStore{Op: "PutHeader", Err: err}
	}
	return nil
}

func (s *LevelStore) GetHeader(hash chainhash.Hash) (*HeaderEntry, error) {
	data, err := s.db.Get(headerKey(hash), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, &errs.WalletStore{Op: "GetHeader", Err: err}
	}
	return decodeHeaderEntry(data)
}

func (s *LevelStore) GetChildOf(prevHash chainhash.Hash) (*HeaderEntry, error) {
	hashBytes, err := s.db.Get(childKey(prevHash), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, &errs.WalletStore{Op: "GetChildOf", Err: err}
	}
	var hash chainhash.Hash
	copy(hash[:], hashBytes)
	return s.GetHeader(hash)
}

func (s *LevelStore) GetBlockAtHeight(height uint32) (*HeaderEntry, error) {
	hashBytes, err := s.db.Get(chainKey(height), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, &errs.WalletStore{Op: "GetBlockAtHeight", Err: err}
	}
	var hash chainhash.Hash
	copy(hash[:], hashBytes)
	return s.GetHeader(hash)
}

func (s *LevelStore) IsNewBlock(hash chainhash.Hash) (bool, error) {
	ok, err := s.db.Has(headerKey(hash), nil)
	if err != nil {
		return false, &errs.WalletStore{Op: "IsNewBlock", Err: err}
	}
	return !ok, nil
}

func (s *LevelStore) UpdateMatched(hash chainhash.Hash, matched []chainhash.Hash) error {
	entry, err := s.GetHeader(hash)
	if err != nil {
		return err
	}
	if entry == nil {
		return &errs.BlockNotFound{Hash: hash}
	}
	entry.Matched = matched
	return s.PutHeader(entry)
}

func (s *LevelStore) ChainHead() (chainhash.Hash, uint32, error) {
	data, err := s.db.Get([]byte(keyChainHead), nil)
	if err == leveldb.ErrNotFound {
		return chainhash.Hash{}, 0, nil
	}
	if err != nil {
		return chainhash.Hash{}, 0, &errs.WalletStore{Op: "ChainHead", Err: err}
	}
	var hash chainhash.Hash
	copy(hash[:], data[:chainhash.HashSize])
	height := binary.BigEndian.Uint32(data[chainhash.HashSize:])
	return hash, height, nil
}

func (s *LevelStore) GetJunction(startingHash chainhash.Hash) ([]*HeaderEntry, error) {
	var path []*HeaderEntry
	cur := startingHash
	for {
		e, err := s.GetHeader(cur)
		if err != nil {
			return nil, err
		}
		if e == nil {
			return nil, &errs.BlockNotFound{Hash: cur}
		}
		if e.OnChain {
			return path, nil
		}
		path = append([]*HeaderEntry{e}, path...)
		cur = e.Header.PrevBlock
	}
}

func (s *LevelStore) SetChainHead(oldPath, newPath []*HeaderEntry) error {
	batch := new(leveldb.Batch)

	for _, e := range oldPath {
		e.OnChain = false
		height := e.Height
		e.Height = 0
		data, err := encodeHeaderEntry(e)
		if err != nil {
			return &errs.WalletStore{Op: "SetChainHead", Err: err}
		}
		batch.Put(headerKey(e.Hash()), data)
		batch.Delete(chainKey(height))
		for _, txHash := range e.Matched {
			if err := s.unconfirmTx(batch, txHash); err != nil {
				return err
			}
		}
	}

	for _, e := range newPath {
		data, err := encodeHeaderEntry(e)
		if err != nil {
			return &errs.WalletStore{Op: "SetChainHead", Err: err}
		}
		hash := e.Hash()
		batch.Put(headerKey(hash), data)
		batch.Put(chainKey(e.Height), hash[:])
		for _, txHash := range e.Matched {
			if err := s.confirmTx(batch, txHash, hash); err != nil {
				return err
			}
		}
	}

	if len(newPath) > 0 {
		last := newPath[len(newPath)-1]
		hash := last.Hash()
		head := make([]byte, chainhash.HashSize+4)
		copy(head, hash[:])
		binary.BigEndian.PutUint32(head[chainhash.HashSize:], last.Height)
		batch.Put([]byte(keyChainHead), head)
	}

	if err := s.db.Write(batch, nil); err != nil {
		return &errs.WalletStore{Op: "SetChainHead", Err: err}
	}
	return nil
}

func (s *LevelStore) unconfirmTx(batch *leveldb.Batch, txHash chainhash.Hash) error {
	iter := s.db.NewIterator(util.BytesPrefix(receivePrefix(txHash)), nil)
	defer iter.Release()
	for iter.Next() {
		row, err := decodeReceiveRow(iter.Value())
		if err != nil {
			return &errs.WalletStore{Op: "unconfirmTx", Err: err}
		}
		row.BlockHash = chainhash.Hash{}
		data, err := encodeReceiveRow(row)
		if err != nil {
			return &errs.WalletStore{Op: "unconfirmTx", Err: err}
		}
		batch.Put(append([]byte(nil), iter.Key()...), data)
	}

	sendData, err := s.db.Get(sendKeyBytes(txHash), nil)
	if err == nil {
		row, derr := decodeSendRow(sendData)
		if derr != nil {
			return &errs.WalletStore{Op: "unconfirmTx", Err: derr}
		}
		row.BlockHash = chainhash.Hash{}
		data, eerr := encodeSendRow(row)
		if eerr != nil {
			return &errs.WalletStore{Op: "unconfirmTx", Err: eerr}
		}
		batch.Put(sendKeyBytes(txHash), data)
	}
	return nil
}

func (s *LevelStore) confirmTx(batch *leveldb.Batch, txHash chainhash.Hash, blockHash chainhash.Hash) error {
	iter := s.db.NewIterator(util.BytesPrefix(receivePrefix(txHash)), nil)
	defer iter.Release()
	for iter.Next() {
		row, err := decodeReceiveRow(iter.Value())
		if err != nil {
			return &errs.WalletStore{Op: "confirmTx", Err: err}
		}
		row.BlockHash = blockHash
		data, err := encodeReceiveRow(row)
		if err != nil {
			return &errs.WalletStore{Op: "confirmTx", Err: err}
		}
		batch.Put(append([]byte(nil), iter.Key()...), data)
	}

	sendData, err := s.db.Get(sendKeyBytes(txHash), nil)
	if err == nil {
		row, derr := decodeSendRow(sendData)
		if derr != nil {
			return &errs.WalletStore{Op: "confirmTx", Err: derr}
		}
		row.BlockHash = blockHash
		data, eerr := encodeSendRow(row)
		if eerr != nil {
			return &errs.WalletStore{Op: "confirmTx", Err: eerr}
		}
		batch.Put(sendKeyBytes(txHash), data)
	}
	return nil
}

func (s *LevelStore) StoreKey(k *Key) error {
	data, err := encodeKey(k)
	if err != nil {
		return &errs.WalletStore{Op: "StoreKey", Err: err}
	}
	if err := s.db.Put(keyKeyBytes(k.PubKey), data, nil); err != nil {
		return &errs.WalletStore{Op: "StoreKey", Err: err}
	}
	return nil
}

func (s *LevelStore) GetKeys() ([]*Key, error) {
	var keys []*Key
	iter := s.db.NewIterator(util.BytesPrefix([]byte{prefixKey}), nil)
	defer iter.Release()
	for iter.Next() {
		k, err := decodeKey(iter.Value())
		if err != nil {
			return nil, &errs.WalletStore{Op: "GetKeys", Err: err}
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *LevelStore) StoreAddress(a *Address) error {
	data, err := encodeAddress(a)
	if err != nil {
		return &errs.WalletStore{Op: "StoreAddress", Err: err}
	}
	if err := s.db.Put(addressKeyBytes(a.Hash160), data, nil); err != nil {
		return &errs.WalletStore{Op: "StoreAddress", Err: err}
	}
	return nil
}

func (s *LevelStore) GetAddresses() ([]*Address, error) {
	var addrs []*Address
	iter := s.db.NewIterator(util.BytesPrefix([]byte{prefixAddress}), nil)
	defer iter.Release()
	for iter.Next() {
		var hash160 [20]byte
		copy(hash160[:], iter.Key()[1:])
		a, err := decodeAddress(hash160, iter.Value())
		if err != nil {
			return nil, &errs.WalletStore{Op: "GetAddresses", Err: err}
		}
		addrs = append(addrs, a)
	}
	return addrs, nil
}

func (s *LevelStore) SetAddressLabel(hash160 [20]byte, label string) error {
	return s.StoreAddress(&Address{Hash160: hash160, Label: label})
}

func (s *LevelStore) IsNewTx(hash chainhash.Hash) (bool, error) {
	iter := s.db.NewIterator(util.BytesPrefix(receivePrefix(hash)), nil)
	defer iter.Release()
	if iter.Next() {
		return false, nil
	}
	ok, err := s.db.Has(sendKeyBytes(hash), nil)
	if err != nil {
		return false, &errs.WalletStore{Op: "IsNewTx", Err: err}
	}
	return !ok, nil
}

func (s *LevelStore) StoreReceive(r *ReceiveRow) error {
	key := receiveKeyBytes(r.TxHash, r.OutputIndex)
	exists, err := s.db.Has(key, nil)
	if err != nil {
		return &errs.WalletStore{Op: "StoreReceive", Err: err}
	}
	if exists {
		return &errs.WalletStore{Op: "StoreReceive", Err: errDuplicateKey}
	}
	data, err := encodeReceiveRow(r)
	if err != nil {
		return &errs.WalletStore{Op: "StoreReceive", Err: err}
	}
	if err := s.db.Put(key, data, nil); err != nil {
		return &errs.WalletStore{Op: "StoreReceive", Err: err}
	}
	return nil
}

func (s *LevelStore) StoreSend(sr *SendRow) error {
	key := sendKeyBytes(sr.TxHash)
	exists, err := s.db.Has(key, nil)
	if err != nil {
		return &errs.WalletStore{Op: "StoreSend", Err: err}
	}
	if exists {
		return &errs.WalletStore{Op: "StoreSend", Err: errDuplicateKey}
	}
	data, err := encodeSendRow(sr)
	if err != nil {
		return &errs.WalletStore{Op: "StoreSend", Err: err}
	}
	if err := s.db.Put(key, data, nil); err != nil {
		return &errs.WalletStore{Op: "StoreSend", Err: err}
	}
	return nil
}

func (s *LevelStore) GetReceiveList() ([]*ReceiveRow, error) {
	byNorm := make(map[chainhash.Hash]*ReceiveRow)
	var order []chainhash.Hash

	iter := s.db.NewIterator(util.BytesPrefix([]byte{prefixReceive}), nil)
	defer iter.Release()
	for iter.Next() {
		row, err := decodeReceiveRow(iter.Value())
		if err != nil {
			return nil, &errs.WalletStore{Op: "GetReceiveList", Err: err}
		}
		existing, ok := byNorm[row.NormID]
		if !ok {
			byNorm[row.NormID] = row
			order = append(order, row.NormID)
			continue
		}
		if existing.BlockHash == (chainhash.Hash{}) && row.BlockHash != (chainhash.Hash{}) {
			byNorm[row.NormID] = row
		}
	}

	out := make([]*ReceiveRow, 0, len(order))
	for _, n := range order {
		out = append(out, byNorm[n])
	}
	return out, nil
}

func (s *LevelStore) GetSendList() ([]*SendRow, error) {
	byNorm := make(map[chainhash.Hash]*SendRow)
	var order []chainhash.Hash

	iter := s.db.NewIterator(util.BytesPrefix([]byte{prefixSend}), nil)
	defer iter.Release()
	for iter.Next() {
		row, err := decodeSendRow(iter.Value())
		if err != nil {
			return nil, &errs.WalletStore{Op: "GetSendList", Err: err}
		}
		existing, ok := byNorm[row.NormID]
		if !ok {
			byNorm[row.NormID] = row
			order = append(order, row.NormID)
			continue
		}
		if existing.BlockHash == (chainhash.Hash{}) && row.BlockHash != (chainhash.Hash{}) {
			byNorm[row.NormID] = row
		}
	}

	out := make([]*SendRow, 0, len(order))
	for _, n := range order {
		out = append(out, byNorm[n])
	}
	return out, nil
}

func (s *LevelStore) SetReceiveSpent(txHash chainhash.Hash, outputIndex uint32, spent bool) error {
	return s.mutateReceive(txHash, outputIndex, func(r *ReceiveRow) { r.Spent = spent })
}

func (s *LevelStore) SetReceiveSafe(txHash chainhash.Hash, outputIndex uint32, safe bool) error {
	return s.mutateReceive(txHash, outputIndex, func(r *ReceiveRow) { r.InSafe = safe })
}

func (s *LevelStore) SetReceiveDeleted(txHash chainhash.Hash, outputIndex uint32, deleted bool) error {
	return s.mutateReceive(txHash, outputIndex, func(r *ReceiveRow) { r.Deleted = deleted })
}

func (s *LevelStore) mutateReceive(txHash chainhash.Hash, outputIndex uint32, fn func(*ReceiveRow)) error {
	key := receiveKeyBytes(txHash, outputIndex)
	data, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return &errs.WalletStore{Op: "mutateReceive", Err: errNotFound}
	}
	if err != nil {
		return &errs.WalletStore{Op: "mutateReceive", Err: err}
	}
	row, err := decodeReceiveRow(data)
	if err != nil {
		return &errs.WalletStore{Op: "mutateReceive", Err: err}
	}
	fn(row)
	newData, err := encodeReceiveRow(row)
	if err != nil {
		return &errs.WalletStore{Op: "mutateReceive", Err: err}
	}
	if err := s.db.Put(key, newData, nil); err != nil {
		return &errs.WalletStore{Op: "mutateReceive", Err: err}
	}
	return nil
}

func (s *LevelStore) SetSendDeleted(txHash chainhash.Hash, deleted bool) error {
	key := sendKeyBytes(txHash)
	data, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return &errs.WalletStore{Op: "SetSendDeleted", Err: errNotFound}
	}
	if err != nil {
		return &errs.WalletStore{Op: "SetSendDeleted", Err: err}
	}
	row, err := decodeSendRow(data)
	if err != nil {
		return &errs.WalletStore{Op: "SetSendDeleted", Err: err}
	}
	row.Deleted = deleted
	newData, err := encodeSendRow(row)
	if err != nil {
		return &errs.WalletStore{Op: "SetSendDeleted", Err: err}
	}
	return s.db.Put(key, newData, nil)
}

func (s *LevelStore) TxDepth(txHash chainhash.Hash) (uint32, error) {
	var blockHash chainhash.Hash
	found := false

	iter := s.db.NewIterator(util.BytesPrefix(receivePrefix(txHash)), nil)
	if iter.Next() {
		row, err := decodeReceiveRow(iter.Value())
		iter.Release()
		if err != nil {
			return 0, &errs.WalletStore{Op: "TxDepth", Err: err}
		}
		blockHash = row.BlockHash
		found = true
	} else {
		iter.Release()
	}

	if !found {
		data, err := s.db.Get(sendKeyBytes(txHash), nil)
		if err == nil {
			row, derr := decodeSendRow(data)
			if derr != nil {
				return 0, &errs.WalletStore{Op: "TxDepth", Err: derr}
			}
			blockHash = row.BlockHash
			found = true
		}
	}

	if !found || blockHash == (chainhash.Hash{}) {
		return 0, nil
	}

	entry, err := s.GetHeader(blockHash)
	if err != nil {
		return 0, err
	}
	if entry == nil || !entry.OnChain {
		return 0, nil
	}

	_, headHeight, err := s.ChainHead()
	if err != nil {
		return 0, err
	}
	return headHeight - entry.Height + 1, nil
}

func (s *LevelStore) RescanHeight(t time.Time) (uint32, error) {
	var best uint32
	iter := s.db.NewIterator(util.BytesPrefix([]byte{prefixChain}), nil)
	defer iter.Release()
	for iter.Next() {
		height := binary.BigEndian.Uint32(iter.Key()[1:])
		var hash chainhash.Hash
		copy(hash[:], iter.Value())
		entry, err := s.GetHeader(hash)
		if err != nil {
			return 0, err
		}
		if entry == nil {
			continue
		}
		if time.Unix(int64(entry.Header.Timestamp), 0).Before(t) {
			best = height
		}
	}
	return best, nil
}

func (s *LevelStore) Close() error {
	if err := s.db.Close(); err != nil {
		return &errs.WalletStore{Op: "Close", Err: err}
	}
	return nil
}
