// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package walletdb

import (
	"bytes"
	"math/big"
	"time"

	"github.com/btcspv/spvnode/chaincfg/chainhash"
	"github.com/btcspv/spvnode/wire"
)

// encodeHeaderEntry/decodeHeaderEntry serialize a HeaderEntry for the
// LevelStore backend, reusing the wire package's codec primitives
// rather than a reflection-based encoder.
func encodeHeaderEntry(e *HeaderEntry) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Header.Serialize(&buf); err != nil {
		return nil, err
	}
	if err := writeBool(&buf, e.OnChain); err != nil {
		return nil, err
	}
	if err := wire.WriteVarInt(&buf, uint64(e.Height)); err != nil {
		return nil, err
	}
	work := e.ChainWork
	if work == nil {
		work = big.NewInt(0)
	}
	if err := wire.WriteVarBytes(&buf, work.Bytes()); err != nil {
		return nil, err
	}
	if err := wire.WriteVarInt(&buf, uint64(len(e.Matched))); err != nil {
		return nil, err
	}
	for _, h := range e.Matched {
		if _, err := buf.Write(h[:]); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeHeaderEntry(data []byte) (*HeaderEntry, error) {
	r := bytes.NewReader(data)
	e := &HeaderEntry{}
	if err := e.Header.Deserialize(r); err != nil {
		return nil, err
	}
	onChain, err := readBool(r)
	if err != nil {
		return nil, err
	}
	e.OnChain = onChain

	height, err := wire.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	e.Height = uint32(height)

	workBytes, err := wire.ReadVarBytes(r, 64, "chain work")
	if err != nil {
		return nil, err
	}
	e.ChainWork = new(big.Int).SetBytes(workBytes)

	count, err := wire.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	e.Matched = make([]chainhash.Hash, count)
	for i := uint64(0); i < count; i++ {
		if _, err := r.Read(e.Matched[i][:]); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func writeBool(buf *bytes.Buffer, b bool) error {
	if b {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	return nil
}

func readBool(r *bytes.Reader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func encodeReceiveRow(r *ReceiveRow) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(r.NormID[:])
	buf.Write(r.TxHash[:])
	if err := wire.WriteVarInt(&buf, uint64(r.OutputIndex)); err != nil {
		return nil, err
	}
	if err := wire.WriteVarInt(&buf, uint64(r.Time.Unix())); err != nil {
		return nil, err
	}
	buf.Write(r.BlockHash[:])
	buf.Write(r.Address[:])
	value := r.Value
	if value == nil {
		value = big.NewInt(0)
	}
	if err := wire.WriteVarBytes(&buf, value.Bytes()); err != nil {
		return nil, err
	}
	if err := wire.WriteVarBytes(&buf, r.ScriptBytes); err != nil {
		return nil, err
	}
	flags := boolFlags(r.Spent, r.Change, r.Coinbase, r.InSafe, r.Deleted)
	buf.WriteByte(flags)
	return buf.Bytes(), nil
}

func decodeReceiveRow(data []byte) (*ReceiveRow, error) {
	r := bytes.NewReader(data)
	row := &ReceiveRow{}
	if _, err := r.Read(row.NormID[:]); err != nil {
		return nil, err
	}
	if _, err := r.Read(row.TxHash[:]); err != nil {
		return nil, err
	}
	idx, err := wire.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	row.OutputIndex = uint32(idx)

	ts, err := wire.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	row.Time = time.Unix(int64(ts), 0)

	if _, err := r.Read(row.BlockHash[:]); err != nil {
		return nil, err
	}
	if _, err := r.Read(row.Address[:]); err != nil {
		return nil, err
	}

	valueBytes, err := wire.ReadVarBytes(r, 64, "value")
	if err != nil {
		return nil, err
	}
	row.Value = new(big.Int).SetBytes(valueBytes)

	script, err := wire.ReadVarBytes(r, wire.MaxMessagePayload, "script bytes")
	if err != nil {
		return nil, err
	}
	row.ScriptBytes = script

	flags, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	row.Spent, row.Change, row.Coinbase, row.InSafe, row.Deleted = unpackFlags(flags)
	return row, nil
}

func encodeSendRow(s *SendRow) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(s.NormID[:])
	buf.Write(s.TxHash[:])
	if err := wire.WriteVarInt(&buf, uint64(s.Time.Unix())); err != nil {
		return nil, err
	}
	buf.Write(s.BlockHash[:])
	buf.Write(s.Address[:])
	value := s.Value
	if value == nil {
		value = big.NewInt(0)
	}
	fee := s.Fee
	if fee == nil {
		fee = big.NewInt(0)
	}
	if err := wire.WriteVarBytes(&buf, value.Bytes()); err != nil {
		return nil, err
	}
	if err := wire.WriteVarBytes(&buf, fee.Bytes()); err != nil {
		return nil, err
	}
	buf.WriteByte(boolFlags(s.Deleted, false, false, false, false))
	if err := wire.WriteVarBytes(&buf, s.TxBytes); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeSendRow(data []byte) (*SendRow, error) {
	r := bytes.NewReader(data)
	row := &SendRow{}
	if _, err := r.Read(row.NormID[:]); err != nil {
		return nil, err
	}
	if _, err := r.Read(row.TxHash[:]); err != nil {
		return nil, err
	}
	ts, err := wire.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	row.Time = time.Unix(int64(ts), 0)

	if _, err := r.Read(row.BlockHash[:]); err != nil {
		return nil, err
	}
	if _, err := r.Read(row.Address[:]); err != nil {
		return nil, err
	}

	valueBytes, err := wire.ReadVarBytes(r, 64, "value")
	if err != nil {
		return nil, err
	}
	row.Value = new(big.Int).SetBytes(valueBytes)

	feeBytes, err := wire.ReadVarBytes(r, 64, "fee")
	if err != nil {
		return nil, err
	}
	row.Fee = new(big.Int).SetBytes(feeBytes)

	flags, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	row.Deleted, _, _, _, _ = unpackFlags(flags)

	txBytes, err := wire.ReadVarBytes(r, wire.MaxMessagePayload, "tx bytes")
	if err != nil {
		return nil, err
	}
	row.TxBytes = txBytes
	return row, nil
}

func encodeKey(k *Key) ([]byte, error) {
	var buf bytes.Buffer
	if err := wire.WriteVarBytes(&buf, k.PubKey); err != nil {
		return nil, err
	}
	if err := wire.WriteVarBytes(&buf, k.EncryptedPriv); err != nil {
		return nil, err
	}
	if err := wire.WriteVarInt(&buf, uint64(k.CreationTime.Unix())); err != nil {
		return nil, err
	}
	if err := wire.WriteVarString(&buf, k.Label); err != nil {
		return nil, err
	}
	buf.WriteByte(boolFlags(k.Change, false, false, false, false))
	return buf.Bytes(), nil
}

func decodeKey(data []byte) (*Key, error) {
	r := bytes.NewReader(data)
	k := &Key{}
	pub, err := wire.ReadVarBytes(r, 65, "pubkey")
	if err != nil {
		return nil, err
	}
	k.PubKey = pub

	priv, err := wire.ReadVarBytes(r, 256, "encrypted priv")
	if err != nil {
		return nil, err
	}
	k.EncryptedPriv = priv

	ts, err := wire.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	k.CreationTime = time.Unix(int64(ts), 0)

	label, err := wire.ReadVarString(r, 1024)
	if err != nil {
		return nil, err
	}
	k.Label = label

	flags, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	k.Change, _, _, _, _ = unpackFlags(flags)
	return k, nil
}

func encodeAddress(a *Address) ([]byte, error) {
	var buf bytes.Buffer
	if err := wire.WriteVarString(&buf, a.Label); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeAddress(hash160 [20]byte, data []byte) (*Address, error) {
	r := bytes.NewReader(data)
	label, err := wire.ReadVarString(r, 1024)
	if err != nil {
		return nil, err
	}
	return &Address{Hash160: hash160, Label: label}, nil
}

func boolFlags(a, b, c, d, e bool) byte {
	var f byte
	if a {
		f |= 1
	}
	if b {
		f |= 2
	}
	if c {
		f |= 4
	}
	if d {
		f |= 8
	}
	if e {
		f |= 16
	}
	return f
}

func unpackFlags(f byte) (a, b, c, d, e bool) {
	return f&1 != 0, f&2 != 0, f&4 != 0, f&8 != 0, f&16 != 0
}
