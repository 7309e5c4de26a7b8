// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"

	"github.com/btcspv/spvnode/chaincfg/chainhash"
)

// defaultTxInOutAlloc is a sane starting capacity to avoid repeated slice
// growth on typical transactions.
const defaultTxInOutAlloc = 8

// maxTxInPerMessage / maxTxOutPerMessage bound input/output counts to guard
// against a malicious length prefix.
const (
	maxTxInPerMessage  = MaxMessagePayload / 41
	maxTxOutPerMessage = MaxMessagePayload / 9
)

// OutPoint defines a bitcoin data type that is used to track previous
// transaction outputs.
type OutPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

func readOutPoint(r io.Reader, op *OutPoint) error {
	if err := readElement(r, &op.Hash); err != nil {
		return err
	}
	return readElement(r, &op.Index)
}

func writeOutPoint(w io.Writer, op *OutPoint) error {
	if err := writeElement(w, op.Hash); err != nil {
		return err
	}
	return writeElement(w, op.Index)
}

// TxIn defines a bitcoin transaction input.
type TxIn struct {
	PreviousOutPoint OutPoint
	SignatureScript  []byte
	Sequence         uint32
}

// TxOut defines a bitcoin transaction output.
type TxOut struct {
	Value    int64
	PkScript []byte
}

// MsgTx implements the Message interface and represents a bitcoin tx
// message, carrying a transaction.
type MsgTx struct {
	Version  int32
	TxIn     []*TxIn
	TxOut    []*TxOut
	LockTime uint32
}

// TxHash generates the SHA-256d hash over the canonical serialization.
func (msg *MsgTx) TxHash() chainhash.Hash {
	var buf bytes.Buffer
	_ = msg.serialize(&buf, false)
	return chainhash.HashH(buf.Bytes())
}

// NormID computes the normalized transaction id: the hash over the same
// serialization with every input's signature script cleared, used to
// collapse malleated duplicates.
func (msg *MsgTx) NormID() chainhash.Hash {
	var buf bytes.Buffer
	_ = msg.serialize(&buf, true)
	return chainhash.HashH(buf.Bytes())
}

// IsCoinBase reports whether the transaction's sole input is the coinbase
// sentinel outpoint (zero hash, max index).
func (msg *MsgTx) IsCoinBase() bool {
	if len(msg.TxIn) != 1 {
		return false
	}
	prev := &msg.TxIn[0].PreviousOutPoint
	return prev.Index == 0xffffffff && prev.Hash == (chainhash.Hash{})
}

// BtcDecode decodes r using the wire protocol encoding into msg.
func (msg *MsgTx) BtcDecode(r io.Reader, pver uint32) error {
	if err := readElement(r, &msg.Version); err != nil {
		return err
	}

	inCount, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if inCount > maxTxInPerMessage {
		return messageError("MsgTx.BtcDecode", "too many input transactions")
	}

	msg.TxIn = make([]*TxIn, 0, minUint64(inCount, defaultTxInOutAlloc))
	for i := uint64(0); i < inCount; i++ {
		ti := new(TxIn)
		if err := readOutPoint(r, &ti.PreviousOutPoint); err != nil {
			return err
		}
		ti.SignatureScript, err = ReadVarBytes(r, MaxMessagePayload, "signature script")
		if err != nil {
			return err
		}
		if err := readElement(r, &ti.Sequence); err != nil {
			return err
		}
		msg.TxIn = append(msg.TxIn, ti)
	}

	outCount, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if outCount > maxTxOutPerMessage {
		return messageError("MsgTx.BtcDecode", "too many output transactions")
	}

	msg.TxOut = make([]*TxOut, 0, minUint64(outCount, defaultTxInOutAlloc))
	for i := uint64(0); i < outCount; i++ {
		to := new(TxOut)
		if err := readElement(r, &to.Value); err != nil {
			return err
		}
		to.PkScript, err = ReadVarBytes(r, MaxMessagePayload, "pk script")
		if err != nil {
			return err
		}
		msg.TxOut = append(msg.TxOut, to)
	}

	return readElement(r, &msg.LockTime)
}

// BtcEncode encodes msg to w using the wire protocol encoding.
func (msg *MsgTx) BtcEncode(w io.Writer, pver uint32) error {
	return msg.serialize(w, false)
}

func (msg *MsgTx) serialize(w io.Writer, clearSigScripts bool) error {
	if err := writeElement(w, msg.Version); err != nil {
		return err
	}

	if err := WriteVarInt(w, uint64(len(msg.TxIn))); err != nil {
		return err
	}
	for _, ti := range msg.TxIn {
		if err := writeOutPoint(w, &ti.PreviousOutPoint); err != nil {
			return err
		}
		sigScript := ti.SignatureScript
		if clearSigScripts {
			sigScript = nil
		}
		if err := WriteVarBytes(w, sigScript); err != nil {
			return err
		}
		if err := writeElement(w, ti.Sequence); err != nil {
			return err
		}
	}

	if err := WriteVarInt(w, uint64(len(msg.TxOut))); err != nil {
		return err
	}
	for _, to := range msg.TxOut {
		if err := writeElement(w, to.Value); err != nil {
			return err
		}
		if err := WriteVarBytes(w, to.PkScript); err != nil {
			return err
		}
	}

	return writeElement(w, msg.LockTime)
}

// Command returns the protocol command string for the message.
func (msg *MsgTx) Command() string { return CmdTx }

// MaxPayloadLength returns the maximum length the payload can be for the
// receiving protocol version.
func (msg *MsgTx) MaxPayloadLength(pver uint32) uint64 { return MaxMessagePayload }

func minUint64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
