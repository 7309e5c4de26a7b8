// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MaxFilterLoadHashFuncs and MaxFilterLoadFilterSize bound the Bloom
// filter parameters accepted in a filterload message (BIP-0037).
const (
	MaxFilterLoadHashFuncs  = 50
	MaxFilterLoadFilterSize = 36000
)

// BloomUpdateType specifies how the filter is updated when a match is
// found against a transaction output.
type BloomUpdateType uint8

const (
	// BloomUpdateNone never updates the filter with outpoints.
	BloomUpdateNone BloomUpdateType = 0

	// BloomUpdateAll always updates the filter with outpoints of
	// matched transactions.
	BloomUpdateAll BloomUpdateType = 1

	// BloomUpdateP2PubkeyOnly only updates the filter with outpoints
	// for P2PKH/P2PK matches.
	BloomUpdateP2PubkeyOnly BloomUpdateType = 2
)

// MsgFilterLoad implements the Message interface and loads a Bloom filter
// into a peer.
type MsgFilterLoad struct {
	Filter    []byte
	HashFuncs uint32
	Tweak     uint32
	Flags     BloomUpdateType
}

func (msg *MsgFilterLoad) BtcDecode(r io.Reader, pver uint32) error {
	filter, err := ReadVarBytes(r, MaxFilterLoadFilterSize, "filterload filter")
	if err != nil {
		return err
	}
	msg.Filter = filter

	if err := readElement(r, &msg.HashFuncs); err != nil {
		return err
	}
	if msg.HashFuncs > MaxFilterLoadHashFuncs {
		return messageError("MsgFilterLoad.BtcDecode", "too many filter hash functions")
	}
	if err := readElement(r, &msg.Tweak); err != nil {
		return err
	}

	var flags uint8
	if err := readElement(r, &flags); err != nil {
		return err
	}
	msg.Flags = BloomUpdateType(flags)
	return nil
}

func (msg *MsgFilterLoad) BtcEncode(w io.Writer, pver uint32) error {
	if err := WriteVarBytes(w, msg.Filter); err != nil {
		return err
	}
	if err := writeElement(w, msg.HashFuncs); err != nil {
		return err
	}
	if err := writeElement(w, msg.Tweak); err != nil {
		return err
	}
	return writeElement(w, uint8(msg.Flags))
}

func (msg *MsgFilterLoad) Command() string { return CmdFilterLoad }

func (msg *MsgFilterLoad) MaxPayloadLength(pver uint32) uint64 {
	return uint64(MaxFilterLoadFilterSize) + MaxVarIntPayload + 9
}

// MsgFilterAdd implements the Message interface and adds a single element
// to an already-loaded Bloom filter.
type MsgFilterAdd struct {
	Data []byte
}

func (msg *MsgFilterAdd) BtcDecode(r io.Reader, pver uint32) error {
	data, err := ReadVarBytes(r, 520, "filteradd data")
	if err != nil {
		return err
	}
	msg.Data = data
	return nil
}

func (msg *MsgFilterAdd) BtcEncode(w io.Writer, pver uint32) error {
	return WriteVarBytes(w, msg.Data)
}

func (msg *MsgFilterAdd) Command() string { return CmdFilterAdd }

func (msg *MsgFilterAdd) MaxPayloadLength(pver uint32) uint64 { return 520 + 9 }
