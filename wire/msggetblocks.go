// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/btcspv/spvnode/chaincfg/chainhash"
)

// MaxBlockLocatorsPerMsg is the maximum number of block locator hashes
// allowed per message.
const MaxBlockLocatorsPerMsg = 500

// MsgGetBlocks implements the Message interface and is used to request a
// list of blocks starting after the last known hash in the locator, up to
// the stop hash or 500 blocks.
type MsgGetBlocks struct {
	ProtocolVersion    uint32
	BlockLocatorHashes []*chainhash.Hash
	HashStop           chainhash.Hash
}

// AddBlockLocatorHash adds a new block locator hash to the message.
func (msg *MsgGetBlocks) AddBlockLocatorHash(hash *chainhash.Hash) error {
	if len(msg.BlockLocatorHashes)+1 > MaxBlockLocatorsPerMsg {
		return messageError("MsgGetBlocks.AddBlockLocatorHash", "too many block locator hashes")
	}
	msg.BlockLocatorHashes = append(msg.BlockLocatorHashes, hash)
	return nil
}

func (msg *MsgGetBlocks) BtcDecode(r io.Reader, pver uint32) error {
	if err := readElement(r, &msg.ProtocolVersion); err != nil {
		return err
	}

	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > MaxBlockLocatorsPerMsg {
		return messageError("MsgGetBlocks.BtcDecode", "too many block locator hashes")
	}

	locatorHashes := make([]*chainhash.Hash, 0, count)
	for i := uint64(0); i < count; i++ {
		hash := new(chainhash.Hash)
		if err := readElement(r, hash); err != nil {
			return err
		}
		locatorHashes = append(locatorHashes, hash)
	}
	msg.BlockLocatorHashes = locatorHashes

	return readElement(r, &msg.HashStop)
}

func (msg *MsgGetBlocks) BtcEncode(w io.Writer, pver uint32) error {
	if len(msg.BlockLocatorHashes) > MaxBlockLocatorsPerMsg {
		return messageError("MsgGetBlocks.BtcEncode", "too many block locator hashes")
	}
	if err := writeElement(w, msg.ProtocolVersion); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(msg.BlockLocatorHashes))); err != nil {
		return err
	}
	for _, hash := range msg.BlockLocatorHashes {
		if err := writeElement(w, hash); err != nil {
			return err
		}
	}
	return writeElement(w, msg.HashStop)
}

func (msg *MsgGetBlocks) Command() string { return CmdGetBlocks }

func (msg *MsgGetBlocks) MaxPayloadLength(pver uint32) uint64 {
	return 4 + 9 + (MaxBlockLocatorsPerMsg * chainhash.HashSize) + chainhash.HashSize
}

// NewMsgGetBlocks returns a new getblocks message using the given stop
// hash; the caller supplies block locator hashes separately.
func NewMsgGetBlocks(hashStop *chainhash.Hash) *MsgGetBlocks {
	return &MsgGetBlocks{
		ProtocolVersion:    ProtocolVersion,
		BlockLocatorHashes: make([]*chainhash.Hash, 0, MaxBlockLocatorsPerMsg),
		HashStop:           *hashStop,
	}
}

// MsgGetHeaders implements the Message interface and is used to request a
// list of block headers for blocks starting after the last known hash in
// the locator.
type MsgGetHeaders struct {
	ProtocolVersion    uint32
	BlockLocatorHashes []*chainhash.Hash
	HashStop           chainhash.Hash
}

// AddBlockLocatorHash adds a new block locator hash to the message.
func (msg *MsgGetHeaders) AddBlockLocatorHash(hash *chainhash.Hash) error {
	if len(msg.BlockLocatorHashes)+1 > MaxBlockLocatorsPerMsg {
		return messageError("MsgGetHeaders.AddBlockLocatorHash", "too many block locator hashes")
	}
	msg.BlockLocatorHashes = append(msg.BlockLocatorHashes, hash)
	return nil
}

func (msg *MsgGetHeaders) BtcDecode(r io.Reader, pver uint32) error {
	if err := readElement(r, &msg.ProtocolVersion); err != nil {
		return err
	}

	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > MaxBlockLocatorsPerMsg {
		return messageError("MsgGetHeaders.BtcDecode", "too many block locator hashes")
	}

	locatorHashes := make([]*chainhash.Hash, 0, count)
	for i := uint64(0); i < count; i++ {
		hash := new(chainhash.Hash)
		if err := readElement(r, hash); err != nil {
			return err
		}
		locatorHashes = append(locatorHashes, hash)
	}
	msg.BlockLocatorHashes = locatorHashes

	return readElement(r, &msg.HashStop)
}

func (msg *MsgGetHeaders) BtcEncode(w io.Writer, pver uint32) error {
	if len(msg.BlockLocatorHashes) > MaxBlockLocatorsPerMsg {
		return messageError("MsgGetHeaders.BtcEncode", "too many block locator hashes")
	}
	if err := writeElement(w, msg.ProtocolVersion); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(msg.BlockLocatorHashes))); err != nil {
		return err
	}
	for _, hash := range msg.BlockLocatorHashes {
		if err := writeElement(w, hash); err != nil {
			return err
		}
	}
	return writeElement(w, msg.HashStop)
}

func (msg *MsgGetHeaders) Command() string { return CmdGetHeaders }

func (msg *MsgGetHeaders) MaxPayloadLength(pver uint32) uint64 {
	return 4 + 9 + (MaxBlockLocatorsPerMsg * chainhash.HashSize) + chainhash.HashSize
}

// NewMsgGetHeaders returns a new getheaders message with an empty locator,
// a zero stop hash and a zero protocol version; the caller supplies block
// locator hashes separately.
func NewMsgGetHeaders() *MsgGetHeaders {
	return &MsgGetHeaders{
		BlockLocatorHashes: make([]*chainhash.Hash, 0, MaxBlockLocatorsPerMsg),
	}
}

// BuildLocator constructs a block locator: the chain head,
// then stepping back by one for the first 10 entries, then doubling the
// step until genesis, capped at MaxBlockLocatorsPerMsg entries. ancestor
// returns the hash at the given number of blocks back from head, or nil
// once genesis has been passed.
func BuildLocator(headHeight uint32, ancestor func(back uint32) *chainhash.Hash) []*chainhash.Hash {
	locator := make([]*chainhash.Hash, 0, 32)
	step := uint32(1)
	back := uint32(0)
	for {
		hash := ancestor(back)
		if hash == nil {
			break
		}
		locator = append(locator, hash)
		if len(locator) >= MaxBlockLocatorsPerMsg {
			break
		}
		if back >= headHeight {
			break
		}
		if len(locator) >= 10 {
			step *= 2
		}
		back += step
	}
	return locator
}
