// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/btcspv/spvnode/chaincfg/chainhash"
)

// maxFlagsPerMerkleBlock and maxHashesPerMerkleBlock bound the size of the
// partial Merkle tree proof against a malicious transaction count.
const (
	maxHashesPerMerkleBlock = 1_000_000
	maxFlagsPerMerkleBlock  = 1_000_000 / 8
)

// MsgMerkleBlock implements the Message interface and represents a partial
// Merkle tree proof of transaction inclusion under a header.
type MsgMerkleBlock struct {
	Header       BlockHeader
	Transactions uint32
	Hashes       []*chainhash.Hash
	Flags        []byte
}

func (msg *MsgMerkleBlock) BtcDecode(r io.Reader, pver uint32) error {
	if err := readBlockHeader(r, &msg.Header); err != nil {
		return err
	}
	if err := readElement(r, &msg.Transactions); err != nil {
		return err
	}

	hashCount, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if hashCount > maxHashesPerMerkleBlock {
		return messageError("MsgMerkleBlock.BtcDecode", "too many hashes")
	}
	hashes := make([]*chainhash.Hash, 0, hashCount)
	for i := uint64(0); i < hashCount; i++ {
		h := new(chainhash.Hash)
		if err := readElement(r, h); err != nil {
			return err
		}
		hashes = append(hashes, h)
	}
	msg.Hashes = hashes

	flags, err := ReadVarBytes(r, maxFlagsPerMerkleBlock, "merkle block flags")
	if err != nil {
		return err
	}
	msg.Flags = flags
	return nil
}

func (msg *MsgMerkleBlock) BtcEncode(w io.Writer, pver uint32) error {
	if err := writeBlockHeader(w, &msg.Header); err != nil {
		return err
	}
	if err := writeElement(w, msg.Transactions); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(msg.Hashes))); err != nil {
		return err
	}
	for _, h := range msg.Hashes {
		if err := writeElement(w, h); err != nil {
			return err
		}
	}
	return WriteVarBytes(w, msg.Flags)
}

func (msg *MsgMerkleBlock) Command() string { return CmdMerkleBlock }

func (msg *MsgMerkleBlock) MaxPayloadLength(pver uint32) uint64 {
	return uint64(BlockHeaderLen) + 4 + 9 + (maxHashesPerMerkleBlock * chainhash.HashSize) + 9 + maxFlagsPerMerkleBlock
}
