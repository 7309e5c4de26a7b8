// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"

	"github.com/btcspv/spvnode/chaincfg/chainhash"
)

// BlockHeaderLen is the number of bytes in the 80-byte wire form of a
// BlockHeader.
const BlockHeaderLen = 80

// BlockHeader defines information about a block and is used in the bitcoin
// block (MsgBlock) and headers (MsgHeaders) messages.
type BlockHeader struct {
	Version    int32
	PrevBlock  chainhash.Hash
	MerkleRoot chainhash.Hash
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32
}

// BlockHash computes the SHA-256d hash of the 80-byte serialized header.
func (h *BlockHeader) BlockHash() chainhash.Hash {
	var buf bytes.Buffer
	_ = writeBlockHeader(&buf, h)
	return chainhash.HashH(buf.Bytes())
}

// Serialize encodes the header into the canonical 80-byte wire form.
func (h *BlockHeader) Serialize(w io.Writer) error {
	return writeBlockHeader(w, h)
}

// Deserialize decodes a canonical 80-byte wire form header from r.
func (h *BlockHeader) Deserialize(r io.Reader) error {
	return readBlockHeader(r, h)
}

func readBlockHeader(r io.Reader, h *BlockHeader) error {
	if err := readElement(r, &h.Version); err != nil {
		return err
	}
	if err := readElement(r, &h.PrevBlock); err != nil {
		return err
	}
	if err := readElement(r, &h.MerkleRoot); err != nil {
		return err
	}
	if err := readElement(r, &h.Timestamp); err != nil {
		return err
	}
	if err := readElement(r, &h.Bits); err != nil {
		return err
	}
	return readElement(r, &h.Nonce)
}

func writeBlockHeader(w io.Writer, h *BlockHeader) error {
	if err := writeElement(w, h.Version); err != nil {
		return err
	}
	if err := writeElement(w, h.PrevBlock); err != nil {
		return err
	}
	if err := writeElement(w, h.MerkleRoot); err != nil {
		return err
	}
	if err := writeElement(w, h.Timestamp); err != nil {
		return err
	}
	if err := writeElement(w, h.Bits); err != nil {
		return err
	}
	return writeElement(w, h.Nonce)
}
