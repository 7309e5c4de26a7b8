// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/btcspv/spvnode/chaincfg/chainhash"
)

// InvVectLen is the length of a 36-byte inventory vector: 4-byte type plus
// 32-byte hash.
const InvVectLen = 4 + chainhash.HashSize

// InvVect defines a bitcoin inventory vector used to describe data, as is
// used in inv, getdata and notfound messages.
type InvVect struct {
	Type InvType
	Hash chainhash.Hash
}

// NewInvVect returns a new InvVect using the provided type and hash.
func NewInvVect(typ InvType, hash *chainhash.Hash) *InvVect {
	return &InvVect{Type: typ, Hash: *hash}
}

func readInvVect(r io.Reader, iv *InvVect) error {
	var t uint32
	if err := readElement(r, &t); err != nil {
		return err
	}
	iv.Type = InvType(t)
	return readElement(r, &iv.Hash)
}

func writeInvVect(w io.Writer, iv *InvVect) error {
	if err := writeElement(w, uint32(iv.Type)); err != nil {
		return err
	}
	return writeElement(w, iv.Hash)
}
