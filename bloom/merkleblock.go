// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bloom

import (
	"errors"

	"github.com/btcspv/spvnode/chaincfg/chainhash"
	"github.com/btcspv/spvnode/wire"
)

// ErrBadMerkleProof is returned when a partial Merkle tree cannot be
// reconstructed from the hashes/flags carried by a merkleblock message —
// the wire-level cause of a C6 VerificationFailed(invalid).
var ErrBadMerkleProof = errors.New("bad partial merkle tree proof")

// partialMerkleReader walks the depth-first flag/hash streams of a
// merkleblock message and rebuilds the tree.
type partialMerkleReader struct {
	numTx   uint32
	hashes  []*chainhash.Hash
	flags   []byte
	hashIdx int
	bitIdx  int
	matched []chainhash.Hash
}

func (p *partialMerkleReader) getBit() (bool, error) {
	if p.bitIdx>>3 >= len(p.flags) {
		return false, ErrBadMerkleProof
	}
	bit := (p.flags[p.bitIdx>>3] >> uint(p.bitIdx&7)) & 1
	p.bitIdx++
	return bit != 0, nil
}

func (p *partialMerkleReader) getHash() (*chainhash.Hash, error) {
	if p.hashIdx >= len(p.hashes) {
		return nil, ErrBadMerkleProof
	}
	h := p.hashes[p.hashIdx]
	p.hashIdx++
	return h, nil
}

// treeWidth returns the number of nodes at the given height of a tree
// holding numTx leaves, height 0 being the leaves.
func treeWidth(numTx uint32, height int) uint32 {
	return (numTx + (1 << uint(height)) - 1) >> uint(height)
}

// treeHeight returns the number of levels above the leaves required to
// reach a single root for numTx leaves.
func treeHeight(numTx uint32) int {
	height := 0
	for treeWidth(numTx, height) > 1 {
		height++
	}
	return height
}

// recurse implements the recursive depth-first reconstruction described in
// BIP-0037: a parent is a match (inner, flag=1, with children) if any leaf
// beneath it is flagged as matching.
func (p *partialMerkleReader) recurse(height int, pos uint32) (*chainhash.Hash, error) {
	flag, err := p.getBit()
	if err != nil {
		return nil, err
	}

	if height == 0 || !flag {
		hash, err := p.getHash()
		if err != nil {
			return nil, err
		}
		if height == 0 && flag {
			p.matched = append(p.matched, *hash)
		}
		return hash, nil
	}

	left, err := p.recurse(height-1, pos*2)
	if err != nil {
		return nil, err
	}

	var right *chainhash.Hash
	if pos*2+1 < treeWidth(p.numTx, height-1) {
		right, err = p.recurse(height-1, pos*2+1)
		if err != nil {
			return nil, err
		}
	} else {
		right = left
	}

	return hashMerkleBranches(left, right), nil
}

func hashMerkleBranches(left, right *chainhash.Hash) *chainhash.Hash {
	buf := make([]byte, chainhash.HashSize*2)
	copy(buf[:chainhash.HashSize], left[:])
	copy(buf[chainhash.HashSize:], right[:])
	newHash := chainhash.HashH(buf)
	return &newHash
}

// ExtractMatches reconstructs the Merkle root and the set of leaf
// transaction hashes flagged as matching from a received merkleblock
// message. A root mismatch against msg.Header.MerkleRoot, like a
// malformed flag/hash stream, is reported as ErrBadMerkleProof.
func ExtractMatches(msg *wire.MsgMerkleBlock) ([]chainhash.Hash, error) {
	if msg.Transactions == 0 {
		return nil, ErrBadMerkleProof
	}

	reader := &partialMerkleReader{
		numTx:  msg.Transactions,
		hashes: msg.Hashes,
		flags:  msg.Flags,
	}

	root, err := reader.recurse(treeHeight(msg.Transactions), 0)
	if err != nil {
		return nil, err
	}

	if reader.hashIdx != len(reader.hashes) {
		return nil, ErrBadMerkleProof
	}

	if *root != msg.Header.MerkleRoot {
		return nil, ErrBadMerkleProof
	}

	return reader.matched, nil
}

// NewMerkleBlock builds a merkleblock message for the given header and full
// transaction hash list, flagging every hash that matches f. It mirrors
// ExtractMatches's depth-first traversal exactly so the two stay
// round-trip consistent: a subtree's flag/hash are only emitted once,
// pre-order, and children are only visited when their parent matched.
func NewMerkleBlock(header wire.BlockHeader, txHashes []chainhash.Hash, f *Filter) *wire.MsgMerkleBlock {
	numTx := uint32(len(txHashes))
	matched := make([]bool, numTx)
	for i, h := range txHashes {
		matched[i] = f.Matches(h[:])
	}

	height := treeHeight(numTx)

	// First pass: compute each subtree's combined hash and whether any
	// leaf beneath it matched, bottom-up, without touching the output
	// streams.
	type node struct {
		hash  *chainhash.Hash
		match bool
	}
	var hashPass func(h int, pos uint32) node
	hashPass = func(h int, pos uint32) node {
		if h == 0 {
			leaf := txHashes[pos]
			return node{hash: &leaf, match: matched[pos]}
		}
		left := hashPass(h-1, pos*2)
		var right node
		if pos*2+1 < treeWidth(numTx, h-1) {
			right = hashPass(h-1, pos*2+1)
		} else {
			right = left
		}
		return node{
			hash:  hashMerkleBranches(left.hash, right.hash),
			match: left.match || right.match,
		}
	}

	flags := make([]bool, 0, numTx*2)
	hashes := make([]*chainhash.Hash, 0, numTx)

	// Second pass: pre-order emission, recursing only into matching
	// subtrees — exactly what ExtractMatches expects to read back.
	var emit func(h int, pos uint32)
	emit = func(h int, pos uint32) {
		n := hashPass(h, pos)
		flags = append(flags, n.match)
		if h == 0 || !n.match {
			hashes = append(hashes, n.hash)
			return
		}
		emit(h-1, pos*2)
		if pos*2+1 < treeWidth(numTx, h-1) {
			emit(h-1, pos*2+1)
		}
	}
	emit(height, 0)

	flagBytes := make([]byte, (len(flags)+7)/8)
	for i, flag := range flags {
		if flag {
			flagBytes[i>>3] |= 1 << uint(i&7)
		}
	}

	return &wire.MsgMerkleBlock{
		Header:       header,
		Transactions: numTx,
		Hashes:       hashes,
		Flags:        flagBytes,
	}
}
