// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package errs defines the closed error taxonomy used across the node: Malformed,
// Invalid, BlockNotFound, WalletStore, Key and Verification. Each is a
// small concrete type rather than a generic errors.New string, following
// the sentinel-constructor idiom used throughout the blockchain and wire
// packages.
package errs

import (
	"fmt"

	"github.com/btcspv/spvnode/chaincfg/chainhash"
)

// Malformed indicates a parse/framing failure: truncated input, an
// oversized varint or payload, or a bad checksum.
type Malformed struct {
	Op     string
	Reason string
}

func (e *Malformed) Error() string {
	return fmt.Sprintf("malformed %s: %s", e.Op, e.Reason)
}

// Invalid indicates a semantically wrong message or chain transition: a
// bad Merkle root, a checkpoint mismatch, an out-of-drift timestamp.
type Invalid struct {
	Op     string
	Reason string
}

func (e *Invalid) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Op, e.Reason)
}

// BlockNotFound indicates a missing predecessor header; recoverable by
// re-enqueueing a fetch for the missing block.
type BlockNotFound struct {
	Hash chainhash.Hash
}

func (e *BlockNotFound) Error() string {
	return fmt.Sprintf("block not found: %s", e.Hash)
}

// WalletStore wraps a persistence-layer failure. These are logged and
// surfaced to the caller; they never crash the process.
type WalletStore struct {
	Op  string
	Err error
}

func (e *WalletStore) Error() string {
	return fmt.Sprintf("wallet store %s: %v", e.Op, e.Err)
}

func (e *WalletStore) Unwrap() error { return e.Err }

// Key indicates a key-decryption or signature failure.
type Key struct {
	Reason string
}

func (e *Key) Error() string {
	return fmt.Sprintf("key error: %s", e.Reason)
}

// VerificationReason enumerates the reject reason codes a Verification
// error may carry.
type VerificationReason string

const (
	ReasonMerkleRoot VerificationReason = "merkle-root"
	ReasonCheckpoint VerificationReason = "checkpoint"
	ReasonTimestamp  VerificationReason = "timestamp"
	ReasonDuplicate  VerificationReason = "duplicate"
)

// Verification wraps an Invalid error with a reason code and optional data
// hash so the dispatcher can build a reject message.
type Verification struct {
	Reason VerificationReason
	Hash   *chainhash.Hash
}

func (e *Verification) Error() string {
	if e.Hash != nil {
		return fmt.Sprintf("verification failed (%s): %s", e.Reason, e.Hash)
	}
	return fmt.Sprintf("verification failed (%s)", e.Reason)
}

// GetHash returns the data hash associated with the failed verification,
// if any.
func (e *Verification) GetHash() *chainhash.Hash { return e.Hash }
