// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package walletcrypto

import (
	"crypto/rand"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/btcspv/spvnode/errs"
)

// GenerateKeyPair returns a fresh secp256k1 private scalar and its
// compressed public key encoding.
func GenerateKeyPair() (priv, pub []byte, err error) {
	var scalar [32]byte
	if _, err := rand.Read(scalar[:]); err != nil {
		return nil, nil, &errs.Key{Reason: err.Error()}
	}

	key := secp256k1.PrivKeyFromBytes(scalar[:])
	defer key.Zero()

	return scalar[:], key.PubKey().SerializeCompressed(), nil
}

// PubKeyFromPriv recovers the compressed public key for a raw 32-byte
// private scalar, used after Open decrypts a stored key.
func PubKeyFromPriv(priv []byte) []byte {
	key := secp256k1.PrivKeyFromBytes(priv)
	defer key.Zero()
	return key.PubKey().SerializeCompressed()
}
