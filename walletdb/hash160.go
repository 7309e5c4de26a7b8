// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package walletdb

import (
	"crypto/sha256"

	"golang.org/x/crypto/ripemd160" //lint:ignore SA1019 no replacement in the standard library
)

// Hash160Of calculates ripemd160(sha256(buf)), the public-key hash used
// to identify P2PKH outputs.
func Hash160Of(buf []byte) [20]byte {
	sha := sha256.Sum256(buf)
	h := ripemd160.New()
	h.Write(sha[:])
	sum := h.Sum(nil)
	var out [20]byte
	copy(out[:], sum)
	return out
}
