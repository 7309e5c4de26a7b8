// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txscript recognizes the standard pay-to-pubkey-hash output
// script, the only script form the wallet's transaction-matching engine
// needs to understand.
package txscript

// Opcode values used to recognize a standard P2PKH script.
const (
	OP_DUP         = 0x76
	OP_HASH160     = 0xa9
	OP_DATA_20     = 0x14
	OP_EQUALVERIFY = 0x88
	OP_CHECKSIG    = 0xac
)

// ExtractPubKeyHash extracts the 20-byte hash160 from script if it is a
// standard pay-to-pubkey-hash script:
//
//	OP_DUP OP_HASH160 <20-byte hash> OP_EQUALVERIFY OP_CHECKSIG
//
// It returns nil otherwise.
func ExtractPubKeyHash(script []byte) []byte {
	if len(script) == 25 &&
		script[0] == OP_DUP &&
		script[1] == OP_HASH160 &&
		script[2] == OP_DATA_20 &&
		script[23] == OP_EQUALVERIFY &&
		script[24] == OP_CHECKSIG {
		return script[3:23]
	}
	return nil
}

// IsPubKeyHashScript returns whether script is a standard P2PKH script.
func IsPubKeyHashScript(script []byte) bool {
	return ExtractPubKeyHash(script) != nil
}

// PayToPubKeyHashScript builds a standard P2PKH output script paying the
// given 20-byte hash160.
func PayToPubKeyHashScript(hash160 [20]byte) []byte {
	script := make([]byte, 25)
	script[0] = OP_DUP
	script[1] = OP_HASH160
	script[2] = OP_DATA_20
	copy(script[3:23], hash160[:])
	script[23] = OP_EQUALVERIFY
	script[24] = OP_CHECKSIG
	return script
}
