// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package walletcrypto

import (
	"github.com/EXCCoin/base58"

	"github.com/btcspv/spvnode/errs"
)

// EncodeAddress renders a hash160 as a human-readable Base58Check P2PKH
// address under the given network version byte. The matching engine
// itself only ever consumes and produces raw hash160 values; this exists
// purely so logs and any future CLI output can display one.
func EncodeAddress(hash160 [20]byte, version byte) string {
	return base58.CheckEncode(hash160[:], version)
}

// DecodeAddress parses a Base58Check P2PKH address back into its
// underlying hash160 and version byte, rejecting anything that doesn't
// decode to exactly 20 bytes.
func DecodeAddress(addr string) (hash160 [20]byte, version byte, err error) {
	decoded, version, err := base58.CheckDecode(addr)
	if err != nil {
		return hash160, 0, &errs.Key{Reason: err.Error()}
	}
	if len(decoded) != 20 {
		return hash160, 0, &errs.Key{Reason: "decoded address is not a 20-byte hash160"}
	}
	copy(hash160[:], decoded)
	return hash160, version, nil
}

// DecodeWIF parses a Base58Check wallet-import-format private key,
// returning the raw 32-byte scalar and whether it designates a
// compressed public key.
func DecodeWIF(wif string) (priv []byte, compressed bool, err error) {
	decoded, _, err := base58.CheckDecode(wif)
	if err != nil {
		return nil, false, &errs.Key{Reason: err.Error()}
	}
	switch len(decoded) {
	case 33:
		return decoded[:32], false, nil
	case 34:
		if decoded[32] != 0x01 {
			return nil, false, &errs.Key{Reason: "unrecognized WIF compression flag"}
		}
		return decoded[:32], true, nil
	default:
		return nil, false, &errs.Key{Reason: "decoded WIF is not a 32-byte scalar"}
	}
}
