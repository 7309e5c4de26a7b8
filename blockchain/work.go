// Copyright (c) 2013-2015 The btcsuite developers
// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import "math/big"

// bigOne is 1 represented as a big.Int.
var bigOne = big.NewInt(1)

// oneLsh256 is 1 shifted left 256 bits, used as the numerator of the work
// calculation below.
var oneLsh256 = new(big.Int).Lsh(bigOne, 256)

// CompactToBig converts a compact "bits" representation (as stored in a
// block header) to a big.Int target.
func CompactToBig(compact uint32) *big.Int {
	mantissa := compact & 0x007fffff
	exponent := uint(compact >> 24)

	var bn *big.Int
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		bn = big.NewInt(int64(mantissa))
	} else {
		bn = big.NewInt(int64(mantissa))
		bn.Lsh(bn, 8*(exponent-3))
	}

	if mantissa != 0 && compact&0x00800000 != 0 {
		bn = bn.Neg(bn)
	}
	return bn
}

// BigToCompact converts a big.Int target to its compact "bits"
// representation.
func BigToCompact(n *big.Int) uint32 {
	if n.Sign() == 0 {
		return 0
	}

	var mantissa uint32
	exponent := uint(len(n.Bytes()))
	if exponent <= 3 {
		mantissa = uint32(n.Bits()[0])
		mantissa <<= 8 * (3 - exponent)
	} else {
		tn := new(big.Int).Set(n)
		mantissa = uint32(tn.Rsh(tn, 8*(exponent-3)).Bits()[0])
	}

	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}

	compact := uint32(exponent<<24) | mantissa
	if n.Sign() < 0 {
		compact |= 0x00800000
	}
	return compact
}

// CalcWork calculates a work value from difficulty bits, matching the
// proof-of-work accumulation any chain built on the Bitcoin header format
// uses: work = floor(2^256 / (target+1)). A higher difficulty target
// (smaller numeric value) produces more work.
func CalcWork(bits uint32) *big.Int {
	target := CompactToBig(bits)
	if target.Sign() <= 0 {
		return big.NewInt(0)
	}

	denominator := new(big.Int).Add(target, bigOne)
	return new(big.Int).Div(oneLsh256, denominator)
}
