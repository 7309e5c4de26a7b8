// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package walletcrypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeAddressRoundTrip(t *testing.T) {
	var hash160 [20]byte
	for i := range hash160 {
		hash160[i] = byte(i)
	}

	addr := EncodeAddress(hash160, 0x00)
	require.NotEmpty(t, addr)

	decoded, version, err := DecodeAddress(addr)
	require.NoError(t, err)
	require.Equal(t, hash160, decoded)
	require.Equal(t, byte(0x00), version)
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	_, _, err := DecodeAddress("not a valid address")
	require.Error(t, err)
}
