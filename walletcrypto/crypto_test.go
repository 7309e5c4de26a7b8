// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package walletcrypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	priv, _, err := GenerateKeyPair()
	require.NoError(t, err)

	envelope, err := Seal(priv, "correct horse battery staple")
	require.NoError(t, err)
	require.NotEqual(t, priv, envelope)

	opened, err := Open(envelope, "correct horse battery staple")
	require.NoError(t, err)
	require.Equal(t, priv, opened)
}

func TestOpenRejectsWrongPassphrase(t *testing.T) {
	priv, _, err := GenerateKeyPair()
	require.NoError(t, err)

	envelope, err := Seal(priv, "correct passphrase")
	require.NoError(t, err)

	_, err = Open(envelope, "wrong passphrase")
	require.Error(t, err)
}

func TestOpenRejectsTruncatedEnvelope(t *testing.T) {
	_, err := Open([]byte{0x01, 0x02, 0x03}, "anything")
	require.Error(t, err)
}

func TestGenerateKeyPairProducesDerivablePubKey(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	require.NoError(t, err)
	require.Len(t, priv, 32)
	require.Equal(t, pub, PubKeyFromPriv(priv))
}
