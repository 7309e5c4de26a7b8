// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package addrmgr

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/btcspv/spvnode/wire"
)

func TestAddStaticIsNeverEvictedByAddAddresses(t *testing.T) {
	m := New()
	m.AddStatic(&wire.NetAddress{IP: net.ParseIP("10.0.0.1"), Port: 8333})
	require.Equal(t, 1, m.Count())

	m.AddAddresses([]*wire.NetAddress{
		{IP: net.ParseIP("10.0.0.1"), Port: 8333, Timestamp: uint32(time.Now().Unix())},
	})
	require.Equal(t, 1, m.Count())
}

func TestGetAddressPrefersNonStaticOverStatic(t *testing.T) {
	m := New()
	m.AddStatic(&wire.NetAddress{IP: net.ParseIP("10.0.0.1"), Port: 8333})
	m.AddAddresses([]*wire.NetAddress{
		{IP: net.ParseIP("10.0.0.2"), Port: 8333, Timestamp: uint32(time.Now().Unix())},
	})

	got := m.GetAddress(nil)
	require.NotNil(t, got)
	require.False(t, got.Static)
	require.Equal(t, "10.0.0.2", got.NetAddress.IP.String())
}

func TestGetAddressHonorsExclude(t *testing.T) {
	m := New()
	m.AddAddresses([]*wire.NetAddress{
		{IP: net.ParseIP("10.0.0.2"), Port: 8333, Timestamp: uint32(time.Now().Unix())},
	})
	excluded := map[string]bool{net.JoinHostPort("10.0.0.2", "8333"): true}
	require.Nil(t, m.GetAddress(excluded))
}

func TestGetAddressReturnsNilWhenEmpty(t *testing.T) {
	m := New()
	require.Nil(t, m.GetAddress(nil))
}

func TestGetAddressSelectsWithinFreshWindowDeterministically(t *testing.T) {
	m := New()
	now := time.Now()
	for i := 0; i < 5; i++ {
		m.AddAddresses([]*wire.NetAddress{
			{IP: net.ParseIP("10.0.0.2"), Port: uint16(8333 + i), Timestamp: uint32(now.Add(time.Duration(i) * time.Second).Unix())},
		})
	}

	first := m.GetAddress(nil)
	second := m.GetAddress(nil)
	require.NotNil(t, first)
	require.Equal(t, first.NetAddress.Port, second.NetAddress.Port)
}
