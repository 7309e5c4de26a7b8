// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MaxAddrPerMsg is the maximum number of addresses a single addr message
// may carry.
const MaxAddrPerMsg = 1000

// MsgAddr implements the Message interface and represents a set of known
// active peers.
type MsgAddr struct {
	AddrList []*NetAddress
}

// AddAddress adds a known active peer to the message.
func (msg *MsgAddr) AddAddress(na *NetAddress) error {
	if len(msg.AddrList)+1 > MaxAddrPerMsg {
		return messageError("MsgAddr.AddAddress", "too many addresses")
	}
	msg.AddrList = append(msg.AddrList, na)
	return nil
}

func (msg *MsgAddr) BtcDecode(r io.Reader, pver uint32) error {
	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > MaxAddrPerMsg {
		return messageError("MsgAddr.BtcDecode", "too many addresses for message")
	}

	addrList := make([]*NetAddress, 0, count)
	for i := uint64(0); i < count; i++ {
		na := new(NetAddress)
		if err := readNetAddress(r, na, true); err != nil {
			return err
		}
		addrList = append(addrList, na)
	}
	msg.AddrList = addrList
	return nil
}

func (msg *MsgAddr) BtcEncode(w io.Writer, pver uint32) error {
	if len(msg.AddrList) > MaxAddrPerMsg {
		return messageError("MsgAddr.BtcEncode", "too many addresses for message")
	}
	if err := WriteVarInt(w, uint64(len(msg.AddrList))); err != nil {
		return err
	}
	for _, na := range msg.AddrList {
		if err := writeNetAddress(w, na, true); err != nil {
			return err
		}
	}
	return nil
}

func (msg *MsgAddr) Command() string { return CmdAddr }

func (msg *MsgAddr) MaxPayloadLength(pver uint32) uint64 {
	return 9 + (MaxAddrPerMsg * maxNetAddressPayload)
}

// NewMsgAddr returns a new empty addr message.
func NewMsgAddr() *MsgAddr {
	return &MsgAddr{AddrList: make([]*NetAddress, 0, MaxAddrPerMsg)}
}
