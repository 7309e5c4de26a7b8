// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MaxInvPerMsg is the maximum number of inventory vectors that can be in a
// single inv, getdata or notfound message.
const MaxInvPerMsg = 50000

// invList is the shared decode/encode logic backing MsgInv, MsgGetData and
// MsgNotFound — all three are a varint-prefixed list of 36-byte InvVect
// entries.
type invList struct {
	InvList []*InvVect
}

func (m *invList) addInvVect(iv *InvVect) error {
	if len(m.InvList)+1 > MaxInvPerMsg {
		return messageError("invList.AddInvVect", "too many inv vectors")
	}
	m.InvList = append(m.InvList, iv)
	return nil
}

func (m *invList) decode(r io.Reader) error {
	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > MaxInvPerMsg {
		return messageError("invList.decode", "too many inv vectors for message")
	}

	invList := make([]*InvVect, 0, count)
	for i := uint64(0); i < count; i++ {
		iv := new(InvVect)
		if err := readInvVect(r, iv); err != nil {
			return err
		}
		invList = append(invList, iv)
	}
	m.InvList = invList
	return nil
}

func (m *invList) encode(w io.Writer) error {
	if len(m.InvList) > MaxInvPerMsg {
		return messageError("invList.encode", "too many inv vectors for message")
	}
	if err := WriteVarInt(w, uint64(len(m.InvList))); err != nil {
		return err
	}
	for _, iv := range m.InvList {
		if err := writeInvVect(w, iv); err != nil {
			return err
		}
	}
	return nil
}

func (m *invList) maxPayloadLength() uint64 {
	return 9 + (MaxInvPerMsg * InvVectLen)
}

// MsgInv implements the Message interface and is used to advertise
// knowledge of transactions, blocks or filtered blocks.
type MsgInv struct{ invList }

func (msg *MsgInv) AddInvVect(iv *InvVect) error           { return msg.addInvVect(iv) }
func (msg *MsgInv) BtcDecode(r io.Reader, pver uint32) error { return msg.decode(r) }
func (msg *MsgInv) BtcEncode(w io.Writer, pver uint32) error { return msg.encode(w) }
func (msg *MsgInv) Command() string                          { return CmdInv }
func (msg *MsgInv) MaxPayloadLength(pver uint32) uint64       { return msg.maxPayloadLength() }

// NewMsgInv returns a new empty inv message.
func NewMsgInv() *MsgInv { return &MsgInv{} }

// MsgGetData implements the Message interface and is used to request
// transactions, blocks or filtered blocks previously advertised via inv.
type MsgGetData struct{ invList }

func (msg *MsgGetData) AddInvVect(iv *InvVect) error           { return msg.addInvVect(iv) }
func (msg *MsgGetData) BtcDecode(r io.Reader, pver uint32) error { return msg.decode(r) }
func (msg *MsgGetData) BtcEncode(w io.Writer, pver uint32) error { return msg.encode(w) }
func (msg *MsgGetData) Command() string                          { return CmdGetData }
func (msg *MsgGetData) MaxPayloadLength(pver uint32) uint64       { return msg.maxPayloadLength() }

// NewMsgGetData returns a new empty getdata message.
func NewMsgGetData() *MsgGetData { return &MsgGetData{} }

// MsgNotFound implements the Message interface and is sent in response to a
// getdata request for items the peer does not have.
type MsgNotFound struct{ invList }

func (msg *MsgNotFound) AddInvVect(iv *InvVect) error           { return msg.addInvVect(iv) }
func (msg *MsgNotFound) BtcDecode(r io.Reader, pver uint32) error { return msg.decode(r) }
func (msg *MsgNotFound) BtcEncode(w io.Writer, pver uint32) error { return msg.encode(w) }
func (msg *MsgNotFound) Command() string                          { return CmdNotFound }
func (msg *MsgNotFound) MaxPayloadLength(pver uint32) uint64       { return msg.maxPayloadLength() }

// NewMsgNotFound returns a new empty notfound message.
func NewMsgNotFound() *MsgNotFound { return &MsgNotFound{} }
