// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MsgPing implements the Message interface and is used to verify a
// connection is still valid.
type MsgPing struct {
	Nonce uint64
}

func (msg *MsgPing) BtcDecode(r io.Reader, pver uint32) error { return readElement(r, &msg.Nonce) }
func (msg *MsgPing) BtcEncode(w io.Writer, pver uint32) error { return writeElement(w, msg.Nonce) }
func (msg *MsgPing) Command() string                         { return CmdPing }
func (msg *MsgPing) MaxPayloadLength(pver uint32) uint64      { return 8 }

// NewMsgPing returns a new ping message with the given nonce.
func NewMsgPing(nonce uint64) *MsgPing { return &MsgPing{Nonce: nonce} }

// MsgPong implements the Message interface and is the reply to a ping,
// echoing back the nonce.
type MsgPong struct {
	Nonce uint64
}

func (msg *MsgPong) BtcDecode(r io.Reader, pver uint32) error { return readElement(r, &msg.Nonce) }
func (msg *MsgPong) BtcEncode(w io.Writer, pver uint32) error { return writeElement(w, msg.Nonce) }
func (msg *MsgPong) Command() string                         { return CmdPong }
func (msg *MsgPong) MaxPayloadLength(pver uint32) uint64      { return 8 }

// NewMsgPong returns a new pong message echoing the given nonce.
func NewMsgPong(nonce uint64) *MsgPong { return &MsgPong{Nonce: nonce} }
