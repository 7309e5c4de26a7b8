// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MsgVersion implements the Message interface and represents the version
// handshake message. A peer is unusable until both sides have exchanged
// version and verack.
type MsgVersion struct {
	ProtocolVersion int32
	Services        ServiceFlag
	Timestamp       int64
	AddrYou         NetAddress
	AddrMe          NetAddress
	Nonce           uint64
	UserAgent       string
	LastBlock       int32
	DisableRelay    bool
}

// HasService reports whether the peer advertises the given service.
func (msg *MsgVersion) HasService(service ServiceFlag) bool {
	return msg.Services&service == service
}

func (msg *MsgVersion) BtcDecode(r io.Reader, pver uint32) error {
	if err := readElement(r, &msg.ProtocolVersion); err != nil {
		return err
	}

	var services uint64
	if err := readElement(r, &services); err != nil {
		return err
	}
	msg.Services = ServiceFlag(services)

	if err := readElement(r, &msg.Timestamp); err != nil {
		return err
	}
	if err := readNetAddress(r, &msg.AddrYou, false); err != nil {
		return err
	}
	if err := readNetAddress(r, &msg.AddrMe, false); err != nil {
		return err
	}
	if err := readElement(r, &msg.Nonce); err != nil {
		return err
	}

	ua, err := ReadVarString(r, MaxMessagePayload)
	if err != nil {
		return err
	}
	msg.UserAgent = ua

	if err := readElement(r, &msg.LastBlock); err != nil {
		return err
	}

	// DisableRelay absent (e.g. from older peers) defaults to relaying.
	if err := readElement(r, &msg.DisableRelay); err != nil {
		msg.DisableRelay = false
	}

	return nil
}

func (msg *MsgVersion) BtcEncode(w io.Writer, pver uint32) error {
	if err := writeElement(w, msg.ProtocolVersion); err != nil {
		return err
	}
	if err := writeElement(w, uint64(msg.Services)); err != nil {
		return err
	}
	if err := writeElement(w, msg.Timestamp); err != nil {
		return err
	}
	if err := writeNetAddress(w, &msg.AddrYou, false); err != nil {
		return err
	}
	if err := writeNetAddress(w, &msg.AddrMe, false); err != nil {
		return err
	}
	if err := writeElement(w, msg.Nonce); err != nil {
		return err
	}
	if err := WriteVarString(w, msg.UserAgent); err != nil {
		return err
	}
	if err := writeElement(w, msg.LastBlock); err != nil {
		return err
	}
	return writeElement(w, msg.DisableRelay)
}

func (msg *MsgVersion) Command() string { return CmdVersion }

func (msg *MsgVersion) MaxPayloadLength(pver uint32) uint64 { return MaxMessagePayload }

// NewMsgVersion returns a new version message populated with the given
// parameters and defaults for the remaining fields.
func NewMsgVersion(me, you NetAddress, nonce uint64, lastBlock int32) *MsgVersion {
	return &MsgVersion{
		ProtocolVersion: int32(ProtocolVersion),
		Services:        0,
		Timestamp:       0,
		AddrYou:         you,
		AddrMe:          me,
		Nonce:           nonce,
		UserAgent:       "/spvnode:0.1.0/",
		LastBlock:       lastBlock,
	}
}

// MsgVerAck implements the Message interface and represents the verack
// message acknowledging a version exchange.
type MsgVerAck struct{}

func (msg *MsgVerAck) BtcDecode(r io.Reader, pver uint32) error { return nil }
func (msg *MsgVerAck) BtcEncode(w io.Writer, pver uint32) error { return nil }
func (msg *MsgVerAck) Command() string                         { return CmdVerAck }
func (msg *MsgVerAck) MaxPayloadLength(pver uint32) uint64      { return 0 }

// MsgGetAddr implements the Message interface; requests known active
// peers from a remote peer.
type MsgGetAddr struct{}

func (msg *MsgGetAddr) BtcDecode(r io.Reader, pver uint32) error { return nil }
func (msg *MsgGetAddr) BtcEncode(w io.Writer, pver uint32) error { return nil }
func (msg *MsgGetAddr) Command() string                         { return CmdGetAddr }
func (msg *MsgGetAddr) MaxPayloadLength(pver uint32) uint64      { return 0 }

// MsgMemPool implements the Message interface; requests a list of
// transactions still in the remote peer's mempool.
type MsgMemPool struct{}

func (msg *MsgMemPool) BtcDecode(r io.Reader, pver uint32) error { return nil }
func (msg *MsgMemPool) BtcEncode(w io.Writer, pver uint32) error { return nil }
func (msg *MsgMemPool) Command() string                         { return CmdMemPool }
func (msg *MsgMemPool) MaxPayloadLength(pver uint32) uint64      { return 0 }
