// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/btcspv/spvnode/chaincfg/chainhash"
)

// MsgReject implements the Message interface and represents a reject
// message sent only to peers advertising protocol >= RejectVersion
// It carries the rejected command, a reason code, a free-form
// message and, for block/tx rejections, the hash of the rejected data.
type MsgReject struct {
	Cmd    string
	Code   RejectCode
	Reason string
	Hash   chainhash.Hash
}

func (msg *MsgReject) BtcDecode(r io.Reader, pver uint32) error {
	cmd, err := ReadVarString(r, MaxMessagePayload)
	if err != nil {
		return err
	}
	msg.Cmd = cmd

	var code uint8
	if err := readElement(r, &code); err != nil {
		return err
	}
	msg.Code = RejectCode(code)

	reason, err := ReadVarString(r, MaxMessagePayload)
	if err != nil {
		return err
	}
	msg.Reason = reason

	if msg.Cmd == CmdBlock() || msg.Cmd == CmdTx {
		return readElement(r, &msg.Hash)
	}
	return nil
}

// CmdBlock returns the historical "block" command name used in reject
// payload data-hash disambiguation; this client never requests full blocks
// but may still see rejects referencing them.
func CmdBlock() string { return "block" }

func (msg *MsgReject) BtcEncode(w io.Writer, pver uint32) error {
	if err := WriteVarString(w, msg.Cmd); err != nil {
		return err
	}
	if err := writeElement(w, uint8(msg.Code)); err != nil {
		return err
	}
	if err := WriteVarString(w, msg.Reason); err != nil {
		return err
	}
	if msg.Cmd == CmdBlock() || msg.Cmd == CmdTx {
		return writeElement(w, msg.Hash)
	}
	return nil
}

func (msg *MsgReject) Command() string { return CmdReject }

func (msg *MsgReject) MaxPayloadLength(pver uint32) uint64 { return MaxMessagePayload }

// NewMsgReject returns a new reject message for the given command, reason
// code and human-readable reason.
func NewMsgReject(command string, code RejectCode, reason string) *MsgReject {
	return &MsgReject{Cmd: command, Code: code, Reason: reason}
}
