// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MaxBlockHeadersPerMsg is the maximum number of block headers that can be
// in a single headers message.
const MaxBlockHeadersPerMsg = 2000

// MsgHeaders implements the Message interface and represents a set of
// block headers. Unlike the full bitcoin wire format each header is
// followed by a zero transaction-count byte, preserved here for
// wire-compatibility even though this client never sends full blocks.
type MsgHeaders struct {
	Headers []*BlockHeader
}

// AddBlockHeader adds a new block header to the message.
func (msg *MsgHeaders) AddBlockHeader(bh *BlockHeader) error {
	if len(msg.Headers)+1 > MaxBlockHeadersPerMsg {
		return messageError("MsgHeaders.AddBlockHeader", "too many headers")
	}
	msg.Headers = append(msg.Headers, bh)
	return nil
}

func (msg *MsgHeaders) BtcDecode(r io.Reader, pver uint32) error {
	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > MaxBlockHeadersPerMsg {
		return messageError("MsgHeaders.BtcDecode", "too many headers for message")
	}

	headers := make([]*BlockHeader, 0, count)
	for i := uint64(0); i < count; i++ {
		bh := new(BlockHeader)
		if err := readBlockHeader(r, bh); err != nil {
			return err
		}
		txCount, err := ReadVarInt(r)
		if err != nil {
			return err
		}
		if txCount != 0 {
			return messageError("MsgHeaders.BtcDecode", "headers message entry included tx data")
		}
		headers = append(headers, bh)
	}
	msg.Headers = headers
	return nil
}

func (msg *MsgHeaders) BtcEncode(w io.Writer, pver uint32) error {
	if len(msg.Headers) > MaxBlockHeadersPerMsg {
		return messageError("MsgHeaders.BtcEncode", "too many headers for message")
	}
	if err := WriteVarInt(w, uint64(len(msg.Headers))); err != nil {
		return err
	}
	for _, bh := range msg.Headers {
		if err := writeBlockHeader(w, bh); err != nil {
			return err
		}
		if err := WriteVarInt(w, 0); err != nil {
			return err
		}
	}
	return nil
}

func (msg *MsgHeaders) Command() string { return CmdHeaders }

func (msg *MsgHeaders) MaxPayloadLength(pver uint32) uint64 {
	return 9 + (MaxBlockHeadersPerMsg * (BlockHeaderLen + 1))
}

// NewMsgHeaders returns a new empty headers message.
func NewMsgHeaders() *MsgHeaders {
	return &MsgHeaders{Headers: make([]*BlockHeader, 0, MaxBlockHeadersPerMsg)}
}
