// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcspv/spvnode/chaincfg/chainhash"
)

// messageHeaderSize is the number of bytes in a bitcoin message header.
// Magic 4 bytes + command 12 bytes + payload length 4 bytes + checksum 4
// bytes.
const messageHeaderSize = 24

// Message is the interface every typed payload implements so the
// dispatcher can treat them uniformly without an OO class hierarchy.
type Message interface {
	BtcDecode(r io.Reader, pver uint32) error
	BtcEncode(w io.Writer, pver uint32) error
	Command() string
	MaxPayloadLength(pver uint32) uint64
}

// messageHeader defines the header structure for all bitcoin protocol
// messages.
type messageHeader struct {
	magic    BitcoinNet
	command  string
	length   uint32
	checksum [4]byte
}

// makeEmptyMessage creates a message of the appropriate concrete type based
// on the command.
func makeEmptyMessage(command string) (Message, error) {
	switch command {
	case CmdVersion:
		return &MsgVersion{}, nil
	case CmdVerAck:
		return &MsgVerAck{}, nil
	case CmdAddr:
		return &MsgAddr{}, nil
	case CmdInv:
		return &MsgInv{}, nil
	case CmdGetData:
		return &MsgGetData{}, nil
	case CmdGetBlocks:
		return &MsgGetBlocks{}, nil
	case CmdGetHeaders:
		return &MsgGetHeaders{}, nil
	case CmdHeaders:
		return &MsgHeaders{}, nil
	case CmdMerkleBlock:
		return &MsgMerkleBlock{}, nil
	case CmdTx:
		return &MsgTx{}, nil
	case CmdPing:
		return &MsgPing{}, nil
	case CmdPong:
		return &MsgPong{}, nil
	case CmdGetAddr:
		return &MsgGetAddr{}, nil
	case CmdNotFound:
		return &MsgNotFound{}, nil
	case CmdReject:
		return &MsgReject{}, nil
	case CmdFilterLoad:
		return &MsgFilterLoad{}, nil
	case CmdFilterAdd:
		return &MsgFilterAdd{}, nil
	case CmdMemPool:
		return &MsgMemPool{}, nil
	default:
		str := fmt.Sprintf("unhandled command [%s]", command)
		return nil, messageError("makeEmptyMessage", str)
	}
}

// WriteMessage frames msg with the magic/command/length/checksum header
// and writes it to w.
func WriteMessage(w io.Writer, msg Message, pver uint32, btcnet BitcoinNet) error {
	var bw bytes.Buffer
	if err := msg.BtcEncode(&bw, pver); err != nil {
		return err
	}
	payload := bw.Bytes()
	lenp := len(payload)

	command := msg.Command()
	if len(command) > CommandSize {
		str := fmt.Sprintf("command [%s] is too long [max %v]", command, CommandSize)
		return messageError("WriteMessage", str)
	}

	mpl := msg.MaxPayloadLength(pver)
	if uint64(lenp) > mpl {
		str := fmt.Sprintf("message payload is too large - encoded "+
			"%d bytes, but maximum message payload is %d bytes",
			lenp, mpl)
		return messageError("WriteMessage", str)
	}

	var hdr messageHeader
	hdr.magic = btcnet
	hdr.command = command
	hdr.length = uint32(lenp)
	copy(hdr.checksum[:], chainhash.HashB(payload)[0:4])

	var hw bytes.Buffer
	var command12 [CommandSize]byte
	copy(command12[:], command)

	if err := binary.Write(&hw, binary.LittleEndian, uint32(hdr.magic)); err != nil {
		return err
	}
	if _, err := hw.Write(command12[:]); err != nil {
		return err
	}
	if err := binary.Write(&hw, binary.LittleEndian, hdr.length); err != nil {
		return err
	}
	if _, err := hw.Write(hdr.checksum[:]); err != nil {
		return err
	}

	if _, err := w.Write(hw.Bytes()); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadMessage reads the next complete framed message from r, verifying
// magic, payload length and checksum. An unknown command name causes
// (nil, payload, nil) to be returned so the caller can drop it without
// treating it as fatal framing corruption.
func ReadMessage(r io.Reader, pver uint32, btcnet BitcoinNet) (Message, []byte, error) {
	var hb [messageHeaderSize]byte
	if _, err := io.ReadFull(r, hb[:]); err != nil {
		return nil, nil, err
	}

	magic := BitcoinNet(binary.LittleEndian.Uint32(hb[0:4]))
	if magic != btcnet {
		str := fmt.Sprintf("unexpected network magic %v, want %v", magic, btcnet)
		return nil, nil, messageError("ReadMessage", str)
	}

	var commandBytes [CommandSize]byte
	copy(commandBytes[:], hb[4:16])
	command := stripNullTerm(commandBytes[:])

	length := binary.LittleEndian.Uint32(hb[16:20])
	if length > MaxMessagePayload {
		str := fmt.Sprintf("payload of %d bytes exceeds max of %d", length, MaxMessagePayload)
		return nil, nil, messageError("ReadMessage", str)
	}

	var checksum [4]byte
	copy(checksum[:], hb[20:24])

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, nil, err
		}
	}

	sum := chainhash.HashB(payload)[0:4]
	if !bytes.Equal(sum, checksum[:]) {
		str := fmt.Sprintf("payload checksum failed - header indicates %x, but actual checksum is %x", checksum, sum)
		return nil, nil, messageError("ReadMessage", str)
	}

	msg, err := makeEmptyMessage(command)
	if err != nil {
		// Unknown command: logged and dropped by the caller, not fatal.
		return nil, payload, nil
	}

	pr := bytes.NewReader(payload)
	if err := msg.BtcDecode(pr, pver); err != nil {
		return nil, nil, err
	}

	return msg, payload, nil
}

func stripNullTerm(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
