// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

// ProtocolVersion is the latest protocol version this package supports.
const ProtocolVersion uint32 = 70002

// BloomVersion is the protocol version which added Bloom filtering support
// (BIP-0037). Peers advertising a lower version cannot serve SPV clients.
const BloomVersion uint32 = 70001

// RejectVersion is the protocol version which added the reject message.
const RejectVersion uint32 = 70002

// MaxMessagePayload is the maximum bytes a message payload can be.
const MaxMessagePayload = 2 * 1024 * 1024 // 2 MiB

// CommandSize is the fixed size of all command strings within message
// headers. Shorter commands must be zero padded.
const CommandSize = 12

// MaxVarIntPayload is the maximum payload size for a variable length
// integer.
const MaxVarIntPayload = 9

// BitcoinNet represents which bitcoin network a message belongs to.
type BitcoinNet uint32

const (
	// MainNet represents the main bitcoin network.
	MainNet BitcoinNet = 0xd9b4bef9

	// TestNet represents the regression test network.
	TestNet BitcoinNet = 0x0709110b
)

// String returns the BitcoinNet in human-readable form.
func (n BitcoinNet) String() string {
	switch n {
	case MainNet:
		return "MainNet"
	case TestNet:
		return "TestNet"
	default:
		return "Unknown"
	}
}

// ServiceFlag identifies services supported by a bitcoin peer.
type ServiceFlag uint64

const (
	// SFNodeNetwork is a flag used to indicate a peer is a full node.
	SFNodeNetwork ServiceFlag = 1 << iota

	// SFNodeBloom indicates a peer supports Bloom filtering.
	SFNodeBloom
)

// InvType represents the allowed types of inventory vectors.
type InvType uint32

const (
	InvTypeError          InvType = 0
	InvTypeTx             InvType = 1
	InvTypeBlock          InvType = 2
	InvTypeFilteredBlock  InvType = 3
)

// String returns the InvType in human-readable form.
func (t InvType) String() string {
	switch t {
	case InvTypeError:
		return "ERROR"
	case InvTypeTx:
		return "MSG_TX"
	case InvTypeBlock:
		return "MSG_BLOCK"
	case InvTypeFilteredBlock:
		return "MSG_FILTERED_BLOCK"
	default:
		return "UNKNOWN"
	}
}

// Commands used in message headers which describe the type of message.
const (
	CmdVersion     = "version"
	CmdVerAck      = "verack"
	CmdAddr        = "addr"
	CmdInv         = "inv"
	CmdGetData     = "getdata"
	CmdGetBlocks   = "getblocks"
	CmdGetHeaders  = "getheaders"
	CmdHeaders     = "headers"
	CmdMerkleBlock = "merkleblock"
	CmdTx          = "tx"
	CmdPing        = "ping"
	CmdPong        = "pong"
	CmdGetAddr     = "getaddr"
	CmdNotFound    = "notfound"
	CmdReject      = "reject"
	CmdFilterLoad  = "filterload"
	CmdFilterAdd   = "filteradd"
	CmdMemPool     = "mempool"
)

// RejectCode represents a numeric value by which a remote peer indicates why
// a message was rejected.
type RejectCode uint8

const (
	RejectMalformed    RejectCode = 0x01
	RejectInvalid      RejectCode = 0x10
	RejectObsolete     RejectCode = 0x11
	RejectDuplicate    RejectCode = 0x12
	RejectNonstandard  RejectCode = 0x40
	RejectCheckpoint   RejectCode = 0x43
)
