// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcspv/spvnode/chaincfg/chainhash"
)

// messageError creates a MessageError given a set of arguments.
func messageError(op, desc string) *MessageError {
	return &MessageError{Op: op, Description: desc}
}

// MessageError describes an issue encountered while decoding or encoding a
// wire message. It is the C1/C2 "Malformed" error kind referenced
// throughout the component design.
type MessageError struct {
	Op          string
	Description string
}

func (e *MessageError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Description)
	}
	return e.Description
}

// readElement reads the next sequence of bytes from r using little endian
// depending on the concrete type of element.
func readElement(r io.Reader, element interface{}) error {
	switch e := element.(type) {
	case *int32:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return err
		}
		*e = int32(binary.LittleEndian.Uint32(buf[:]))
		return nil
	case *uint32:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return err
		}
		*e = binary.LittleEndian.Uint32(buf[:])
		return nil
	case *int64:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return err
		}
		*e = int64(binary.LittleEndian.Uint64(buf[:]))
		return nil
	case *uint64:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return err
		}
		*e = binary.LittleEndian.Uint64(buf[:])
		return nil
	case *bool:
		var buf [1]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return err
		}
		*e = buf[0] != 0
		return nil
	case *chainhash.Hash:
		_, err := io.ReadFull(r, e[:])
		return err
	default:
		return binary.Read(r, binary.LittleEndian, element)
	}
}

// writeElement writes the little endian representation of element to w.
func writeElement(w io.Writer, element interface{}) error {
	switch e := element.(type) {
	case int32:
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(e))
		_, err := w.Write(buf[:])
		return err
	case uint32:
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], e)
		_, err := w.Write(buf[:])
		return err
	case int64:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(e))
		_, err := w.Write(buf[:])
		return err
	case uint64:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], e)
		_, err := w.Write(buf[:])
		return err
	case bool:
		var buf [1]byte
		if e {
			buf[0] = 1
		}
		_, err := w.Write(buf[:])
		return err
	case chainhash.Hash:
		_, err := w.Write(e[:])
		return err
	case *chainhash.Hash:
		_, err := w.Write(e[:])
		return err
	default:
		return binary.Write(w, binary.LittleEndian, element)
	}
}

// ReadVarInt reads a variable length integer from r and returns it as a
// uint64, per the {<=0xFC: 1B; 0xFD+u16LE; 0xFE+u32LE; 0xFF+u64LE} encoding.
func ReadVarInt(r io.Reader) (uint64, error) {
	var prefix [1]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return 0, err
	}

	switch prefix[0] {
	case 0xff:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		rv := binary.LittleEndian.Uint64(buf[:])
		if rv < 0x100000000 {
			return 0, messageError("ReadVarInt", "non-canonical varint")
		}
		return rv, nil
	case 0xfe:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		rv := binary.LittleEndian.Uint32(buf[:])
		if uint64(rv) < 0x10000 {
			return 0, messageError("ReadVarInt", "non-canonical varint")
		}
		return uint64(rv), nil
	case 0xfd:
		var buf [2]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		rv := binary.LittleEndian.Uint16(buf[:])
		if uint64(rv) < 0xfd {
			return 0, messageError("ReadVarInt", "non-canonical varint")
		}
		return uint64(rv), nil
	default:
		return uint64(prefix[0]), nil
	}
}

// WriteVarInt serializes val to w using the variable length integer
// encoding.
func WriteVarInt(w io.Writer, val uint64) error {
	if val < 0xfd {
		_, err := w.Write([]byte{byte(val)})
		return err
	}
	if val <= 0xffff {
		buf := make([]byte, 3)
		buf[0] = 0xfd
		binary.LittleEndian.PutUint16(buf[1:], uint16(val))
		_, err := w.Write(buf)
		return err
	}
	if val <= 0xffffffff {
		buf := make([]byte, 5)
		buf[0] = 0xfe
		binary.LittleEndian.PutUint32(buf[1:], uint32(val))
		_, err := w.Write(buf)
		return err
	}
	buf := make([]byte, 9)
	buf[0] = 0xff
	binary.LittleEndian.PutUint64(buf[1:], val)
	_, err := w.Write(buf)
	return err
}

// ReadVarBytes reads a variable length byte array, erroring out if the
// number of bytes to read exceeds maxAllowed.
func ReadVarBytes(r io.Reader, maxAllowed uint64, fieldName string) ([]byte, error) {
	count, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if count > maxAllowed {
		str := fmt.Sprintf("%s is larger than the max allowed size [count %d, max %d]",
			fieldName, count, maxAllowed)
		return nil, messageError("ReadVarBytes", str)
	}

	buf := make([]byte, count)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteVarBytes serializes a variable length byte array to w.
func WriteVarBytes(w io.Writer, bytes []byte) error {
	if err := WriteVarInt(w, uint64(len(bytes))); err != nil {
		return err
	}
	_, err := w.Write(bytes)
	return err
}

// ReadVarString reads a variable length string from r.
func ReadVarString(r io.Reader, maxAllowed uint64) (string, error) {
	buf, err := ReadVarBytes(r, maxAllowed, "string")
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// WriteVarString serializes a variable length string to w.
func WriteVarString(w io.Writer, s string) error {
	return WriteVarBytes(w, []byte(s))
}
