// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// NetAddress defines information about a peer on the network, serialized as
// services (u64LE) | 16-byte IPv4-in-IPv6 address | port (u16 big endian),
// as seen on the wire.
type NetAddress struct {
	Timestamp uint32
	Services  ServiceFlag
	IP        net.IP
	Port      uint16
}

// HasService returns whether the NetAddress advertises the given service.
func (na *NetAddress) HasService(service ServiceFlag) bool {
	return na.Services&service == service
}

func readNetAddress(r io.Reader, na *NetAddress, withTimestamp bool) error {
	if withTimestamp {
		var ts uint32
		if err := readElement(r, &ts); err != nil {
			return err
		}
		na.Timestamp = ts
	}

	var services uint64
	if err := readElement(r, &services); err != nil {
		return err
	}
	na.Services = ServiceFlag(services)

	var ip [16]byte
	if _, err := io.ReadFull(r, ip[:]); err != nil {
		return err
	}
	na.IP = net.IP(append([]byte(nil), ip[:]...))

	var portBytes [2]byte
	if _, err := io.ReadFull(r, portBytes[:]); err != nil {
		return err
	}
	na.Port = binary.BigEndian.Uint16(portBytes[:])
	return nil
}

func writeNetAddress(w io.Writer, na *NetAddress, withTimestamp bool) error {
	if withTimestamp {
		if err := writeElement(w, na.Timestamp); err != nil {
			return err
		}
	}

	if err := writeElement(w, uint64(na.Services)); err != nil {
		return err
	}

	var ip [16]byte
	if to4 := na.IP.To4(); to4 != nil {
		copy(ip[10:12], []byte{0xff, 0xff})
		copy(ip[12:16], to4)
	} else if na.IP != nil {
		copy(ip[:], na.IP.To16())
	}
	if _, err := w.Write(ip[:]); err != nil {
		return err
	}

	var portBytes [2]byte
	binary.BigEndian.PutUint16(portBytes[:], na.Port)
	_, err := w.Write(portBytes[:])
	return err
}

// maxNetAddressPayload is the maximum number of bytes a netaddress can take
// up with a timestamp.
const maxNetAddressPayload = 30

func (na *NetAddress) String() string {
	return net.JoinHostPort(na.IP.String(), fmt.Sprintf("%d", na.Port))
}
