// Copyright (c) 2025 The Quazaa Development Team.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package g2addr

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// family byte values distinguishing the two address shapes an Endpoint can
// serialize to. These are wire constants: changing their values breaks
// every snapshot file written by an earlier version.
const (
	familyIPv4 = 4
	familyIPv6 = 6
)

// WriteTo serializes e in the binary form the host cache persists,
// satisfying io.WriterTo: a one byte address family, the raw address bytes,
// the port, and a length-prefixed country code.
func (e Endpoint) WriteTo(w io.Writer) (int64, error) {
	var family byte
	var ip net.IP
	if ip4 := e.ip.To4(); ip4 != nil {
		family, ip = familyIPv4, ip4
	} else {
		family, ip = familyIPv6, e.ip.To16()
	}

	var n int64
	if err := binary.Write(w, binary.LittleEndian, family); err != nil {
		return n, err
	}
	n++
	written, err := w.Write(ip)
	n += int64(written)
	if err != nil {
		return n, err
	}
	if err := binary.Write(w, binary.LittleEndian, e.port); err != nil {
		return n, err
	}
	n += 2

	country := []byte(e.Country())
	if err := binary.Write(w, binary.LittleEndian, uint8(len(country))); err != nil {
		return n, err
	}
	n++
	written, err = w.Write(country)
	n += int64(written)
	return n, err
}

// ReadEndpoint deserializes an Endpoint written by WriteTo.
func ReadEndpoint(r io.Reader) (Endpoint, error) {
	var family byte
	if err := binary.Read(r, binary.LittleEndian, &family); err != nil {
		return Endpoint{}, err
	}

	var ipLen int
	switch family {
	case familyIPv4:
		ipLen = net.IPv4len
	case familyIPv6:
		ipLen = net.IPv6len
	default:
		log.Warnf("Rejecting endpoint record with unknown address family %d", family)
		return Endpoint{}, fmt.Errorf("g2addr: unknown address family %d", family)
	}

	ip := make(net.IP, ipLen)
	if _, err := io.ReadFull(r, ip); err != nil {
		return Endpoint{}, err
	}

	var port uint16
	if err := binary.Read(r, binary.LittleEndian, &port); err != nil {
		return Endpoint{}, err
	}

	var countryLen uint8
	if err := binary.Read(r, binary.LittleEndian, &countryLen); err != nil {
		return Endpoint{}, err
	}
	country := make([]byte, countryLen)
	if countryLen > 0 {
		if _, err := io.ReadFull(r, country); err != nil {
			return Endpoint{}, err
		}
	}

	ep := New(ip, port)
	if len(country) > 0 {
		ep = ep.WithCountry(string(country))
	}
	return ep, nil
}
