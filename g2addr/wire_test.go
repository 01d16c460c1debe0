// Copyright (c) 2025 The Quazaa Development Team.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package g2addr

import (
	"bytes"
	"net"
	"testing"
)

func TestWireRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		ep   Endpoint
	}{
		{"ipv4 no country", New(net.ParseIP("1.2.3.4"), 6346)},
		{"ipv4 with country", New(net.ParseIP("1.2.3.4"), 6346).WithCountry("US")},
		{"ipv6 no country", New(net.ParseIP("fe80::1:1"), 6346)},
		{"ipv6 with country", New(net.ParseIP("2001:db8::1"), 6347).WithCountry("DE")},
	}

	for _, test := range tests {
		var buf bytes.Buffer
		n, err := test.ep.WriteTo(&buf)
		if err != nil {
			t.Fatalf("%s: WriteTo returned %v", test.name, err)
		}
		if n != int64(buf.Len()) {
			t.Fatalf("%s: WriteTo reported %d bytes, buffer holds %d", test.name, n, buf.Len())
		}

		got, err := ReadEndpoint(&buf)
		if err != nil {
			t.Fatalf("%s: ReadEndpoint returned %v", test.name, err)
		}
		if !got.Equal(test.ep) {
			t.Fatalf("%s: round-tripped endpoint = %v, want %v", test.name, got, test.ep)
		}
		if got.Country() != test.ep.Country() {
			t.Fatalf("%s: round-tripped country = %q, want %q", test.name, got.Country(), test.ep.Country())
		}
		if buf.Len() != 0 {
			t.Fatalf("%s: %d trailing bytes left after ReadEndpoint", test.name, buf.Len())
		}
	}
}

func TestReadEndpointRejectsUnknownFamily(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0xaa, 1, 2, 3, 4, 0, 0, 0})
	if _, err := ReadEndpoint(buf); err == nil {
		t.Fatal("ReadEndpoint accepted an unrecognized address family")
	}
}

func TestReadEndpointRejectsTruncatedInput(t *testing.T) {
	var buf bytes.Buffer
	ep := New(net.ParseIP("5.6.7.8"), 6346)
	if _, err := ep.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()-2])
	if _, err := ReadEndpoint(truncated); err == nil {
		t.Fatal("ReadEndpoint accepted truncated input")
	}
}
