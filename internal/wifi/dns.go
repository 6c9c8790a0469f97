package wifi

import (
	"encoding/binary"
	"net"

	appLog "pin/internal/log"
	"pin/internal/perr"
)

// dnsServer is a UDP/53 catch-all: every question gets a single A
// record pointing at the portal IP, TTL 60, preserving the query's
// transaction id and question section (spec §4.4 "DNS catch-all").
// No DNS library appears anywhere in the retrieval pack, so the wire
// format is built by hand in the same direct byte-manipulation style
// internal/panel uses for the framebuffer.
type dnsServer struct {
	conn   *net.UDPConn
	target [4]byte
	quit   chan struct{}
}

func newDNSServer(targetIP string) (*dnsServer, error) {
	addr, err := net.ResolveUDPAddr("udp", ":53")
	if err != nil {
		return nil, perr.Wrap(perr.HardwareFail, "wifi.dns_server", "resolve", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, perr.Wrap(perr.HardwareFail, "wifi.dns_server", "listen", err)
	}

	ip := net.ParseIP(targetIP).To4()
	if ip == nil {
		conn.Close()
		return nil, perr.New(perr.InvalidArgument, "wifi.dns_server", "target is not a valid IPv4 address")
	}

	return &dnsServer{
		conn:   conn,
		target: [4]byte{ip[0], ip[1], ip[2], ip[3]},
		quit:   make(chan struct{}),
	}, nil
}

func (d *dnsServer) Serve() {
	buf := make([]byte, 512)
	for {
		n, addr, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-d.quit:
				return
			default:
				appLog.Error("wifi dns: read failed", err)
				continue
			}
		}
		resp, ok := buildCatchAllResponse(buf[:n], d.target)
		if !ok {
			continue
		}
		if _, err := d.conn.WriteToUDP(resp, addr); err != nil {
			appLog.Error("wifi dns: write failed", err)
		}
	}
}

func (d *dnsServer) Close() {
	close(d.quit)
	_ = d.conn.Close()
}

// buildCatchAllResponse parses just enough of a DNS query (header +
// question section) to answer it with a single A record, leaving
// everything else untouched.
func buildCatchAllResponse(query []byte, target [4]byte) ([]byte, bool) {
	if len(query) < 12 {
		return nil, false
	}

	qdCount := binary.BigEndian.Uint16(query[4:6])
	if qdCount == 0 {
		return nil, false
	}

	qEnd, ok := skipQuestionName(query, 12)
	if !ok || qEnd+4 > len(query) {
		return nil, false
	}
	qEnd += 4 // QTYPE + QCLASS

	question := query[12:qEnd]

	resp := make([]byte, 0, 12+len(question)+16)

	// Header: id copied, flags = standard response with no error,
	// qdcount=1, ancount=1, nscount=0, arcount=0.
	resp = append(resp, query[0], query[1])
	resp = append(resp, 0x81, 0x80)
	resp = append(resp, 0x00, 0x01)
	resp = append(resp, 0x00, 0x01)
	resp = append(resp, 0x00, 0x00)
	resp = append(resp, 0x00, 0x00)

	// Question section, echoed verbatim.
	resp = append(resp, question...)

	// Answer: name = pointer to offset 12, type A, class IN, TTL 60,
	// rdlength 4, rdata = target IP.
	resp = append(resp, 0xC0, 0x0C)
	resp = append(resp, 0x00, 0x01)
	resp = append(resp, 0x00, 0x01)
	resp = append(resp, 0x00, 0x00, 0x00, 0x3C)
	resp = append(resp, 0x00, 0x04)
	resp = append(resp, target[0], target[1], target[2], target[3])

	return resp, true
}

// skipQuestionName advances past a DNS name's label sequence starting
// at off, returning the offset just past the terminating zero length
// byte.
func skipQuestionName(buf []byte, off int) (int, bool) {
	for off < len(buf) {
		length := int(buf[off])
		if length == 0 {
			return off + 1, true
		}
		off += 1 + length
	}
	return 0, false
}
