package discovery

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
)

func TestFromEntryParsesTXT(t *testing.T) {
	entry := &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{Instance: "instance-name"},
		Port:          34567,
		AddrIPv4:      []net.IP{net.IPv4(192, 168, 1, 20)},
		Text: []string{
			"code=ABC123",
			"name=Friday sketch",
			"peers=3",
			"garbage-without-equals",
		},
	}
	f := fromEntry(entry)
	if f.Code != "ABC123" {
		t.Fatalf("code=%q", f.Code)
	}
	if f.Name != "Friday sketch" {
		t.Fatalf("name=%q", f.Name)
	}
	if f.Peers != 3 {
		t.Fatalf("peers=%d", f.Peers)
	}
	if f.Host != "192.168.1.20" || f.Port != 34567 {
		t.Fatalf("addr=%s", f.Addr())
	}
	if f.Addr() != "192.168.1.20:34567" {
		t.Fatalf("Addr()=%q", f.Addr())
	}
}

func TestFromEntryWithoutAddresses(t *testing.T) {
	entry := &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{Instance: "hidden"},
		Port:          34567,
	}
	if f := fromEntry(entry); f.Host != "" {
		t.Fatalf("expected empty host, got %q", f.Host)
	}
}
