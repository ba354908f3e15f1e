package util

import (
	"fmt"
	"net"
	"testing"
)

func TestFormatAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"127.0.0.1", 25566, "127.0.0.1:25566"},
		{"::1", 443, "[::1]:443"},
		{"", 9000, ":9000"},
	}
	for _, tt := range tests {
		if got := FormatAddr(tt.host, tt.port); got != tt.want {
			t.Errorf("FormatAddr(%q, %d) = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}

func TestFindFreeUDPPort(t *testing.T) {
	port, err := FindFreeUDPPort()
	if err != nil {
		t.Fatal(err)
	}
	if port < 1 || port > 65535 {
		t.Errorf("port %d out of range", port)
	}
}

func TestIsClosedConn(t *testing.T) {
	c, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	c.Close()

	buf := make([]byte, 16)
	_, _, err = c.ReadFrom(buf)
	if !IsClosedConn(err) {
		t.Errorf("IsClosedConn(%v) = false, want true", err)
	}
	if IsClosedConn(nil) {
		t.Error("nil error reported as closed")
	}
	if IsClosedConn(fmt.Errorf("boom")) {
		t.Error("plain error reported as closed")
	}
}
