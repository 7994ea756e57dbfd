// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"phono/internal/log"
)

// UDPTransport sends snapshots as JSON datagrams to a fixed target address.
// Datagrams that would exceed a safe MTU are dropped with a warning.
type UDPTransport struct {
	mu     sync.Mutex
	conn   *net.UDPConn
	target string
}

const maxDatagramSize = 60000

// NewUDPTransport dials the target address ("host:port").
func NewUDPTransport(target string) (*UDPTransport, error) {
	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", target, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", target, err)
	}
	log.Infof("udp transport sending to %s", target)
	return &UDPTransport{conn: conn, target: target}, nil
}

func (ut *UDPTransport) Send(data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	if len(payload) > maxDatagramSize {
		log.Warnf("udp snapshot too large (%d bytes), dropped", len(payload))
		return nil
	}

	ut.mu.Lock()
	defer ut.mu.Unlock()
	if ut.conn == nil {
		return nil
	}
	if _, err := ut.conn.Write(payload); err != nil {
		return fmt.Errorf("sending to %s: %w", ut.target, err)
	}
	return nil
}

func (ut *UDPTransport) Close() error {
	ut.mu.Lock()
	defer ut.mu.Unlock()
	if ut.conn == nil {
		return nil
	}
	err := ut.conn.Close()
	ut.conn = nil
	return err
}

var _ Transport = (*UDPTransport)(nil)
