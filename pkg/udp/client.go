package udp

import (
	"net"

	"vblock/pkg/exception"
)

const udpNetwork = "udp"

// Client dials UDP endpoints using a pre-resolved address.
type Client struct {
	addr *net.UDPAddr
}

// NewClient creates a client for the provided host:port.
func NewClient(address string) (*Client, error) {
	if address == "" {
		return nil, exception.ErrEmptyAddressUDP
	}
	addr, err := net.ResolveUDPAddr(udpNetwork, address)
	if err != nil {
		return nil, err
	}
	return &Client{addr: addr}, nil
}

// Addr returns the resolved remote address.
func (c *Client) Addr() string {
	if c == nil || c.addr == nil {
		return ""
	}
	return c.addr.String()
}

// Dial opens a connected UDP socket. Datagrams from any other peer are filtered by the kernel.
func (c *Client) Dial() (*net.UDPConn, error) {
	if c == nil {
		return nil, exception.ErrNilClientUDP
	}
	if c.addr == nil {
		return nil, exception.ErrEmptyAddressUDP
	}
	return net.DialUDP(udpNetwork, nil, c.addr)
}
