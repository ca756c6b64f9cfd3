package main

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/grandcat/zeroconf"
)

const zeroconfService = "_power._tcp"

// registerZeroconf advertises the HTTP API on the local network.
func registerZeroconf(addr string) (*zeroconf.Server, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("error parsing the HTTP address: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("error parsing the HTTP port: %w", err)
	}
	instance, err := os.Hostname()
	if err != nil {
		instance = appName
	}

	server, err := zeroconf.Register(instance, zeroconfService, "local.", port, []string{"path=/api"}, nil)
	if err != nil {
		return nil, fmt.Errorf("error registering the mDNS service: %w", err)
	}
	return server, nil
}
