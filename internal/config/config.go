// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads the tts server's configuration file: a flat
// key = value text format, one setting per line, '#' starting a
// whole-line comment. This is deliberately simpler than cc-backend's
// JSON-schema-validated config.json — tts has a handful of scalar knobs,
// not a tree of cluster/metric definitions, so a grep-able key=value file
// fits better and keeps internal/config dependency-free.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds every setting the tts server reads from its config file.
// Defaults fills in the documented default values, so a Config built by
// Defaults is immediately usable without a file on disk.
type Config struct {
	LogLevel   string // debug, info, notice, warn, err, crit
	LogPath    string // empty means stderr
	TCPBacklog int
	UnixSocket string // non-empty switches the listener to a Unix domain socket
	IPAddress  string
	IPPort     int
}

// Defaults returns the configuration tts starts from before a config file
// or flags are applied.
func Defaults() Config {
	return Config{
		LogLevel:   "info",
		TCPBacklog: 128,
		IPAddress:  "127.0.0.1",
		IPPort:     9200,
	}
}

// Load reads path as a key=value file and applies the recognized keys on
// top of Defaults(). Unknown keys are rejected rather than silently
// ignored, since a typo'd key left at its default is easy to miss.
func Load(path string) (Config, error) {
	cfg := Defaults()

	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	lineNo := 0
	for s.Scan() {
		lineNo++
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return cfg, fmt.Errorf("config: %s:%d: expected key = value, got %q", path, lineNo, line)
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])

		if err := cfg.set(key, val); err != nil {
			return cfg, fmt.Errorf("config: %s:%d: %w", path, lineNo, err)
		}
	}
	if err := s.Err(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) set(key, val string) error {
	switch key {
	case "log_level":
		c.LogLevel = val
	case "log_path":
		c.LogPath = val
	case "tcp_backlog":
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("tcp_backlog: %w", err)
		}
		c.TCPBacklog = n
	case "unix_socket":
		c.UnixSocket = val
	case "ip_address":
		c.IPAddress = val
	case "ip_port":
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("ip_port: %w", err)
		}
		c.IPPort = n
	default:
		return fmt.Errorf("unrecognized key %q", key)
	}
	return nil
}

// Network and Address return the net.Listen arguments implied by the
// configuration: a Unix domain socket if UnixSocket is set, otherwise TCP
// at IPAddress:IPPort.
func (c Config) Network() string {
	if c.UnixSocket != "" {
		return "unix"
	}
	return "tcp"
}

func (c Config) Address() string {
	if c.UnixSocket != "" {
		return c.UnixSocket
	}
	return fmt.Sprintf("%s:%d", c.IPAddress, c.IPPort)
}
