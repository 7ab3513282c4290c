// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package server

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/ClusterCockpit/tts/internal/wire"
	"github.com/ClusterCockpit/tts/pkg/log"
	"github.com/rs/xid"
)

// connection drives one client's read-dispatch-write cycle.
//
// A classic non-blocking implementation would run a state machine where
// read_want oscillates between Header(5) and Body(n), re-armed on an event
// loop's readable notifications, with a write side that re-arms writable
// on a short write. This implementation gets the same
// externally-observable behavior — frame at a time, strict per-connection
// ordering, requests processed in arrival order — from Go's
// goroutine-per-connection model instead: one goroutine blocks on
// io.ReadFull for the header, then the body, then hands the decoded packet
// to the server's single dispatcher goroutine and blocks on its response.
// The Go runtime's netpoller already re-arms readability/writability under
// the goroutine scheduler, and net.Conn.Write already retries partial
// writes internally, so there is no user-visible short-write case left to
// handle by hand.
//
// Because each connection only ever has one request in flight (it blocks
// on the dispatcher's response before reading the next frame), pending
// response bytes per connection are implicitly capped at one response
// without any extra bookkeeping.
type connection struct {
	id     string
	conn   net.Conn
	server *Server
}

func newConnection(s *Server, c net.Conn) *connection {
	return &connection{id: xid.New().String(), conn: c, server: s}
}

// serve runs the connection's read loop until EOF, a protocol error, or ctx
// cancellation. It never returns an error the caller needs to act on beyond
// logging; the connection is always closed on the way out.
func (c *connection) serve(ctx context.Context) {
	defer c.conn.Close()
	c.server.metrics.connectionOpened(c.id)
	defer c.server.metrics.connectionClosed(c.id)

	log.Debugf("server: %s: connection from %s", c.id, c.conn.RemoteAddr())

	for {
		var prefix [wire.HeaderSize]byte
		if _, err := io.ReadFull(c.conn, prefix[:]); err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debugf("server: %s: reading header: %s", c.id, err)
			}
			return
		}

		frameType, opcode, status, bodyLen := wire.DecodeHeader(prefix)

		body := make([]byte, bodyLen)
		if bodyLen > 0 {
			if _, err := io.ReadFull(c.conn, body); err != nil {
				log.Debugf("server: %s: reading body: %s", c.id, err)
				return
			}
		}

		req, err := wire.Decode(frameType, opcode, status, body)
		if err != nil {
			log.Warnf("server: %s: protocol error, closing: %s", c.id, err)
			return
		}
		c.server.metrics.requestReceived(opcode)

		resp, err := c.server.dispatch(ctx, req)
		if err != nil {
			// ctx was cancelled (shutdown in progress); stop serving.
			return
		}

		out, err := wire.Encode(resp)
		if err != nil {
			log.Errorf("server: %s: encoding response: %s", c.id, err)
			return
		}
		if _, err := c.conn.Write(out); err != nil {
			log.Debugf("server: %s: writing response: %s", c.id, err)
			return
		}
	}
}
