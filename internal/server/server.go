// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package server implements the TTS event-driven TCP acceptor: it accepts
// connections, frames requests off each one, and dispatches decoded
// packets to internal/handlers.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/ClusterCockpit/tts/internal/handlers"
	"github.com/ClusterCockpit/tts/internal/store"
	"github.com/ClusterCockpit/tts/internal/wire"
)

// dispatchQueueSize bounds how many decoded requests can be waiting for the
// single dispatcher goroutine at once. It is a soft cap, not a hard
// backpressure mechanism (see connection.go's doc comment): with
// dispatchQueueSize connections all blocked sending into a full channel,
// new requests simply wait their turn in arrival order.
const dispatchQueueSize = 256

// request is one decoded packet awaiting a response from the single
// executor that owns the Database.
type request struct {
	packet wire.Packet
	respCh chan wire.Packet
}

// Server is the TTS TCP acceptor. Construct with New, then run Serve.
type Server struct {
	ln      net.Listener
	db      *store.Database
	metrics *Metrics

	reqCh chan request

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// New binds addr (host:port for TCP, or a path for a Unix domain socket
// when network is "unix") and returns a Server ready to Serve. The listener
// is created eagerly so callers can drop privileges after binding a
// privileged port, the way cc-backend's cmd/cc-backend/server.go does.
func New(network, addr string, db *store.Database) (*Server, error) {
	ln, err := net.Listen(network, addr)
	if err != nil {
		return nil, fmt.Errorf("server: listen %s %s: %w", network, addr, err)
	}
	return &Server{
		ln:      ln,
		db:      db,
		metrics: newMetrics(),
		reqCh:   make(chan request, dispatchQueueSize),
		conns:   make(map[net.Conn]struct{}),
	}, nil
}

// Addr returns the listener's bound address.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Metrics returns the server's prometheus collector, for registration with
// an HTTP debug endpoint (see cmd/tts-server).
func (s *Server) Metrics() *Metrics { return s.metrics }

// Serve runs the accept loop and the single dispatcher goroutine until ctx
// is cancelled, then closes the listener and every live connection. It
// returns nil on a clean shutdown, or the Accept error that caused it to
// stop early.
func (s *Server) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runDispatcher(ctx)
	}()

	go func() {
		<-ctx.Done()
		s.ln.Close()
		s.closeAllConnections()
	}()

	var acceptErr error
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				acceptErr = nil
			default:
				acceptErr = fmt.Errorf("server: accept: %w", err)
			}
			break
		}

		s.trackConnection(conn)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.untrackConnection(conn)
			newConnection(s, conn).serve(ctx)
		}()
	}

	// Stop the dispatcher and close live connections even when Accept
	// failed on its own, so wg.Wait returns.
	cancel()
	wg.Wait()
	return acceptErr
}

// runDispatcher is the single executor that owns the Database: every
// request, from every connection, is handled here, one at a time, strictly
// in the order connections enqueued them.
func (s *Server) runDispatcher(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.reqCh:
			resp := handlers.Dispatch(s.db, req.packet)
			select {
			case req.respCh <- resp:
			case <-ctx.Done():
			}
		}
	}
}

// dispatch enqueues req and blocks for its response, or returns an error if
// ctx is cancelled first.
func (s *Server) dispatch(ctx context.Context, req wire.Packet) (wire.Packet, error) {
	respCh := make(chan wire.Packet, 1)
	select {
	case s.reqCh <- request{packet: req, respCh: respCh}:
	case <-ctx.Done():
		return wire.Packet{}, errors.New("server: shutting down")
	}

	select {
	case resp := <-respCh:
		return resp, nil
	case <-ctx.Done():
		return wire.Packet{}, errors.New("server: shutting down")
	}
}

func (s *Server) trackConnection(c net.Conn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrackConnection(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Server) closeAllConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.Close()
	}
}
