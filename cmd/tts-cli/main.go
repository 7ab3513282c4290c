// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// tts-cli is an interactive client for the tts server: it tokenizes a
// small line-oriented command grammar into wire requests, sends them over
// a single connection, and prints the decoded response.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/ClusterCockpit/tts/internal/wire"
)

func main() {
	var network, addr string
	flag.StringVar(&network, "m", "tcp", "Connection mode: tcp or unix")
	flag.StringVar(&addr, "a", "127.0.0.1:9200", "Address to connect to (host:port, or a socket path for -m unix)")
	flag.Parse()

	conn, err := net.Dial(network, addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tts-cli: connect: %s\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	repl(conn, os.Stdin, os.Stdout)
}

func repl(conn net.Conn, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "tts> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		req, err := parseCommand(line)
		if err != nil {
			fmt.Fprintf(out, "error: %s\n", err)
			continue
		}

		resp, err := roundTrip(conn, req)
		if err != nil {
			fmt.Fprintf(out, "error: %s\n", err)
			return
		}
		printResponse(out, resp)
	}
}

func roundTrip(conn net.Conn, req wire.Packet) (wire.Packet, error) {
	out, err := wire.Encode(req)
	if err != nil {
		return wire.Packet{}, fmt.Errorf("encoding request: %w", err)
	}
	if _, err := conn.Write(out); err != nil {
		return wire.Packet{}, fmt.Errorf("writing request: %w", err)
	}

	var prefix [wire.HeaderSize]byte
	if _, err := io.ReadFull(conn, prefix[:]); err != nil {
		return wire.Packet{}, fmt.Errorf("reading response header: %w", err)
	}
	frameType, opcode, status, bodyLen := wire.DecodeHeader(prefix)

	body := make([]byte, bodyLen)
	if bodyLen > 0 {
		if _, err := io.ReadFull(conn, body); err != nil {
			return wire.Packet{}, fmt.Errorf("reading response body: %w", err)
		}
	}
	return wire.Decode(frameType, opcode, status, body)
}

func printResponse(out io.Writer, resp wire.Packet) {
	switch body := resp.Body.(type) {
	case wire.Ack:
		fmt.Fprintf(out, "%s\n", resp.Status)
	case wire.QueryResponse:
		if resp.Status != wire.StatusOK {
			fmt.Fprintf(out, "%s\n", resp.Status)
			return
		}
		for _, r := range body.Results {
			fmt.Fprintf(out, "%d.%09d %g", r.TsSec, r.TsNsec, r.Value)
			for _, l := range r.Labels {
				fmt.Fprintf(out, " %s=%s", l.Name, l.Value)
			}
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "(%d rows)\n", len(body.Results))
	default:
		fmt.Fprintf(out, "%s %v\n", resp.Status, body)
	}
}

// parseCommand tokenizes one REPL line into a request wire.Packet following
// the CREATE/DELETE/ADD/QUERY grammar.
func parseCommand(line string) (wire.Packet, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return wire.Packet{}, fmt.Errorf("empty command")
	}

	switch strings.ToUpper(fields[0]) {
	case "CREATE":
		return parseCreate(fields[1:])
	case "DELETE":
		return parseDelete(fields[1:])
	case "ADD":
		return parseAdd(fields[1:])
	case "QUERY":
		return parseQuery(fields[1:])
	default:
		return wire.Packet{}, fmt.Errorf("unknown command %q", fields[0])
	}
}

func parseCreate(args []string) (wire.Packet, error) {
	if len(args) < 1 {
		return wire.Packet{}, fmt.Errorf("usage: CREATE <name> [retention]")
	}
	var retention uint32
	if len(args) >= 2 {
		secs, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return wire.Packet{}, fmt.Errorf("retention: %w", err)
		}
		retention = uint32(secs * 1_000_000)
	}
	return wire.Packet{Type: wire.Request, Body: wire.CreateTS{Name: args[0], Retention: retention}}, nil
}

func parseDelete(args []string) (wire.Packet, error) {
	if len(args) != 1 {
		return wire.Packet{}, fmt.Errorf("usage: DELETE <name>")
	}
	return wire.Packet{Type: wire.Request, Body: wire.DeleteTS{Name: args[0]}}, nil
}

func parseAdd(args []string) (wire.Packet, error) {
	if len(args) < 2 {
		return wire.Packet{}, fmt.Errorf("usage: ADD <name> <ts|*> <value> [label value ...] [- ...]")
	}
	name := args[0]
	rest := args[1:]

	var points []wire.Point
	for len(rest) > 0 {
		point, consumed, err := parsePoint(rest)
		if err != nil {
			return wire.Packet{}, err
		}
		points = append(points, point)
		rest = rest[consumed:]
		if len(rest) > 0 {
			if rest[0] != "-" {
				return wire.Packet{}, fmt.Errorf("expected '-' before next point, got %q", rest[0])
			}
			rest = rest[1:]
		}
	}
	return wire.Packet{Type: wire.Request, Body: wire.AddPoints{Name: name, Points: points}}, nil
}

// parsePoint consumes "<ts|*> <value> [label value ...]" up to (not
// including) the next "-" separator or end of input, and returns how many
// tokens it consumed.
func parsePoint(args []string) (wire.Point, int, error) {
	if len(args) < 2 {
		return wire.Point{}, 0, fmt.Errorf("expected '<ts|*> <value>'")
	}

	p := wire.Point{}
	if args[0] != "*" {
		sec, nsec, err := parseAddTimestamp(args[0])
		if err != nil {
			return wire.Point{}, 0, err
		}
		p.TsSecSet, p.TsSec = true, sec
		p.TsNsecSet, p.TsNsec = true, nsec
	}

	value, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return wire.Point{}, 0, fmt.Errorf("value: %w", err)
	}
	p.Value = value

	i := 2
	for i < len(args) && args[i] != "-" {
		if i+1 >= len(args) || args[i+1] == "-" {
			return wire.Point{}, 0, fmt.Errorf("label %q has no value", args[i])
		}
		p.Labels = append(p.Labels, wire.Label{Name: args[i], Value: args[i+1]})
		i += 2
	}
	return p, i, nil
}

// parseAddTimestamp applies the ADD command's 10-digit-seconds /
// 13-digit-milliseconds rule.
func parseAddTimestamp(tok string) (sec, nsec uint64, err error) {
	n, err := strconv.ParseUint(tok, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("timestamp %q: %w", tok, err)
	}
	switch len(tok) {
	case 13:
		return n / 1000, 0, nil
	default:
		return n, 0, nil
	}
}

// parseQueryTimestamp applies the QUERY command's rule: values of 10 digits
// or fewer are seconds and get multiplied up to nanoseconds; anything
// longer is already nanoseconds.
func parseQueryTimestamp(tok string) (uint64, error) {
	n, err := strconv.ParseUint(tok, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("timestamp %q: %w", tok, err)
	}
	if len(tok) <= 10 {
		n *= 1_000_000_000
	}
	return n, nil
}

func parseQuery(args []string) (wire.Packet, error) {
	if len(args) < 1 {
		return wire.Packet{}, fmt.Errorf("usage: QUERY <name> [* | > T | < T | RANGE T1 T2] [FIRST | LAST] [AVG W]")
	}
	name := args[0]
	rest := args[1:]

	var flags wire.QueryFlags
	var majorOf, minorOf, meanVal uint64

	for len(rest) > 0 {
		switch strings.ToUpper(rest[0]) {
		case "*":
			rest = rest[1:]
		case ">":
			if len(rest) < 2 {
				return wire.Packet{}, fmt.Errorf("'>' needs a timestamp")
			}
			t, err := parseQueryTimestamp(rest[1])
			if err != nil {
				return wire.Packet{}, err
			}
			flags |= wire.FlagMajorOf
			majorOf = t
			rest = rest[2:]
		case "<":
			if len(rest) < 2 {
				return wire.Packet{}, fmt.Errorf("'<' needs a timestamp")
			}
			t, err := parseQueryTimestamp(rest[1])
			if err != nil {
				return wire.Packet{}, err
			}
			flags |= wire.FlagMinorOf
			minorOf = t
			rest = rest[2:]
		case "RANGE":
			if len(rest) < 3 {
				return wire.Packet{}, fmt.Errorf("RANGE needs two timestamps")
			}
			t1, err := parseQueryTimestamp(rest[1])
			if err != nil {
				return wire.Packet{}, err
			}
			t2, err := parseQueryTimestamp(rest[2])
			if err != nil {
				return wire.Packet{}, err
			}
			flags |= wire.FlagMajorOf | wire.FlagMinorOf
			majorOf, minorOf = t1, t2
			rest = rest[3:]
		case "FIRST":
			flags |= wire.FlagFirst
			rest = rest[1:]
		case "LAST":
			flags |= wire.FlagLast
			rest = rest[1:]
		case "AVG":
			if len(rest) < 2 {
				return wire.Packet{}, fmt.Errorf("AVG needs a window in milliseconds")
			}
			w, err := strconv.ParseUint(rest[1], 10, 64)
			if err != nil {
				return wire.Packet{}, fmt.Errorf("AVG window: %w", err)
			}
			flags |= wire.FlagMean
			meanVal = w
			rest = rest[2:]
		default:
			return wire.Packet{}, fmt.Errorf("unexpected token %q in QUERY", rest[0])
		}
	}

	return wire.Packet{Type: wire.Request, Body: wire.Query{
		Flags:   flags,
		Name:    name,
		MeanVal: meanVal,
		MajorOf: majorOf,
		MinorOf: minorOf,
	}}, nil
}
