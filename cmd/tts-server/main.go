// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/ClusterCockpit/tts/internal/config"
	"github.com/ClusterCockpit/tts/internal/server"
	"github.com/ClusterCockpit/tts/internal/store"
	"github.com/ClusterCockpit/tts/pkg/log"
	"github.com/ClusterCockpit/tts/pkg/runtimeEnv"
	"github.com/google/gops/agent"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	var flagConfigFile, flagAddr, flagNetwork, flagDebugAddr, flagUser, flagGroup string
	var flagGops bool
	flag.StringVar(&flagConfigFile, "config", "./tts.conf", "Load configuration from `file`")
	flag.StringVar(&flagAddr, "a", "", "Override ip_address:ip_port or unix_socket from the config file")
	flag.StringVar(&flagNetwork, "m", "", "Override the listen mode: `tcp` or `unix`")
	flag.StringVar(&flagDebugAddr, "debug-addr", "", "If set, serve /healthz and /metrics on this address")
	flag.StringVar(&flagUser, "user", "", "Drop privileges to this user after binding")
	flag.StringVar(&flagGroup, "group", "", "Drop privileges to this group after binding")
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.Parse()

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("gops/agent.Listen failed: %s", err)
		}
	}

	cfg := config.Defaults()
	if loaded, err := config.Load(flagConfigFile); err == nil {
		cfg = loaded
	} else if !os.IsNotExist(err) {
		log.Fatalf("loading %s: %s", flagConfigFile, err)
	}
	if cfg.LogPath != "" {
		f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("opening log_path %s: %s", cfg.LogPath, err)
		}
		log.DebugWriter, log.InfoWriter, log.NoteWriter = f, f, f
		log.WarnWriter, log.ErrWriter, log.CritWriter = f, f, f
		for _, l := range []*stdlog.Logger{
			log.DebugLog, log.InfoLog, log.NoteLog, log.WarnLog, log.ErrLog, log.CritLog,
			log.DebugTimeLog, log.InfoTimeLog, log.NoteTimeLog, log.WarnTimeLog, log.ErrTimeLog, log.CritTimeLog,
		} {
			l.SetOutput(f)
		}
	}
	log.SetLogLevel(cfg.LogLevel)

	network, addr := cfg.Network(), cfg.Address()
	if flagNetwork != "" {
		network = flagNetwork
	}
	if flagAddr != "" {
		addr = flagAddr
	}

	db := store.NewDatabase()
	srv, err := server.New(network, addr, db)
	if err != nil {
		log.Fatalf("starting server: %s", err)
	}
	log.Printf("tts-server listening on %s %s", network, srv.Addr())

	// The listener is already bound, so it's safe to give up elevated
	// privileges now, the way a server binding a privileged port would need
	// to.
	if err := runtimeEnv.DropPrivileges(flagUser, flagGroup); err != nil {
		log.Fatalf("dropping privileges: %s", err)
	}

	if flagDebugAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(srv.Metrics())
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, "ok")
		})
		go func() {
			if err := http.ListenAndServe(flagDebugAddr, mux); err != nil {
				log.Errorf("debug listener on %s: %s", flagDebugAddr, err)
			}
		}()
		log.Printf("debug endpoints listening on %s", flagDebugAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Print("shutdown signal received")
		runtimeEnv.SystemdNotify(false, "shutting down")
		cancel()
	}()

	if os.Getenv("GOGC") == "" {
		debug.SetGCPercent(25)
	}
	runtimeEnv.SystemdNotify(true, "running")

	if err := srv.Serve(ctx); err != nil {
		log.Fatalf("server stopped: %s", err)
	}
	log.Print("graceful shutdown completed")
}
