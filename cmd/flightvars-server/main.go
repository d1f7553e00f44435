// Command flightvars-server runs a standalone FlightVars broker: one
// fsuipc.Sampler registered as the master of the fsuipc/offset group,
// fronted by an fvserver.Server accepting connections on the wire
// protocol described by package wire.
package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flightvars/flightvars/config"
	"github.com/flightvars/flightvars/fsuipc"
	"github.com/flightvars/flightvars/fvserver"
	"github.com/flightvars/flightvars/hook"
	"github.com/flightvars/flightvars/network"
	"github.com/flightvars/flightvars/pkg/logger"
	"github.com/flightvars/flightvars/router"
)

func main() {
	addr := flag.String("listen", ":8642", "address to listen on")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := logger.NewSlogLogger(level, os.Stdout)

	hooks := hook.NewManager()
	rtr := router.New(hooks)

	offsets := []config.Offset{
		{Address: 0x1000, Length: 1},
		{Address: 0x1002, Length: 2},
		{Address: 0x1004, Length: 4},
	}
	adapter := fsuipc.NewDummyAdapter()
	sampler := fsuipc.NewSampler(adapter, nil, hooks, log, offsets)
	sampler.Start()
	defer sampler.Stop()

	if err := rtr.RegisterMaster(fsuipc.GroupName, sampler); err != nil {
		log.Error("flightvars-server: failed to register fsuipc master", "error", err)
		os.Exit(1)
	}

	srv, err := fvserver.NewServer(fvserver.Config{
		ListenConfig: network.DefaultListenerConfig(*addr),
		Router:       rtr,
		Hooks:        hooks,
		Logger:       log,
	})
	if err != nil {
		log.Error("flightvars-server: failed to construct server", "error", err)
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		log.Error("flightvars-server: failed to start listener", "error", err)
		os.Exit(1)
	}
	log.Info("flightvars-server: listening", "address", srv.Addr().String())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("flightvars-server: shutting down")
	if err := srv.Shutdown(10 * time.Second); err != nil {
		log.Error("flightvars-server: shutdown error", "error", err)
	}
}
