// Command flightvars-client-demo connects to a running flightvars-server,
// subscribes to one FSUIPC offset, prints every update it receives, and
// exits on interrupt after sending a clean end_session.
package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/flightvars/flightvars/fvclient"
	"github.com/flightvars/flightvars/pkg/logger"
	"github.com/flightvars/flightvars/varmodel"
)

func main() {
	addr := flag.String("address", "127.0.0.1:8642", "server address to dial")
	group := flag.String("group", "fsuipc/offset", "variable group")
	name := flag.String("name", "0x1000:1", "variable name within the group")
	flag.Parse()

	log := logger.NewSlogLogger(slog.LevelInfo, os.Stdout)

	mgr, err := fvclient.Connect(fvclient.Config{
		Address: *addr,
		Logger:  log,
	})
	if err != nil {
		log.Error("flightvars-client-demo: connect failed", "error", err)
		os.Exit(1)
	}
	defer mgr.Close()

	varID, err := varmodel.NewID(varmodel.Group(*group), *name)
	if err != nil {
		log.Error("flightvars-client-demo: invalid variable", "error", err)
		os.Exit(1)
	}

	_, err = mgr.Subscribe(varID, func(varID varmodel.ID, value varmodel.Value) {
		log.Info("flightvars-client-demo: update", "variable", varID.String(), "value", value)
	})
	if err != nil {
		log.Error("flightvars-client-demo: subscribe failed", "error", err)
		os.Exit(1)
	}
	log.Info("flightvars-client-demo: subscribed", "variable", varID.String())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
}
