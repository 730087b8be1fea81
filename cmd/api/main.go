// Command api runs the HTTP-facing account-ledger process: the
// single-threaded epoll reactor and FSM (internal/apiserver) that
// terminates client HTTP connections and forwards each request to the
// storage process over a fresh TCP dial.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rishav/rinha-ledger/internal/apiserver"
	"github.com/rishav/rinha-ledger/internal/config"
	"github.com/rishav/rinha-ledger/internal/logging"
)

func main() {
	cfg, err := config.ParseAPI(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logging.New("api", cfg.LogLevel)

	now := func() string { return time.Now().UTC().Format(time.RFC3339Nano) }
	srv, err := apiserver.New(log, cfg.ListenPort, cfg.StoragePort, now)
	if err != nil {
		log.Fatal().Err(err).Msg("starting api server")
	}

	// No graceful drain, matching cmd/storage: a signal closes every fd
	// immediately rather than waiting out in-flight requests.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Stringer("signal", sig).Msg("shutting down")
		srv.Close()
		os.Exit(0)
	}()

	log.Info().Int("port", cfg.ListenPort).Int("storage_port", cfg.StoragePort).Msg("api listening")
	if err := srv.Run(); err != nil {
		log.Fatal().Err(err).Msg("reactor loop exited")
	}
}
