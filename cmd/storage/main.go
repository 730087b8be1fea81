// Command storage runs the account-ledger storage process: the
// single-threaded epoll reactor (internal/storageserver) backed by the
// per-customer file store (internal/ledger).
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rishav/rinha-ledger/internal/config"
	"github.com/rishav/rinha-ledger/internal/ledger"
	"github.com/rishav/rinha-ledger/internal/logging"
	"github.com/rishav/rinha-ledger/internal/storageserver"
)

const dataDir = "data"

func main() {
	cfg, err := config.ParseStorage(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logging.New("storage", cfg.LogLevel)

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("creating data directory")
	}

	store := ledger.Open(dataDir)
	if cfg.Reset || dirIsEmpty(dataDir) {
		if err := store.Seed(); err != nil {
			log.Fatal().Err(err).Msg("seeding customer files")
		}
		log.Info().Msg("seeded customer files")
	}

	srv, err := storageserver.New(log, cfg.ListenPort, store)
	if err != nil {
		log.Fatal().Err(err).Msg("starting storage server")
	}

	// No graceful drain (SPEC_FULL.md §9 / §5): on signal, close the
	// listener and cached files immediately and abandon in-flight
	// connections rather than waiting out a shutdown timeout.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Stringer("signal", sig).Msg("shutting down")
		srv.Close()
		_ = store.Close()
		os.Exit(0)
	}()

	log.Info().Int("port", cfg.ListenPort).Msg("storage listening")
	if err := srv.Run(); err != nil {
		log.Fatal().Err(err).Msg("reactor loop exited")
	}
}

func dirIsEmpty(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return true
	}
	return len(entries) == 0
}
