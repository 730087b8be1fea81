// Package config parses the two processes' command lines: positional
// arguments for the required ports (unchanged from spec.md §6) plus
// additive pflag options for logging and storage reset, per
// SPEC_FULL.md's ambient CLI expansion.
package config

import (
	"fmt"
	"strconv"

	"github.com/spf13/pflag"
)

// Storage is the storage process's parsed configuration.
type Storage struct {
	ListenPort int
	Reset      bool
	LogLevel   string
}

// ParseStorage parses `storage <listen_port> [--reset] [--log-level=info]`.
func ParseStorage(args []string) (Storage, error) {
	fs := pflag.NewFlagSet("storage", pflag.ContinueOnError)
	reset := fs.Bool("reset", false, "recreate all customer files on startup")
	logLevel := fs.String("log-level", "info", "zerolog level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return Storage{}, err
	}

	positional := fs.Args()
	if len(positional) != 1 {
		return Storage{}, fmt.Errorf("config: usage: storage <listen_port> [--reset] [--log-level=info]")
	}
	port, err := parsePort(positional[0])
	if err != nil {
		return Storage{}, err
	}

	return Storage{ListenPort: port, Reset: *reset, LogLevel: *logLevel}, nil
}

// API is the API process's parsed configuration.
type API struct {
	ListenPort  int
	StoragePort int
	LogLevel    string
}

// ParseAPI parses `api <listen_port> <storage_port> [--log-level=info]`.
func ParseAPI(args []string) (API, error) {
	fs := pflag.NewFlagSet("api", pflag.ContinueOnError)
	logLevel := fs.String("log-level", "info", "zerolog level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return API{}, err
	}

	positional := fs.Args()
	if len(positional) != 2 {
		return API{}, fmt.Errorf("config: usage: api <listen_port> <storage_port> [--log-level=info]")
	}
	listenPort, err := parsePort(positional[0])
	if err != nil {
		return API{}, err
	}
	storagePort, err := parsePort(positional[1])
	if err != nil {
		return API{}, err
	}

	return API{ListenPort: listenPort, StoragePort: storagePort, LogLevel: *logLevel}, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("config: invalid port %q: %w", s, err)
	}
	if port <= 0 || port > 65535 {
		return 0, fmt.Errorf("config: port %d out of range", port)
	}
	return port, nil
}
