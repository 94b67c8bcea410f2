// Command vanillachatd is the connection-multiplexing daemon: it accepts
// inbound TCP peers opportunistically, pools them, and hands one off to a
// local chat client over a Unix-domain rendezvous socket via SCM_RIGHTS.
package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rufus173/vanillachat/internal/broker"
	"github.com/rufus173/vanillachat/internal/vcconfig"
	"github.com/rufus173/vanillachat/internal/vclog"
)

// statusSocketSuffix names the secondary command socket alongside the
// rendezvous socket, e.g. /tmp/vanillachatd.socket.status.
const statusSocketSuffix = ".status"

func main() {
	os.Exit(run())
}

func run() int {
	verbose := os.Getenv("VANILLACHATD_VERBOSE") != ""
	for _, a := range os.Args[1:] {
		if a == "-v" || a == "--verbose" {
			verbose = true
		}
	}
	vclog.Init(verbose)

	configPath := vcconfig.Path()
	cfg, err := vcconfig.Load(configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return 1
	}

	selfName, err := os.Hostname()
	if err != nil || selfName == "" {
		selfName = "Unknown name"
	}

	tcpListener, err := net.ListenTCP("tcp4", &net.TCPAddr{Port: cfg.ListenPort})
	if err != nil {
		slog.Error("failed to listen on TCP port", "port", cfg.ListenPort, "error", err)
		return 1
	}
	defer tcpListener.Close()

	rendezvousListener, err := listenUnix(cfg.SocketPath)
	if err != nil {
		slog.Error("failed to listen on rendezvous socket", "path", cfg.SocketPath, "error", err)
		return 1
	}
	defer rendezvousListener.Close()
	defer os.Remove(cfg.SocketPath)

	statusPath := cfg.SocketPath + statusSocketSuffix
	statusListener, err := listenUnix(statusPath)
	if err != nil {
		slog.Warn("failed to listen on status socket, --status will be unavailable", "path", statusPath, "error", err)
	} else {
		defer statusListener.Close()
		defer os.Remove(statusPath)
	}

	var notifier broker.Notifier
	if cfg.NotifyEnabled {
		notifier = broker.NewDBusNotifier()
	} else {
		notifier = broker.NewNoopNotifier()
	}
	defer notifier.Close()

	srv := broker.NewServer(tcpListener, rendezvousListener, notifier, selfName,
		time.Duration(cfg.SweepIntervalMS)*time.Millisecond)

	broker.WatchConfig(configPath, srv)

	if statusListener != nil {
		go serveStatusQueries(statusListener, srv)
	}

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		s := <-sig
		slog.Info("shutdown signal received", "signal", s)
		close(stop)
	}()

	slog.Info("vanillachatd started", "port", cfg.ListenPort, "socket", cfg.SocketPath)
	srv.Run(stop)
	return 0
}

// listenUnix unlinks any stale socket file at path before listening, so a
// daemon restart doesn't fail to bind a socket left behind by a previous run.
func listenUnix(path string) (*net.UnixListener, error) {
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	}
	return net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
}

func serveStatusQueries(ln *net.UnixListener, srv *broker.Server) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		if err := broker.ServeStatus(conn, srv); err != nil {
			slog.Debug("status query failed", "error", err)
		}
	}
}
