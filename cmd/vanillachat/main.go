// Command vanillachat is the peer-to-peer terminal chat client. It either
// connects out to a peer, passively accepts one inbound connection, or
// obtains an already-accepted connection from vanillachatd.
package main

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/rufus173/vanillachat/internal/broker"
	"github.com/rufus173/vanillachat/internal/chat"
	"github.com/rufus173/vanillachat/internal/tty"
	"github.com/rufus173/vanillachat/internal/vcconfig"
	"github.com/rufus173/vanillachat/internal/vclog"
)

func main() {
	os.Exit(run())
}

func run() int {
	args := chat.GatherArgs(os.Args[1:])

	if args.HasLong("help") || args.HasShort("h") {
		printHelp()
		return 0
	}

	vclog.Init(args.HasLong("verbose") || args.HasShort("v"))

	cfg, err := vcconfig.Load(vcconfig.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "vanillachat: config: %v\n", err)
		return 1
	}

	if args.HasLong("status") {
		line, err := broker.QueryStatus(cfg.SocketPath + ".status")
		if err != nil {
			fmt.Fprintf(os.Stderr, "vanillachat: %v\n", err)
			return 1
		}
		fmt.Print(line)
		return 0
	}

	selfName := displayName(args, cfg)

	conn, peerName, pending, err := obtainConnection(args, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vanillachat: %v\n", err)
		return 1
	}

	wrapped := chat.NewPendingConn(conn, pending)

	if peerName == "" {
		peerName, err = chat.Handshake(wrapped, selfName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "vanillachat: handshake: %v\n", err)
			_ = wrapped.Close()
			return 1
		}
	}

	fmt.Println("Connected!")
	fmt.Printf("client has set their name to %s\n", peerName)

	ctrl, err := tty.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "vanillachat: terminal: %v\n", err)
		_ = wrapped.Close()
		return 1
	}
	defer ctrl.Close()

	session := chat.New(wrapped, ctrl, selfName, peerName)
	session.Run()
	return 0
}

// displayName picks the name sent at handshake: --name, then the config
// file's display_name, then the system hostname, then a fixed fallback.
func displayName(args chat.Args, cfg vcconfig.Config) string {
	if name, ok := args.LongValue("name"); ok {
		return name
	}
	if cfg.DisplayName != "" {
		return cfg.DisplayName
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "Unknown name"
	}
	return host
}

// obtainConnection resolves one of the client's three connection modes.
// peerName and pending are populated only by the daemon-obtained path,
// where the handshake already happened inside the daemon before pooling.
func obtainConnection(args chat.Args, cfg vcconfig.Config) (conn *net.TCPConn, peerName string, pending []byte, err error) {
	switch {
	case args.HasShort("s") || args.HasLong("server"):
		conn, err = listenAndAccept(args, cfg)
		return conn, "", nil, err
	case len(args.Other) == 0:
		tcpConn, name, _, pendingBytes, err := broker.RequestHandoff(cfg.SocketPath)
		if err != nil {
			return nil, "", nil, fmt.Errorf("obtain connection from daemon: %w", err)
		}
		return tcpConn, name, pendingBytes, nil
	default:
		conn, err = dialOutbound(args, cfg)
		return conn, "", nil, err
	}
}

// listenAndAccept implements `<prog> [options] {-s|--server} [port]`.
func listenAndAccept(args chat.Args, cfg vcconfig.Config) (*net.TCPConn, error) {
	port := cfg.ListenPort
	switch len(args.Other) {
	case 0:
	case 1:
		p, perr := strconv.Atoi(args.Other[0])
		if perr != nil {
			return nil, fmt.Errorf("invalid port %q", args.Other[0])
		}
		port = p
	default:
		return nil, fmt.Errorf("too many arguments")
	}

	ln, err := net.ListenTCP("tcp4", &net.TCPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	defer ln.Close()

	conn, err := ln.AcceptTCP()
	if err != nil {
		return nil, fmt.Errorf("accept: %w", err)
	}
	return conn, nil
}

// dialOutbound implements `<prog> [options] <address> [port]`.
func dialOutbound(args chat.Args, cfg vcconfig.Config) (*net.TCPConn, error) {
	if len(args.Other) > 2 {
		return nil, fmt.Errorf("too many arguments")
	}
	port := cfg.ListenPort
	if len(args.Other) == 2 {
		p, perr := strconv.Atoi(args.Other[1])
		if perr != nil {
			return nil, fmt.Errorf("invalid port %q", args.Other[1])
		}
		port = p
	}
	addr, err := chat.ResolveAddr(args.Other[0], port)
	if err != nil {
		return nil, fmt.Errorf("resolve address: %w", err)
	}
	conn, err := net.DialTCP("tcp4", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return conn, nil
}

func printHelp() {
	prog := os.Args[0]
	fmt.Println("help:")
	fmt.Printf("%s [options] <address> [port] OR\n", prog)
	fmt.Printf("%s [options] {-s|--server} [port]\n", prog)
}
