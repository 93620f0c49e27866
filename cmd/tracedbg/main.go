package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/calebgr/tracedbg/internal/config"
	"github.com/calebgr/tracedbg/internal/engine"
	"github.com/calebgr/tracedbg/internal/interp"
	"github.com/calebgr/tracedbg/internal/protocol"
	"github.com/calebgr/tracedbg/internal/version"
	"github.com/calebgr/tracedbg/pkg/types"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file")
	host := flag.String("host", "", "Controller host to connect to")
	port := flag.Int("port", 0, "Controller port to connect to")
	passive := flag.Bool("passive", false, "Passive mode: debugger attached to an already running program")
	showVersion := flag.Bool("version", false, "Show version and exit")
	help := flag.Bool("help", false, "Show help and exit")

	flag.Parse()

	if *showVersion {
		fmt.Printf("tracedbg version %s\n", version.Version)
		os.Exit(0)
	}

	if *help {
		printHelp()
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override connection settings from command line
	if *host != "" {
		cfg.Host = *host
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *passive {
		cfg.Passive = true
	}

	conn, err := net.Dial("tcp", cfg.Address())
	if err != nil {
		log.Fatalf("Cannot connect to controller at %s: %v", cfg.Address(), err)
	}

	session := engine.NewSession(cfg)
	tr := protocol.NewLineTransport(conn, cfg.MaxLineLength)
	handler := protocol.NewHandler(session, tr)
	session.SetController(handler)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Println("Shutting down...")
		session.Shutdown()
		tr.Close()
		os.Exit(1)
	}()

	script := flag.Arg(0)
	if script == "" {
		// No script: serve commands only. Evaluate/execute still work
		// against a scratch interpreter.
		handler.Serve()
		tr.Close()
		return
	}

	// Halt on the script's first statement so the controller can place
	// breakpoints before anything runs.
	driver := interp.NewLuaDriver(session)
	session.Coordinator().Context(types.MainThread).Step()

	status := driver.RunScript(script)

	// Keep answering inspection commands until the controller shuts the
	// session down.
	handler.Serve()
	session.Shutdown()
	tr.Close()
	os.Exit(status)
}

func printHelp() {
	fmt.Println(`tracedbg: remote-controlled script debugger

Connects back to a debugger frontend over TCP and runs a Lua script under
tracing. The frontend controls execution through a line-oriented command
protocol: stepping, breakpoints, watch expressions, variable inspection
and expression evaluation.

USAGE:
    tracedbg [OPTIONS] [script.lua]

OPTIONS:
    -config <path>     Path to configuration file (JSON)
    -host <host>       Controller host to connect to (default: 127.0.0.1)
    -port <port>       Controller port to connect to (default: 42424)
    -passive           Passive mode: the debugger attached to an already
                       running program; quitting the debugger reports
                       exit status 42 instead of killing it
    -version           Show version and exit
    -help              Show this help message

CONFIGURATION:
    Create a JSON configuration file to customize behavior:

    {
        "host": "127.0.0.1",
        "port": 42424,
        "passive": false,
        "skipPrefixes": ["<"],
        "callTrace": false,
        "maxLineLength": 1048576
    }

Without a script argument, tracedbg connects and serves evaluate and
execute commands against a fresh interpreter state.`)
}
