package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caldev/caldav-mcp/pkg/caldav"
	"github.com/caldev/caldav-mcp/pkg/caldavmcp"
	"github.com/caldev/caldav-mcp/pkg/config"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Custom flag usage to support subcommands
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s [flags] [subcommand]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nSubcommands:\n")
		fmt.Fprintf(os.Stderr, "  list\tList calendars across all configured accounts\n")
		fmt.Fprintf(os.Stderr, "\nFlags:\n")
		flag.PrintDefaults()
	}

	var configPath string
	var verbose bool
	flag.StringVar(&configPath, "config", "", "path to config file (default: ~/.config/caldav-mcp/config.json)")
	flag.BoolVar(&verbose, "v", false, "enable verbose logging of input/output")
	flag.Parse()

	setupLogger(verbose)

	if len(flag.Args()) > 0 {
		switch flag.Arg(0) {
		case "list":
			runList(configPath)
			return
		default:
			fmt.Fprintf(os.Stderr, "Unknown subcommand: %s\n", flag.Arg(0))
			flag.Usage()
			os.Exit(1)
		}
	}

	runServer(configPath, verbose)
}

func setup(configPath string) (*caldav.Gateway, *config.Config) {
	cfg, err := config.Load(configPath)
	if err != nil {
		// Accounts may come entirely from the environment.
		log.Warn().Err(err).Msg("no config file loaded")
		cfg = &config.Config{}
	}

	accounts := cfg.Accounts
	envAccounts, err := config.AccountsFromEnv()
	if err != nil {
		// A bad registry value must not prevent startup; the gateway
		// just comes up with whatever accounts did parse.
		log.Error().Err(err).Msgf("ignoring unparseable %s", config.AccountsEnvVar)
	}
	accounts = append(accounts, envAccounts...)

	return caldav.NewGateway(accounts), cfg
}

func runList(configPath string) {
	gateway, _ := setup(configPath)

	calendars := gateway.ListAllCalendars(context.Background())

	fmt.Println("All Available Calendars:")
	for _, cal := range calendars {
		fmt.Printf("- %s (%s) [Account: %s]\n", cal.Name, cal.URL, cal.AccountIdentifier)
	}
}

func runServer(configPath string, verbose bool) {
	gateway, cfg := setup(configPath)

	s := server.NewMCPServer(
		"CalDAV MCP",
		"1.0.0",
		server.WithLogging(),
	)

	if cfg.MCP.Tools == nil {
		caldavmcp.AddTools(s, gateway)
	} else {
		for name, registerFunc := range caldavmcp.Registry() {
			if enabled, ok := cfg.MCP.Tools[name]; ok && enabled {
				log.Info().Msgf("Registering tool %s", name)
				registerFunc(s, gateway)
			} else if !ok {
				log.Warn().Msgf("Tool %s not found in config, skipping", name)
			}
		}
	}

	var in io.Reader = os.Stdin
	var out io.Writer = os.Stdout
	if verbose {
		in = &loggingReader{os.Stdin}
		out = &loggingWriter{os.Stdout}
	}
	if err := serveStdio(s, in, out); err != nil {
		log.Fatal().Err(err).Msg("Server error")
	}
}

type loggingReader struct {
	r io.Reader
}

func (lr *loggingReader) Read(p []byte) (n int, err error) {
	n, err = lr.r.Read(p)
	if n > 0 {
		log.Debug().Msgf("IN: %q", p[:n])
	}
	return n, err
}

type loggingWriter struct {
	w io.Writer
}

func (lw *loggingWriter) Write(p []byte) (n int, err error) {
	if len(p) < 50 {
		log.Debug().Msgf("OUT: %q", p)
	} else {
		log.Debug().Msgf("OUT: %q...", p[:50])
	}
	return lw.w.Write(p)
}

func serveStdio(srv *server.MCPServer, in io.Reader, out io.Writer) error {
	s := server.NewStdioServer(srv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		<-sigChan
		cancel()
	}()

	return s.Listen(ctx, in, out)
}

// Logs go to stderr only. Stdout carries the MCP stdio transport.
func setupLogger(verbose bool) {
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Stamp,
	})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}
