// Command janus is a combined client+server CLI: `janus serve` runs a
// server, `janus call` sends one request and prints the reply.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/jowharshamshiri/janus/internal/logging"
	"github.com/jowharshamshiri/janus/pkg/client"
	"github.com/jowharshamshiri/janus/pkg/manifest"
	"github.com/jowharshamshiri/janus/pkg/server"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "call":
		runCall(os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: janus <serve|call> [flags]")
}

func runServe(args []string) {
	flags := pflag.NewFlagSet("serve", pflag.ExitOnError)
	socketPath := flags.StringP("socket", "s", "/tmp/janus.sock", "Unix datagram socket path to bind")
	name := flags.String("name", "janus-server", "server name reported by get_info")
	version := flags.String("version", "0.1.0", "server version reported by get_info")
	manifestPath := flags.String("manifest", "", "optional Manifest file (JSON or YAML) to serve")
	maxHandlers := flags.Int("max-concurrent-handlers", 100, "maximum concurrently executing handlers")
	defaultTimeout := flags.Duration("default-timeout", 30*time.Second, "default per-request handler timeout")
	logLevel := flags.String("log-level", "info", "log level")
	_ = flags.Parse(args)

	log := logging.New(logging.Config{Level: *logLevel})

	srv, err := server.New(server.Config{
		SocketPath:            *socketPath,
		Name:                  *name,
		Version:               *version,
		DefaultTimeout:        *defaultTimeout,
		MaxConcurrentHandlers: *maxHandlers,
		CleanupOnStart:        true,
		CleanupOnShutdown:     true,
		CleanupInterval:       time.Minute,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct server")
	}

	if *manifestPath != "" {
		m, err := manifest.ParseFile(*manifestPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load manifest")
		}
		if err := srv.SetManifest(m); err != nil {
			log.Fatal().Err(err).Msg("manifest rejected")
		}
	}

	if err := srv.Listen(); err != nil {
		log.Fatal().Err(err).Msg("failed to listen")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")
	if err := srv.Close(); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
}

func runCall(args []string) {
	flags := pflag.NewFlagSet("call", pflag.ExitOnError)
	socketPath := flags.StringP("socket", "s", "/tmp/janus.sock", "Unix datagram socket path of the server")
	request := flags.StringP("request", "r", "ping", "request name to send")
	argsJSON := flags.StringP("args", "a", "{}", "request arguments as a JSON object")
	timeout := flags.Duration("timeout", 30*time.Second, "request timeout")
	logLevel := flags.String("log-level", "warn", "log level")
	_ = flags.Parse(args)

	log := logging.New(logging.Config{Level: *logLevel})

	var requestArgs map[string]interface{}
	if strings.TrimSpace(*argsJSON) != "" {
		if err := json.Unmarshal([]byte(*argsJSON), &requestArgs); err != nil {
			fmt.Fprintf(os.Stderr, "invalid --args JSON: %v\n", err)
			os.Exit(1)
		}
	}

	c, err := client.New(client.Config{SocketPath: *socketPath, EnableValidation: true}, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to construct client: %v\n", err)
		os.Exit(1)
	}

	resp, err := c.SendRequest(*request, requestArgs, *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "request failed: %v\n", err)
		os.Exit(1)
	}
	encoded, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Println(string(encoded))
	if !resp.Success {
		os.Exit(1)
	}
}
