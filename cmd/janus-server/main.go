// Command janus-server runs a standalone Janus server bound to a Unix
// datagram socket.
package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/jowharshamshiri/janus/internal/logging"
	"github.com/jowharshamshiri/janus/pkg/manifest"
	"github.com/jowharshamshiri/janus/pkg/server"
)

func main() {
	socketPath := pflag.StringP("socket", "s", "/tmp/janus.sock", "Unix datagram socket path to bind")
	name := pflag.String("name", "janus-server", "server name reported by get_info")
	version := pflag.String("version", "0.1.0", "server version reported by get_info")
	manifestPath := pflag.String("manifest", "", "optional Manifest file (JSON or YAML) to serve")
	maxHandlers := pflag.Int("max-concurrent-handlers", 100, "maximum concurrently executing handlers")
	defaultTimeout := pflag.Duration("default-timeout", 30*time.Second, "default per-request handler timeout")
	logLevel := pflag.String("log-level", "info", "log level (debug, info, warn, error)")
	logFile := pflag.String("log-file", "", "optional rotated log file path")
	pflag.Parse()

	log := logging.New(logging.Config{Level: *logLevel, FilePath: *logFile})

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
			log.Fatal().Err(err).Str("path", *manifestPath).Msg("failed to load manifest")
		}
		if err := srv.SetManifest(m); err != nil {
			log.Fatal().Err(err).Msg("manifest rejected")
		}
	}

	srv.On(server.EventError, func(payload interface{}) {
		log.Warn().Interface("error", payload).Msg("server error event")
	})

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
