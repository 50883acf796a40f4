package server

import (
	"fmt"
	"time"

	"github.com/jowharshamshiri/janus/pkg/wire"
)

// builtinHandler returns the built-in implementation for one of the six
// reserved request names, or nil if name isn't one of them.
func (s *Server) builtinHandler(name string) RequestHandler {
	switch name {
	case "ping":
		return s.handlePing
	case "echo":
		return s.handleEcho
	case "get_info":
		return s.handleGetInfo
	case "manifest":
		return s.handleManifest
	case "validate":
		return s.handleValidate
	case "slow_process":
		return s.handleSlowProcess
	default:
		return nil
	}
}

func (s *Server) handlePing(args map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{
		"message":   "pong",
		"timestamp": wire.Now(),
	}, nil
}

func (s *Server) handleEcho(args map[string]interface{}) (interface{}, error) {
	message := "echo"
	if v, ok := args["message"]; ok {
		if str, ok := v.(string); ok {
			message = str
		}
	}
	return map[string]interface{}{
		"message":   message,
		"timestamp": wire.Now(),
	}, nil
}

func (s *Server) handleGetInfo(args map[string]interface{}) (interface{}, error) {
	stats := s.Stats()
	return map[string]interface{}{
		"server":         s.cfg.Name,
		"version":        s.cfg.Version,
		"timestamp":      wire.Now(),
		"activeHandlers": stats.ActiveHandlers,
		"activeClients":  stats.TotalClients,
	}, nil
}

func (s *Server) handleManifest(args map[string]interface{}) (interface{}, error) {
	if s.manifest == nil {
		return map[string]interface{}{
			"version":     "0.0.0",
			"name":        s.cfg.Name,
			"description": "",
			"models":      map[string]interface{}{},
		}, nil
	}
	return s.manifest, nil
}

func (s *Server) handleValidate(args map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{
		"valid":     true,
		"received":  args,
		"timestamp": wire.Now(),
	}, nil
}

func (s *Server) handleSlowProcess(args map[string]interface{}) (interface{}, error) {
	durationMs := 0.0
	if v, ok := args["duration"]; ok {
		switch n := v.(type) {
		case float64:
			durationMs = n
		case int:
			durationMs = float64(n)
		}
	}
	time.Sleep(time.Duration(durationMs) * time.Millisecond)
	return map[string]interface{}{
		"completed": true,
		"duration":  durationMs,
		"timestamp": wire.Now(),
		"message":   fmt.Sprintf("processed after %gms", durationMs),
	}, nil
}
