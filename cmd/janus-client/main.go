// Command janus-client sends a single request to a Janus server and
// prints the response.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/jowharshamshiri/janus/internal/logging"
	"github.com/jowharshamshiri/janus/pkg/client"
)

func main() {
	socketPath := pflag.StringP("socket", "s", "/tmp/janus.sock", "Unix datagram socket path of the server")
	request := pflag.StringP("request", "r", "ping", "request name to send")
	argsJSON := pflag.StringP("args", "a", "{}", "request arguments as a JSON object")
	timeout := pflag.Duration("timeout", 30*time.Second, "request timeout")
	noValidate := pflag.Bool("no-validate", false, "disable Manifest-based argument validation")
	logLevel := pflag.String("log-level", "warn", "log level (debug, info, warn, error)")
	pflag.Parse()

	log := logging.New(logging.Config{Level: *logLevel})

	var args map[string]interface{}
	if strings.TrimSpace(*argsJSON) != "" {
		if err := json.Unmarshal([]byte(*argsJSON), &args); err != nil {
			fmt.Fprintf(os.Stderr, "invalid --args JSON: %v\n", err)
			os.Exit(1)
		}
	}

	c, err := client.New(client.Config{
		SocketPath:       *socketPath,
		EnableValidation: !*noValidate,
	}, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to construct client: %v\n", err)
		os.Exit(1)
	}

	resp, err := c.SendRequest(*request, args, *timeout)
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
