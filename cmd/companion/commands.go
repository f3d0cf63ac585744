// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/companion/cmd/companion/cli"
	"github.com/bureau-foundation/companion/lib/config"
	"github.com/bureau-foundation/companion/lib/ipc"
	"github.com/bureau-foundation/companion/lib/version"
)

// SocketEnvironmentVariable overrides the default bridge socket path.
const SocketEnvironmentVariable = "COMPANION_SOCKET"

const (
	// callTimeout bounds the status-style operations.
	callTimeout = 10 * time.Second

	// fetchTimeout bounds a forwarded request, which waits on the
	// sidecar.
	fetchTimeout = 2 * time.Minute
)

// connection holds the flags every socket command shares.
type connection struct {
	socketPath string
	outputJSON bool
	verbose    bool
}

func (c *connection) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&c.socketPath, "socket", "s", "", "bridge socket path (default: $"+SocketEnvironmentVariable+", else the shell's default)")
	flagSet.BoolVar(&c.outputJSON, "json", false, "output as JSON")
	flagSet.BoolVarP(&c.verbose, "verbose", "v", false, "log request details to stderr")
}

func (c *connection) client() *ipc.Client {
	path := c.socketPath
	if path == "" {
		path = os.Getenv(SocketEnvironmentVariable)
	}
	if path == "" {
		path = config.DefaultSocketPath()
	}
	return ipc.NewClient(path)
}

// call runs one action with the command logger reporting the exchange.
func (c *connection) call(ctx context.Context, stderr io.Writer, timeout time.Duration, action string, fields map[string]any, result any) error {
	client := c.client()
	logger := cli.NewCommandLogger(stderr, c.verbose).With("action", action, "socket", client.SocketPath())

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now() //nolint:realclock request duration for diagnostics
	err := client.Call(ctx, action, fields, result)
	logger.Debug("bridge call finished", "duration", time.Since(started), "error", err) //nolint:realclock request duration for diagnostics
	return err
}

// root builds the command tree. Commands write results to stdout and
// diagnostics to stderr.
func root(ctx context.Context, stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:        "companion",
		Description: "Control a running companion shell over its bridge socket.",
		HelpOutput:  stderr,
		Subcommands: []*cli.Command{
			addressCommand(ctx, stdout, stderr),
			statusCommand(ctx, stdout, stderr),
			toggleCommand(ctx, stdout, stderr),
			infoCommand(ctx, stdout, stderr),
			fetchCommand(ctx, stdout, stderr),
			quitCommand(ctx, stdout, stderr),
			versionCommand(stdout),
		},
	}
}

func addressCommand(ctx context.Context, stdout, stderr io.Writer) *cli.Command {
	var conn connection
	return &cli.Command{
		Name:    "address",
		Summary: "Print the advertised sidecar URL",
		Description: "Print the URL other devices use to reach the sidecar, including the\n" +
			"session token. Exits 1 without output when the shell cannot determine\n" +
			"its local address.",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("address", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if err := noArguments("address", args); err != nil {
				return err
			}
			var response ipc.AddressResponse
			if err := conn.call(ctx, stderr, callTimeout, ipc.ActionServerAddress, nil, &response); err != nil {
				return err
			}
			if conn.outputJSON {
				return cli.WriteJSON(stdout, response)
			}
			if response.Address == "" {
				return &cli.ExitError{Code: 1}
			}
			fmt.Fprintln(stdout, response.Address)
			return nil
		},
	}
}

func statusCommand(ctx context.Context, stdout, stderr io.Writer) *cli.Command {
	var conn connection
	return &cli.Command{
		Name:        "status",
		Summary:     "Report whether the sidecar is live",
		Description: "Print \"live\" or \"stopped\". Exits 1 when the sidecar is stopped.",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("status", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if err := noArguments("status", args); err != nil {
				return err
			}
			var response ipc.StatusResponse
			if err := conn.call(ctx, stderr, callTimeout, ipc.ActionServerStatus, nil, &response); err != nil {
				return err
			}
			if conn.outputJSON {
				return cli.WriteJSON(stdout, response)
			}
			fmt.Fprintln(stdout, liveWord(response.Live))
			if !response.Live {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

func toggleCommand(ctx context.Context, stdout, stderr io.Writer) *cli.Command {
	var conn connection
	return &cli.Command{
		Name:    "toggle",
		Summary: "Start the sidecar if stopped, stop it if live",
		Description: "Request the opposite of the current state and print the new one. The\n" +
			"shell acts on the request at its next poll.",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("toggle", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if err := noArguments("toggle", args); err != nil {
				return err
			}
			var response ipc.StatusResponse
			if err := conn.call(ctx, stderr, callTimeout, ipc.ActionToggleServer, nil, &response); err != nil {
				return err
			}
			if conn.outputJSON {
				return cli.WriteJSON(stdout, response)
			}
			fmt.Fprintln(stdout, liveWord(response.Live))
			return nil
		},
	}
}

func infoCommand(ctx context.Context, stdout, stderr io.Writer) *cli.Command {
	var conn connection
	return &cli.Command{
		Name:    "info",
		Summary: "Show the sidecar's process details",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("info", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if err := noArguments("info", args); err != nil {
				return err
			}
			var info ipc.ServerInfo
			if err := conn.call(ctx, stderr, callTimeout, ipc.ActionServerInfo, nil, &info); err != nil {
				return err
			}
			if conn.outputJSON {
				return cli.WriteJSON(stdout, info)
			}

			writer := tabwriter.NewWriter(stdout, 2, 0, 2, ' ', 0)
			fmt.Fprintf(writer, "state:\t%s\n", liveWord(info.Live))
			if info.PID != 0 {
				fmt.Fprintf(writer, "pid:\t%d\n", info.PID)
				fmt.Fprintf(writer, "started:\t%s\n", info.StartedAt)
			}
			if info.Binary != "" {
				fmt.Fprintf(writer, "binary:\t%s\n", info.Binary)
			}
			if info.Digest != "" {
				fmt.Fprintf(writer, "digest:\t%s\n", info.Digest)
			}
			if info.Address != "" {
				fmt.Fprintf(writer, "address:\t%s\n", info.Address)
			}
			if info.Version != "" {
				fmt.Fprintf(writer, "shell:\t%s\n", info.Version)
			}
			return writer.Flush()
		},
	}
}

func fetchCommand(ctx context.Context, stdout, stderr io.Writer) *cli.Command {
	var (
		conn     connection
		method   string
		token    string
		body     string
		bodyFile string
	)
	return &cli.Command{
		Name:    "fetch",
		Summary: "Forward a request to the sidecar",
		Description: "Send a request to the sidecar through the shell and print its JSON\n" +
			"response. The path is relative to the sidecar's base URL. --body-file\n" +
			"accepts JSON with comments and trailing commas; use - for stdin.",
		Usage: "companion fetch <path> [flags]",
		Examples: []cli.Example{
			{Description: "Read the sidecar's settings", Command: "companion fetch api/settings --token $TOKEN"},
			{Description: "Update settings from a file", Command: "companion fetch api/settings --method PUT --body-file settings.jsonc --token $TOKEN"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("fetch", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			flagSet.StringVarP(&method, "method", "X", "GET", "HTTP method: GET, POST or PUT")
			flagSet.StringVar(&token, "token", "", "bearer token sent to the sidecar")
			flagSet.StringVar(&body, "body", "", "request body")
			flagSet.StringVar(&bodyFile, "body-file", "", "read the request body from a JSON or JSONC file")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("fetch takes exactly one path argument, got %d", len(args))
			}
			if body != "" && bodyFile != "" {
				return fmt.Errorf("--body and --body-file are mutually exclusive")
			}

			fields := map[string]any{
				"url":    args[0],
				"method": method,
				"token":  token,
			}
			switch {
			case body != "":
				fields["body"] = body
			case bodyFile != "":
				data, err := readBodyFile(bodyFile)
				if err != nil {
					return err
				}
				fields["body"] = data
			}

			var response ipc.FetchResponse
			if err := conn.call(ctx, stderr, fetchTimeout, ipc.ActionFetch, fields, &response); err != nil {
				return err
			}
			if conn.outputJSON {
				return cli.WriteJSON(stdout, response)
			}
			return cli.WriteRawJSON(stdout, []byte(response.Body))
		},
	}
}

// readBodyFile loads a JSONC request body and returns it as compact
// JSON.
func readBodyFile(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading request body: %w", err)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, jsonc.ToJSON(data)); err != nil {
		return "", fmt.Errorf("parsing request body %s: %w", path, err)
	}
	return compact.String(), nil
}

func quitCommand(ctx context.Context, stdout, stderr io.Writer) *cli.Command {
	var conn connection
	return &cli.Command{
		Name:        "quit",
		Summary:     "Shut down the shell and its sidecar",
		Description: "Ask the shell to exit. The sidecar is killed as part of the shutdown.",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("quit", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if err := noArguments("quit", args); err != nil {
				return err
			}
			return conn.call(ctx, stderr, callTimeout, ipc.ActionQuit, nil, nil)
		},
	}
}

func versionCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Run: func(args []string) error {
			fmt.Fprintf(stdout, "companion %s\n", version.Full())
			return nil
		},
	}
}

func noArguments(command string, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("%s takes no arguments, got %q", command, args)
	}
	return nil
}

func liveWord(live bool) string {
	if live {
		return "live"
	}
	return "stopped"
}
