// scribe-tool is a small CLI client for the scribed tool service. It
// lists the catalog and invokes tools over NATS request/reply.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/scribelabs/scribe-core/internal/protocol"
)

var version = "0.1.0-dev"

func main() {
	var (
		serverURL string
		timeout   time.Duration
	)
	flag.StringVar(&serverURL, "server", nats.DefaultURL, "NATS server URL")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "Invocation timeout")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: scribe-tool [flags] list | invoke <tool> [json-args] | version")
		os.Exit(2)
	}

	switch args[0] {
	case "version":
		fmt.Println(version)
	case "list":
		if err := runList(serverURL, timeout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "invoke":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: scribe-tool invoke <tool> [json-args]")
			os.Exit(2)
		}
		rawArgs := "{}"
		if len(args) > 2 {
			rawArgs = args[2]
		}
		if err := runInvoke(serverURL, timeout, args[1], rawArgs); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		os.Exit(2)
	}
}

func connect(serverURL string) (*nats.Conn, error) {
	conn, err := nats.Connect(serverURL, nats.Name("scribe-tool"))
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", serverURL, err)
	}
	return conn, nil
}

// runList prints what the daemon can decode on this host.
func runList(serverURL string, timeout time.Duration) error {
	conn, err := connect(serverURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	result, err := invoke(conn, timeout, protocol.ToolRequest{Name: "list_supported_formats"})
	if err != nil {
		return err
	}
	return printResult(result)
}

func runInvoke(serverURL string, timeout time.Duration, tool, rawArgs string) error {
	var arguments map[string]any
	if err := json.Unmarshal([]byte(rawArgs), &arguments); err != nil {
		return fmt.Errorf("arguments must be a JSON object: %w", err)
	}

	conn, err := connect(serverURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	result, err := invoke(conn, timeout, protocol.ToolRequest{Name: tool, Arguments: arguments})
	if err != nil {
		return err
	}
	if err := printResult(result); err != nil {
		return err
	}
	if result.IsError {
		os.Exit(1)
	}
	return nil
}

func invoke(conn *nats.Conn, timeout time.Duration, req protocol.ToolRequest) (protocol.ToolResult, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return protocol.ToolResult{}, err
	}
	msg, err := conn.Request(protocol.SubjectToolInvoke, data, timeout)
	if err != nil {
		return protocol.ToolResult{}, fmt.Errorf("invoke %s: %w", req.Name, err)
	}
	var result protocol.ToolResult
	if err := json.Unmarshal(msg.Data, &result); err != nil {
		return protocol.ToolResult{}, fmt.Errorf("decode reply: %w", err)
	}
	return result, nil
}

func printResult(result protocol.ToolResult) error {
	for _, content := range result.Content {
		fmt.Println(content.Text)
	}
	return nil
}
