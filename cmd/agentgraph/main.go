// Command agentgraph draws the prebuilt agent graphs and runs a chat
// session against a configured model.
//
//	agentgraph graph -agent supervisor -format mermaid
//	agentgraph chat -config agent.yaml -transcript chat.html
//	agentgraph chat -docs README.md,https://example.com/guide
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
)

const usage = `usage: agentgraph <command> [flags]

commands:
  graph   print a prebuilt agent graph (mermaid, ascii or dot)
  chat    chat with a ReAct agent built from a config file

run "agentgraph <command> -h" for the flags of a command.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "agentgraph:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, usage)
		return flag.ErrHelp
	}
	switch args[0] {
	case "graph":
		return runGraph(args[1:], stdout)
	case "chat":
		return runChat(ctx, args[1:], stdin, stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	}
	return fmt.Errorf("unknown command %q", args[0])
}
