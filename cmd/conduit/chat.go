package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive conversation with the tool engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := buildEngine(ctx, cfg)
			if err != nil {
				return err
			}
			defer e.shutdown(context.Background())
			if e.pool != nil {
				e.pool.Start(ctx)
			}

			fmt.Printf("conduit chat (%s) - /help for commands\n", cfg.ModelName)
			scanner := bufio.NewScanner(os.Stdin)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if strings.HasPrefix(line, "/") {
					if done := e.runChatCommand(line); done {
						return nil
					}
					continue
				}
				answer, err := e.agent.Query(ctx, line)
				if err != nil {
					fmt.Fprintln(os.Stderr, "error:", err)
					continue
				}
				fmt.Println(answer)
			}
		},
	}
}

// runChatCommand handles slash commands; true means quit.
func (e *engine) runChatCommand(line string) bool {
	switch line {
	case "/exit", "/quit":
		return true
	case "/clear":
		e.agent.ClearHistory()
		fmt.Println("history cleared")
	case "/stats":
		printStats(e)
	case "/tools":
		printToolListing(e)
	case "/help":
		fmt.Println("/tools  list registered tools\n/stats  engine counters\n/clear  drop conversation history\n/exit   quit")
	default:
		fmt.Printf("unknown command %s (try /help)\n", line)
	}
	return false
}

func printStats(e *engine) {
	snapshot := e.store.Stats().Snapshot()
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%-26s %v\n", k, snapshot[k])
	}
}

func printToolListing(e *engine) {
	for _, def := range e.registry.Definitions() {
		fmt.Printf("%-32s %s\n", def.Name, def.Description)
	}
	fmt.Printf("%d tools total\n", e.registry.Size())
}
