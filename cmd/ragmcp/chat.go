// Copyright 2025 The ragmcp authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ragmcp/ragmcp/pkg/chat"
	"github.com/ragmcp/ragmcp/pkg/config"
	"github.com/ragmcp/ragmcp/pkg/llms"
)

// ChatCmd starts an interactive chat session against the configured model
// and MCP tool host.
type ChatCmd struct {
	Model         string   `help:"Model name."`
	Temperature   float64  `help:"Temperature for generation."`
	MaxTokens     int      `name:"max-tokens" help:"Max tokens for generation."`
	MCPCommand    string   `name:"mcp-command" help:"Tool host command."`
	MCPArgs       []string `name:"mcp-args" help:"Tool host arguments."`
	TopK          int      `name:"top-k" help:"Tools retrieved per turn."`
	MaxToolRounds int      `name:"max-tool-rounds" help:"Tool-calling rounds per turn."`
	NoAutoTools   bool     `name:"no-auto-tools" help:"Disable automatic tool calling."`
	Retrieval     *bool    `negatable:"" help:"Retrieval-based tool selection (use --no-retrieval for the full catalog)."`
	SkipSync      bool     `name:"skip-sync" help:"Skip the initial tool sync to the knowledge base."`
}

func (c *ChatCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	if err := c.applyOverrides(cfg); err != nil {
		return err
	}

	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.manager.Initialize(ctx, !c.SkipSync); err != nil {
		return err
	}

	useRetrieval := cfg.Chat.UseRetrieval == nil || *cfg.Chat.UseRetrieval

	fmt.Printf("Chatting with %s. Type 'help' for commands, 'q' to quit.\n\n", cfg.LLM.Model)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch input {
		case "q", "exit":
			return nil
		case "help":
			printHelp()
			continue
		case "clear":
			rt.manager.ClearHistory()
			fmt.Println("Conversation history cleared.")
			continue
		case "history":
			printHistory(rt.manager.History())
			continue
		case "tools":
			if err := printIndexedTools(ctx, rt); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
			continue
		case "sync":
			if err := rt.manager.SyncTools(ctx); err != nil {
				fmt.Printf("Error: %v\n", err)
			} else {
				fmt.Println("Tool catalog synced.")
			}
			continue
		}

		result, err := rt.manager.ProcessMessage(ctx, input, useRetrieval)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Printf("Error: %v\n", err)
			continue
		}

		fmt.Printf("\n%s\n\n", result.Text)
		printStats(result)
	}

	return scanner.Err()
}

// applyOverrides layers CLI flags over the loaded config and re-validates.
func (c *ChatCmd) applyOverrides(cfg *config.Config) error {
	if c.Model != "" {
		cfg.LLM.Model = c.Model
	}
	if c.Temperature != 0 {
		cfg.LLM.Temperature = c.Temperature
	}
	if c.MaxTokens != 0 {
		cfg.LLM.MaxTokens = c.MaxTokens
	}
	if c.MCPCommand != "" {
		cfg.MCP.Command = c.MCPCommand
	}
	if len(c.MCPArgs) > 0 {
		cfg.MCP.Args = c.MCPArgs
	}
	if c.TopK != 0 {
		cfg.Chat.TopK = c.TopK
	}
	if c.MaxToolRounds != 0 {
		cfg.Chat.MaxToolRounds = c.MaxToolRounds
	}
	if c.NoAutoTools {
		v := false
		cfg.Chat.AutoToolCalling = &v
	}
	if c.Retrieval != nil {
		cfg.Chat.UseRetrieval = c.Retrieval
	}

	_, err := config.Process(cfg)
	return err
}

func printHelp() {
	fmt.Println(`Commands:
  q, exit   quit
  clear     clear conversation history
  history   show conversation history
  tools     list indexed tools
  sync      re-sync the tool catalog to the knowledge base
  help      show this help`)
}

func printHistory(messages []llms.Message) {
	if len(messages) == 0 {
		fmt.Println("No messages yet.")
		return
	}
	for _, msg := range messages {
		for _, block := range msg.Content {
			switch block.Type {
			case llms.BlockTypeText:
				fmt.Printf("[%s] %s\n", msg.Role, block.Text)
			case llms.BlockTypeToolUse:
				fmt.Printf("[%s] tool_use: %s\n", msg.Role, block.ToolUse.Name)
			case llms.BlockTypeToolResult:
				fmt.Printf("[%s] tool_result for %s (%s)\n", msg.Role, block.ToolResult.ToolUseID, block.ToolResult.Status)
			}
		}
	}
}

func printStats(result *chat.Result) {
	stats := fmt.Sprintf("tokens: %d in / %d out", result.Usage.InputTokens, result.Usage.OutputTokens)
	if result.ToolRounds > 0 {
		stats += fmt.Sprintf(", tool rounds: %d", result.ToolRounds)
	}
	if result.MaxRoundsReached {
		stats += " (round limit reached)"
	}
	fmt.Printf("  [%s]\n\n", stats)
}
