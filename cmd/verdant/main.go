// Copyright 2026 © The Verdant Authors
// SPDX-License-Identifier: Apache-2.0

// Command verdant runs the garden companion agent: an interactive REPL by
// default, or an MCP stdio server with -mcp.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/verdantlabs/verdant/pkg/agent"
	"github.com/verdantlabs/verdant/pkg/audit"
	"github.com/verdantlabs/verdant/pkg/config"
	"github.com/verdantlabs/verdant/pkg/llm"
	verdantmcp "github.com/verdantlabs/verdant/pkg/mcp"
	"github.com/verdantlabs/verdant/pkg/queue"
	"github.com/verdantlabs/verdant/pkg/skill"
	"github.com/verdantlabs/verdant/pkg/telemetry"
	"github.com/verdantlabs/verdant/pkg/world"
)

const version = "0.3.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		configPath  = flag.String("config", "", "path to a YAML config file")
		serveMCP    = flag.Bool("mcp", false, "expose skill tools as an MCP stdio server")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("verdant", version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(fmt.Errorf("load config: %w", err))
	}

	telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	shutdown, err := telemetry.InitWithConfig("verdant", version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		fatal(fmt.Errorf("init telemetry: %w", err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown", slog.String("error", err.Error()))
		}
	}()

	metrics, err := telemetry.NewTurnMetrics()
	if err != nil {
		fatal(fmt.Errorf("init metrics: %w", err))
	}

	garden := world.NewGarden(cfg.World.Size, cfg.World.Gold)
	registry := skill.NewRegistry(
		skill.NewGardenSkill(garden, garden),
		skill.NewHarvestSkill(garden, garden, garden, garden),
	)

	var store audit.Store = audit.NopStore{}
	if cfg.Audit.Enabled {
		sqlStore, err := audit.Open(cfg.Audit.Path)
		if err != nil {
			fatal(fmt.Errorf("open audit store: %w", err))
		}
		defer sqlStore.Close()
		store = sqlStore
	}

	backend, closeBackend, err := buildBackend(cfg.Backend)
	if err != nil {
		fatal(err)
	}
	defer closeBackend()

	ag, err := agent.New("verdant",
		agent.WithBackend(backend),
		agent.WithRegistry(registry),
		agent.WithWorld(garden, garden),
		agent.WithAudit(store),
		agent.WithMetrics(metrics),
	)
	if err != nil {
		fatal(fmt.Errorf("create agent: %w", err))
	}

	if *serveMCP {
		srv := verdantmcp.NewServer("verdant", version, registry, ag.Conversation())
		if err := srv.RegisterSkillTools(); err != nil {
			fatal(fmt.Errorf("register mcp tools: %w", err))
		}
		slog.Info("serving mcp on stdio")
		if err := srv.ServeStdio(); err != nil {
			fatal(err)
		}
		return
	}

	runREPL(ctx, cfg, ag, metrics)
}

func buildBackend(cfg config.BackendConfig) (llm.Adapter, func(), error) {
	switch cfg.Kind {
	case "", "hosted":
		adapter := llm.NewHosted(cfg.BaseURL,
			llm.WithModel(cfg.Model),
			llm.WithAPIKey(cfg.APIKey),
			llm.WithMaxTokens(cfg.MaxTokens),
		)
		return adapter, func() {}, nil
	case "bridge":
		if cfg.BridgeCommand == "" {
			return nil, nil, fmt.Errorf("backend.bridge_command is required for the bridge backend")
		}
		adapter, err := llm.NewBridge(cfg.BridgeCommand, cfg.BridgeArgs...)
		if err != nil {
			return nil, nil, fmt.Errorf("start bridge: %w", err)
		}
		return adapter, func() {
			if err := adapter.Close(); err != nil {
				slog.Warn("bridge close", slog.String("error", err.Error()))
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend kind %q", cfg.Kind)
	}
}

// runREPL reads lines from stdin and routes them through the interaction
// queue, one turn at a time. "/click <id>" simulates a UI interaction on a
// planted flower; "/quit" exits.
func runREPL(ctx context.Context, cfg *config.Config, ag *agent.Agent, metrics *telemetry.TurnMetrics) {
	q := queue.New(queue.Config{
		Debounce: time.Duration(cfg.Queue.DebounceMillis) * time.Millisecond,
		MaxDepth: cfg.Queue.MaxDepth,
		Timeout:  time.Duration(cfg.Queue.TimeoutMillis) * time.Millisecond,
	}, queue.WithMetrics(metrics))
	defer q.Close()

	fmt.Println(ag.Greeting())

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return
		}

		input, inputType := parseLine(line)
		pending, err := q.Enqueue(inputType, nil, func(turnCtx context.Context) (any, error) {
			return ag.Process(turnCtx, input)
		})
		if err != nil {
			fmt.Println("(dropped:", err, ")")
			continue
		}

		value, err := pending.Wait(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			fmt.Println("(failed:", err, ")")
			continue
		}
		out := value.(*agent.Output)
		fmt.Println(out.Text)
		for _, exec := range out.ToolExecutions {
			fmt.Printf("  [%s] ok=%v %s\n", exec.ToolName, exec.Result.Success, exec.Result.Message)
		}
	}
}

func parseLine(line string) (agent.Input, string) {
	if target, ok := strings.CutPrefix(line, "/click "); ok {
		target = strings.TrimSpace(target)
		return agent.Input{
			Type: agent.InputInteraction,
			Event: &agent.InteractionEvent{
				Type:        "click",
				TargetID:    target,
				Description: fmt.Sprintf("The player tapped %s.", target),
			},
		}, "click"
	}
	return agent.Input{Type: agent.InputText, Content: line}, "text"
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "verdant:", err)
	os.Exit(1)
}
