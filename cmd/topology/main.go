// Command topology is the voice-driven workflow mapping server.
//
// Subcommands:
//
//	serve    — run the HTTP server (sessions, extraction, workflow storage)
//	extract  — rebuild a workflow from a transcript file in one batch run
//	doc      — render a saved workflow JSON file as markdown
//	mcp      — expose the workflow tools over MCP on stdio
//	creds    — manage the encrypted API key vault
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/topology-ai/topology/internal/app"
	"github.com/topology-ai/topology/internal/config"
	"github.com/topology-ai/topology/internal/credentials"
	"github.com/topology-ai/topology/internal/extract"
	"github.com/topology-ai/topology/internal/mcpserver"
	"github.com/topology-ai/topology/internal/observe"
	"github.com/topology-ai/topology/internal/tools"
	"github.com/topology-ai/topology/internal/workflow"
	"github.com/topology-ai/topology/pkg/provider/llm"
	"github.com/topology-ai/topology/pkg/provider/llm/anyllm"
	rtopenai "github.com/topology-ai/topology/pkg/provider/realtime/openai"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 2
	}

	switch args[0] {
	case "serve":
		return runServe(args[1:])
	case "extract":
		return runExtract(args[1:])
	case "doc":
		return runDoc(args[1:])
	case "mcp":
		return runMCP(args[1:])
	case "creds":
		return runCreds(args[1:])
	case "-h", "--help", "help":
		usage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "topology: unknown command %q\n\n", args[0])
		usage()
		return 2
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: topology <command> [flags]

commands:
  serve    run the HTTP server
  extract  rebuild a workflow from a transcript file
  doc      render a saved workflow JSON file as markdown
  mcp      expose the workflow tools over MCP on stdio
  creds    manage the encrypted API key vault`)
}

// ── serve ────────────────────────────────────────────────────────────────

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "topology: %v\n", err)
		return 1
	}
	slog.SetDefault(newLogger(cfg.Server.LogLevel))

	slog.Info("topology starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	providers, err := buildProviders(cfg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── extract ──────────────────────────────────────────────────────────────

func runExtract(args []string) int {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	transcriptPath := fs.String("transcript", "-", "transcript file path, or - for stdin")
	format := fs.String("format", "markdown", "output format: markdown or json")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "topology: %v\n", err)
		return 1
	}
	slog.SetDefault(newLogger(cfg.Server.LogLevel))

	transcript, err := readInput(*transcriptPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "topology: read transcript: %v\n", err)
		return 1
	}

	provider, err := buildLLMProvider(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "topology: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	extractor := extract.New(provider, observe.DefaultMetrics(),
		extract.WithTemperature(cfg.Extract.Temperature))
	result, err := extractor.Extract(ctx, transcript)
	if err != nil {
		fmt.Fprintf(os.Stderr, "topology: extract: %v\n", err)
		return 1
	}
	if result.Capped {
		slog.Warn("extraction hit the round cap; result may be incomplete",
			"iterations", result.Iterations)
	}

	switch *format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result.Workflow); err != nil {
			fmt.Fprintf(os.Stderr, "topology: encode workflow: %v\n", err)
			return 1
		}
	default:
		fmt.Print(workflow.GenerateDocument(&result.Workflow))
	}
	return 0
}

// ── doc ──────────────────────────────────────────────────────────────────

func runDoc(args []string) int {
	fs := flag.NewFlagSet("doc", flag.ExitOnError)
	inPath := fs.String("in", "-", "workflow JSON file path, or - for stdin")
	fs.Parse(args)

	raw, err := readInput(*inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "topology: read workflow: %v\n", err)
		return 1
	}

	var wf workflow.Workflow
	if err := json.Unmarshal([]byte(raw), &wf); err != nil {
		fmt.Fprintf(os.Stderr, "topology: parse workflow: %v\n", err)
		return 1
	}

	fmt.Print(workflow.GenerateDocument(&wf))
	return 0
}

// ── mcp ──────────────────────────────────────────────────────────────────

func runMCP(args []string) int {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	fs.Parse(args)

	// Logs must not pollute stdout: the MCP transport owns it.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	store := workflow.NewStore()
	resolver := workflow.NewResolver(store)
	dispatcher := tools.NewDispatcher(store, resolver, nil, nil)

	srv, err := mcpserver.New(dispatcher)
	if err != nil {
		fmt.Fprintf(os.Stderr, "topology: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "topology: %v\n", err)
		return 1
	}
	return 0
}

// ── creds ────────────────────────────────────────────────────────────────

func runCreds(args []string) int {
	fs := flag.NewFlagSet("creds", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	fs.Parse(args)

	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: topology creds [flags] <set|clear>")
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "topology: %v\n", err)
		return 1
	}
	if cfg.Credentials.VaultPath == "" {
		fmt.Fprintln(os.Stderr, "topology: credentials.vault_path is not configured")
		return 1
	}

	passphrase := os.Getenv("TOPOLOGY_VAULT_PASSPHRASE")
	if passphrase == "" {
		fmt.Fprintln(os.Stderr, "topology: TOPOLOGY_VAULT_PASSPHRASE is not set")
		return 1
	}
	vault := credentials.NewVault(cfg.Credentials.VaultPath, passphrase)

	switch fs.Arg(0) {
	case "set":
		fmt.Fprint(os.Stderr, "API key: ")
		key, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			fmt.Fprintf(os.Stderr, "topology: read key: %v\n", err)
			return 1
		}
		key = strings.TrimSpace(key)
		if key == "" {
			fmt.Fprintln(os.Stderr, "topology: empty key")
			return 1
		}
		if err := vault.Save(key); err != nil {
			fmt.Fprintf(os.Stderr, "topology: %v\n", err)
			return 1
		}
		fmt.Fprintln(os.Stderr, "credential saved")
	case "clear":
		if err := vault.Clear(); err != nil {
			fmt.Fprintf(os.Stderr, "topology: %v\n", err)
			return 1
		}
		fmt.Fprintln(os.Stderr, "credential cleared")
	default:
		fmt.Fprintf(os.Stderr, "topology: unknown creds action %q\n", fs.Arg(0))
		return 2
	}
	return 0
}

// ── Provider wiring ──────────────────────────────────────────────────────

// buildProviders instantiates the LLM and realtime providers named in cfg.
// Missing credentials disable the corresponding provider with a warning
// instead of failing startup, so a storage-only server still runs.
func buildProviders(cfg *config.Config) (app.Providers, error) {
	var ps app.Providers

	llmProvider, err := buildLLMProvider(cfg)
	if err != nil {
		slog.Warn("LLM provider unavailable; batch extraction disabled", "err", err)
	} else {
		ps.LLM = llmProvider
		slog.Info("provider created", "kind", "llm", "name", cfg.LLM.Provider)
	}

	apiKey := resolveAPIKey(cfg)
	if apiKey == "" {
		slog.Warn("no API key found; realtime sessions disabled")
		return ps, nil
	}

	var rtOpts []rtopenai.Option
	if cfg.Realtime.Model != "" {
		rtOpts = append(rtOpts, rtopenai.WithModel(cfg.Realtime.Model))
	}
	if cfg.Realtime.BaseURL != "" {
		rtOpts = append(rtOpts, rtopenai.WithAPIBaseURL(cfg.Realtime.BaseURL))
	}
	if cfg.Realtime.WSBaseURL != "" {
		rtOpts = append(rtOpts, rtopenai.WithWSBaseURL(cfg.Realtime.WSBaseURL))
	}
	rt, err := rtopenai.New(apiKey, rtOpts...)
	if err != nil {
		return ps, fmt.Errorf("create realtime provider: %w", err)
	}
	ps.Realtime = rt
	slog.Info("provider created", "kind", "realtime", "model", cfg.Realtime.Model)

	return ps, nil
}

// buildLLMProvider constructs the completion provider for extraction.
func buildLLMProvider(cfg *config.Config) (llm.Provider, error) {
	name := cfg.LLM.Provider
	if name == "" {
		name = "openai"
	}

	var opts []anyllmlib.Option
	if key := resolveAPIKey(cfg); key != "" {
		opts = append(opts, anyllmlib.WithAPIKey(key))
	}
	if cfg.LLM.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(cfg.LLM.BaseURL))
	}

	p, err := anyllm.New(name, cfg.LLM.Model, opts...)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", name, err)
	}
	return p, nil
}

// resolveAPIKey finds the provider API key: explicit config first, then the
// encrypted vault, then the provider's usual environment variable.
func resolveAPIKey(cfg *config.Config) string {
	if cfg.LLM.APIKey != "" {
		return cfg.LLM.APIKey
	}

	if cfg.Credentials.VaultPath != "" {
		passphrase := os.Getenv("TOPOLOGY_VAULT_PASSPHRASE")
		if passphrase != "" {
			vault := credentials.NewVault(cfg.Credentials.VaultPath, passphrase)
			if vault.Has() {
				key, err := vault.Load()
				if err != nil {
					slog.Warn("credential vault could not be opened", "err", err)
				} else {
					return key
				}
			}
		}
	}

	return os.Getenv("OPENAI_API_KEY")
}

// ── Helpers ──────────────────────────────────────────────────────────────

// loadConfig reads the config file, falling back to defaults when the file
// does not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Info("config file not found, using defaults", "path", path)
			return config.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// readInput reads a file, or stdin when path is "-".
func readInput(path string) (string, error) {
	if path == "-" {
		raw, err := io.ReadAll(os.Stdin)
		return string(raw), err
	}
	raw, err := os.ReadFile(path)
	return string(raw), err
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
