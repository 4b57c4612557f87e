// SaladBot is a WhatsApp menu assistant for the Picnic Maadanim deli.
//
// It answers Hebrew menu questions over the WhatsApp Cloud API webhook,
// backed by a SQLite menu catalog and an OpenAI-compatible chat model.
// Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	saladbot serve              Start the webhook server
//	saladbot ask <question>     Ask a single question (for testing)
//	saladbot seed <menu.yaml>   Import menu items into the catalog
//	saladbot version            Print version and build information
//	saladbot -o json version    Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bensky103/SalaDBot/internal/api"
	"github.com/bensky103/SalaDBot/internal/buildinfo"
	"github.com/bensky103/SalaDBot/internal/catalog"
	"github.com/bensky103/SalaDBot/internal/chat"
	"github.com/bensky103/SalaDBot/internal/config"
	"github.com/bensky103/SalaDBot/internal/llm"
	"github.com/bensky103/SalaDBot/internal/query"
	"github.com/bensky103/SalaDBot/internal/resolver"
	"github.com/bensky103/SalaDBot/internal/safety"
	"github.com/bensky103/SalaDBot/internal/session"
	"github.com/bensky103/SalaDBot/internal/whatsapp"
)

// main is intentionally minimal: it constructs the OS-level environment
// and delegates to [run] so the full lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run parses arguments by hand. The flag package relies on package-level
// globals, which makes it impossible to call run() concurrently from
// tests; the argument surface here is small enough that manual parsing
// is clearer than a CLI framework.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: saladbot ask <question>")
		}
		return runAsk(ctx, stdout, configPath, cmdArgs)
	case "seed":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: saladbot seed <menu.yaml>")
		}
		return runSeed(ctx, stdout, configPath, cmdArgs[0])
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "SaladBot - WhatsApp Menu Assistant")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: saladbot [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve             Start the webhook server")
	fmt.Fprintln(w, "  ask <question>    Ask a single question (for testing)")
	fmt.Fprintln(w, "  seed <menu.yaml>  Import menu items into the catalog")
	fmt.Fprintln(w, "  version           Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/saladbot/config.yaml, /etc/saladbot/config.yaml")
	return nil
}

func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func loadConfig(configPath string) (*config.Config, string, error) {
	path, err := config.FindConfig(configPath)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, path, nil
}

// buildService wires the conversational core shared by serve and ask.
func buildService(cfg *config.Config, logger *slog.Logger) (*chat.Service, *catalog.Store, llm.Client, *session.Store, error) {
	store, err := catalog.NewStore(cfg.Catalog.Path)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("open catalog: %w", err)
	}

	llmClient := llm.NewOpenAIClient(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Temperature)
	sessions := session.NewStore(logger, cfg.Session.MaxHistory)

	svc := chat.New(chat.Config{
		LLM:           llmClient,
		Model:         cfg.OpenAI.Model,
		Sessions:      sessions,
		Resolver:      resolver.New(sessions, cfg.Session.CategoryTTL, logger),
		Gate: query.New(store, query.Limits{
			Fetch:          cfg.Query.FetchLimit,
			FetchExcluding: cfg.Query.FetchLimitExcluding,
			MaxReturned:    cfg.Query.MaxReturned,
		}, logger),
		Filter:        safety.New(cfg.Safety.MaxInputLength, cfg.Safety.InjectionLengthLimit),
		OrderURL:      cfg.OrderURL,
		HistoryWindow: cfg.Session.HistoryWindow,
		CategoryTTL:   cfg.Session.CategoryTTL,
		Logger:        logger,
	})

	return svc, store, llmClient, sessions, nil
}

// runServe is the primary operating mode: load config, open the
// catalog, wire the conversational core, start the webhook server, and
// block until a shutdown signal arrives.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo)
	logger.Info("starting SaladBot", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger.Info("config loaded", "path", cfgPath)

	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = newLogger(stdout, level)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.ValidateWhatsApp(); err != nil {
		logger.Warn("whatsapp configuration incomplete, webhook will not authenticate", "error", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, store, llmClient, sessions, err := buildService(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if n, err := store.Count(ctx); err == nil {
		logger.Info("catalog opened", "path", cfg.Catalog.Path, "items", n)
	}

	sessions.StartReaper(ctx, 5*time.Minute, cfg.Session.IdleTimeout)

	sender := whatsapp.NewClient(cfg.WhatsApp.AccessToken, cfg.WhatsApp.PhoneNumberID, cfg.WhatsApp.APITimeout, logger)

	apiServer := api.New(api.Config{
		Chat:        svc,
		Sender:      sender,
		Sessions:    sessions,
		Catalog:     store,
		Model:       llmClient,
		VerifyToken: cfg.WhatsApp.VerifyToken,
		AppSecret:   cfg.WhatsApp.AppSecret,
		OrderURL:    cfg.OrderURL,
		Logger:      logger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Listen.Address, cfg.Listen.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("webhook server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("goodbye")
	return nil
}

// runAsk processes a single question without the webhook transport.
// Useful for smoke tests and debugging against a real catalog and model.
func runAsk(ctx context.Context, stdout io.Writer, configPath string, args []string) error {
	logger := newLogger(stdout, slog.LevelWarn)

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	svc, store, _, _, err := buildService(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	question := strings.Join(args, " ")
	reply, err := svc.Process(ctx, "cli-test", question)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Fprintln(stdout, reply)
	return nil
}

// seedItem is the YAML shape of one menu item in a seed file.
type seedItem struct {
	Name              string  `yaml:"name"`
	Category          string  `yaml:"category"`
	Description       string  `yaml:"description"`
	PricePer100g      float64 `yaml:"price_per_100g"`
	PricePerUnit      float64 `yaml:"price_per_unit"`
	PackageType       string  `yaml:"package_type"`
	IsVegan           bool    `yaml:"is_vegan"`
	IsGlutenFree      bool    `yaml:"is_gluten_free"`
	AllergensContains string  `yaml:"allergens_contains"`
	AllergensTraces   string  `yaml:"allergens_traces"`
	AvailabilityDays  string  `yaml:"availability_days"`
}

// runSeed imports menu items from a YAML file into the catalog.
func runSeed(ctx context.Context, stdout io.Writer, configPath string, filePath string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}

	var items []seedItem
	if err := yaml.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}
	if len(items) == 0 {
		return fmt.Errorf("no menu items in %s", filePath)
	}

	store, err := catalog.NewStore(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer store.Close()

	for _, si := range items {
		if si.Name == "" || si.Category == "" {
			return fmt.Errorf("menu item missing name or category: %+v", si)
		}
		if _, err := store.Insert(ctx, catalog.Item{
			Name:              si.Name,
			Category:          si.Category,
			Description:       si.Description,
			PricePer100g:      si.PricePer100g,
			PricePerUnit:      si.PricePerUnit,
			PackageType:       si.PackageType,
			IsVegan:           si.IsVegan,
			IsGlutenFree:      si.IsGlutenFree,
			AllergensContains: si.AllergensContains,
			AllergensTraces:   si.AllergensTraces,
			AvailabilityDays:  si.AvailabilityDays,
		}); err != nil {
			return fmt.Errorf("insert %s: %w", si.Name, err)
		}
	}

	total, err := store.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Imported %d menu items (%d total in catalog)\n", len(items), total)
	return nil
}
