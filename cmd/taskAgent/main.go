package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/reinhart/taskAgent/internal/asana"
	"github.com/reinhart/taskAgent/internal/assistant"
	"github.com/reinhart/taskAgent/internal/configuration"
	"github.com/reinhart/taskAgent/internal/documents"
	"github.com/reinhart/taskAgent/internal/drive"
	"github.com/reinhart/taskAgent/internal/logger"
	"github.com/reinhart/taskAgent/internal/server"
	"github.com/reinhart/taskAgent/internal/ui"
	"github.com/reinhart/taskAgent/internal/webhook"
)

func buildSystemPrompt(cfg *configuration.Config, registry *assistant.ToolRegistry) string {
	if cfg.Agent.SystemPrompt != "" {
		return cfg.Agent.SystemPrompt
	}

	names := make([]string, 0, registry.Len())
	for _, d := range registry.Definitions() {
		names = append(names, d.Name)
	}

	return fmt.Sprintf(`You are a personal assistant who helps manage tasks in Asana, answers questions from the user's documents and relays messages through the team's automations.
The current date is: %s

AVAILABLE TOOLS: %s

GUIDELINES:
1. Use get_projects to find a project's gid before working with its tasks, unless the user gives one.
2. Use get_tasks to find a task's gid before updating or deleting it.
3. Confirm with the user before deleting anything.
4. When a tool returns an error, explain what went wrong instead of retrying the same call.
5. Keep answers short and say what you did.
`, time.Now().Format("2006-01-02"), strings.Join(names, ", "))
}

// buildRegistry registers the tools whose back-ends are configured. The
// returned cleanup closes the document index.
func buildRegistry(ctx context.Context, cfg *configuration.Config) (*assistant.ToolRegistry, func(), error) {
	registry := assistant.NewToolRegistry()
	cleanup := func() {}

	if cfg.Asana.AccessToken != "" {
		client, err := asana.NewClient(asana.Config{
			BaseURL:     cfg.Asana.BaseURL,
			AccessToken: cfg.Asana.AccessToken,
			WorkspaceID: cfg.Asana.WorkspaceID,
			ProjectID:   cfg.Asana.ProjectID,
		})
		if err != nil {
			return nil, cleanup, err
		}
		registry.MustRegister(assistant.TaskTools(client)...)
	} else {
		logger.Info("ASANA_ACCESS_TOKEN not set, task tools disabled")
	}

	if cfg.N8N.HasN8N() {
		client := webhook.NewClient(cfg.N8N.BearerToken, cfg.N8N.Timeout())
		registry.MustRegister(assistant.WebhookTools(client, assistant.WebhookURLs{
			SummarizeSlack:   cfg.N8N.SummarizeSlackURL,
			SendSlackMessage: cfg.N8N.SendSlackMessageURL,
			UploadGoogleDoc:  cfg.N8N.UploadGoogleDocURL,
		})...)
	}

	index, err := documents.Open(cfg.Documents.DSN)
	if err != nil {
		return nil, cleanup, err
	}
	cleanup = func() { _ = index.Close() }
	if cfg.Documents.Directory != "" {
		n, err := index.LoadDir(ctx, cfg.Documents.Directory)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		logger.Info("Indexed %d document(s) from %s", n, cfg.Documents.Directory)
	}
	registry.MustRegister(assistant.DocumentTools(index, cfg.Documents.Results)...)

	if cfg.Drive.Enabled() {
		client, err := drive.NewClient(ctx, cfg.Drive.CredentialsFile, cfg.Drive.APIKey)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		registry.MustRegister(assistant.DriveTools(client)...)
	}

	return registry, cleanup, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	prompt := flag.String("p", "", "answer a single prompt and exit")
	serve := flag.Bool("serve", false, "serve the HTTP API instead of the TUI")
	addr := flag.String("addr", "", "HTTP API listen address (overrides [server] addr)")
	flag.Parse()

	// Only the TUI gets the config banner; the other modes keep stdout clean.
	var banner io.Writer = os.Stdout
	if *prompt != "" || *serve {
		banner = nil
	}
	cfg, err := configuration.LoadConfig(banner)
	if err != nil {
		fail("loading config: %v", err)
	}

	// Initialize Logger
	logger.Init()
	if cfg.Agent.Debug {
		logger.DebugMode = true
	}
	if logger.DebugMode {
		f, err := tea.LogToFile("debug.log", "debug")
		if err != nil {
			fail("could not open debug.log: %v", err)
		}
		defer f.Close()
		logger.SetOutput(f)
		logger.Debug("Logger initialized")
	} else if *serve {
		logger.SetOutput(os.Stderr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	llm, err := assistant.ProviderFromConfig(ctx, cfg)
	if err != nil {
		fail("%v", err)
	}
	opts, err := assistant.OptionsFromConfig(cfg.Agent)
	if err != nil {
		fail("%v", err)
	}

	registry, cleanup, err := buildRegistry(ctx, cfg)
	if err != nil {
		fail("initializing tools: %v", err)
	}
	defer cleanup()

	systemPrompt := buildSystemPrompt(cfg, registry)

	switch {
	case *serve:
		listen := firstNonEmpty(*addr, cfg.Server.Addr, ":8080")
		handler := server.NewHandler(llm, registry, systemPrompt, opts, cfg.Server.RequestTimeout())
		if err := server.Serve(ctx, listen, server.NewRouter(handler)); err != nil {
			fail("serving HTTP API: %v", err)
		}

	case *prompt != "":
		agent := assistant.NewAgent(llm, registry, systemPrompt, opts)
		if opts.Streaming {
			agent.OnFragment = func(f assistant.Fragment) { fmt.Print(f.Content) }
		}
		resp, err := agent.ProcessMessage(ctx, *prompt)
		if err != nil {
			fail("%v", err)
		}
		if !opts.Streaming {
			fmt.Print(resp)
		}
		fmt.Println()

	default:
		agent := assistant.NewAgent(llm, registry, systemPrompt, opts)
		p := tea.NewProgram(ui.NewModel(agent), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			fail("running taskAgent: %v", err)
		}
	}
}
