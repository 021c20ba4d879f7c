package main

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/alecthomas/kong"

	"github.com/hsaliak/goclaw-core/internal/config"
	"github.com/hsaliak/goclaw-core/internal/dispatcher"
	"github.com/hsaliak/goclaw-core/internal/errs"
	. "github.com/hsaliak/goclaw-core/internal/logging"
	"github.com/hsaliak/goclaw-core/internal/loop"
	"github.com/hsaliak/goclaw-core/internal/orchestrator"
	"github.com/hsaliak/goclaw-core/internal/store"
	"github.com/hsaliak/goclaw-core/internal/toolexec"
	"github.com/hsaliak/goclaw-core/internal/transport"
)

// version is set by goreleaser via ldflags: -X main.version=...
var version = "dev"

// CLI is the top-level kong command tree. Only a single runnable surface is
// in scope here: an interactive chat REPL. The teacher's gateway/daemon/
// channel commands belong to a product the core does not implement.
type CLI struct {
	Debug  bool   `help:"Enable debug logging" short:"d"`
	Config string `help:"Config file path" short:"c" type:"path"`

	Chat    ChatCmd    `cmd:"" default:"withargs" help:"Start an interactive chat session"`
	Version VersionCmd `cmd:"" help:"Show version"`
}

// Context carries flags common to every subcommand.
type Context struct {
	Debug  bool
	Config string
}

// ChatCmd runs the REPL against a session.
type ChatCmd struct {
	Session string `help:"Session id to resume or create" default:"default" short:"s"`
}

// VersionCmd prints the build version.
type VersionCmd struct{}

func (v *VersionCmd) Run(ctx *Context) error {
	fmt.Println("goclaw-core", version)
	return nil
}

func (c *ChatCmd) Run(ctx *Context) error {
	cfg, err := config.Load(ctx.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.Init(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	httpClient := &httpAdapter{client: &http.Client{Timeout: 120 * time.Second}}

	var tokens transport.TokenProvider
	if cfg.Provider.GcaMode {
		tokens = &disabledTokenProvider{}
		L_warn("chat: gca_mode requested but no TokenProvider is wired; cloud-IDE auth will fail", "provider", cfg.Provider.Name)
	}

	orchCfg := orchestrator.Config{
		Provider:               orchestrator.Provider(cfg.Provider.Name),
		Model:                  cfg.Provider.Model,
		GcaMode:                cfg.Provider.GcaMode,
		ProjectID:              cfg.Provider.ProjectID,
		BaseURL:                cfg.Provider.BaseURL,
		APIKey:                 cfg.Provider.APIKey,
		ThrottleSeconds:        cfg.Provider.ThrottleSeconds,
		StripReasoning:         cfg.Provider.StripReasoning,
		TruncationBudgetRecent: cfg.Tools.TruncationBudgetRecent,
		TruncationBudgetOlder:  cfg.Tools.TruncationBudgetOlder,
	}
	orch := orchestrator.NewBuilder(db, httpClient, httpClient, tokens).WithConfig(orchCfg).Build()

	executor := toolexec.New(db, cfg.Tools.WorkspaceRoot, cfg.Tools.ExecTimeoutSeconds)
	executor.BindSession(c.Session)
	disp := dispatcher.New(executor, cfg.Tools.DispatcherWorkers)

	ui := &replUI{in: bufio.NewReader(os.Stdin)}

	l := loop.New(db, orch, disp, httpClient, tokens, ui, loop.Config{
		Provider:        orchestrator.Provider(cfg.Provider.Name),
		Model:           cfg.Provider.Model,
		BaseURL:         cfg.Provider.BaseURL,
		APIKey:          cfg.Provider.APIKey,
		GcaMode:         cfg.Provider.GcaMode,
		ThrottleSeconds: cfg.Provider.ThrottleSeconds,
	})

	L_info("chat: session ready", "session", c.Session, "provider", cfg.Provider.Name, "model", cfg.Provider.Model)
	fmt.Println("goclaw-core chat. Type /quit to exit.")

	for {
		fmt.Print("> ")
		line, err := ui.in.ReadString('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}

		ui.cancelled.Store(false)
		if err := l.RunTurn(c.Session, line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %s: %s\n", errs.KindOf(err), err.Error())
		}
	}
}

// replUI is a minimal bufio-based terminal adapter implementing loop.UI. It
// is not a full line editor or renderer; the core's scope stops at the
// Interaction Loop boundary.
type replUI struct {
	in        *bufio.Reader
	cancelled atomic.Bool
}

func (r *replUI) RenderMessage(msg store.Message) {
	switch msg.Role {
	case "user":
		return // already echoed by the prompt the user typed
	case "assistant":
		fmt.Printf("\n%s\n", msg.Content)
	case "tool":
		fmt.Printf("\n[tool %s -> %s]\n%s\n", msg.ToolCallID, msg.Status, msg.Content)
	default:
		fmt.Printf("\n[%s] %s\n", msg.Role, msg.Content)
	}
}

func (r *replUI) CancelRequested() bool {
	return r.cancelled.Load()
}

// httpAdapter is the thin net/http implementation of transport.HttpPoster
// and transport.HttpGetter, classifying non-2xx responses via
// transport.ClassifyStatus per spec §6.1. The core declares the transport
// interfaces and leaves the concrete client to this runnable.
type httpAdapter struct {
	client *http.Client
}

func (a *httpAdapter) Post(url string, body []byte, headers map[string]string) (string, error) {
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return "", errs.Wrap(errs.Internal, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return a.do(req)
}

func (a *httpAdapter) Get(url string, headers map[string]string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", errs.Wrap(errs.Internal, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return a.do(req)
}

func (a *httpAdapter) do(req *http.Request) (string, error) {
	resp, err := a.client.Do(req)
	if err != nil {
		return "", errs.Wrap(errs.Unavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errs.Wrap(errs.Internal, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errs.Newf(transport.ClassifyStatus(resp.StatusCode), "provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return string(data), nil
}

// disabledTokenProvider reports cloud-IDE auth as unavailable; a real
// TokenProvider (OAuth refresh, metadata-server credentials) is an external
// collaborator per spec §6.2, not part of the core.
type disabledTokenProvider struct{}

func (d *disabledTokenProvider) GetValidToken() (string, error) {
	return "", errs.New(errs.Unauthenticated, "no TokenProvider configured for cloud-IDE auth")
}

func (d *disabledTokenProvider) GetProjectID() (string, error) {
	return "", errs.New(errs.FailedPrecondition, "no TokenProvider configured")
}

func (d *disabledTokenProvider) IsEnabled() bool {
	return false
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("goclaw"),
		kong.Description("Terminal agent orchestration core"),
		kong.UsageOnError(),
	)

	level := LevelInfo
	if cli.Debug {
		level = LevelDebug
	}
	Init(&Config{Level: level, ShowCaller: true})

	if err := ctx.Run(&Context{Debug: cli.Debug, Config: cli.Config}); err != nil {
		L_fatal("command failed", "error", err)
	}
}
