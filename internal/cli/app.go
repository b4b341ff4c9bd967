package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/soyeahso/agentclick/internal/agent"
	"github.com/soyeahso/agentclick/internal/catalog"
	"github.com/soyeahso/agentclick/internal/config"
	"github.com/soyeahso/agentclick/internal/hooks"
	"github.com/soyeahso/agentclick/internal/hotkey"
	"github.com/soyeahso/agentclick/internal/input"
	"github.com/soyeahso/agentclick/internal/llm"
	"github.com/soyeahso/agentclick/internal/notify"
	"github.com/soyeahso/agentclick/internal/pipeline"
	"github.com/soyeahso/agentclick/internal/session"
	"github.com/soyeahso/agentclick/internal/store"
	"github.com/soyeahso/agentclick/internal/templates"
)

// projectDir is the directory whose .claude/ tree holds agent definitions.
func projectDir() string {
	if cfg.Project.Dir != "" {
		return cfg.Project.Dir
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func openCatalog() *catalog.Catalog {
	c := catalog.New(catalog.Options{
		Root:      filepath.Join(projectDir(), ".claude"),
		CacheSize: cfg.Catalog.CacheSize,
		Logger:    log,
	})
	c.ScanAll()
	return c
}

func openSession() *session.State {
	return session.New(config.NewWorkspaceStore(paths.Workspaces, log), projectDir(), log)
}

func openTemplates() *templates.Engine {
	e := templates.NewEngine(config.NewTemplateStore(paths.Templates, log), log)
	if err := e.Load(); err != nil {
		log.Warn().Err(err).Str("path", paths.Templates).Msg("templates not loaded")
	}
	return e
}

func openHistory() (*store.DB, *store.HistoryStore, error) {
	if err := paths.EnsureDirs(); err != nil {
		return nil, nil, err
	}
	db, err := store.Open(paths.HistoryDB(), log)
	if err != nil {
		return nil, nil, fmt.Errorf("opening history: %w", err)
	}
	return db, store.NewHistoryStore(db, cfg.History.MaxEntries), nil
}

// appOptions selects the surfaces a command needs.
type appOptions struct {
	Clipboard input.Clipboard
	Prompter  input.Prompter
	// Extra receives notifications in addition to the log and hook sinks.
	Extra notify.Sink
}

// app is the fully wired pipeline stack shared by run, tui and exec.
type app struct {
	hooks      *hooks.Manager
	catalog    *catalog.Catalog
	templates  *templates.Engine
	session    *session.State
	resolver   *input.Resolver
	runner     *agent.Runner
	notifier   notify.Sink
	db         *store.DB
	pipeline   *pipeline.Pipeline
	dispatcher *hotkey.Dispatcher
}

func newApp(opts appOptions) (*app, error) {
	if err := requireConfig(); err != nil {
		return nil, err
	}
	if issues := config.Validate(&cfg); len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return nil, fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}

	a := &app{
		hooks:     hooks.NewManager(log),
		catalog:   openCatalog(),
		templates: openTemplates(),
		session:   openSession(),
	}

	sinks := notify.Multi{notify.NewLogSink(log), notify.NewHookSink(a.hooks)}
	if opts.Extra != nil {
		sinks = append(sinks, opts.Extra)
	}
	a.notifier = notify.NewThrottle(sinks, cfg.Notifications.MinInterval)

	clip := opts.Clipboard
	if clip == nil {
		clip = input.SystemClipboard{}
	}
	prompter := opts.Prompter
	if prompter == nil {
		prompter = input.NoPrompter{}
	}
	a.resolver = input.NewResolver(input.Options{
		Clipboard:    clip,
		Prompter:     prompter,
		FetchTimeout: cfg.Input.FetchTimeout,
		MaxBytes:     cfg.Input.MaxFetchBytes,
		URLFallback:  cfg.Input.URLFallback,
		Logger:       log,
	})

	client, err := llm.NewRegistryFromConfig(cfg.Agent, log).Resolve(cfg.Agent.Provider)
	if err != nil {
		return nil, err
	}
	a.runner = agent.NewRunner(agent.RunnerConfigFrom(cfg), client, log)

	popts := pipeline.Options{
		Catalog:   a.catalog,
		Templates: a.templates,
		Input:     a.resolver,
		Runner:    a.runner,
		Session:   a.session,
		Notifier:  a.notifier,
		Hooks:     a.hooks,
		Debounce:  cfg.Pipeline.Debounce,
		Logger:    log,
	}
	if cfg.History.IsEnabled() {
		db, history, err := openHistory()
		if err != nil {
			log.Warn().Err(err).Msg("execution history disabled")
		} else {
			a.db = db
			popts.History = history
		}
	}
	a.pipeline = pipeline.New(popts)

	a.dispatcher = hotkey.New(hotkey.Options{
		Session:  a.session,
		Pipeline: a.pipeline,
		Catalog:  a.catalog,
		Notifier: a.notifier,
		Hooks:    a.hooks,
		Debounce: cfg.Pipeline.Debounce,
		Logger:   log,
	})

	a.bridgeChanges()
	return a, nil
}

// bridgeChanges re-emits session and catalog changes on the hook bus.
func (a *app) bridgeChanges() {
	a.session.OnChange(func(c session.Change) {
		event := hooks.EventWorkspaceChanged
		if c.Kind == session.ChangedAgent {
			event = hooks.EventAgentChanged
		}
		data := map[string]any{
			"kind":      string(c.Kind),
			"workspace": c.Workspace.ID,
		}
		if ref, ok := c.Workspace.CurrentAgentRef(); ok {
			data["agent"] = ref.ID
		}
		a.hooks.Emit(context.Background(), event, data)
	})
	a.catalog.OnChange(func(e catalog.ChangeEvent) {
		a.hooks.Emit(context.Background(), hooks.EventCatalogChanged, map[string]any{
			"kind":      string(e.Kind),
			"agentId":   e.AgentID,
			"agentType": string(e.AgentKind),
		})
	})
}

func (a *app) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
