package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/grovetools/storybook/cli"
	"github.com/grovetools/storybook/internal/channel"
	"github.com/grovetools/storybook/internal/engine"
	"github.com/grovetools/storybook/internal/htmlview"
	"github.com/grovetools/storybook/internal/index"
	"github.com/grovetools/storybook/internal/pidfile"
	"github.com/grovetools/storybook/internal/preview"
	"github.com/grovetools/storybook/internal/project"
	"github.com/grovetools/storybook/internal/server"
	"github.com/grovetools/storybook/internal/watch"
	"github.com/grovetools/storybook/logging"
)

// ErrStopped is returned by `dev status` when no server runs, so the
// process exits non-zero without printing an error.
var ErrStopped = stderrors.New("dev server is not running")

type devOptions struct {
	addr    string
	noWatch bool
	story   string
	docs    bool
	args    string
	globals string
}

// query is the navigation context the preview starts from.
func (o devOptions) query() url.Values {
	q := url.Values{}
	if o.story != "" {
		q.Set("id", o.story)
	}
	if o.docs {
		q.Set("viewMode", preview.ViewModeDocs)
	}
	if o.args != "" {
		q.Set("args", o.args)
	}
	if o.globals != "" {
		q.Set("globals", o.globals)
	}
	return q
}

// NewDevCmd returns the dev server command with its status and stop
// subcommands.
func NewDevCmd() *cobra.Command {
	var opts devOptions

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Run the storybook dev server",
		Long: `Index the project's stories, start the preview and serve it over HTTP.
Story files are watched; edits invalidate the index and re-render the
current story in every connected browser.

Examples:
  storybook dev
  storybook dev --addr 127.0.0.1:9009 --story button--primary
  storybook dev --story button--primary --args label:Hello`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDev(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&opts.noWatch, "no-watch", false, "Do not watch story files")
	cmd.Flags().StringVar(&opts.story, "story", "", "Story id to select on start")
	cmd.Flags().BoolVar(&opts.docs, "docs", false, "Start in docs view mode")
	cmd.Flags().StringVar(&opts.args, "args", "", "Initial args, e.g. label:Hello;primary:!true")
	cmd.Flags().StringVar(&opts.globals, "globals", "", "Initial globals, e.g. theme:dark")

	cmd.AddCommand(newDevStatusCmd())
	cmd.AddCommand(newDevStopCmd())
	cli.AddHelpSections(cmd, devHelpSections()...)
	return cmd
}

// devHelpSections documents the endpoints and channel events a browser
// can use against the dev server.
func devHelpSections() []cli.HelpSection {
	return []cli.HelpSection{
		{Title: "ENDPOINTS", Rows: []cli.HelpRow{
			{Name: "/", Description: "Preview shell"},
			{Name: "/index.json", Description: "Story index (also /stories.json)"},
			{Name: "/channel", Description: "Websocket channel, {type, args} frames"},
			{Name: "/api/stream", Description: "Server-sent events of everything emitted"},
			{Name: "/api/frame", Description: "Last rendered preview frame"},
			{Name: "/api/config", Description: "Resolved configuration"},
			{Name: "/health", Description: "Liveness check"},
		}},
		{Title: "CHANNEL EVENTS", Rows: []cli.HelpRow{
			{Name: channel.SetCurrentStory, Description: "Select a story: {storyId, viewMode}"},
			{Name: channel.UpdateStoryArgs, Description: "Merge args: {storyId, updatedArgs}"},
			{Name: channel.ResetStoryArgs, Description: "Restore initial args: {storyId, argNames}"},
			{Name: channel.UpdateGlobals, Description: "Merge globals: {globals}"},
			{Name: channel.ForceReRender, Description: "Render the current story again"},
			{Name: channel.ForceRemount, Description: "Remount and replay play: {storyId}"},
			{Name: channel.PreviewKeydown, Description: "Forward a keystroke to the manager"},
		}},
	}
}

func runDev(cmd *cobra.Command, opts devOptions) error {
	logger := cli.GetLogger(cmd, "storybook")
	ws, err := loadWorkspace(cmd, logger)
	if err != nil {
		return err
	}
	cfg := ws.cfg
	addr := cfg.Server.Addr
	if opts.addr != "" {
		addr = opts.addr
	}

	pidPath := pidfile.PathFor(ws.root)
	if err := pidfile.Acquire(pidPath); err != nil {
		return err
	}
	defer func() {
		if err := pidfile.Release(pidPath); err != nil {
			logger.Errorf("Failed to release pidfile: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gen := ws.generator
	if err := gen.Initialize(ctx); err != nil {
		return err
	}

	loader := project.NewLoader(ws.root)
	bus := channel.NewBus()
	view := htmlview.New(bus)
	pv := preview.NewWebPreview(preview.Options{
		Channel:     bus,
		View:        view,
		Docs:        htmlview.NewDocsContainer(),
		Query:       opts.query(),
		PlayEnabled: cfg.PlayEnabled(),
		Logger:      cli.GetLogger(cmd, "preview"),
	})
	defer pv.Close()

	annotations := project.AnnotationsFunc(ws.annotationsPath)
	starter := &previewStarter{
		start: func() error {
			return pv.Initialize(ctx, annotations, loader.Import, gen.GetIndex)
		},
		logger: logger,
	}
	starter.tryStart()

	debouncer := watch.NewDebouncer(time.Duration(cfg.Watch.DebounceMs) * time.Millisecond)
	debouncer.Trailing = true
	defer debouncer.Stop()
	debouncer.Subscribe(func() {
		starter.tryStart()
		bus.Emit(channel.StoryIndexInvalidated)
	})

	gen.OnInvalidated(func(spec *index.Specifier, path string, removed bool) {
		importPath := gen.ImportPath(path)
		loader.Invalidate(importPath)
		pv.Store().InvalidateImport(importPath)
		debouncer.Trigger()
	})

	srv := server.New(cli.GetLogger(cmd, "server"))
	srv.SetIndexSource(gen)
	srv.SetBus(bus)
	srv.SetFrameSource(view)
	srv.SetRunningConfig(&server.RunningConfig{
		Addr:            addr,
		ConfigFile:      cli.GetOptions(cmd).ConfigFile,
		Stories:         specifierStrings(gen.Specifiers()),
		V2Compatibility: cfg.Features.V2Compatibility,
		PlayFunctions:   cfg.PlayEnabled(),
		DebounceMs:      cfg.Watch.DebounceMs,
		StartedAt:       time.Now(),
	})

	eng := engine.New(logger)
	if cfg.WatchEnabled() && !opts.noWatch {
		w, err := watch.New(gen)
		if err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		err = w.WatchFile(ws.annotationsPath, func(string) {
			logger.WithField("path", ws.annotationsPath).Info("Preview annotations changed")
			gen.InvalidateIndex()
			if starter.started.Load() {
				if err := pv.OnGetProjectAnnotationsChanged(ctx, annotations); err != nil {
					logger.WithError(err).Warn("Failed to reload preview annotations")
				}
			}
			debouncer.Trigger()
		})
		if err != nil {
			logger.WithError(err).Debug("Not watching preview annotations")
		}
		eng.Register(engine.Func("watcher", func(ctx context.Context) error {
			w.Start(ctx)
			return nil
		}))
	}
	eng.Register(engine.Func("server", func(ctx context.Context) error {
		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe(addr) }()
		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Errorf("Server shutdown error: %v", err)
			}
			return <-errCh
		}
	}))

	logger.WithFields(logrus.Fields{
		"pid":  os.Getpid(),
		"addr": addr,
		"root": ws.root,
	}).Debug("Starting storybook")

	console := logging.NewConsole(cmd.ErrOrStderr())
	console.Success("Storybook dev server started")
	console.Field("Local", "http://"+addr+"/")
	console.Path("Root", ws.root)
	if !starter.started.Load() {
		console.Warn("The preview failed to start and will retry when story files change")
	}
	console.Divider()
	return eng.Start(ctx)
}

// previewStarter initializes the preview once. A failed start, such as a
// story file that does not parse, is retried on the next invalidation.
type previewStarter struct {
	mu      sync.Mutex
	started atomic.Bool
	start   func() error
	logger  *logrus.Entry
}

func (s *previewStarter) tryStart() {
	if s.started.Load() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started.Load() {
		return
	}
	if err := s.start(); err != nil {
		s.logger.WithError(err).Warn("Preview failed to start, waiting for changes")
		return
	}
	s.started.Store(true)
}

func specifierStrings(specs []*index.Specifier) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.String()
	}
	return out
}

func newDevStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether a dev server runs for this project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := loadWorkspace(cmd, cli.GetLogger(cmd, "storybook"))
			if err != nil {
				return err
			}
			running, pid, err := pidfile.IsRunning(pidfile.PathFor(ws.root))
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			if !running {
				fmt.Fprintln(cmd.OutOrStdout(), "Stopped")
				return ErrStopped
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Running (PID: %d)\nAddress: %s\n", pid, ws.cfg.Server.Addr)
			return nil
		},
	}
}

func newDevStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the dev server of this project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := loadWorkspace(cmd, cli.GetLogger(cmd, "storybook"))
			if err != nil {
				return err
			}
			running, pid, err := pidfile.IsRunning(pidfile.PathFor(ws.root))
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			if !running {
				fmt.Fprintln(cmd.OutOrStdout(), "Dev server is not running")
				return nil
			}

			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("failed to find process %d: %w", pid, err)
			}
			if err := process.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("failed to send stop signal: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent SIGTERM to process %d\n", pid)
			return nil
		},
	}
}
