package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/mvpkit/internal/action"
	"github.com/dshills/mvpkit/internal/binder"
	"github.com/dshills/mvpkit/internal/config"
	"github.com/dshills/mvpkit/internal/dispatcher"
	"github.com/dshills/mvpkit/internal/event"
	"github.com/dshills/mvpkit/internal/event/schedule"
	"github.com/dshills/mvpkit/internal/logging"
	"github.com/dshills/mvpkit/internal/manifest"
	"github.com/dshills/mvpkit/internal/script"
	"github.com/dshills/mvpkit/internal/tui"
)

// Application owns every component and the UI goroutine.
type Application struct {
	mu sync.Mutex

	opts   Options
	config config.Config
	logger logging.Logger

	screen     tcell.Screen
	ui         *tui.Scheduler
	background *schedule.Loop

	aggregator *event.Aggregator
	dispatcher *dispatcher.Dispatcher
	binder     *binder.Binder
	scripts    *script.Engine

	document  *Document
	presenter *DocumentPresenter
	view      *DocumentView

	manifest *manifest.Manifest
	watcher  *manifest.Watcher

	started      atomic.Bool
	finished     atomic.Bool
	running      atomic.Bool
	quit         atomic.Bool
	ready        chan struct{}
	done         chan struct{}
	shutdownOnce sync.Once
}

// Options configures the application.
type Options struct {
	// ConfigPath is the path to a TOML or YAML configuration file.
	ConfigPath string

	// LogLevel overrides the configured log level when set.
	LogLevel string

	// LogOutput receives log records. Nil discards them, since the terminal
	// is owned by the screen.
	LogOutput io.Writer

	// Files are files to open on startup. Only the first is edited.
	Files []string

	// Screen is the terminal screen. Nil creates one for the controlling
	// terminal.
	Screen tcell.Screen
}

// InitError reports which component failed to start.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("failed to initialize %s: %v", e.Component, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// New creates an application. Nothing is drawn until Run.
func New(opts Options) (*Application, error) {
	app := &Application{
		opts:  opts,
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
	if err := app.bootstrap(); err != nil {
		app.closeComponents()
		return nil, err
	}
	return app, nil
}

// bootstrap initializes the components in dependency order.
func (app *Application) bootstrap() error {
	cfg, err := config.Load(app.opts.ConfigPath)
	if err != nil {
		return &InitError{Component: "config", Err: err}
	}
	if app.opts.LogLevel != "" {
		cfg.Log.Level = app.opts.LogLevel
	}
	app.config = cfg

	lc := cfg.Logging()
	lc.Output = app.opts.LogOutput
	if lc.Output == nil {
		lc.Output = io.Discard
	}
	app.logger = logging.New(lc)

	app.screen = app.opts.Screen
	if app.screen == nil {
		if app.screen, err = tcell.NewScreen(); err != nil {
			return &InitError{Component: "screen", Err: err}
		}
	}
	app.ui = tui.NewScheduler(app.screen)
	app.background = schedule.NewLoop(
		schedule.WithQueueSize(cfg.Scheduler.QueueSize),
		schedule.WithPanicHandler(func(v any, stack []byte) {
			app.logger.Error("background work panicked", "panic", v, "stack", string(stack))
		}),
	)

	app.aggregator = event.New(event.WithLogger(app.logger))

	dc := dispatcher.DefaultConfig().
		WithGuardWindow(cfg.Dispatcher.GuardWindow).
		WithLogger(app.logger)
	if cfg.Dispatcher.Metrics {
		dc = dc.WithMetrics()
	}
	app.dispatcher = dispatcher.New(dc)
	hook := dispatcher.NewLoggingHook(app.logger)
	app.dispatcher.RegisterPreHook(hook)
	app.dispatcher.RegisterPostHook(hook)

	if err := app.openDocument(); err != nil {
		return &InitError{Component: "document", Err: err}
	}
	app.presenter = NewDocumentPresenter(app.document, app.dispatcher, app.aggregator, app.ui, app.logger, app.requestQuit)
	if err := app.presenter.Attach(); err != nil {
		return &InitError{Component: "presenter", Err: err}
	}

	app.view = NewDocumentView(app.document.Name())
	if err := app.view.Subscribe(app.aggregator, app.ui); err != nil {
		return &InitError{Component: "view", Err: err}
	}
	if err := app.subscribeJournal(); err != nil {
		return &InitError{Component: "journal", Err: err}
	}

	if len(cfg.Scripts) > 0 {
		if err := app.loadScripts(cfg.Scripts); err != nil {
			return &InitError{Component: "scripts", Err: err}
		}
	}

	app.binder = binder.New(
		binder.WithLogger(app.logger),
		binder.WithAggregator(app.aggregator),
		binder.WithErrorHandler(func(id action.Identity, err error) {
			if errors.Is(err, dispatcher.ErrUnknownAction) {
				app.logger.Warn("trigger bound to unknown action", "action", id.String())
			}
		}),
	)
	if err := app.loadBindings(); err != nil {
		return &InitError{Component: "bindings", Err: err}
	}
	return nil
}

func (app *Application) openDocument() error {
	if len(app.opts.Files) == 0 {
		app.document = NewDocument("", nil)
		return nil
	}
	doc, err := OpenDocument(app.opts.Files[0])
	if err != nil {
		return err
	}
	app.document = doc
	return nil
}

// subscribeJournal logs document messages from the background loop.
func (app *Application) subscribeJournal() error {
	journal := logging.WithComponent(app.logger, "journal")
	on := event.OnScheduler(app.background)
	if _, err := event.Subscribe(app.aggregator, func(_ context.Context, m DocumentSaved) error {
		journal.Info("saved", "path", m.Path, "bytes", m.Bytes, "auto", m.Auto)
		return nil
	}, on); err != nil {
		return err
	}
	if _, err := event.Subscribe(app.aggregator, func(_ context.Context, r binder.Request) error {
		journal.Debug("requested", "action", r.Action.String(), "gesture", r.Gesture.String())
		return nil
	}, on); err != nil {
		return err
	}
	return nil
}

func (app *Application) loadScripts(paths []string) error {
	app.scripts = script.NewEngine(script.WithLogger(app.logger))
	for _, p := range paths {
		if err := app.scripts.LoadFile(p); err != nil {
			return err
		}
	}
	ids, err := app.scripts.Register(app.dispatcher)
	if err != nil {
		return err
	}
	app.logger.Info("scripts loaded", "files", len(paths), "actions", len(ids))
	return nil
}

// loadBindings applies the manifest when one is configured and the built-in
// toolbar bindings otherwise.
func (app *Application) loadBindings() error {
	path := app.config.Manifest.Path
	if path == "" {
		return app.binder.AddPairs(app.view.DefaultBindings()...)
	}
	if !filepath.IsAbs(path) && app.opts.ConfigPath != "" {
		path = filepath.Join(filepath.Dir(app.opts.ConfigPath), path)
	}
	m, err := manifest.Load(path)
	if err != nil {
		return err
	}
	unresolved, err := m.Apply(app.binder, app.view.Lookup)
	if err != nil {
		return err
	}
	if len(unresolved) > 0 {
		app.logger.Warn("unknown triggers in manifest", "triggers", unresolved)
	}
	app.manifest = m

	if app.config.Manifest.Watch {
		w, err := manifest.NewWatcher(path, app.onManifestChange, manifest.WithLogger(app.logger))
		if err != nil {
			return err
		}
		app.watcher = w
	}
	return nil
}

// onManifestChange runs on the watcher goroutine and hands the reload to
// the UI goroutine.
func (app *Application) onManifestChange(m *manifest.Manifest, err error) {
	if err != nil {
		app.logger.Warn("manifest reload failed", "error", err)
		return
	}
	if perr := app.ui.Post(func(context.Context) { app.reconcile(m) }); perr != nil {
		app.logger.Warn("manifest reload dropped", "error", perr)
	}
}

func (app *Application) reconcile(m *manifest.Manifest) {
	unresolved, err := m.Reconcile(app.binder, app.manifest, app.view.Lookup)
	if err != nil {
		app.logger.Warn("manifest reconcile failed", "error", err)
		return
	}
	if len(unresolved) > 0 {
		app.logger.Warn("unknown triggers in manifest", "triggers", unresolved)
	}
	app.manifest = m
	app.logger.Info("bindings reloaded", "actions", len(m.Bindings))
}

func (app *Application) requestQuit() {
	app.quit.Store(true)
}

// Run initializes the screen and runs the event loop until the user quits,
// ctx is done or Shutdown is called. A user quit returns ErrQuit.
// An Application runs once; later calls return ErrFinished.
func (app *Application) Run(ctx context.Context) error {
	if !app.started.CompareAndSwap(false, true) {
		if app.finished.Load() {
			return ErrFinished
		}
		return ErrAlreadyRunning
	}
	app.running.Store(true)
	defer func() {
		app.finished.Store(true)
		app.running.Store(false)
	}()

	if err := app.screen.Init(); err != nil {
		return &InitError{Component: "screen", Err: err}
	}
	defer app.screen.Fini()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := app.background.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			app.logger.Warn("background loop stopped", "error", err)
		}
	}()
	defer app.background.Stop()

	if err := app.binder.Bind(app.dispatcher); err != nil {
		return &InitError{Component: "binder", Err: err}
	}
	if app.watcher != nil {
		if err := app.watcher.Start(); err != nil {
			return &InitError{Component: "manifest watcher", Err: err}
		}
	}
	if iv := app.config.Events.SweepInterval.Duration; iv > 0 {
		app.aggregator.StartSweeper(ctx, iv)
	}
	go app.presenter.Autosave(ctx, app.config.Editor.AutosaveInterval.Duration)

	close(app.ready)
	return app.eventLoop(ctx)
}

// Ready is closed once Run has initialized the screen.
func (app *Application) Ready() <-chan struct{} {
	return app.ready
}

// eventLoop is the UI goroutine. Every event is handled with a context
// marked as running on the UI scheduler.
func (app *Application) eventLoop(ctx context.Context) error {
	uictx := schedule.MarkWithin(ctx, app.ui)
	events := app.startInputPolling()
	app.draw()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-app.done:
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			app.handleEvent(uictx, ev)
			if app.quit.Load() {
				return ErrQuit
			}
			app.draw()
		}
	}
}

// startInputPolling forwards screen events to a channel. PollEvent returns
// nil once the screen is finalized, which ends the goroutine.
func (app *Application) startInputPolling() <-chan tcell.Event {
	events := make(chan tcell.Event, 64)
	go func() {
		defer close(events)
		for {
			ev := app.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-app.done:
				return
			}
		}
	}()
	return events
}

func (app *Application) handleEvent(ctx context.Context, ev tcell.Event) {
	if app.ui.Handle(ctx, ev) {
		return
	}
	switch ev := ev.(type) {
	case *tcell.EventResize:
		app.screen.Sync()
	case *tcell.EventKey:
		app.handleKey(ctx, ev)
	}
}

func (app *Application) handleKey(ctx context.Context, ev *tcell.EventKey) {
	if app.view.HandleKey(ctx, ev) {
		return
	}
	var text string
	switch ev.Key() {
	case tcell.KeyRune:
		if ev.Modifiers()&(tcell.ModCtrl|tcell.ModAlt) != 0 {
			return
		}
		text = string(ev.Rune())
	case tcell.KeyEnter:
		text = "\n"
	case tcell.KeyTab:
		text = "\t"
	default:
		return
	}
	res, err := app.dispatcher.Dispatch(ctx, ActionEdit, text)
	if err != nil {
		app.logger.Warn("edit failed", "status", res.Status.String(), "error", err)
	}
}

func (app *Application) draw() {
	app.screen.Clear()
	w, h := app.screen.Size()
	app.view.SetText(app.document.Text())
	app.view.Draw(app.screen, w, h)
	app.screen.Show()
}

// Shutdown stops the event loop and releases every component. It is safe to
// call more than once and from any goroutine.
func (app *Application) Shutdown() {
	app.shutdownOnce.Do(func() {
		close(app.done)
		app.closeComponents()
	})
}

func (app *Application) closeComponents() {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.watcher != nil {
		if err := app.watcher.Close(); err != nil {
			app.logger.Warn("closing manifest watcher", "error", err)
		}
	}
	if app.binder != nil {
		app.binder.Close()
	}
	if app.view != nil {
		app.view.Detach()
	}
	if app.scripts != nil {
		app.scripts.Close()
	}
	if app.dispatcher != nil {
		app.logMetrics()
		app.dispatcher.Close()
	}
}

func (app *Application) logMetrics() {
	m := app.dispatcher.Metrics()
	if m == nil {
		return
	}
	t := m.Totals()
	app.logger.Info("dispatch totals", "executed", t.Executed, "failed", t.Failed, "duplicates", t.Duplicate)
	for _, am := range m.TopActions(5) {
		app.logger.Info("action stats",
			"action", am.Action.String(),
			"dispatched", am.Counts.Total(),
			"executed", am.Counts.Executed,
			"duplicates", am.Counts.Duplicate,
			"avg", am.AverageDuration(),
		)
	}
}

// Config returns the loaded configuration.
func (app *Application) Config() config.Config { return app.config }

// Dispatcher returns the action dispatcher.
func (app *Application) Dispatcher() *dispatcher.Dispatcher { return app.dispatcher }

// Aggregator returns the event aggregator.
func (app *Application) Aggregator() *event.Aggregator { return app.aggregator }

// Binder returns the trigger binder.
func (app *Application) Binder() *binder.Binder { return app.binder }

// Document returns the edited document.
func (app *Application) Document() *Document { return app.document }

// View returns the document view.
func (app *Application) View() *DocumentView { return app.view }

// IsRunning reports whether Run is active.
func (app *Application) IsRunning() bool { return app.running.Load() }
