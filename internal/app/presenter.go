package app

import (
	"context"
	"errors"
	"time"

	"github.com/dshills/mvpkit/internal/action"
	"github.com/dshills/mvpkit/internal/dispatcher"
	"github.com/dshills/mvpkit/internal/event"
	"github.com/dshills/mvpkit/internal/event/schedule"
	"github.com/dshills/mvpkit/internal/logging"
)

var (
	docActions = action.NewFactory("Doc")
	appActions = action.NewFactory("App")

	// ActionSave writes the document. Executable while it has unsaved changes.
	ActionSave = docActions.Action("Save")
	// ActionEdit appends its string payload to the document.
	ActionEdit = docActions.Action("Edit")
	// ActionBackspace removes the last character.
	ActionBackspace = docActions.Action("Backspace")
	// ActionClose ends the session. Executable only when nothing is unsaved.
	ActionClose = docActions.Action("Close")
	// ActionQuit ends the session unconditionally.
	ActionQuit = appActions.Action("Quit")
)

// DocumentPresenter owns the document and its actions.
type DocumentPresenter struct {
	doc    *Document
	disp   *dispatcher.Dispatcher
	agg    *event.Aggregator
	ui     schedule.Scheduler
	logger logging.Logger
	quit   func()
}

// NewDocumentPresenter creates a presenter. ui is where executability
// changes found off the UI goroutine are raised; quit ends the session.
func NewDocumentPresenter(doc *Document, disp *dispatcher.Dispatcher, agg *event.Aggregator, ui schedule.Scheduler, logger logging.Logger, quit func()) *DocumentPresenter {
	if ui == nil {
		ui = schedule.Inline()
	}
	if quit == nil {
		quit = func() {}
	}
	return &DocumentPresenter{
		doc:    doc,
		disp:   disp,
		agg:    agg,
		ui:     ui,
		logger: logging.WithComponent(logger, "presenter"),
		quit:   quit,
	}
}

// Document returns the presented document.
func (p *DocumentPresenter) Document() *Document { return p.doc }

// Attach registers the presenter's actions and publishes their initial state.
func (p *DocumentPresenter) Attach() error {
	err := errors.Join(
		p.disp.Register(ActionSave, p.save, p.doc.Dirty),
		dispatcher.RegisterParameterized(p.disp, ActionEdit, p.edit, nil),
		p.disp.Register(ActionBackspace, p.backspace, func() bool { return p.doc.Len() > 0 }),
		p.disp.Register(ActionClose, p.close, func() bool { return !p.doc.Dirty() }),
		p.disp.Register(ActionQuit, p.close, nil),
	)
	if err != nil {
		return err
	}
	p.disp.RaiseCanExecuteChanged()
	return nil
}

func (p *DocumentPresenter) save(ctx context.Context) error {
	err := p.saveNow(ctx, false)
	p.disp.RaiseCanExecuteChanged()
	return err
}

func (p *DocumentPresenter) saveNow(ctx context.Context, auto bool) error {
	n, err := p.doc.Save()
	if err != nil {
		_ = event.Publish(ctx, p.agg, DocumentSaveFailed{Path: p.doc.Path(), Err: err})
		return err
	}
	p.logger.Info("document saved", "path", p.doc.Path(), "bytes", n, "auto", auto)
	return event.Publish(ctx, p.agg, DocumentSaved{Path: p.doc.Path(), Bytes: n, Auto: auto})
}

func (p *DocumentPresenter) edit(ctx context.Context, text string) error {
	p.doc.Append(text)
	p.disp.RaiseCanExecuteChanged()
	return event.Publish(ctx, p.agg, DocumentEdited{Length: p.doc.Len()})
}

func (p *DocumentPresenter) backspace(ctx context.Context) error {
	p.doc.Backspace()
	p.disp.RaiseCanExecuteChanged()
	return event.Publish(ctx, p.agg, DocumentEdited{Length: p.doc.Len()})
}

func (p *DocumentPresenter) close(context.Context) error {
	p.quit()
	return nil
}

// Refresh re-evaluates every predicate.
func (p *DocumentPresenter) Refresh() {
	p.disp.RaiseCanExecuteChanged()
}

// Autosave saves a dirty document every interval until ctx is done. It runs
// on its own goroutine and hands executability updates to the UI scheduler.
func (p *DocumentPresenter) Autosave(ctx context.Context, interval time.Duration) {
	if interval <= 0 || p.doc.Path() == "" {
		return
	}
	ctx = schedule.Unmark(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !p.doc.Dirty() {
				continue
			}
			if err := p.saveNow(ctx, true); err != nil {
				p.logger.Warn("autosave failed", "error", err)
			}
			if err := p.ui.Post(func(context.Context) { p.Refresh() }); err != nil {
				p.logger.Warn("post refresh failed", "error", err)
			}
		}
	}
}
