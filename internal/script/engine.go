package script

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/mvpkit/internal/action"
	"github.com/dshills/mvpkit/internal/dispatcher"
	"github.com/dshills/mvpkit/internal/logging"
)

// ActionsGlobal is the global table scripts declare actions in.
const ActionsGlobal = "actions"

// Errors returned by the engine.
var (
	ErrClosed    = errors.New("script: engine is closed")
	ErrNoActions = errors.New("script: no actions table")
	ErrBadAction = errors.New("script: malformed action")
)

// ScriptError wraps a Lua error raised while running an action.
type ScriptError struct {
	Action action.Identity
	Func   string
	Err    error
}

// Error implements the error interface.
func (e *ScriptError) Error() string {
	return fmt.Sprintf("script %s.%s: %v", e.Action, e.Func, e.Err)
}

// Unwrap returns the underlying Lua error.
func (e *ScriptError) Unwrap() error {
	return e.Err
}

// Engine owns one sandboxed Lua state.
type Engine struct {
	mu     sync.Mutex
	L      *lua.LState
	closed bool
	logger logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger scripts write to through log().
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = logging.WithComponent(l, "script")
		}
	}
}

// NewEngine creates a sandboxed engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(e)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
	L.SetGlobal("log", L.NewFunction(e.luaLog))
	e.L = L
	return e
}

// luaLog implements log(...) for scripts.
func (e *Engine) luaLog(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		parts = append(parts, L.Get(i).String())
	}
	e.logger.Info(strings.Join(parts, " "))
	return 0
}

// Load executes code in the engine's state.
func (e *Engine) Load(code string) error {
	return e.do(func() error { return e.L.DoString(code) })
}

// LoadFile executes the Lua file at path.
func (e *Engine) LoadFile(path string) error {
	if err := e.do(func() error { return e.L.DoFile(path) }); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (e *Engine) do(fn func() error) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// SetGlobal sets a global variable from a Go value.
func (e *Engine) SetGlobal(name string, value any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.L.SetGlobal(name, toLua(e.L, value))
	return nil
}

// Global returns a global variable converted to a Go value.
func (e *Engine) Global(name string) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	return fromLua(e.L.GetGlobal(name)), nil
}

// Actions returns the identities declared in the actions table, sorted.
func (e *Engine) Actions() ([]action.Identity, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	defs, err := e.definitions()
	if err != nil {
		return nil, err
	}
	ids := make([]action.Identity, len(defs))
	for i, d := range defs {
		ids[i] = d.id
	}
	return ids, nil
}

type definition struct {
	id         action.Identity
	run        *lua.LFunction
	canExecute *lua.LFunction
}

// definitions reads the actions table. Caller holds e.mu.
func (e *Engine) definitions() ([]definition, error) {
	tbl, ok := e.L.GetGlobal(ActionsGlobal).(*lua.LTable)
	if !ok {
		return nil, ErrNoActions
	}

	var defs []definition
	var bad error
	tbl.ForEach(func(k, v lua.LValue) {
		if bad != nil {
			return
		}
		name, ok := k.(lua.LString)
		if !ok || name == "" {
			bad = fmt.Errorf("%w: key %s is not a name", ErrBadAction, k.String())
			return
		}
		entry, ok := v.(*lua.LTable)
		if !ok {
			bad = fmt.Errorf("%w: %s is not a table", ErrBadAction, name)
			return
		}
		run, ok := entry.RawGetString("run").(*lua.LFunction)
		if !ok {
			bad = fmt.Errorf("%w: %s has no run function", ErrBadAction, name)
			return
		}
		d := definition{id: action.Parse(string(name)), run: run}
		switch ce := entry.RawGetString("can_execute").(type) {
		case *lua.LFunction:
			d.canExecute = ce
		case *lua.LNilType:
		default:
			bad = fmt.Errorf("%w: %s.can_execute is not a function", ErrBadAction, name)
			return
		}
		defs = append(defs, d)
	})
	if bad != nil {
		return nil, bad
	}

	sort.Slice(defs, func(i, j int) bool {
		return defs[i].id.String() < defs[j].id.String()
	})
	return defs, nil
}

// Register adds every scripted action to d and returns their identities.
// Each action accepts any payload.
func (e *Engine) Register(d *dispatcher.Dispatcher) ([]action.Identity, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	defs, err := e.definitions()
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	ids := make([]action.Identity, 0, len(defs))
	for _, def := range defs {
		handler := func(ctx context.Context, payload any) error {
			_, err := e.call(ctx, def, "run", def.run, payload)
			return err
		}
		var pred dispatcher.CanExecute
		if def.canExecute != nil {
			pred = func() bool {
				vals, err := e.call(context.Background(), def, "can_execute", def.canExecute)
				if err != nil {
					e.logger.Warn("can_execute failed", "action", def.id.String(), "error", err)
					return false
				}
				return len(vals) > 0 && lua.LVAsBool(vals[0])
			}
		}
		if err := dispatcher.RegisterParameterized[any](d, def.id, handler, pred); err != nil {
			return ids, fmt.Errorf("register %s: %w", def.id, err)
		}
		ids = append(ids, def.id)
	}
	e.logger.Debug("registered scripted actions", "count", len(ids))
	return ids, nil
}

// call invokes fn under the engine lock with ctx bound to the state.
func (e *Engine) call(ctx context.Context, def definition, name string, fn *lua.LFunction, args ...any) (vals []lua.LValue, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	if ctx != nil {
		e.L.SetContext(ctx)
		defer e.L.RemoveContext()
	}
	defer func() {
		if r := recover(); r != nil {
			err = &ScriptError{Action: def.id, Func: name, Err: fmt.Errorf("lua panic: %v", r)}
		}
	}()

	top := e.L.GetTop()
	largs := make([]lua.LValue, len(args))
	for i, a := range args {
		largs[i] = toLua(e.L, a)
	}
	if err := e.L.CallByParam(lua.P{Fn: fn, NRet: lua.MultRet, Protect: true}, largs...); err != nil {
		e.L.SetTop(top)
		return nil, &ScriptError{Action: def.id, Func: name, Err: err}
	}

	n := e.L.GetTop() - top
	vals = make([]lua.LValue, n)
	for i := 0; i < n; i++ {
		vals[i] = e.L.Get(top + i + 1)
	}
	e.L.SetTop(top)
	return vals, nil
}

// Close releases the Lua state.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.L.Close()
}
