// Package nav switches between the application's views and keeps a
// back-stack of where the user has been.
//
// Views get their dependencies when they are constructed and navigate by
// calling the Router they were given; nothing reaches for a global window.
package nav

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ansel1/merry"
	"go.uber.org/zap"
)

// ViewID names a view.
type ViewID int

const (
	ViewLogin ViewID = iota
	ViewRegister
	ViewStart
	ViewProduction
	ViewNewProduction
	ViewProtocolEditor
	ViewProductionList
	ViewWarehouse
	ViewAdditivesRegister
	ViewPackagingRegister
	ViewSettings
	ViewCatalog
	ViewReports
	ViewAccount
)

var viewNames = [...]string{
	ViewLogin:             "login",
	ViewRegister:          "register",
	ViewStart:             "start",
	ViewProduction:        "production",
	ViewNewProduction:     "new-production",
	ViewProtocolEditor:    "protocol-editor",
	ViewProductionList:    "production-list",
	ViewWarehouse:         "warehouse",
	ViewAdditivesRegister: "additives-register",
	ViewPackagingRegister: "packaging-register",
	ViewSettings:          "settings",
	ViewCatalog:           "catalog",
	ViewReports:           "reports",
	ViewAccount:           "account",
}

var viewTitles = [...]string{
	ViewLogin:             "Logowanie",
	ViewRegister:          "Rejestracja",
	ViewStart:             "Start",
	ViewProduction:        "Produkcja",
	ViewNewProduction:     "Nowa produkcja",
	ViewProtocolEditor:    "Protokół produkcji",
	ViewProductionList:    "Lista produkcji",
	ViewWarehouse:         "Magazyn",
	ViewAdditivesRegister: "Rejestr dodatków",
	ViewPackagingRegister: "Rejestr opakowań",
	ViewSettings:          "Ustawienia",
	ViewCatalog:           "Katalog",
	ViewReports:           "Raporty",
	ViewAccount:           "Konto",
}

func (id ViewID) valid() bool { return id >= 0 && int(id) < len(viewNames) }

func (id ViewID) String() string {
	if !id.valid() {
		return fmt.Sprintf("ViewID(%d)", int(id))
	}
	return viewNames[id]
}

// Title is the Polish heading of the view.
func (id ViewID) Title() string {
	if !id.valid() {
		return id.String()
	}
	return viewTitles[id]
}

// ParseViewID parses a name as printed by ViewID.String.
func ParseViewID(s string) (ViewID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range viewNames {
		if name == s {
			return ViewID(i), nil
		}
	}
	return 0, merry.Errorf("unknown view %q", s).WithUserMessage("Nieznany widok.")
}

// ErrUnregistered is returned when showing a view nobody registered.
var ErrUnregistered = merry.New("view not registered")

// View is one screen.
type View interface {
	// Enter is called each time the view becomes current, to refresh and
	// draw itself.
	Enter(ctx context.Context) error
	// Handle processes one line of user input while the view is current.
	Handle(ctx context.Context, input string) error
}

// Funcs adapts a pair of functions to View. Nil functions do nothing.
type Funcs struct {
	EnterFunc  func(ctx context.Context) error
	HandleFunc func(ctx context.Context, input string) error
}

func (f Funcs) Enter(ctx context.Context) error {
	if f.EnterFunc == nil {
		return nil
	}
	return f.EnterFunc(ctx)
}

func (f Funcs) Handle(ctx context.Context, input string) error {
	if f.HandleFunc == nil {
		return nil
	}
	return f.HandleFunc(ctx, input)
}

// Router owns the current view and the back-stack.
//
// Thread-safety: all methods are safe for concurrent use. View callbacks
// run without the router lock held, so a view may navigate from Enter.
type Router struct {
	mu      sync.Mutex
	views   map[ViewID]View
	current ViewID
	started bool
	history []ViewID
	logger  *zap.Logger
}

// NewRouter creates an empty router. A nil logger disables logging.
func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{views: make(map[ViewID]View), logger: logger}
}

// Register installs v under id, replacing any earlier view.
func (r *Router) Register(id ViewID, v View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views[id] = v
}

func (r *Router) lookup(id ViewID) (View, error) {
	v, ok := r.views[id]
	if !ok {
		return nil, merry.Prependf(ErrUnregistered, "show %s", id)
	}
	return v, nil
}

// Show makes id current. The previous view is pushed onto the back-stack
// unless it is id itself.
func (r *Router) Show(ctx context.Context, id ViewID) error {
	r.mu.Lock()
	v, err := r.lookup(id)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	if r.started && r.current != id {
		r.history = append(r.history, r.current)
	}
	r.current, r.started = id, true
	r.mu.Unlock()

	r.logger.Debug("show view", zap.Stringer("view", id))
	return v.Enter(ctx)
}

// Back returns to the previous view. It reports false when the back-stack
// is empty.
func (r *Router) Back(ctx context.Context) (bool, error) {
	r.mu.Lock()
	if len(r.history) == 0 {
		r.mu.Unlock()
		return false, nil
	}
	id := r.history[len(r.history)-1]
	r.history = r.history[:len(r.history)-1]
	r.current = id
	v := r.views[id]
	r.mu.Unlock()

	r.logger.Debug("back", zap.Stringer("view", id))
	return true, v.Enter(ctx)
}

// Reset clears the back-stack and makes id current without recording the
// view that was showing. Used at logout.
func (r *Router) Reset(ctx context.Context, id ViewID) error {
	r.mu.Lock()
	v, err := r.lookup(id)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.history = nil
	r.current, r.started = id, true
	r.mu.Unlock()

	r.logger.Debug("reset", zap.Stringer("view", id))
	return v.Enter(ctx)
}

// Current returns the current view; ok is false before the first Show.
func (r *Router) Current() (id ViewID, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.started
}

// History returns a copy of the back-stack, oldest first.
func (r *Router) History() []ViewID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ViewID(nil), r.history...)
}

// Dispatch passes input to the current view.
func (r *Router) Dispatch(ctx context.Context, input string) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return merry.New("no current view")
	}
	v := r.views[r.current]
	r.mu.Unlock()
	return v.Handle(ctx, input)
}
