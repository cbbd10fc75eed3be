// Package registry implements the rule module registry (spec §4.6): an
// ordered set of Module implementations invoked at fixed points in the tick
// phase machine. Grounded on the teacher's explicit, ordered dispatch of
// poker-table-lifecycle hooks in app.go (blind posting, dealing, showdown
// all run in a fixed sequence per block), generalized to a pluggable,
// name-registered hook interface.
package registry

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/7seasdotnet/hexcrawler/canon"
	"github.com/7seasdotnet/hexcrawler/internal/logging"
	"github.com/7seasdotnet/hexcrawler/simerr"
)

// EventExecution is passed to Module.OnEventExecuted so a module can react
// to any event, regardless of which module scheduled it.
type EventExecution struct {
	Tick      uint64
	EventID   uint64
	EventType string
	Params    canon.Value
}

// Module is the interface every rule module implements. All four hooks are
// optional in practice (embed Base to get no-op defaults) but every module
// must have a stable, unique Name().
type Module interface {
	Name() string
	OnSimulationStart() error
	OnTickStart(tick uint64) error
	OnTickEnd(tick uint64) error
	OnEventExecuted(ev EventExecution) error
}

// Base gives rule modules no-op hook implementations so they only need to
// override the ones they care about.
type Base struct{}

func (Base) OnSimulationStart() error            { return nil }
func (Base) OnTickStart(tick uint64) error       { return nil }
func (Base) OnTickEnd(tick uint64) error         { return nil }
func (Base) OnEventExecuted(ev EventExecution) error { return nil }

// Registry holds rule modules in registration order; hooks fire in that same
// order, every tick, for every registered module (spec §4.6).
type Registry struct {
	order   []string
	modules map[string]Module
	log     *logrus.Logger
}

// New constructs an empty registry with a default (non-verbose) logger.
func New() *Registry {
	return &Registry{modules: map[string]Module{}, log: logging.New(false)}
}

// SetLogger overrides the registry's structured logger, e.g. so a CLI's
// --verbose flag controls module-hook logging too.
func (r *Registry) SetLogger(log *logrus.Logger) {
	r.log = log
}

// Register adds m to the registry. It fails with simerr.DuplicateModule if
// a module with the same name is already registered.
func (r *Registry) Register(m Module) error {
	name := m.Name()
	if name == "" {
		return simerr.New(simerr.SchemaInvalid, "registry: module name must not be empty")
	}
	if _, exists := r.modules[name]; exists {
		return simerr.New(simerr.DuplicateModule, fmt.Sprintf("registry: module %q already registered", name))
	}
	r.modules[name] = m
	r.order = append(r.order, name)
	return nil
}

// Get returns the named module, or nil if not registered.
func (r *Registry) Get(name string) Module {
	return r.modules[name]
}

// Names returns registered module names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// FireSimulationStart calls OnSimulationStart on every module in
// registration order, stopping and returning the first error encountered.
func (r *Registry) FireSimulationStart() error {
	for _, name := range r.order {
		r.log.WithField("module", name).Debug("OnSimulationStart")
		if err := r.modules[name].OnSimulationStart(); err != nil {
			r.log.WithField("module", name).WithError(err).Warn("OnSimulationStart failed")
			return fmt.Errorf("registry: module %q OnSimulationStart: %w", name, err)
		}
	}
	return nil
}

// FireTickStart calls OnTickStart(tick) on every module in registration order.
func (r *Registry) FireTickStart(tick uint64) error {
	for _, name := range r.order {
		r.log.WithField("tick", tick).WithField("module", name).Debug("OnTickStart")
		if err := r.modules[name].OnTickStart(tick); err != nil {
			r.log.WithField("tick", tick).WithField("module", name).WithError(err).Warn("OnTickStart failed")
			return fmt.Errorf("registry: module %q OnTickStart: %w", name, err)
		}
	}
	return nil
}

// FireTickEnd calls OnTickEnd(tick) on every module in registration order.
func (r *Registry) FireTickEnd(tick uint64) error {
	for _, name := range r.order {
		r.log.WithField("tick", tick).WithField("module", name).Debug("OnTickEnd")
		if err := r.modules[name].OnTickEnd(tick); err != nil {
			r.log.WithField("tick", tick).WithField("module", name).WithError(err).Warn("OnTickEnd failed")
			return fmt.Errorf("registry: module %q OnTickEnd: %w", name, err)
		}
	}
	return nil
}

// FireEventExecuted calls OnEventExecuted(ev) on every module in
// registration order.
func (r *Registry) FireEventExecuted(ev EventExecution) error {
	for _, name := range r.order {
		r.log.WithField("tick", ev.Tick).WithField("module", name).WithField("event_id", ev.EventID).Debug("OnEventExecuted")
		if err := r.modules[name].OnEventExecuted(ev); err != nil {
			r.log.WithField("tick", ev.Tick).WithField("module", name).WithField("event_id", ev.EventID).WithError(err).Warn("OnEventExecuted failed")
			return fmt.Errorf("registry: module %q OnEventExecuted: %w", name, err)
		}
	}
	return nil
}

// Len returns the number of registered modules.
func (r *Registry) Len() int { return len(r.order) }
