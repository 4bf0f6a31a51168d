package domain

import "fmt"

// ModelBinding is the configured provider+model pair for one task.
type ModelBinding struct {
	Provider    Provider
	Model       string
	Temperature float32
}

// ModelHandle is a resolved, call-ready model reference. Temperature is nil
// when the handle was resolved in reasoning mode; providers must then leave
// sampling temperature unset.
type ModelHandle struct {
	Provider    Provider
	Model       string
	Temperature *float32
	Reasoning   bool
}

// ModelCatalog resolves tasks to model handles. It is built once from
// configuration and read-only afterward; resolution performs no I/O, so
// enablement failures surface before any network call.
type ModelCatalog struct {
	enabled   bool
	providers map[Provider]bool
	bindings  map[Task]ModelBinding
}

// NewModelCatalog copies its inputs so later mutation of the arguments cannot
// leak into the catalog.
func NewModelCatalog(enabled bool, providerEnabled map[Provider]bool, bindings map[Task]ModelBinding) *ModelCatalog {
	providers := make(map[Provider]bool, len(providerEnabled))
	for p, on := range providerEnabled {
		providers[p] = on
	}
	bound := make(map[Task]ModelBinding, len(bindings))
	for t, b := range bindings {
		bound[t] = b
	}
	return &ModelCatalog{
		enabled:   enabled,
		providers: providers,
		bindings:  bound,
	}
}

// Resolve returns the handle for a task with the configured temperature.
//
// Check order: global switch, binding existence, provider membership in the
// closed set, provider switch. The first failure wins.
func (c *ModelCatalog) Resolve(task Task) (ModelHandle, error) {
	return c.resolve(task, false)
}

// ResolveReasoning returns the task's handle with temperature omitted and the
// reasoning flag set. Callers request this variant explicitly for stages that
// run on reasoning models.
func (c *ModelCatalog) ResolveReasoning(task Task) (ModelHandle, error) {
	return c.resolve(task, true)
}

func (c *ModelCatalog) resolve(task Task, reasoning bool) (ModelHandle, error) {
	if !c.enabled {
		return ModelHandle{}, fmt.Errorf("resolve %s: %w", task, ErrAIDisabled)
	}

	binding, ok := c.bindings[task]
	if !ok {
		return ModelHandle{}, fmt.Errorf("resolve %s: %w", task, ErrTaskUnbound)
	}

	if _, err := ParseProvider(string(binding.Provider)); err != nil {
		return ModelHandle{}, fmt.Errorf("resolve %s: %w", task, err)
	}

	if !c.providers[binding.Provider] {
		return ModelHandle{}, fmt.Errorf("resolve %s (%s): %w", task, binding.Provider, ErrProviderDisabled)
	}

	handle := ModelHandle{
		Provider:  binding.Provider,
		Model:     binding.Model,
		Reasoning: reasoning,
	}
	if !reasoning {
		temp := binding.Temperature
		handle.Temperature = &temp
	}
	return handle, nil
}
