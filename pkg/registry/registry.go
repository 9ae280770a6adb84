// Package registry keeps the in-memory catalog of configured outputs.
//
// The registry is backed by a durable Store. Every mutation is written to
// the store first and applied in memory under the same write lock, so List
// callers never observe a transient gap or duplicate in the sort order.
package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/mycodo-go/mycodo-go/pkg/output"
)

// Direction is a reorder direction.
type Direction uint8

const (
	// Up moves an output one position towards the start.
	Up Direction = iota + 1

	// Down moves an output one position towards the end.
	Down
)

// ParseDirection parses "up" or "down".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	default:
		return 0, fmt.Errorf("%w: unknown direction %q", output.ErrInvalidOperation, s)
	}
}

// Store is the durable backing of the registry.
type Store interface {
	Load() ([]output.Output, error)
	Insert(outputs []*output.Output) error
	Update(o output.Output) error
	Delete(uniqueID string, order map[string]int) error
	SetOrder(order map[string]int) error
}

// Config configures a Registry.
type Config struct {
	// Supported reports whether outputs of a type can be driven. Add fails
	// with ErrUnknownType for types it rejects. If nil, every type in the
	// capability table is accepted.
	Supported func(output.Type) bool

	// Logger is the optional logger for debug output.
	Logger *slog.Logger
}

// Registry is the catalog of configured outputs.
type Registry struct {
	mu      sync.RWMutex
	store   Store
	outputs map[string]*output.Output
	order   []string

	supported func(output.Type) bool
	logger    *slog.Logger

	onAdd    []func(output.Output)
	onDelete []func(output.Output)
}

// New creates an empty registry. Call Load to read the store.
func New(store Store, cfg Config) *Registry {
	return &Registry{
		store:     store,
		outputs:   make(map[string]*output.Output),
		supported: cfg.Supported,
		logger:    cfg.Logger,
	}
}

// OnAdd registers a hook called, under the registry lock, for every output
// that becomes known (through Add or Load).
func (r *Registry) OnAdd(fn func(output.Output)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onAdd = append(r.onAdd, fn)
}

// OnDelete registers a hook called, under the registry lock, for every
// output that is removed.
func (r *Registry) OnDelete(fn func(output.Output)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onDelete = append(r.onDelete, fn)
}

// Load replaces the in-memory catalog with the store's contents. Outputs
// no longer present trigger the delete hooks; new ones the add hooks.
// Gaps or duplicates in stored sort orders are repaired.
func (r *Registry) Load() error {
	loaded, err := r.store.Load()
	if err != nil {
		return fmt.Errorf("load outputs: %w", err)
	}

	sort.SliceStable(loaded, func(i, j int) bool {
		return loaded[i].SortOrder < loaded[j].SortOrder
	})

	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]*output.Output, len(loaded))
	order := make([]string, 0, len(loaded))
	repair := make(map[string]int)
	for i := range loaded {
		o := loaded[i]
		if o.SortOrder != i {
			repair[o.UniqueID] = i
			o.SortOrder = i
		}
		next[o.UniqueID] = &o
		order = append(order, o.UniqueID)
	}

	if len(repair) > 0 {
		if err := r.store.SetOrder(repair); err != nil {
			return fmt.Errorf("repair sort order: %w", err)
		}
	}

	for id, o := range r.outputs {
		if _, ok := next[id]; !ok {
			r.notify(r.onDelete, *o)
		}
	}
	for _, id := range order {
		if _, ok := r.outputs[id]; !ok {
			r.notify(r.onAdd, *next[id])
		}
	}

	r.outputs = next
	r.order = order

	r.debugLog("registry loaded", "outputs", len(order), "repaired", len(repair))
	return nil
}

// List returns all outputs sorted by sort order.
func (r *Registry) List() []output.Output {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]output.Output, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, *r.outputs[id])
	}
	return result
}

// Get returns an output by unique ID.
func (r *Registry) Get(uniqueID string) (output.Output, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.outputs[uniqueID]
	if !ok {
		return output.Output{}, fmt.Errorf("%w: %s", output.ErrNotFound, uniqueID)
	}
	return *o, nil
}

// Count returns the number of outputs.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Add creates quantity outputs of type t with default attributes, appended
// to the end of the order.
func (r *Registry) Add(t output.Type, quantity int) ([]output.Output, error) {
	c, ok := output.LookupCapability(t)
	if !ok || (r.supported != nil && !r.supported(t)) {
		return nil, fmt.Errorf("%w: %q", output.ErrUnknownType, t)
	}
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity %d must be >= 1", output.ErrInvalidOperation, quantity)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	created := make([]*output.Output, 0, quantity)
	for i := 0; i < quantity; i++ {
		pos := len(r.order) + i
		created = append(created, &output.Output{
			UniqueID:  uuid.New().String(),
			Type:      t,
			Name:      fmt.Sprintf("%s %d", c.DisplayName, pos+1),
			Interface: c.DefaultInterface,
			SortOrder: pos,
			Settings:  c.Defaults,
		})
	}

	if err := r.store.Insert(created); err != nil {
		return nil, fmt.Errorf("insert outputs: %w", err)
	}

	result := make([]output.Output, 0, len(created))
	for _, o := range created {
		r.outputs[o.UniqueID] = o
		r.order = append(r.order, o.UniqueID)
		r.notify(r.onAdd, *o)
		result = append(result, *o)
	}

	r.debugLog("outputs added", "type", t, "quantity", quantity)
	return result, nil
}

// Update changes the mutable attributes of an output.
func (r *Registry) Update(uniqueID string, attrs output.Attributes) (output.Output, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.outputs[uniqueID]
	if !ok {
		return output.Output{}, fmt.Errorf("%w: %s", output.ErrNotFound, uniqueID)
	}

	updated := attrs.Apply(*o)
	if err := r.store.Update(updated); err != nil {
		return output.Output{}, fmt.Errorf("update output: %w", err)
	}
	*o = updated

	return updated, nil
}

// Delete removes an output. Deleting an unknown output is a no-op.
func (r *Registry) Delete(uniqueID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.outputs[uniqueID]
	if !ok {
		return nil
	}

	order := make([]string, 0, len(r.order)-1)
	for _, id := range r.order {
		if id != uniqueID {
			order = append(order, id)
		}
	}
	changes := r.orderChanges(order)

	if err := r.store.Delete(uniqueID, changes); err != nil {
		return fmt.Errorf("delete output: %w", err)
	}

	r.applyOrder(order)
	delete(r.outputs, uniqueID)
	r.notify(r.onDelete, *o)

	r.debugLog("output deleted", "unique_id", uniqueID)
	return nil
}

// Reorder swaps an output with its neighbour in the given direction.
// Moving the first output up or the last output down is a no-op.
func (r *Registry) Reorder(uniqueID string, dir Direction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.outputs[uniqueID]; !ok {
		return fmt.Errorf("%w: unknown output %s", output.ErrInvalidOperation, uniqueID)
	}

	pos := r.outputs[uniqueID].SortOrder
	var other int
	switch dir {
	case Up:
		other = pos - 1
	case Down:
		other = pos + 1
	default:
		return fmt.Errorf("%w: unknown direction %d", output.ErrInvalidOperation, dir)
	}
	if other < 0 || other >= len(r.order) {
		return nil
	}

	order := append([]string(nil), r.order...)
	order[pos], order[other] = order[other], order[pos]

	if err := r.store.SetOrder(r.orderChanges(order)); err != nil {
		return fmt.Errorf("reorder: %w", err)
	}
	r.applyOrder(order)
	return nil
}

// ReorderAll sets the complete display order. ids must be a permutation of
// every known output.
func (r *Registry) ReorderAll(ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(ids) != len(r.order) {
		return fmt.Errorf("%w: order has %d outputs, want %d",
			output.ErrInvalidOperation, len(ids), len(r.order))
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := r.outputs[id]; !ok {
			return fmt.Errorf("%w: unknown output %s", output.ErrInvalidOperation, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate output %s", output.ErrInvalidOperation, id)
		}
		seen[id] = true
	}

	order := append([]string(nil), ids...)
	changes := r.orderChanges(order)
	if len(changes) == 0 {
		return nil
	}

	if err := r.store.SetOrder(changes); err != nil {
		return fmt.Errorf("reorder: %w", err)
	}
	r.applyOrder(order)
	return nil
}

// orderChanges returns the positions in order that differ from the current
// sort orders. Caller must hold r.mu.
func (r *Registry) orderChanges(order []string) map[string]int {
	changes := make(map[string]int)
	for i, id := range order {
		if r.outputs[id].SortOrder != i {
			changes[id] = i
		}
	}
	return changes
}

// applyOrder installs a new order. Caller must hold r.mu for writing.
func (r *Registry) applyOrder(order []string) {
	for i, id := range order {
		r.outputs[id].SortOrder = i
	}
	r.order = order
}

func (r *Registry) notify(hooks []func(output.Output), o output.Output) {
	for _, fn := range hooks {
		fn(o)
	}
}

// debugLog logs a debug message if logging is enabled.
func (r *Registry) debugLog(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}
