package world

import "fmt"

// Container holds stackable items keyed by item id, mirroring the teacher's
// Accounts ledger shape (state.State.Accounts) generalized from a single
// currency balance to an arbitrary set of item counters.
type Container struct {
	ID    string           `json:"id"`
	Items map[string]uint64 `json:"items"`
}

// NewContainer constructs an empty container.
func NewContainer(id string) *Container {
	return &Container{ID: id, Items: map[string]uint64{}}
}

// Normalize replaces a nil Items map with an empty one.
func (c *Container) Normalize() {
	if c.Items == nil {
		c.Items = map[string]uint64{}
	}
}

// Add increases itemID's stack by qty (qty must be > 0).
func (c *Container) Add(itemID string, qty uint64) {
	if qty == 0 {
		return
	}
	c.Items[itemID] += qty
}

// Remove decreases itemID's stack by qty, erroring if insufficient. Item
// entries that reach zero are deleted, so empty containers encode identically
// to never-touched containers (absent-vs-empty parity at the item level).
func (c *Container) Remove(itemID string, qty uint64) error {
	have := c.Items[itemID]
	if have < qty {
		return fmt.Errorf("world: insufficient %s: have %d need %d", itemID, have, qty)
	}
	if have == qty {
		delete(c.Items, itemID)
		return nil
	}
	c.Items[itemID] = have - qty
	return nil
}

// Count returns the current stack size of itemID (0 if absent).
func (c *Container) Count(itemID string) uint64 {
	return c.Items[itemID]
}
