package freshness

import (
	"slices"

	"fluxo/internal/log"
)

// Bindings map mutation entities and navigation screens to the keys whose
// data they affect.
type Bindings struct {
	Entities map[string][]string
	Screens  map[string][]string
}

// Bind adds keys to every listed entity and screen.
func (b *Bindings) Bind(key string, entities, screens []string) {
	if b.Entities == nil {
		b.Entities = make(map[string][]string)
	}
	if b.Screens == nil {
		b.Screens = make(map[string][]string)
	}
	for _, name := range entities {
		if !slices.Contains(b.Entities[name], key) {
			b.Entities[name] = append(b.Entities[name], key)
		}
	}
	for _, name := range screens {
		if !slices.Contains(b.Screens[name], key) {
			b.Screens[name] = append(b.Screens[name], key)
		}
	}
}

// MutationObserved hard-invalidates every key bound to entity and returns
// how many keys were affected. Unbound entities are ignored.
func (c *Coordinator) MutationObserved(entity string) int {
	keys := c.bindings.Entities[entity]
	n := 0
	for _, key := range keys {
		if err := c.invalidate(key, Hard, TriggerMutation); err != nil {
			c.logger.Warn("Mutation invalidation skipped",
				log.FieldEntity, entity, log.FieldCacheKey, key, log.FieldError, err.Error())
			continue
		}
		n++
	}
	if len(keys) == 0 {
		c.logger.Debug("Mutation for unbound entity", log.FieldEntity, entity)
	}
	return n
}

// ReturnedFrom soft-invalidates the keys bound to screen. The invalidation
// is escalated to hard when the key has not refreshed within the policy's
// EscalateAfter.
func (c *Coordinator) ReturnedFrom(screen string) int {
	n := 0
	for _, key := range c.bindings.Screens[screen] {
		urgency := Soft
		c.mu.Lock()
		if e, ok := c.entries[key]; ok {
			if e.fetchedAt.IsZero() || c.now().Sub(e.fetchedAt) > e.policy.EscalateAfter {
				urgency = Hard
			}
		}
		c.mu.Unlock()

		if err := c.invalidate(key, urgency, TriggerNavigation); err != nil {
			continue
		}
		n++
	}
	return n
}

// Foregrounded starts a background refresh of every key.
func (c *Coordinator) Foregrounded() {
	c.all(TriggerForeground)
}

// Reconnected starts a background refresh of every key after the data
// transport came back.
func (c *Coordinator) Reconnected() {
	c.all(TriggerReconnect)
}

func (c *Coordinator) all(trigger Trigger) {
	for _, key := range c.Keys() {
		c.background(key, trigger)
	}
}
