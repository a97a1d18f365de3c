package connection

import "market-viewer/src/models"

// -----------------------------------------------------------------------------
// Registry maps canonical instrument keys to the subscription bound to them.
// Iteration follows first registration order so replay is deterministic.
// -----------------------------------------------------------------------------

type Registry struct {
	order []string
	byKey map[string]models.MSubscription
}

func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]models.MSubscription)}
}

// -----------------------------------------------------------------------------

// Set binds sub to its key. Rebinding an existing key keeps its position.
func (r *Registry) Set(sub models.MSubscription) {
	key := sub.Key.Canonical()
	if _, ok := r.byKey[key]; !ok {
		r.order = append(r.order, key)
	}
	r.byKey[key] = sub
}

// -----------------------------------------------------------------------------

func (r *Registry) Get(key string) (models.MSubscription, bool) {
	sub, ok := r.byKey[key]
	return sub, ok
}

// -----------------------------------------------------------------------------

// Delete drops key and reports whether it was present.
func (r *Registry) Delete(key string) bool {
	if _, ok := r.byKey[key]; !ok {
		return false
	}
	delete(r.byKey, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// -----------------------------------------------------------------------------

// FindByID returns the registry entry currently bound to a subscription id.
func (r *Registry) FindByID(id string) (models.MSubscription, bool) {
	for _, k := range r.order {
		if sub := r.byKey[k]; sub.ID == id {
			return sub, true
		}
	}
	return models.MSubscription{}, false
}

// -----------------------------------------------------------------------------

func (r *Registry) Len() int {
	return len(r.order)
}

// -----------------------------------------------------------------------------

// Only returns the single registered subscription, if exactly one exists.
func (r *Registry) Only() (models.MSubscription, bool) {
	if len(r.order) != 1 {
		return models.MSubscription{}, false
	}
	return r.byKey[r.order[0]], true
}

// -----------------------------------------------------------------------------

// All returns a copy of the entries in registration order.
func (r *Registry) All() []models.MSubscription {
	out := make([]models.MSubscription, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.byKey[k])
	}
	return out
}
