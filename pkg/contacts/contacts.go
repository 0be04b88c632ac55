// Package contacts provides counterparty contact resolution for the
// workflow engine. The engine only needs a nym → contact lookup; the full
// contact book lives elsewhere.
package contacts

import (
	"context"
	"errors"
	"sync"
)

// ErrUnknownNym indicates no contact is known for a nym. Origination
// operations that require a known counterparty fail closed on this.
var ErrUnknownNym = errors.New("no contact known for nym")

// Resolver maps a counterparty nym to its contact ID. An empty contact ID
// with a nil error never occurs; unknown nyms return ErrUnknownNym.
type Resolver interface {
	ContactIDForNym(ctx context.Context, nym string) (string, error)
}

// StaticResolver is a map-backed resolver for tests and single-tenant
// deployments.
type StaticResolver struct {
	mu       sync.RWMutex
	contacts map[string]string
}

// NewStaticResolver creates a resolver seeded with nym → contact pairs.
func NewStaticResolver(seed map[string]string) *StaticResolver {
	contacts := make(map[string]string, len(seed))
	for nym, contact := range seed {
		contacts[nym] = contact
	}

	return &StaticResolver{contacts: contacts}
}

// Add registers a nym → contact mapping.
func (r *StaticResolver) Add(nym, contactID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.contacts[nym] = contactID
}

// ContactIDForNym returns the contact for nym or ErrUnknownNym.
func (r *StaticResolver) ContactIDForNym(_ context.Context, nym string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	contactID, ok := r.contacts[nym]
	if !ok || contactID == "" {
		return "", ErrUnknownNym
	}

	return contactID, nil
}
