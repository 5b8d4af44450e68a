package bus

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/socialagent/internal/worldstate"
)

// PublisherAdapter exposes a Bus as an
// internal/integrations.ObservationPublisher, the shape every platform
// integration is written against. The integration package never learns
// about bus.Observation directly, matching the teacher's router
// indirection between internal/channels and internal/bus.
type PublisherAdapter struct {
	bus Publisher
}

// NewPublisherAdapter wraps a Bus (or any Publisher) for use by
// integrations.
func NewPublisherAdapter(b Publisher) *PublisherAdapter {
	return &PublisherAdapter{bus: b}
}

// Publish implements internal/integrations.ObservationPublisher.
func (a *PublisherAdapter) Publish(ctx context.Context, kind string, msg *worldstate.Message, invite *worldstate.PendingInvite, undecryptable *worldstate.UndecryptableEvent) error {
	obs := Observation{Kind: ObservationKind(kind), Message: msg, Invite: invite, Undecryptable: undecryptable}
	switch obs.Kind {
	case ObservationMessage, ObservationInvite, ObservationUndecryptable:
	default:
		return fmt.Errorf("bus: unknown observation kind %q", kind)
	}
	return a.bus.Publish(ctx, obs)
}
