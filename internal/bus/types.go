// Package bus is the bounded inbound-observation queue between platform
// integrations and the orchestrator: each integration's sync/poll loop
// publishes Observations here, and the orchestrator drains them into
// the world state store at the start of every cycle — generalizing the
// teacher's InboundMessage/MessageRouter split (internal/bus/types.go)
// from channel-chat messages onto the wider observation vocabulary
// (messages, invites, undecryptable events) this agent ingests.
package bus

import (
	"context"

	"github.com/nextlevelbuilder/socialagent/internal/worldstate"
)

// ObservationKind discriminates the payload carried by an Observation.
type ObservationKind string

const (
	ObservationMessage       ObservationKind = "message"
	ObservationInvite        ObservationKind = "invite"
	ObservationUndecryptable ObservationKind = "undecryptable_event"
)

// Observation is one unit of inbound data published by an integration.
type Observation struct {
	Kind          ObservationKind
	Message       *worldstate.Message
	Invite        *worldstate.PendingInvite
	Undecryptable *worldstate.UndecryptableEvent
}

// Publisher is implemented by every platform integration to push
// observations into the bus without depending on its concrete backend.
type Publisher interface {
	Publish(ctx context.Context, obs Observation) error
}

// Consumer is implemented by the orchestrator to drain the bus.
type Consumer interface {
	Consume(ctx context.Context) (Observation, bool)
}

// Bus combines Publisher and Consumer, the shape both the in-process
// and Redis-backed implementations satisfy.
type Bus interface {
	Publisher
	Consumer
	Close() error
}
