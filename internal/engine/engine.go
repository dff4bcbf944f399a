package engine

import (
	"tradepost/internal/database"
	"tradepost/internal/engine/actors"
	"tradepost/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
)

// Engine wires the conversation coordinators into the actor system. Sends
// and read-acknowledgements run on separate actors so they interleave the
// way independent transport events do; consistency comes from the storage
// transactions, not from actor ordering.
type Engine struct {
	messageActor *actor.PID
	readActor    *actor.PID
}

func NewEngine(system *actor.ActorSystem, store database.Store, presence actors.Presence, notifier actors.Notifier, metrics *utils.MetricsCollector) *Engine {
	context := system.Root
	dispatcher := actors.NewDispatcher(presence)

	messageProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewMessageActor(store, dispatcher, notifier, metrics)
	})
	messagePID := context.Spawn(messageProps)

	readProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewReadActor(store, dispatcher, metrics)
	})
	readPID := context.Spawn(readProps)

	return &Engine{
		messageActor: messagePID,
		readActor:    readPID,
	}
}

// MessageActor returns the PID of the message transaction coordinator
func (e *Engine) MessageActor() *actor.PID {
	return e.messageActor
}

// ReadActor returns the PID of the read-acknowledgement coordinator
func (e *Engine) ReadActor() *actor.PID {
	return e.readActor
}
