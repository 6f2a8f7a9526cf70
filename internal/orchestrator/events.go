package orchestrator

import (
	"time"

	"devservices/internal/state"
	"devservices/pkg/logging"
)

// StateChangedEvent reports a dependency status transition.
type StateChangedEvent struct {
	Service   string
	Key       string
	Name      string
	OldState  state.Status
	NewState  state.Status
	Runtime   state.Runtime
	Error     error
	Timestamp int64
}

// SubscribeToStateChanges returns a channel for state change events. Events
// are dropped for subscribers that do not keep up.
func (o *Orchestrator) SubscribeToStateChanges() <-chan StateChangedEvent {
	eventChan := make(chan StateChangedEvent, 100)
	o.mu.Lock()
	o.stateChangeSubscribers = append(o.stateChangeSubscribers, eventChan)
	o.mu.Unlock()
	return eventChan
}

func (o *Orchestrator) publishStateChangeEvent(service string, rec state.Record, oldState state.Status, err error) {
	logging.Debug(subsystem, "%s: %s -> %s (%s)", rec.Key, oldState, rec.Status, rec.Runtime)

	event := StateChangedEvent{
		Service:   service,
		Key:       rec.Key,
		Name:      rec.Name,
		OldState:  oldState,
		NewState:  rec.Status,
		Runtime:   rec.Runtime,
		Error:     err,
		Timestamp: time.Now().Unix(),
	}

	o.mu.RLock()
	subscribers := make([]chan<- StateChangedEvent, len(o.stateChangeSubscribers))
	copy(subscribers, o.stateChangeSubscribers)
	o.mu.RUnlock()

	for _, subscriber := range subscribers {
		select {
		case subscriber <- event:
		default:
			logging.Debug(subsystem, "Subscriber blocked, skipping event for %s", rec.Key)
		}
	}
}
