package notify

import "github.com/arkwallet/arkwalletd/internal/settlement"

// WatchEngine registers an observer on engine that broadcasts each state
// transition through hub, translating settlement.State into the Hub's own
// EventType vocabulary. StateIdle produces no event: a settlement hasn't
// started anything a subscriber would care about yet.
func WatchEngine(hub *Hub, engine *settlement.Engine) {
	engine.OnStateChange(func(s settlement.State) {
		if eventType, ok := eventTypeForState(s); ok {
			hub.Broadcast(eventType, s.String())
		}
	})
}

func eventTypeForState(s settlement.State) (EventType, bool) {
	switch s {
	case settlement.StateRegistering:
		return EventRegistering, true
	case settlement.StateNonces:
		return EventNonces, true
	case settlement.StateSignatures:
		return EventSignatures, true
	case settlement.StateForfeiting:
		return EventForfeiting, true
	case settlement.StateDone:
		return EventDone, true
	case settlement.StateFatal:
		return EventFatal, true
	default:
		return "", false
	}
}
