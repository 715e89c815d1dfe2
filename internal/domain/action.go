package domain

// Action is the behavior an agent chooses for its next step.
type Action string

const (
	ActionGather Action = "GatherBehavior"
	ActionRest   Action = "RestBehavior"
	ActionFlee   Action = "FleeBehavior"
	ActionMove   Action = "MoveBehavior"
	ActionGuard  Action = "GuardBehavior"
)

// Actions lists every valid action in a stable order.
func Actions() []Action {
	return []Action{ActionGather, ActionRest, ActionFlee, ActionMove, ActionGuard}
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	for _, v := range Actions() {
		if a == v {
			return true
		}
	}
	return false
}

// Location is a point on the arena floor.
type Location struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// StructuredAction is the decision returned for one turn.
type StructuredAction struct {
	Reasoning            string    `json:"reasoning"`
	EatCurrentFoodSupply bool      `json:"eatCurrentFoodSupply"`
	NextAction           Action    `json:"next_action"`
	Location             *Location `json:"location,omitempty"`
}

// TurnRequest is a validated inbound turn.
type TurnRequest struct {
	AgentID    EntityID
	State      map[string]any
	Attachment []byte
}

// HasAttachment reports whether the turn carries a map image.
func (r TurnRequest) HasAttachment() bool {
	return len(r.Attachment) > 0
}
