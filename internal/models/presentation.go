package models

// BottleStateDisplay is the UI mapping for a bottle state. The state
// machine never reads it.
type BottleStateDisplay struct {
	State BottleState `json:"state"`
	Label string      `json:"label"`
	Color string      `json:"color"`
	Icon  string      `json:"icon"`
}

var bottleStateDisplays = map[BottleState]BottleStateDisplay{
	BottleStored:             {State: BottleStored, Label: "Stored", Color: "success", Icon: "heroicon-o-archive-box"},
	BottleReservedForPicking: {State: BottleReservedForPicking, Label: "Reserved for Picking", Color: "warning", Icon: "heroicon-o-clock"},
	BottleShipped:            {State: BottleShipped, Label: "Shipped", Color: "info", Icon: "heroicon-o-truck"},
	BottleConsumed:           {State: BottleConsumed, Label: "Consumed", Color: "gray", Icon: "heroicon-o-beaker"},
	BottleDestroyed:          {State: BottleDestroyed, Label: "Destroyed", Color: "danger", Icon: "heroicon-o-trash"},
	BottleMissing:            {State: BottleMissing, Label: "Missing", Color: "danger", Icon: "heroicon-o-question-mark-circle"},
}

func BottleStateDisplays() []BottleStateDisplay {
	out := make([]BottleStateDisplay, 0, len(bottleStateDisplays))
	for _, s := range AllBottleStates() {
		out = append(out, bottleStateDisplays[s])
	}
	return out
}
