package models

import "encoding/json"

// Turn discriminants used on the wire. The envelope is
// {"type": <int>, "args": {...turn-specific fields...}}.
const (
	TurnTypeFight  = 0
	TurnTypeItem   = 1
	TurnTypeSwitch = 2
	TurnTypeRun    = 3
)

// Turn is one participant's chosen action for a round.
type Turn interface {
	// TurnType returns the wire discriminant for this turn.
	TurnType() int
}

// TurnTarget is the target address carried inside a fight turn. It is a
// reduced Target: the engine only needs party and slot.
type TurnTarget struct {
	Party int `json:"Party"`
	Slot  int `json:"Slot"`
}

// FightTurn uses the move at index Move against Target. The move index is not
// re-validated locally; the engine is authoritative.
type FightTurn struct {
	Target TurnTarget `json:"Target"`
	Move   int        `json:"move"`
}

func (FightTurn) TurnType() int { return TurnTypeFight }

// ItemTurn uses a held item.
type ItemTurn struct{}

func (ItemTurn) TurnType() int { return TurnTypeItem }

// SwitchTurn swaps the active pokemon.
type SwitchTurn struct{}

func (SwitchTurn) TurnType() int { return TurnTypeSwitch }

// RunTurn attempts to flee the battle.
type RunTurn struct{}

func (RunTurn) TurnType() int { return TurnTypeRun }

// EncodeTurn wraps a turn in the engine's envelope.
func EncodeTurn(t Turn) ([]byte, error) {
	return json.Marshal(struct {
		Type int  `json:"type"`
		Args Turn `json:"args"`
	}{Type: t.TurnType(), Args: t})
}
