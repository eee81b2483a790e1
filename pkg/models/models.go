// Package models provides the wire types shared with the battle engine API.
// Field names mirror the engine's JSON vocabulary (PascalCase: NatDex, CurrentHP,
// StatusEffects, ...) and are part of its fixed protocol; do not rename them.
package models

import "encoding/json"

// Team is an ordered list of parties fighting on the same side. Team order in a
// battle defines the side indices (0..N-1) used by every other engine call.
type Team struct {
	Parties []Party `json:"parties"`
}

// Party is an ordered list of pokemon. Slot order is significant and addressed
// by index for the duration of a battle.
type Party struct {
	Pokemon []Pokemon `json:"pokemon"`
}

// Pokemon carries one pokemon's identity, fixed move set, and the mutable
// battle state the engine updates round to round.
type Pokemon struct {
	// ID is the storage identifier. Empty means the pokemon is ephemeral and
	// is never persisted (e.g. generated opponents).
	ID string `json:"-"`

	Name              string          `json:"Name"`
	NatDex            int             `json:"NatDex"`
	Level             int             `json:"Level"`
	Ability           int             `json:"Ability"`
	TotalExperience   int             `json:"TotalExperience"`
	Gender            int             `json:"Gender"`
	IVs               []int           `json:"IVs"`
	EVs               []int           `json:"EVs"`
	Nature            int             `json:"Nature"`
	Stats             []int           `json:"Stats"`
	StatModifiers     []int           `json:"StatModifiers"`
	StatusEffects     StatusCondition `json:"StatusEffects"`
	CurrentHP         int             `json:"CurrentHP"`
	HeldItem          Item            `json:"HeldItem"`
	Moves             []Move          `json:"Moves"`
	Friendship        int             `json:"Friendship"`
	OriginalTrainerID uint32          `json:"OriginalTrainerID"`
	Type              ElementalType   `json:"Type"`
}

// Move is one entry in a pokemon's move set.
type Move struct {
	ID            int           `json:"Id"`
	CurrentPP     int           `json:"CurrentPP"`
	MaxPP         int           `json:"MaxPP"`
	Name          string        `json:"Name"`
	Type          ElementalType `json:"Type"`
	Category      int           `json:"Category"`
	Targets       int           `json:"Targets"`
	Priority      int           `json:"Priority"`
	Power         int           `json:"Power"`
	Accuracy      int           `json:"Accuracy"`
	InitialMaxPP  int           `json:"InitialMaxPP"`
	MinHits       int           `json:"MinHits"`
	MaxHits       int           `json:"MaxHits"`
	MinTurns      int           `json:"MinTurns"`
	MaxTurns      int           `json:"MaxTurns"`
	Drain         int           `json:"Drain"`
	Healing       int           `json:"Healing"`
	CritRate      int           `json:"CritRate"`
	Ailment       int           `json:"Ailment"`
	AilmentChance int           `json:"AilmentChance"`
	FlinchChance  int           `json:"FlinchChance"`
	StatChance    int           `json:"StatChance"`
	Flags         int           `json:"Flags"`
}

// Item is a held item.
type Item struct {
	ID          int    `json:"Id"`
	Name        string `json:"Name"`
	Category    int    `json:"Category"`
	FlingPower  int    `json:"FlingPower"`
	FlingEffect int    `json:"FlingEffect"`
	Flags       int    `json:"Flags"`
}

// Target addresses one pokemon on the battlefield by side, party, and slot.
// Pokemon is a denormalized snapshot for display; nil means not resolved.
type Target struct {
	Team    int      `json:"Team"`
	Party   int      `json:"Party"`
	Slot    int      `json:"Slot"`
	Pokemon *Pokemon `json:"Pokemon,omitempty"`
}

// BattleContext is the point-in-time view the engine hands one participant to
// decide a turn: the pokemon the decision is for, its side, and the disjoint
// target lists. Contexts are created fresh by the engine on every fetch and
// are never mutated locally.
type BattleContext struct {
	Battle    json.RawMessage `json:"Battle"`
	Pokemon   Pokemon         `json:"Pokemon"`
	Team      int             `json:"Team"`
	Targets   []Target        `json:"Targets"`
	Allies    []Target        `json:"Allies"`
	Opponents []Target        `json:"Opponents"`
}

// Fight builds a fight turn against the given target using the move at
// moveIndex in the context pokemon's move set.
func (c *BattleContext) Fight(t Target, moveIndex int) FightTurn {
	return FightTurn{
		Target: TurnTarget{Party: t.Party, Slot: t.Slot},
		Move:   moveIndex,
	}
}

// Transaction is one opaque event emitted by the engine describing something
// that happened during a round. Args is kind-specific and intentionally left
// untyped; rendering lives in internal/report.
type Transaction struct {
	Type int            `json:"type"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// RoundResult is the outcome of advancing the battle by one round.
type RoundResult struct {
	Transactions []Transaction `json:"Transactions"`
	Ended        bool          `json:"Ended"`
}

// BattleResults is the final state of a battle, only valid once it has ended.
// Winner indexes into the original team (and agent) ordering; Parties holds
// the final pokemon states in the same order as the original teams.
type BattleResults struct {
	Winner  int     `json:"Winner"`
	Parties []Party `json:"Parties"`
}

// BuildTeamsSingle takes two parties and builds the team list for a 1v1
// battle, one party per side.
func BuildTeamsSingle(a, b Party) []Team {
	return []Team{
		{Parties: []Party{a}},
		{Parties: []Party{b}},
	}
}

// FlattenParties returns all parties across teams in side order. The result
// index space matches the engine's party addressing.
func FlattenParties(teams []Team) []Party {
	var parties []Party
	for _, t := range teams {
		parties = append(parties, t.Parties...)
	}
	return parties
}

// ResolveTarget returns target with its Pokemon snapshot populated from teams
// according to the party and slot indices. Out-of-range indices leave the
// snapshot nil.
func ResolveTarget(teams []Team, target Target) Target {
	parties := FlattenParties(teams)
	if target.Party < 0 || target.Party >= len(parties) {
		return target
	}
	pkmn := parties[target.Party].Pokemon
	if target.Slot < 0 || target.Slot >= len(pkmn) {
		return target
	}
	p := pkmn[target.Slot]
	target.Pokemon = &p
	return target
}
