// Package report renders engine transactions as human-readable battle
// commentary and packs the lines into message-sized chunks.
package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dyc3/discord-pokemon-battles/pkg/models"
)

// EmbedCharLimit is the maximum length of one outgoing message chunk.
const EmbedCharLimit = 2048

// targetArgs is the Target payload carried by most transaction kinds.
type targetArgs struct {
	Team    int             `json:"Team"`
	Party   int             `json:"Party"`
	Slot    int             `json:"Slot"`
	Pokemon *models.Pokemon `json:"Pokemon"`
}

// resolve returns the pokemon the target refers to: the embedded snapshot
// when present, otherwise a lookup against the battle's teams.
func (a targetArgs) resolve(teams []models.Team) *models.Pokemon {
	if a.Pokemon != nil {
		return a.Pokemon
	}
	t := models.ResolveTarget(teams, models.Target{Party: a.Party, Slot: a.Slot})
	return t.Pokemon
}

// subject renders a pokemon as "Name [Type1] [Type2]".
func subject(p *models.Pokemon) string {
	if p == nil {
		return "An unknown pokemon"
	}
	tags := p.Type.Strings()
	if len(tags) == 0 {
		return p.Name
	}
	parts := make([]string, 0, len(tags)+1)
	parts = append(parts, p.Name)
	for _, t := range tags {
		parts = append(parts, "["+t+"]")
	}
	return strings.Join(parts, " ")
}

var statNames = []string{"HP", "Attack", "Defense", "Special Attack", "Special Defense", "Speed"}

// Pretty renders one transaction as a line of commentary. teams is the
// battle's team list, used to resolve target addresses the engine did not
// denormalize. Unrecognized transaction kinds fall back to a raw rendering
// that names the kind and its payload.
func Pretty(t models.Transaction, teams []models.Team) string {
	args := func(v any) bool {
		raw, err := json.Marshal(t.Args)
		if err != nil {
			return false
		}
		return json.Unmarshal(raw, v) == nil
	}

	switch t.Name {
	case "DamageTransaction":
		var a struct {
			Target targetArgs `json:"Target"`
			Damage int        `json:"Damage"`
		}
		if args(&a) {
			return fmt.Sprintf("%s took %d damage.", subject(a.Target.resolve(teams)), a.Damage)
		}
	case "HealTransaction":
		var a struct {
			Target targetArgs `json:"Target"`
			Amount int        `json:"Amount"`
		}
		if args(&a) {
			return fmt.Sprintf("%s restored %d HP.", subject(a.Target.resolve(teams)), a.Amount)
		}
	case "InflictStatusTransaction":
		var a struct {
			Target       targetArgs             `json:"Target"`
			StatusEffect models.StatusCondition `json:"StatusEffect"`
		}
		if args(&a) {
			tags := models.Taggify(a.StatusEffect.Strings())
			return fmt.Sprintf("%s was inflicted with %s.", subject(a.Target.resolve(teams)), tags)
		}
	case "CureStatusTransaction":
		var a struct {
			Target       targetArgs             `json:"Target"`
			StatusEffect models.StatusCondition `json:"StatusEffect"`
		}
		if args(&a) {
			tags := models.Taggify(a.StatusEffect.Strings())
			return fmt.Sprintf("%s was cured of %s.", subject(a.Target.resolve(teams)), tags)
		}
	case "ModifyStatTransaction":
		var a struct {
			Target targetArgs `json:"Target"`
			Stat   int        `json:"Stat"`
			Stages int        `json:"Stages"`
		}
		if args(&a) {
			stat := "stat"
			if a.Stat >= 0 && a.Stat < len(statNames) {
				stat = statNames[a.Stat]
			}
			dir := "rose"
			if a.Stages < 0 {
				dir = "fell"
			}
			return fmt.Sprintf("%s's %s %s.", subject(a.Target.resolve(teams)), stat, dir)
		}
	case "FaintTransaction":
		var a struct {
			Target targetArgs `json:"Target"`
		}
		if args(&a) {
			return fmt.Sprintf("%s fainted.", subject(a.Target.resolve(teams)))
		}
	case "UseMoveTransaction":
		var a struct {
			User targetArgs `json:"User"`
			Move struct {
				Name string `json:"Name"`
			} `json:"Move"`
		}
		if args(&a) && a.Move.Name != "" {
			return fmt.Sprintf("%s used %s.", subject(a.User.resolve(teams)), a.Move.Name)
		}
	case "MoveFailTransaction":
		return "But it failed."
	case "SendOutTransaction":
		var a struct {
			Target targetArgs `json:"Target"`
		}
		if args(&a) {
			return fmt.Sprintf("%s was sent out.", subject(a.Target.resolve(teams)))
		}
	case "PPTransaction":
		var a struct {
			Move struct {
				Name string `json:"Name"`
			} `json:"Move"`
			Amount int `json:"Amount"`
		}
		if args(&a) && a.Move.Name != "" {
			return fmt.Sprintf("%s's PP changed by %d.", a.Move.Name, a.Amount)
		}
	case "FriendshipTransaction":
		var a struct {
			Target targetArgs `json:"Target"`
			Amount int        `json:"Amount"`
		}
		if args(&a) {
			dir := "grew"
			if a.Amount < 0 {
				dir = "fell"
			}
			return fmt.Sprintf("%s's friendship %s.", subject(a.Target.resolve(teams)), dir)
		}
	case "EVTransaction":
		var a struct {
			Target targetArgs `json:"Target"`
			Stat   int        `json:"Stat"`
			Amount int        `json:"Amount"`
		}
		if args(&a) {
			stat := "stat"
			if a.Stat >= 0 && a.Stat < len(statNames) {
				stat = statNames[a.Stat]
			}
			verb := "gained"
			amount := a.Amount
			if amount < 0 {
				verb = "lost"
				amount = -amount
			}
			return fmt.Sprintf("%s %s %d %s EVs.", subject(a.Target.resolve(teams)), verb, amount, stat)
		}
	case "WeatherTransaction":
		return "The weather changed."
	case "EndBattleTransaction":
		return "The battle has ended."
	}

	raw, err := json.Marshal(t.Args)
	if err != nil {
		raw = []byte(fmt.Sprintf("%v", t.Args))
	}
	return fmt.Sprintf("%s: %s", t.Name, raw)
}

// PrettyAll renders every transaction and packs the lines into chunks that
// fit one outgoing message each.
func PrettyAll(transactions []models.Transaction, teams []models.Team) []string {
	lines := make([]string, 0, len(transactions))
	for _, t := range transactions {
		lines = append(lines, Pretty(t, teams))
	}
	return Chunk(lines, EmbedCharLimit)
}

// Chunk concatenates lines (newline-separated) greedily into chunks of at
// most limit characters, counting the separators. A single line that cannot
// fit with its separator is truncated to limit and emitted as its own chunk.
func Chunk(lines []string, limit int) []string {
	var chunks []string
	current := ""
	for _, line := range lines {
		if len(current)+len(line)+1 > limit {
			if len(current) > 0 {
				chunks = append(chunks, current)
			}
			if len(line)+1 > limit {
				chunks = append(chunks, line[:limit])
				current = ""
				continue
			}
			current = ""
		}
		current += line + "\n"
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}
