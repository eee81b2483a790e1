package models

import (
	"sort"
	"strings"
)

// StatusCondition is the engine's status bitmask: the low three bits hold the
// non-volatile condition index, the remaining bits are volatile condition
// flags. The encoding is fixed by the engine; the tables below must match it.
type StatusCondition int

// Non-volatile status conditions (index in the low three bits).
var nonVolatileNames = []string{
	"None",
	"Burn",
	"Freeze",
	"Paralyze",
	"Poison",
	"BadlyPoison",
	"Sleep",
}

// Volatile status conditions (flag bits, starting at bit 3).
var volatileNames = []string{
	"Bound",
	"CantEscape",
	"Confusion",
	"Cursed",
	"Embargo",
	"Flinch",
	"HealBlock",
	"Identified",
	"Infatuation",
	"LeechSeed",
	"Nightmare",
	"PerishSong",
	"Taunt",
	"Torment",
}

const nonVolatileMask = (1 << 3) - 1

// None reports whether no status condition of any kind is set.
func (s StatusCondition) None() bool { return s == 0 }

// NonVolatile returns the name of the non-volatile condition, or "" when
// there is none or the index is out of range.
func (s StatusCondition) NonVolatile() string {
	idx := int(s) & nonVolatileMask
	if idx == 0 || idx >= len(nonVolatileNames) {
		return ""
	}
	return nonVolatileNames[idx]
}

// Strings returns the names of every condition set in the bitmask.
func (s StatusCondition) Strings() []string {
	var out []string
	if nv := s.NonVolatile(); nv != "" {
		out = append(out, nv)
	}
	bits := int(s) >> 3
	for i, name := range volatileNames {
		if bits&(1<<i) != 0 {
			out = append(out, name)
		}
	}
	return out
}

// ElementalType is a bitmask of elemental types.
type ElementalType int

// Elemental type names by bit index. Fixed engine vocabulary and ordering.
var typeNames = []string{
	"Normal",
	"Fighting",
	"Flying",
	"Poison",
	"Ground",
	"Rock",
	"Bug",
	"Ghost",
	"Steel",
	"Fire",
	"Water",
	"Grass",
	"Electric",
	"Psychic",
	"Ice",
	"Dragon",
	"Dark",
	"Fairy",
}

// Strings returns the names of every type set in the bitmask, sorted.
func (t ElementalType) Strings() []string {
	var out []string
	for i, name := range typeNames {
		if int(t)&(1<<i) != 0 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Taggify renders a set of names as bracket tags: ["Dragon","Flying"] becomes
// "[Dragon][Flying]".
func Taggify(names []string) string {
	var b strings.Builder
	for _, n := range names {
		b.WriteString("[")
		b.WriteString(n)
		b.WriteString("]")
	}
	return b.String()
}

// Move categories.
const (
	MoveCategoryStatus   = 0
	MoveCategoryPhysical = 1
	MoveCategorySpecial  = 2
)
