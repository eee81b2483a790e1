package strategy

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dyc3/discord-pokemon-battles/pkg/models"
	lua "github.com/yuin/gopher-lua"

	"context"
)

// LoadLuaDir registers every *.lua file in dir as a strategy named after the
// file (without extension). Each script must define a global function
// decide(ctx) returning a table with "move" (0-based move index) and
// optionally "party"/"slot" overriding the default first-opponent target.
// Called once at startup; a missing dir is not an error.
func LoadLuaDir(r *Registry, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".lua") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		src, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read strategy script %s: %w", path, err)
		}
		name := strings.TrimSuffix(e.Name(), ".lua")
		// Compile once at load so bad scripts fail at startup, not mid-battle.
		if err := checkScript(string(src)); err != nil {
			return fmt.Errorf("strategy script %s: %w", path, err)
		}
		r.Register(name, luaFunc(string(src)))
		slog.Info("registered lua battle strategy", "name", name, "path", path)
	}
	return nil
}

func checkScript(src string) error {
	L := lua.NewState()
	defer L.Close()
	if err := L.DoString(src); err != nil {
		return err
	}
	if L.GetGlobal("decide").Type() != lua.LTFunction {
		return fmt.Errorf("script does not define a decide function")
	}
	return nil
}

// luaFunc wraps a script source as a strategy Func. A fresh lua state is
// created per decision; lua states are not safe for concurrent use.
func luaFunc(src string) Func {
	return func(_ context.Context, bc *models.BattleContext) (models.Turn, error) {
		if len(bc.Opponents) == 0 {
			return nil, fmt.Errorf("battle context has no opponents")
		}
		L := lua.NewState()
		defer L.Close()
		if err := L.DoString(src); err != nil {
			return nil, fmt.Errorf("lua strategy: %w", err)
		}
		if err := L.CallByParam(lua.P{
			Fn:      L.GetGlobal("decide"),
			NRet:    1,
			Protect: true,
		}, contextTable(L, bc)); err != nil {
			return nil, fmt.Errorf("lua strategy: %w", err)
		}
		ret := L.Get(-1)
		L.Pop(1)
		tbl, ok := ret.(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("lua strategy: decide returned %s, want table", ret.Type())
		}

		target := bc.Opponents[0]
		move := 0
		if v, ok := L.GetField(tbl, "move").(lua.LNumber); ok {
			move = int(v)
		}
		if v, ok := L.GetField(tbl, "party").(lua.LNumber); ok {
			target.Party = int(v)
		}
		if v, ok := L.GetField(tbl, "slot").(lua.LNumber); ok {
			target.Slot = int(v)
		}
		if move < 0 || move >= len(bc.Pokemon.Moves) {
			return nil, fmt.Errorf("lua strategy: move index %d out of range", move)
		}
		return bc.Fight(target, move), nil
	}
}

// contextTable builds the lua view of a battle context: the deciding
// pokemon's moves and the opponent list.
func contextTable(L *lua.LState, bc *models.BattleContext) *lua.LTable {
	ctx := L.NewTable()

	self := L.NewTable()
	L.SetField(self, "name", lua.LString(bc.Pokemon.Name))
	L.SetField(self, "hp", lua.LNumber(bc.Pokemon.CurrentHP))
	L.SetField(self, "level", lua.LNumber(bc.Pokemon.Level))
	moves := L.NewTable()
	for i, m := range bc.Pokemon.Moves {
		mt := L.NewTable()
		L.SetField(mt, "index", lua.LNumber(i))
		L.SetField(mt, "name", lua.LString(m.Name))
		L.SetField(mt, "pp", lua.LNumber(m.CurrentPP))
		L.SetField(mt, "power", lua.LNumber(m.Power))
		L.SetField(mt, "category", lua.LNumber(m.Category))
		L.SetField(mt, "ailment_chance", lua.LNumber(m.AilmentChance))
		L.SetField(mt, "flinch_chance", lua.LNumber(m.FlinchChance))
		moves.Append(mt)
	}
	L.SetField(self, "moves", moves)
	L.SetField(ctx, "pokemon", self)

	opponents := L.NewTable()
	for _, o := range bc.Opponents {
		ot := L.NewTable()
		L.SetField(ot, "party", lua.LNumber(o.Party))
		L.SetField(ot, "slot", lua.LNumber(o.Slot))
		if o.Pokemon != nil {
			L.SetField(ot, "name", lua.LString(o.Pokemon.Name))
			L.SetField(ot, "hp", lua.LNumber(o.Pokemon.CurrentHP))
			L.SetField(ot, "status", lua.LNumber(int(o.Pokemon.StatusEffects)))
		}
		opponents.Append(ot)
	}
	L.SetField(ctx, "opponents", opponents)

	return ctx
}
