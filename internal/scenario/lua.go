package scenario

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Shopify/go-lua"

	"github.com/feiai2017/gridcombat/internal/combat/battle"
)

const scenarioTypeName = "scenario"

// LoadFile runs the Lua script at path and returns the Scenario it builds.
// An unnamed scenario takes the file's base name.
func LoadFile(path string) (*Scenario, error) {
	state := newState()
	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	sc, err := run(state)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(sc.Name) == "" {
		sc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return sc, nil
}

// Parse runs a Lua script held in memory.
func Parse(src string) (*Scenario, error) {
	state := newState()
	if err := lua.LoadString(state, src); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	return run(state)
}

func newState() *lua.State {
	state := lua.NewState()
	lua.OpenLibraries(state)

	lua.NewMetaTable(state, scenarioTypeName)
	state.NewTable()
	lua.SetFunctions(state, scenarioMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)

	state.NewTable()
	lua.SetFunctions(state, []lua.RegistryFunction{{Name: "new", Function: scenarioNew}}, 0)
	state.SetGlobal("Scenario")
	return state
}

func run(state *lua.State) (*Scenario, error) {
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}
	if state.TypeOf(-1) != lua.TypeUserData {
		state.Pop(1)
		return nil, fmt.Errorf("scenario script must return Scenario")
	}
	ud := state.ToUserData(-1)
	state.Pop(1)
	sc, ok := ud.(*Scenario)
	if !ok || sc == nil {
		return nil, fmt.Errorf("scenario script returned invalid Scenario")
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
	}
	return sc, nil
}

func scenarioNew(state *lua.State) int {
	sc := &Scenario{Name: lua.OptString(state, 1, "")}
	state.PushUserData(sc)
	lua.SetMetaTableNamed(state, scenarioTypeName)
	return 1
}

var scenarioMethods = []lua.RegistryFunction{
	{Name: "player", Function: scenarioPlayer},
	{Name: "wave", Function: scenarioWave},
	{Name: "environment", Function: scenarioEnvironment},
	{Name: "act", Function: scenarioAct},
}

func checkScenario(state *lua.State) *Scenario {
	ud := lua.CheckUserData(state, 1, scenarioTypeName)
	if sc, ok := ud.(*Scenario); ok && sc != nil {
		return sc
	}
	lua.ArgumentError(state, 1, "scenario expected")
	return nil
}

// s:player(unit, slot [, rank])
func scenarioPlayer(state *lua.State) int {
	sc := checkScenario(state)
	sc.Player = append(sc.Player, battle.Placement{
		Unit: lua.CheckString(state, 2),
		Slot: lua.CheckInteger(state, 3),
		Rank: lua.OptInteger(state, 4, 0),
	})
	state.PushValue(1)
	return 1
}

// s:wave({ {unit = "...", slot = n, rank = n}, ... })
func scenarioWave(state *lua.State) int {
	sc := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)

	var wave []battle.Placement
	for _, i := range arrayIndexes(state, 2) {
		state.RawGetInt(2, i)
		if state.TypeOf(-1) != lua.TypeTable {
			lua.Errorf(state, "wave entry %d must be a table", i)
		}
		p := battle.Placement{
			Unit: stringField(state, -1, "unit"),
			Slot: intField(state, -1, "slot", -1),
			Rank: intField(state, -1, "rank", 0),
		}
		state.Pop(1)
		if p.Unit == "" {
			lua.Errorf(state, "wave entry %d needs a unit", i)
		}
		wave = append(wave, p)
	}
	sc.Waves = append(sc.Waves, wave)
	state.PushValue(1)
	return 1
}

// s:environment({ damage_type = multiplier, ... })
func scenarioEnvironment(state *lua.State) int {
	sc := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	if sc.Environment == nil {
		sc.Environment = map[string]float64{}
	}
	state.PushNil()
	for state.Next(2) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			if value, ok := state.ToNumber(-1); ok {
				sc.Environment[key] = value
			}
		}
		state.Pop(1)
	}
	state.PushValue(1)
	return 1
}

// s:act(round, slot, ability, target [, weapon])
func scenarioAct(state *lua.State) int {
	sc := checkScenario(state)
	sc.Moves = append(sc.Moves, Move{
		Round:     lua.CheckInteger(state, 2),
		Slot:      lua.CheckInteger(state, 3),
		AbilityID: lua.CheckString(state, 4),
		Target:    lua.CheckInteger(state, 5),
		WeaponID:  lua.OptString(state, 6, ""),
	})
	state.PushValue(1)
	return 1
}

func arrayIndexes(state *lua.State, index int) []int {
	index = state.AbsIndex(index)
	var keys []int
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeNumber {
			if i, ok := state.ToInteger(-2); ok && i > 0 {
				keys = append(keys, i)
			}
		}
		state.Pop(1)
	}
	sort.Ints(keys)
	return keys
}

func stringField(state *lua.State, index int, name string) string {
	state.Field(index, name)
	defer state.Pop(1)
	if state.TypeOf(-1) != lua.TypeString {
		return ""
	}
	v, _ := state.ToString(-1)
	return v
}

func intField(state *lua.State, index int, name string, def int) int {
	state.Field(index, name)
	defer state.Pop(1)
	if state.TypeOf(-1) != lua.TypeNumber {
		return def
	}
	v, _ := state.ToInteger(-1)
	return v
}
