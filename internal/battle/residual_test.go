package battle

import (
	"testing"

	"battlecore/internal/datastore"
	"battlecore/internal/ident"
)

// withCondition registers an OnResidual program under id in d, returning
// d so callers can chain it into testData()'s setup.
func withCondition(d *datastore.Memory, id, onResidual string) *datastore.Memory {
	d.Conditions[id] = datastore.Condition{Name: id, ID: id, Programs: map[string]string{"OnResidual": onResidual}}
	return d
}

func TestSetStatusWiresResidualCondition(t *testing.T) {
	b := newTestBattle(t)
	withCondition(b.Data.(*datastore.Memory), "tox", "damage: $mon 10")
	activateBothSides(b)
	c := firstCreature(t, b, 0)
	startHP := c.HP

	if ok := b.SetStatus(c, Status("tox")); !ok {
		t.Fatal("SetStatus returned false on a healthy creature")
	}
	if err := b.runResidual(); err != nil {
		t.Fatalf("runResidual: %v", err)
	}
	if c.HP != startHP-10 {
		t.Errorf("HP = %d, want %d after one residual tick", c.HP, startHP-10)
	}
}

func TestSetWeatherRegistersAndFiresResidual(t *testing.T) {
	b := newTestBattle(t)
	withCondition(b.Data.(*datastore.Memory), "sand", "log: weathertick")

	ok, err := b.SetWeather("sand", -1)
	if err != nil || !ok {
		t.Fatalf("SetWeather: ok=%v err=%v", ok, err)
	}
	if err := b.runResidual(); err != nil {
		t.Fatalf("runResidual: %v", err)
	}
	if !logContains(b, "weathertick") {
		t.Errorf("expected a weathertick log line, got %v", b.Log.Lines())
	}
}

func TestSetTerrainReplacesPriorAndUnregistersIt(t *testing.T) {
	b := newTestBattle(t)
	data := b.Data.(*datastore.Memory)
	withCondition(data, "grassyterrain", "log: terraintick")
	withCondition(data, "mistyterrain", "log: shouldnotfire")

	if _, err := b.SetTerrain("mistyterrain", -1); err != nil {
		t.Fatalf("SetTerrain: %v", err)
	}
	oldHandle := b.Field.Terrain.Handle
	if _, err := b.SetTerrain("grassyterrain", -1); err != nil {
		t.Fatalf("SetTerrain: %v", err)
	}
	if b.Field.Terrain.ID != "grassyterrain" {
		t.Fatalf("Terrain.ID = %q, want grassyterrain", b.Field.Terrain.ID)
	}
	if err := b.runResidual(); err != nil {
		t.Fatalf("runResidual: %v", err)
	}
	if logContains(b, "shouldnotfire") {
		t.Errorf("old terrain's callback should have been unregistered on replacement")
	}
	if !logContains(b, "terraintick") {
		t.Errorf("expected the new terrain's residual to fire")
	}
	if h := b.Field.Terrain.Handle; h == oldHandle {
		t.Errorf("new terrain reused the old terrain's handle")
	}
}

func TestAddVolatileRegistersConditionAndResidualFires(t *testing.T) {
	b := newTestBattle(t)
	withCondition(b.Data.(*datastore.Memory), "leechseed", "damage: $mon 7")
	activateBothSides(b)
	c := firstCreature(t, b, 0)
	startHP := c.HP

	ok, err := b.AddVolatile(c, "leechseed")
	if err != nil || !ok {
		t.Fatalf("AddVolatile: ok=%v err=%v", ok, err)
	}
	if _, exists := c.Volatiles["leechseed"]; !exists {
		t.Fatal("volatile was not recorded on the creature")
	}
	if err := b.runResidual(); err != nil {
		t.Fatalf("runResidual: %v", err)
	}
	if c.HP != startHP-7 {
		t.Errorf("HP = %d, want %d after the volatile's residual tick", c.HP, startHP-7)
	}
}

func TestAddVolatileRejectsDuplicate(t *testing.T) {
	b := newTestBattle(t)
	withCondition(b.Data.(*datastore.Memory), "confusion", "log: noop")
	c := firstCreature(t, b, 0)

	if ok, _ := b.AddVolatile(c, "confusion"); !ok {
		t.Fatal("first AddVolatile should succeed")
	}
	if ok, _ := b.AddVolatile(c, "confusion"); ok {
		t.Fatal("adding an already-present volatile should be a no-op")
	}
}

func TestAddSideConditionStacksLayersOnReapplication(t *testing.T) {
	b := newTestBattle(t)
	withCondition(b.Data.(*datastore.Memory), "spikes", "log: noop")
	c := firstCreature(t, b, 0)

	if ok, err := b.AddSideCondition(c.SideIdx, "spikes", -1); err != nil || !ok {
		t.Fatalf("AddSideCondition: ok=%v err=%v", ok, err)
	}
	if ok, err := b.AddSideCondition(c.SideIdx, "spikes", -1); err != nil || !ok {
		t.Fatalf("AddSideCondition (second layer): ok=%v err=%v", ok, err)
	}
	cond := b.Field.Sides[c.SideIdx].Conditions["spikes"]
	if cond.Layers != 2 {
		t.Errorf("Layers = %d, want 2", cond.Layers)
	}
}

func TestRunResidualOrderFieldThenSidesThenCreatures(t *testing.T) {
	b := newTestBattle(t)
	data := b.Data.(*datastore.Memory)
	withCondition(data, "sand", "log: weather")
	withCondition(data, "grassyterrain", "log: terrain")
	withCondition(data, "spikes", "log: side")
	withCondition(data, "tox", "log: mon")
	activateBothSides(b)
	c := firstCreature(t, b, 0)

	if _, err := b.SetWeather("sand", -1); err != nil {
		t.Fatal(err)
	}
	if _, err := b.SetTerrain("grassyterrain", -1); err != nil {
		t.Fatal(err)
	}
	if _, err := b.AddSideCondition(c.SideIdx, "spikes", -1); err != nil {
		t.Fatal(err)
	}
	b.SetStatus(c, Status("tox"))

	if err := b.runResidual(); err != nil {
		t.Fatalf("runResidual: %v", err)
	}

	order := []string{"weather", "terrain", "side", "mon"}
	positions := map[string]int{}
	for i, l := range b.Log.Lines() {
		for _, name := range order {
			if l.Text == name {
				positions[name] = i
			}
		}
	}
	for i := 1; i < len(order); i++ {
		prev, cur := order[i-1], order[i]
		if positions[prev] == 0 && positions[cur] == 0 {
			continue
		}
		if positions[prev] >= positions[cur] {
			t.Errorf("residual order broken: %q at %d, %q at %d", prev, positions[prev], cur, positions[cur])
		}
	}
}

func logContains(b *Battle, text string) bool {
	for _, l := range b.Log.Lines() {
		if l.Text == text {
			return true
		}
	}
	return false
}

func TestApplySecondariesAppliesVolatileAndProgram(t *testing.T) {
	b := newTestBattle(t)
	data := b.Data.(*datastore.Memory)
	withCondition(data, "flinch", "log: flinched")
	data.Moves["Tackle"] = datastore.Move{
		Name: "Tackle", ID: "Tackle", Type: ident.Normal, Category: datastore.CategoryPhysical,
		BasePower: 40, Accuracy: 0, PP: 35, Target: datastore.TargetNormal,
		Secondaries: []datastore.SecondaryEffect{
			{Chance: ident.Whole(1), VolatileID: "flinch", Program: "log: secondaryfired"},
		},
	}
	activateBothSides(b)

	attacker := b.Field.Sides[0].Players[0].Team[0]
	defender := b.Field.Sides[1].Players[0].Team[0]
	defCreature, _ := b.GetCreature(defender)

	act := &Action{Kind: ActionMove, User: attacker, SideIdx: 0, PlayerIdx: 0, MoveID: "Tackle", TargetSlot: 0}
	if err := b.RunTurn([]*Action{act}); err != nil {
		t.Fatalf("RunTurn: %v", err)
	}

	if _, ok := defCreature.Volatiles["flinch"]; !ok {
		t.Error("expected the secondary effect's volatile to be applied")
	}
	if !logContains(b, "flinched") {
		t.Error("expected the volatile's own registered callback to be wired")
	}
	if !logContains(b, "secondaryfired") {
		t.Error("expected the secondary effect's inline program to run")
	}
}

func TestRunStatusMoveExecutesOnHitProgram(t *testing.T) {
	b := newTestBattle(t)
	data := b.Data.(*datastore.Memory)
	data.Moves["Growl"] = datastore.Move{
		Name: "Growl", ID: "Growl", Type: ident.Normal, Category: datastore.CategoryStatus,
		Accuracy: 0, PP: 40, Target: datastore.TargetNormal,
		OnHitProgram: "log: growled",
	}
	activateBothSides(b)

	attacker := b.Field.Sides[0].Players[0].Team[0]
	act := &Action{Kind: ActionMove, User: attacker, SideIdx: 0, PlayerIdx: 0, MoveID: "Growl", TargetSlot: 0}
	if err := b.RunTurn([]*Action{act}); err != nil {
		t.Fatalf("RunTurn: %v", err)
	}

	if !logContains(b, "growled") {
		t.Error("expected Growl's OnHitProgram to run")
	}
}

func TestExecuteSwitchReregistersAbilityItemAndStatus(t *testing.T) {
	b := newTestBattle(t)
	data := b.Data.(*datastore.Memory)
	withCondition(data, "brn", "log: burntick")
	data.Abilities["Static"] = datastore.Ability{Name: "Static", ID: "Static", Programs: map[string]string{"OnResidual": "log: statictick"}}
	activateBothSides(b)

	side := b.Field.Sides[0]
	c := firstCreature(t, b, 0)
	c.AbilityID = "Static"
	b.SetStatus(c, Status("brn"))

	// switch the same creature out then back in via a bench placeholder.
	bench := &Creature{Handle: b.Handles.Next(), PlayerIdx: 0, SideIdx: 0, Nickname: "Bench",
		CurrentSpecies: c.CurrentSpecies, Level: c.Level, MaxHP: c.MaxHP, HP: c.MaxHP,
		BaseMoves: append([]MoveSlot(nil), c.BaseMoves...), Moves: append([]MoveSlot(nil), c.BaseMoves...)}
	b.creatures[bench.Handle] = bench
	side.Players[0].Team = append(side.Players[0].Team, bench.Handle)

	c.NeedsSwitch = true
	if err := b.executeSwitch(&Action{Kind: ActionSwitch, SideIdx: 0, PlayerIdx: 0, ReplacementHandle: bench.Handle}); err != nil {
		t.Fatalf("executeSwitch (out): %v", err)
	}
	bench.NeedsSwitch = true
	if err := b.executeSwitch(&Action{Kind: ActionSwitch, SideIdx: 0, PlayerIdx: 0, ReplacementHandle: c.Handle}); err != nil {
		t.Fatalf("executeSwitch (back in): %v", err)
	}

	if err := b.runResidual(); err != nil {
		t.Fatalf("runResidual: %v", err)
	}
	if !logContains(b, "statictick") {
		t.Error("ability callback should be re-registered after switching back in")
	}
	if !logContains(b, "burntick") {
		t.Error("status callback should be re-registered after switching back in")
	}
}
