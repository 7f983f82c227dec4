package api

import (
	"testing"

	"battlecore/internal/battle"
	"battlecore/internal/config"
	"battlecore/internal/datastore"
	"battlecore/internal/ident"
)

func testStore() *datastore.Memory {
	d := datastore.NewMemory()
	d.Species["Rattata"] = datastore.Species{
		Name: "Rattata", Types: []ident.Type{ident.Normal},
		BaseStats: ident.StatTable{30, 56, 35, 25, 35, 72},
	}
	d.Moves["Tackle"] = datastore.Move{
		Name: "Tackle", ID: "Tackle", Type: ident.Normal, Category: datastore.CategoryPhysical,
		BasePower: 40, Accuracy: 0, PP: 35, Target: datastore.TargetNormal,
	}
	return d
}

func testTeam() []battle.TeamMember {
	return []battle.TeamMember{{
		Species: "Rattata", Nickname: "Ratty", Level: 50,
		IVs: ident.StatTable{31, 31, 31, 31, 31, 31}, Moves: []string{"Tackle"},
	}}
}

func newTestManager(t *testing.T) (*BattleManager, string) {
	t.Helper()
	mgr := NewBattleManager(testStore())
	id, err := mgr.CreateBattle(1, []string{"alice"}, []string{"bob"}, testTeam(), testTeam(), config.DefaultBattleConfig(), config.DefaultLimits())
	if err != nil {
		t.Fatalf("CreateBattle: %v", err)
	}
	return mgr, id
}

func TestCreateBattleAssignsDistinctIDs(t *testing.T) {
	mgr := NewBattleManager(testStore())
	id1, err := mgr.CreateBattle(1, []string{"a"}, []string{"b"}, testTeam(), testTeam(), config.DefaultBattleConfig(), config.DefaultLimits())
	if err != nil {
		t.Fatal(err)
	}
	id2, err := mgr.CreateBattle(2, []string{"a"}, []string{"b"}, testTeam(), testTeam(), config.DefaultBattleConfig(), config.DefaultLimits())
	if err != nil {
		t.Fatal(err)
	}
	if id1 == id2 {
		t.Errorf("expected distinct battle IDs, got %q twice", id1)
	}
}

func TestCreateBattlePropagatesSpeciesError(t *testing.T) {
	mgr := NewBattleManager(testStore())
	badTeam := []battle.TeamMember{{Species: "Missingno", Nickname: "x", Level: 50}}
	if _, err := mgr.CreateBattle(1, []string{"a"}, []string{"b"}, badTeam, testTeam(), config.DefaultBattleConfig(), config.DefaultLimits()); err == nil {
		t.Fatal("expected an error for an unknown species")
	}
}

func TestGetStatusUnknownBattle(t *testing.T) {
	mgr := NewBattleManager(testStore())
	if _, _, err := mgr.Status("nope"); err == nil {
		t.Fatal("expected an error for an unknown battle id")
	}
}

func TestGetRequestUnknownPlayer(t *testing.T) {
	mgr, id := newTestManager(t)
	if _, err := mgr.GetRequest(id, "carol"); err == nil {
		t.Fatal("expected an error for a player not in the battle")
	}
}

func TestFreshBattleRequestHasNoActiveSlots(t *testing.T) {
	mgr, id := newTestManager(t)

	// A fresh battle has not ended, and its first turn request is issued
	// before any creature has switched in.
	status, winner, err := mgr.Status(id)
	if err != nil || status {
		t.Fatalf("fresh battle should not have ended: %v %v %v", status, winner, err)
	}

	req, err := mgr.GetRequest(id, "alice")
	if err != nil {
		t.Fatalf("GetRequest(alice): %v", err)
	}
	// No active creatures yet (the manager does not auto-activate on
	// construction), so the turn request carries no active slots.
	if len(req.Active) != 0 {
		t.Errorf("expected no active slots before any switch-in, got %d", len(req.Active))
	}
}

func TestSubmitChoiceRejectsUnknownBattle(t *testing.T) {
	mgr := NewBattleManager(testStore())
	err := mgr.SubmitChoice("nope", battle.Choice{PlayerID: "alice", Kind: battle.ActionMove})
	if err == nil {
		t.Fatal("expected an error for an unknown battle")
	}
}

func TestEndBattleRemovesIt(t *testing.T) {
	mgr, id := newTestManager(t)
	mgr.EndBattle(id)
	if _, _, err := mgr.Status(id); err == nil {
		t.Fatal("expected an error after EndBattle removed the battle")
	}
}

func TestGetLogReturnsConstructionEvents(t *testing.T) {
	mgr, id := newTestManager(t)
	lines, err := mgr.GetLog(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) == 0 {
		t.Fatal("expected construction to have emitted at least one log line")
	}
}
