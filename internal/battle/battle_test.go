package battle

import (
	"testing"

	"battlecore/internal/config"
	"battlecore/internal/datastore"
	"battlecore/internal/ident"
)

func testData() *datastore.Memory {
	d := datastore.NewMemory()
	d.Species["Rattata"] = datastore.Species{
		Name:      "Rattata",
		Types:     []ident.Type{ident.Normal},
		BaseStats: ident.StatTable{30, 56, 35, 25, 35, 72},
	}
	d.Moves["Tackle"] = datastore.Move{
		Name: "Tackle", ID: "Tackle", Type: ident.Normal, Category: datastore.CategoryPhysical,
		BasePower: 40, Accuracy: 0, PP: 35, Target: datastore.TargetNormal,
	}
	d.Moves["Struggle"] = datastore.Move{
		Name: "Struggle", ID: "Struggle", Type: ident.Normal, Category: datastore.CategoryPhysical,
		BasePower: 50, Accuracy: 0, PP: 1, Target: datastore.TargetNormal,
	}
	return d
}

func testTeam() []TeamMember {
	return []TeamMember{{
		Species: "Rattata", Nickname: "Ratty", Level: 50,
		IVs: ident.StatTable{31, 31, 31, 31, 31, 31}, Moves: []string{"Tackle"},
	}}
}

func newTestBattle(t *testing.T) *Battle {
	t.Helper()
	cfg := config.DefaultBattleConfig()
	cfg.BaseDamageRandomization = config.Max
	b, err := NewBattle(1, []string{"a"}, []string{"b"}, testTeam(), testTeam(), testData(), cfg, config.DefaultLimits())
	if err != nil {
		t.Fatalf("NewBattle: %v", err)
	}
	return b
}

func TestNewBattleBuildsBothSides(t *testing.T) {
	b := newTestBattle(t)
	for i, side := range b.Field.Sides {
		if len(side.Players) != 1 {
			t.Fatalf("side %d has %d players, want 1", i, len(side.Players))
		}
		if len(side.Players[0].Team) != 1 {
			t.Fatalf("side %d team size = %d, want 1", i, len(side.Players[0].Team))
		}
	}
}

func TestNewBattleUnknownSpeciesErrors(t *testing.T) {
	team := []TeamMember{{Species: "Missingno", Nickname: "x", Level: 50}}
	_, err := NewBattle(1, []string{"a"}, []string{"b"}, team, testTeam(), testData(), config.DefaultBattleConfig(), config.DefaultLimits())
	if err == nil {
		t.Fatal("expected an error for an unknown species")
	}
	var staticErr *StaticError
	if !asStatic(err, &staticErr) {
		t.Fatalf("expected a *StaticError, got %T: %v", err, err)
	}
}

func asStatic(err error, target **StaticError) bool {
	se, ok := err.(*StaticError)
	if ok {
		*target = se
	}
	return ok
}

func TestComputeStatsHPFormula(t *testing.T) {
	b := newTestBattle(t)
	c := firstCreature(t, b, 0)
	// HP = floor((2*base + iv + ev/4) * level / 100) + level + 10
	// = floor((2*30 + 31 + 0) * 50 / 100) + 50 + 10 = floor(45.5) + 60 = 45 + 60 = 105
	if c.MaxHP != 105 {
		t.Errorf("MaxHP = %d, want 105", c.MaxHP)
	}
	if c.HP != c.MaxHP {
		t.Errorf("a freshly constructed creature should start at full HP")
	}
}

func firstCreature(t *testing.T, b *Battle, sideIdx int) *Creature {
	t.Helper()
	h := b.Field.Sides[sideIdx].Players[0].Team[0]
	c, err := b.GetCreature(h)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// activateBothSides puts each side's first team member into its only
// active slot, mirroring what a team-preview/switch-in step would do
// before the first turn request is issued.
func activateBothSides(b *Battle) {
	for _, side := range b.Field.Sides {
		h := side.Players[0].Team[0]
		c, _ := b.GetCreature(h)
		side.Active[0] = h
		c.Active = true
		c.ActivePosition = 0
	}
}

func TestValidateChoiceRejectsUnknownMove(t *testing.T) {
	b := newTestBattle(t)
	activateBothSides(b)
	player := b.Field.Sides[0].Players[0]
	player.LastRequest = b.BuildTurnRequest(player)

	_, err := b.ValidateChoice(player, Choice{PlayerID: player.ID, Kind: ActionMove, UserPosition: 0, MoveID: "Hyperbeam"})
	if err == nil {
		t.Fatal("expected InvalidChoice for an unlisted move")
	}
	if _, ok := err.(*InvalidChoice); !ok {
		t.Fatalf("expected *InvalidChoice, got %T", err)
	}
}

func TestValidateChoiceAcceptsLegalMove(t *testing.T) {
	b := newTestBattle(t)
	activateBothSides(b)
	player := b.Field.Sides[0].Players[0]
	player.LastRequest = b.BuildTurnRequest(player)

	act, err := b.ValidateChoice(player, Choice{PlayerID: player.ID, Kind: ActionMove, UserPosition: 0, MoveID: "Tackle"})
	if err != nil {
		t.Fatalf("ValidateChoice: %v", err)
	}
	if act.Kind != ActionMove || act.MoveID != "Tackle" {
		t.Errorf("unexpected action: %+v", act)
	}
}

func TestValidateChoiceWithoutOutstandingRequest(t *testing.T) {
	b := newTestBattle(t)
	activateBothSides(b)
	player := b.Field.Sides[0].Players[0]
	_, err := b.ValidateChoice(player, Choice{PlayerID: player.ID, Kind: ActionMove})
	if err == nil {
		t.Fatal("expected an error when no request is outstanding")
	}
}

func TestRunTurnDealsDamageAndLogs(t *testing.T) {
	b := newTestBattle(t)
	activateBothSides(b)

	attacker := b.Field.Sides[0].Players[0].Team[0]
	defender := b.Field.Sides[1].Players[0].Team[0]
	defCreature, _ := b.GetCreature(defender)
	startHP := defCreature.HP

	act := &Action{Kind: ActionMove, User: attacker, SideIdx: 0, PlayerIdx: 0, MoveID: "Tackle", TargetSlot: 0}
	if err := b.RunTurn([]*Action{act}); err != nil {
		t.Fatalf("RunTurn: %v", err)
	}

	if defCreature.HP >= startHP {
		t.Errorf("defender HP = %d, want less than starting %d", defCreature.HP, startHP)
	}
	if b.Turn != 1 {
		t.Errorf("Turn = %d, want 1", b.Turn)
	}
	lines := b.Log.Lines()
	if len(lines) == 0 {
		t.Fatal("expected the turn to emit log lines")
	}
	foundMove := false
	for _, l := range lines {
		if l.Text == "move|mon:Ratty,0,1|name:Tackle" {
			foundMove = true
		}
	}
	if !foundMove {
		t.Errorf("expected a move log line, got %v", lines)
	}
}

func TestRunTurnFaintEndsBattle(t *testing.T) {
	b := newTestBattle(t)
	activateBothSides(b)

	attacker := b.Field.Sides[0].Players[0].Team[0]
	defender := b.Field.Sides[1].Players[0].Team[0]
	defCreature, _ := b.GetCreature(defender)
	defCreature.HP = 1
	defCreature.MaxHP = 1

	act := &Action{Kind: ActionMove, User: attacker, SideIdx: 0, PlayerIdx: 0, MoveID: "Tackle", TargetSlot: 0}
	if err := b.RunTurn([]*Action{act}); err != nil {
		t.Fatalf("RunTurn: %v", err)
	}

	if !defCreature.Fainted {
		t.Fatal("defender should have fainted")
	}
	if !b.Ended() {
		t.Fatal("battle should have ended once one side has no creatures left")
	}
	if b.Winner() != 0 {
		t.Errorf("Winner() = %d, want 0 (attacker's side)", b.Winner())
	}
}

func TestOrderActionsPutsSwitchesFirst(t *testing.T) {
	b := newTestBattle(t)
	activateBothSides(b)
	move := &Action{Kind: ActionMove, User: b.Field.Sides[0].Players[0].Team[0], MoveID: "Tackle"}
	sw := &Action{Kind: ActionSwitch, SideIdx: 1}
	ordered := b.orderActions([]*Action{move, sw})
	if ordered[0].Kind != ActionSwitch {
		t.Errorf("orderActions should place switches before attacks, got %+v", ordered[0])
	}
}

func TestValidateInvariantsCatchesOutOfRangeHP(t *testing.T) {
	b := newTestBattle(t)
	c := firstCreature(t, b, 0)
	c.HP = c.MaxHP + 10
	if err := b.ValidateInvariants(); err == nil {
		t.Fatal("expected an EngineInvariantError for hp > max_hp")
	}
}

func TestApplyHealNoopsOnFaintedCreature(t *testing.T) {
	b := newTestBattle(t)
	c := firstCreature(t, b, 0)
	c.HP = 0
	c.Fainted = true
	healed := b.ApplyHeal(c, 50)
	if healed != 0 {
		t.Errorf("ApplyHeal on a fainted creature healed %d, want 0", healed)
	}
}
