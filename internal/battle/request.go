package battle

import "battlecore/internal/ident"

// RequestKind identifies which of the four request shapes (spec.md §4.6)
// a Request carries.
type RequestKind int

const (
	RequestTurn RequestKind = iota
	RequestSwitch
	RequestTeamPreview
	RequestLearnMove
)

// MoveOption describes one legal move slot as surfaced in a turn request.
type MoveOption struct {
	ID       string
	Name     string
	PP       int
	MaxPP    int
	Disabled bool
	Target   string
}

// ActiveRequest is the per-active-slot detail of a turn request.
type ActiveRequest struct {
	Position      int
	Moves         []MoveOption
	CanSwitch     bool
	Trapped       bool
	CanMegaEvo    bool
	CanZMove      bool
	CanDynamax    bool
}

// Request is what the engine hands the host for one player between
// turns (spec.md §4.6).
type Request struct {
	Kind        RequestKind
	PlayerID    string
	Active      []ActiveRequest // RequestTurn
	SwitchSlots []int           // RequestSwitch: positions that need a replacement
	TeamSize    int             // RequestTeamPreview
	LearnMoveID string          // RequestLearnMove
}

// ActionKind identifies which Action variant a Choice resolved to
// (spec.md §4.4 step 2).
type ActionKind int

const (
	ActionMove ActionKind = iota
	ActionSwitch
	ActionTeamOrder
	ActionLearnMove
	ActionPass
)

// Choice is the host's parsed response to a Request.
type Choice struct {
	PlayerID string
	Kind     ActionKind

	// ActionMove
	UserPosition int
	MoveID       string
	TargetSlot   int // side-relative target slot; meaning depends on move target type
	MegaEvo      bool
	ZMove        bool
	Dynamax      bool

	// ActionSwitch
	ReplacementTeamIndex int

	// ActionTeamOrder
	Order []int

	// ActionLearnMove
	Accept        bool
	OverwriteSlot int
}

// Action is the validated, scheduler-ready form of a Choice (spec.md
// §4.4 step 2's `MoveAction`/`SwitchAction`/etc).
type Action struct {
	Kind ActionKind

	User          ident.Handle
	SideIdx       int
	PlayerIdx     int

	MoveID     string
	TargetSlot int
	MegaEvo    bool
	ZMove      bool
	Dynamax    bool

	ReplacementHandle ident.Handle

	Order []int

	Accept        bool
	OverwriteSlot int

	Priority      int
	EffectiveSpeed int
	SubOrder      int // input order (shuffled under the Random tie policy), for the tie-break
}

// ValidateChoice checks a Choice against the outstanding Request for that
// player, returning InvalidChoice on any mismatch (spec.md §4.6: "the
// battle stays at the same request until a legal choice arrives").
func (b *Battle) ValidateChoice(player *Player, choice Choice) (*Action, error) {
	req := player.LastRequest
	if req == nil {
		return nil, &InvalidChoice{PlayerID: player.ID, Reason: "no outstanding request"}
	}

	switch choice.Kind {
	case ActionMove:
		if req.Kind != RequestTurn {
			return nil, &InvalidChoice{PlayerID: player.ID, Reason: "move choice but no turn request is outstanding"}
		}
		var found *ActiveRequest
		for i := range req.Active {
			if req.Active[i].Position == choice.UserPosition {
				found = &req.Active[i]
				break
			}
		}
		if found == nil {
			return nil, &InvalidChoice{PlayerID: player.ID, Reason: "no active creature at that position"}
		}
		legal := false
		for _, m := range found.Moves {
			if m.ID == choice.MoveID && !m.Disabled && m.PP > 0 {
				legal = true
				break
			}
		}
		if !legal {
			return nil, &InvalidChoice{PlayerID: player.ID, Reason: "move is not legal for this slot"}
		}
		userHandle := b.Field.Sides[b.sideOf(player)].Active[choice.UserPosition]
		return &Action{
			Kind: ActionMove, User: userHandle, SideIdx: b.sideOf(player), PlayerIdx: b.playerIdxOf(player),
			MoveID: choice.MoveID, TargetSlot: choice.TargetSlot,
			MegaEvo: choice.MegaEvo, ZMove: choice.ZMove, Dynamax: choice.Dynamax,
		}, nil

	case ActionSwitch:
		if choice.ReplacementTeamIndex < 0 || choice.ReplacementTeamIndex >= len(player.Team) {
			return nil, &InvalidChoice{PlayerID: player.ID, Reason: "replacement index out of range"}
		}
		repl := player.Team[choice.ReplacementTeamIndex]
		c, err := b.GetCreature(repl)
		if err != nil {
			return nil, err
		}
		if c.Active || c.Fainted {
			return nil, &InvalidChoice{PlayerID: player.ID, Reason: "replacement is not a valid bench creature"}
		}
		return &Action{Kind: ActionSwitch, SideIdx: b.sideOf(player), PlayerIdx: b.playerIdxOf(player), ReplacementHandle: repl}, nil

	case ActionPass:
		if !b.Config.PassAllowed {
			return nil, &InvalidChoice{PlayerID: player.ID, Reason: "pass is not allowed by this format"}
		}
		return &Action{Kind: ActionPass, SideIdx: b.sideOf(player), PlayerIdx: b.playerIdxOf(player)}, nil

	case ActionTeamOrder:
		if len(choice.Order) != player.TeamSize {
			return nil, &InvalidChoice{PlayerID: player.ID, Reason: "team order must list every creature exactly once"}
		}
		seen := make(map[int]bool, len(choice.Order))
		for _, idx := range choice.Order {
			if idx < 0 || idx >= len(player.Team) || seen[idx] {
				return nil, &InvalidChoice{PlayerID: player.ID, Reason: "team order must list every creature exactly once"}
			}
			seen[idx] = true
		}
		return &Action{Kind: ActionTeamOrder, SideIdx: b.sideOf(player), PlayerIdx: b.playerIdxOf(player), Order: choice.Order}, nil

	case ActionLearnMove:
		if req.Kind != RequestLearnMove {
			return nil, &InvalidChoice{PlayerID: player.ID, Reason: "learn-move choice but no learn-move request is outstanding"}
		}
		if player.PendingLearn == nil {
			return nil, &InvalidChoice{PlayerID: player.ID, Reason: "no move is pending to learn"}
		}
		return &Action{
			Kind: ActionLearnMove, SideIdx: b.sideOf(player), PlayerIdx: b.playerIdxOf(player),
			Accept: choice.Accept, OverwriteSlot: choice.OverwriteSlot,
			User: player.PendingLearn.Creature, MoveID: player.PendingLearn.MoveID,
		}, nil

	default:
		return nil, &InvalidChoice{PlayerID: player.ID, Reason: "unknown choice kind"}
	}
}

func (b *Battle) sideOf(player *Player) int {
	for _, side := range b.Field.Sides {
		for _, p := range side.Players {
			if p == player {
				return side.Index
			}
		}
	}
	return -1
}

func (b *Battle) playerIdxOf(player *Player) int {
	side := b.Field.Sides[b.sideOf(player)]
	for i, p := range side.Players {
		if p == player {
			return i
		}
	}
	return -1
}

// BuildTurnRequest produces the per-player turn request for the next
// round (spec.md §4.6 "Turn request").
func (b *Battle) BuildTurnRequest(player *Player) *Request {
	side := b.Field.Sides[b.sideOf(player)]
	req := &Request{Kind: RequestTurn, PlayerID: player.ID}
	for pos, h := range side.Active {
		if h == ident.InvalidHandle {
			continue
		}
		c, err := b.GetCreature(h)
		if err != nil {
			continue
		}
		ar := ActiveRequest{Position: pos, CanSwitch: !c.Trapped}
		for _, slot := range c.Moves {
			ar.Moves = append(ar.Moves, MoveOption{
				ID: slot.ID, Name: slot.Name, PP: slot.PP, MaxPP: slot.MaxPP, Disabled: slot.Disabled,
			})
		}
		req.Active = append(req.Active, ar)
	}
	return req
}

// BuildSwitchRequest produces the request demanding a replacement at each
// of positions (spec.md §4.6 "Switch request": "after faint or forced
// switch").
func (b *Battle) BuildSwitchRequest(player *Player, positions []int) *Request {
	return &Request{Kind: RequestSwitch, PlayerID: player.ID, SwitchSlots: append([]int(nil), positions...)}
}

// BuildTeamPreviewRequest produces the request asking a player to order
// their team before battle begins (spec.md §4.6 "Team preview").
func (b *Battle) BuildTeamPreviewRequest(player *Player) *Request {
	return &Request{Kind: RequestTeamPreview, PlayerID: player.ID, TeamSize: player.TeamSize}
}

// BuildLearnMoveRequest produces the request offering player.PendingLearn,
// or nil if nothing is pending (spec.md §4.6 "learn-move").
func (b *Battle) BuildLearnMoveRequest(player *Player) *Request {
	if player.PendingLearn == nil {
		return nil
	}
	return &Request{Kind: RequestLearnMove, PlayerID: player.ID, LearnMoveID: player.PendingLearn.MoveID}
}
