package api

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"battlecore/internal/battle"
	"battlecore/internal/config"
	"battlecore/internal/datastore"
)

// managedBattle serializes choice submission and turn execution for one
// Battle; Battle itself assumes single-threaded access per spec.md §5's
// "smallest unit of work the host can abort between is a single request
// boundary".
type managedBattle struct {
	mu      sync.Mutex
	b       *battle.Battle
	pending map[string]*battle.Action
}

// BattleManager holds every battle the API surface fronts, keyed by an
// opaque ID handed out at creation time.
type BattleManager struct {
	mu      sync.RWMutex
	data    datastore.DataStore
	battles map[string]*managedBattle
	nextID  uint64
}

// NewBattleManager constructs a manager backed by a shared, read-only
// DataStore (spec.md §5: "The DataStore is read-only and is safe to share
// across battles").
func NewBattleManager(data datastore.DataStore) *BattleManager {
	return &BattleManager{data: data, battles: map[string]*managedBattle{}}
}

// CreateBattle constructs a new Battle and returns its manager-assigned ID.
func (mgr *BattleManager) CreateBattle(seed int64, playerAIDs, playerBIDs []string, teamA, teamB []battle.TeamMember, cfg config.BattleConfig, limits config.ResourceLimits) (string, error) {
	b, err := battle.NewBattle(seed, playerAIDs, playerBIDs, teamA, teamB, mgr.data, cfg, limits)
	if err != nil {
		return "", err
	}
	b.RuntimeErrorHook = func(effect string, kind battle.EventKind, err error) {
		RecordFxlangRuntimeError()
	}
	b.Log.EmitHook = func(dropped bool) { RecordEventLogged(dropped) }

	id := fmt.Sprintf("battle-%d", atomic.AddUint64(&mgr.nextID, 1))
	mgr.mu.Lock()
	mgr.battles[id] = &managedBattle{b: b, pending: map[string]*battle.Action{}}
	count := len(mgr.battles)
	mgr.mu.Unlock()
	UpdateActiveBattles(count)
	return id, nil
}

// EndBattle drops a battle from the manager, e.g. once Ended() is true
// and the host has finished reading its final log.
func (mgr *BattleManager) EndBattle(id string) {
	mgr.mu.Lock()
	delete(mgr.battles, id)
	count := len(mgr.battles)
	mgr.mu.Unlock()
	UpdateActiveBattles(count)
}

func (mgr *BattleManager) get(id string) (*managedBattle, bool) {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	mb, ok := mgr.battles[id]
	return mb, ok
}

func findPlayer(b *battle.Battle, playerID string) *battle.Player {
	for _, side := range b.Field.Sides {
		for _, p := range side.Players {
			if p.ID == playerID {
				return p
			}
		}
	}
	return nil
}

func playerCount(b *battle.Battle) int {
	n := 0
	for _, side := range b.Field.Sides {
		n += len(side.Players)
	}
	return n
}

// GetRequest builds the current turn request for a player and records it
// as the player's outstanding request, which ValidateChoice checks against.
func (mgr *BattleManager) GetRequest(battleID, playerID string) (*battle.Request, error) {
	mb, ok := mgr.get(battleID)
	if !ok {
		return nil, fmt.Errorf("api: unknown battle %q", battleID)
	}
	mb.mu.Lock()
	defer mb.mu.Unlock()
	player := findPlayer(mb.b, playerID)
	if player == nil {
		return nil, fmt.Errorf("api: unknown player %q in battle %q", playerID, battleID)
	}
	req := mb.b.BuildTurnRequest(player)
	player.LastRequest = req
	return req, nil
}

// GetLog returns every log line emitted so far.
func (mgr *BattleManager) GetLog(battleID string) ([]battle.LogLine, error) {
	mb, ok := mgr.get(battleID)
	if !ok {
		return nil, fmt.Errorf("api: unknown battle %q", battleID)
	}
	return mb.b.Log.Lines(), nil
}

// Status reports whether the battle has ended and who won (-2 tie, -1
// ongoing, otherwise the winning side index).
func (mgr *BattleManager) Status(battleID string) (ended bool, winner int, err error) {
	mb, ok := mgr.get(battleID)
	if !ok {
		return false, -1, fmt.Errorf("api: unknown battle %q", battleID)
	}
	return mb.b.Ended(), mb.b.Winner(), nil
}

// SubmitChoice validates and queues a player's choice; once every
// player's choice for the in-flight turn has arrived, it runs the turn
// and clears the queue (spec.md §5's request/response cadence).
func (mgr *BattleManager) SubmitChoice(battleID string, choice battle.Choice) error {
	mb, ok := mgr.get(battleID)
	if !ok {
		return fmt.Errorf("api: unknown battle %q", battleID)
	}
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.b.Ended() {
		return fmt.Errorf("api: battle %q has ended", battleID)
	}
	player := findPlayer(mb.b, choice.PlayerID)
	if player == nil {
		return fmt.Errorf("api: unknown player %q in battle %q", choice.PlayerID, battleID)
	}

	action, err := mb.b.ValidateChoice(player, choice)
	if err != nil {
		return err
	}
	mb.pending[choice.PlayerID] = action
	if len(mb.pending) < playerCount(mb.b) {
		return nil
	}

	actions := make([]*battle.Action, 0, len(mb.pending))
	for _, a := range mb.pending {
		actions = append(actions, a)
	}
	for id := range mb.pending {
		delete(mb.pending, id)
	}

	start := time.Now()
	runErr := mb.b.RunTurn(actions)
	RecordTurn(time.Since(start))
	RecordDispatchDepth(mb.b.DispatchHighWater())
	return runErr
}
