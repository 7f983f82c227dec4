package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"battlecore/internal/battle"
	"battlecore/internal/config"
	"battlecore/internal/ident"
)

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	manager *BattleManager
}

// teamMemberRequest mirrors battle.TeamMember over the wire. Gender and
// Nature are sent as their underlying ordinals (see internal/ident) rather
// than names, keeping this layer free of a name-lookup table the engine
// itself has no need for. IVs/EVs follow StatTable order: hp, atk, def,
// spa, spd, spe.
type teamMemberRequest struct {
	Species  string       `json:"species"`
	Nickname string       `json:"nickname"`
	Level    int          `json:"level"`
	Gender   ident.Gender `json:"gender"`
	Shiny    bool         `json:"shiny"`
	Nature   ident.Nature `json:"nature"`
	IVs      [6]int       `json:"ivs"`
	EVs      [6]int       `json:"evs"`
	Ability  string       `json:"ability"`
	Item     string       `json:"item"`
	Moves    []string     `json:"moves"`
}

func (tm teamMemberRequest) toTeamMember() battle.TeamMember {
	return battle.TeamMember{
		Species:  tm.Species,
		Nickname: tm.Nickname,
		Level:    tm.Level,
		Gender:   tm.Gender,
		Shiny:    tm.Shiny,
		Nature:   tm.Nature,
		IVs:      ident.StatTable(tm.IVs),
		EVs:      ident.StatTable(tm.EVs),
		Ability:  tm.Ability,
		Item:     tm.Item,
		Moves:    tm.Moves,
	}
}

type createBattleRequest struct {
	Seed       int64               `json:"seed"`
	BattleType string              `json:"battleType"`
	PlayerA    []string            `json:"playerA"`
	PlayerB    []string            `json:"playerB"`
	TeamA      []teamMemberRequest `json:"teamA"`
	TeamB      []teamMemberRequest `json:"teamB"`
}

func (h *routerHandlers) handleCreateBattle(w http.ResponseWriter, r *http.Request) {
	var req createBattleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request", http.StatusBadRequest)
		return
	}
	if len(req.PlayerA) == 0 || len(req.PlayerB) == 0 {
		writeError(w, "playerA and playerB are both required", http.StatusBadRequest)
		return
	}

	cfg := config.DefaultBattleConfig()
	switch req.BattleType {
	case "doubles":
		cfg.BattleType = config.Doubles
	case "triples":
		cfg.BattleType = config.Triples
	case "multi":
		cfg.BattleType = config.Multi
	}
	cfg.Format = config.DefaultFormat(cfg.BattleType)

	teamA := make([]battle.TeamMember, len(req.TeamA))
	for i, tm := range req.TeamA {
		teamA[i] = tm.toTeamMember()
	}
	teamB := make([]battle.TeamMember, len(req.TeamB))
	for i, tm := range req.TeamB {
		teamB[i] = tm.toTeamMember()
	}

	id, err := h.manager.CreateBattle(req.Seed, req.PlayerA, req.PlayerB, teamA, teamB, cfg, config.DefaultLimits())
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]string{"battleId": id})
}

func (h *routerHandlers) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	battleID := chi.URLParam(r, "id")
	ended, winner, err := h.manager.Status(battleID)
	if err != nil {
		writeError(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]interface{}{"ended": ended, "winner": winner})
}

func (h *routerHandlers) handleGetLog(w http.ResponseWriter, r *http.Request) {
	battleID := chi.URLParam(r, "id")
	lines, err := h.manager.GetLog(battleID)
	if err != nil {
		writeError(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, lines)
}

func (h *routerHandlers) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	battleID := chi.URLParam(r, "id")
	playerID := chi.URLParam(r, "player")
	req, err := h.manager.GetRequest(battleID, playerID)
	if err != nil {
		writeError(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, req)
}

func (h *routerHandlers) handleSubmitChoice(w http.ResponseWriter, r *http.Request) {
	battleID := chi.URLParam(r, "id")

	var choice battle.Choice
	if err := json.NewDecoder(r.Body).Decode(&choice); err != nil {
		writeError(w, "invalid request", http.StatusBadRequest)
		return
	}

	if err := h.manager.SubmitChoice(battleID, choice); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]bool{"accepted": true})
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
