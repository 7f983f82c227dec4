// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for all battle engine settings.
//
// IMPORTANT: When changing values, only modify this file.
// All other parts of the codebase should reference these values.
package config

import (
	"os"
	"strconv"
)

// =============================================================================
// BATTLE FORMAT CONFIGURATION
// =============================================================================

// BattleType selects the number of active slots per side.
type BattleType int

const (
	Singles BattleType = iota
	Doubles
	Triples
	Multi
)

func (t BattleType) String() string {
	switch t {
	case Singles:
		return "singles"
	case Doubles:
		return "doubles"
	case Triples:
		return "triples"
	case Multi:
		return "multi"
	default:
		return "unknown"
	}
}

// ActiveSlots returns max_side_length for the battle type.
func (t BattleType) ActiveSlots() int {
	switch t {
	case Doubles:
		return 2
	case Triples:
		return 3
	case Multi:
		return 2
	default:
		return 1
	}
}

// DamageRandomization controls the random factor applied during damage
// calculation (spec.md §4.5 step 5).
type DamageRandomization int

const (
	Randomized DamageRandomization = iota // uniform in [0.85, 1.00]
	Max                                   // always 1.00
	Min                                   // always 0.85
)

// SpeedTieResolution controls how equal-speed actions are ordered.
type SpeedTieResolution int

const (
	Random SpeedTieResolution = iota
	Keep
)

// NumericRules mirrors format.rules.numeric_rules.*.
type NumericRules struct {
	MaxMoveCount int // cap on learned moves per creature
}

// FormatOptions mirrors format.options.*.
type FormatOptions struct {
	AdjacencyReach int // 1 singles, 2 doubles, 3 triples
}

// Format holds the closed set of format-level rules recognized by the engine.
type Format struct {
	NumericRules NumericRules
	Options      FormatOptions
}

// DefaultFormat returns the default format for the given battle type.
func DefaultFormat(bt BattleType) Format {
	reach := 2
	switch bt {
	case Singles:
		reach = 1
	case Triples:
		reach = 3
	}
	return Format{
		NumericRules: NumericRules{MaxMoveCount: 4},
		Options:      FormatOptions{AdjacencyReach: reach},
	}
}

// BattleConfig holds the closed set of recognized battle options
// (spec.md §6 "Configuration").
type BattleConfig struct {
	BattleType               BattleType
	Format                   Format
	RevealActualHealth       bool
	BaseDamageRandomization  DamageRandomization
	SpeedSortTieResolution   SpeedTieResolution
	DynamaxAllowed           bool
	BagItemsAllowed          bool
	InfiniteBags             bool
	PassAllowed              bool
}

// DefaultBattleConfig returns the default battle configuration.
// This is the SINGLE SOURCE OF TRUTH for battle rule defaults.
func DefaultBattleConfig() BattleConfig {
	bt := Singles
	return BattleConfig{
		BattleType:              bt,
		Format:                  DefaultFormat(bt),
		RevealActualHealth:      false,
		BaseDamageRandomization: Randomized,
		SpeedSortTieResolution:  Random,
		DynamaxAllowed:          true,
		BagItemsAllowed:         true,
		InfiniteBags:            false,
		PassAllowed:             true,
	}
}

// BattleConfigFromEnv returns battle configuration with environment variable
// overrides. Environment variables take precedence over defaults.
func BattleConfigFromEnv() BattleConfig {
	cfg := DefaultBattleConfig()

	switch os.Getenv("BATTLE_TYPE") {
	case "doubles":
		cfg.BattleType = Doubles
	case "triples":
		cfg.BattleType = Triples
	case "multi":
		cfg.BattleType = Multi
	}
	cfg.Format = DefaultFormat(cfg.BattleType)

	if v := getEnvInt("MAX_MOVE_COUNT", 0); v > 0 {
		cfg.Format.NumericRules.MaxMoveCount = v
	}
	if v := getEnvInt("ADJACENCY_REACH", 0); v > 0 {
		cfg.Format.Options.AdjacencyReach = v
	}
	if os.Getenv("REVEAL_ACTUAL_HEALTH") == "true" {
		cfg.RevealActualHealth = true
	}
	switch os.Getenv("BASE_DAMAGE_RANDOMIZATION") {
	case "max":
		cfg.BaseDamageRandomization = Max
	case "min":
		cfg.BaseDamageRandomization = Min
	}
	if os.Getenv("SPEED_SORT_TIE_RESOLUTION") == "keep" {
		cfg.SpeedSortTieResolution = Keep
	}
	if os.Getenv("DYNAMAX_ALLOWED") == "false" {
		cfg.DynamaxAllowed = false
	}
	if os.Getenv("BAG_ITEMS_ALLOWED") == "false" {
		cfg.BagItemsAllowed = false
	}
	if os.Getenv("INFINITE_BAGS") == "true" {
		cfg.InfiniteBags = true
	}
	if os.Getenv("PASS_ALLOWED") == "false" {
		cfg.PassAllowed = false
	}

	return cfg
}

// =============================================================================
// RESOURCE LIMITS
// =============================================================================

// ResourceLimits controls engine-internal caps. These exist to bound memory
// and CPU for a single battle; they are not game-balance numbers.
type ResourceLimits struct {
	MaxCreaturesPerBattle int // hard cap on arena size
	MaxEventLogEntries    int // line cap for the log sink; lines past it are dropped
	MaxParseDepth         int // fxlang recursive-descent parser depth cap
	MaxDispatchDepth      int // nested event dispatch cap ("stack overflow" guard)
	MaxPendingRequests    int // per-player queued request backlog
}

// DefaultLimits returns the default resource limits.
func DefaultLimits() ResourceLimits {
	return ResourceLimits{
		MaxCreaturesPerBattle: 24,
		MaxEventLogEntries:    4096,
		MaxParseDepth:         5,
		MaxDispatchDepth:      64,
		MaxPendingRequests:    8,
	}
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int
	MaxBattles     int
	DebugListenAddr string
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:            3000,
		MaxBattles:      256,
		DebugListenAddr: "127.0.0.1:6060",
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if mb := getEnvInt("MAX_BATTLES", 0); mb > 0 {
		cfg.MaxBattles = mb
	}
	if addr := os.Getenv("DEBUG_LISTEN_ADDR"); addr != "" {
		cfg.DebugListenAddr = addr
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Battle BattleConfig
	Limits ResourceLimits
	Server ServerConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Battle: BattleConfigFromEnv(),
		Limits: DefaultLimits(),
		Server: ServerFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
