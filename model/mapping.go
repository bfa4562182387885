package model

// Mapping status constants. Status is always derived from a MappingEntry,
// never stored on it.
const (
	MappingStatusAuto     = "auto"
	MappingStatusManual   = "manual"
	MappingStatusUnmapped = "unmapped"
	MappingStatusExcluded = "excluded"
)

// MappingEntry is one row of a migration mapping table: a set of source
// activities and the target activity their tokens should land on in the new
// definition version.
//
// BaseTargetID is the engine- or heuristic-suggested target; OverrideTargetID
// is the operator's manual choice. Both use "" for absent. An excluded entry
// is skipped entirely at compile time.
type MappingEntry struct {
	SourceActivityIDs []string `json:"source_activity_ids"`
	BaseTargetID      string   `json:"base_target_id,omitempty"`
	OverrideTargetID  string   `json:"override_target_id,omitempty"`
	Excluded          bool     `json:"excluded,omitempty"`
	TriggerOverride   *bool    `json:"trigger_override,omitempty"`
}

// EffectiveTarget returns the target actually used for compilation: the
// override if present, else the base suggestion, else "".
func (e MappingEntry) EffectiveTarget() string {
	if e.OverrideTargetID != "" {
		return e.OverrideTargetID
	}
	return e.BaseTargetID
}

// MigrationSuggestion is one record of the engine's default-mapping plan for
// a (source, target) definition pair, consumed as-is from the engine.
type MigrationSuggestion struct {
	SourceActivityIDs  []string `json:"sourceActivityIds"`
	TargetActivityID   string   `json:"targetActivityId,omitempty"`
	UpdateEventTrigger *bool    `json:"updateEventTrigger,omitempty"`
}
