package model

// Stage identifies one of the five canonical pipeline stages.
type Stage string

// Pipeline stages in execution order.
const (
	StageMastery   Stage = "mastery"
	StageWeakness  Stage = "weakness"
	StageRevision  Stage = "revision"
	StageReadiness Stage = "readiness"
	StageSnapshot  Stage = "snapshot"
)

// Stages lists the canonical stages in execution order.
var Stages = []Stage{StageMastery, StageWeakness, StageRevision, StageReadiness, StageSnapshot}

// Next returns the stage that follows s, or false for the terminal stage.
func (s Stage) Next() (Stage, bool) {
	for i, st := range Stages {
		if st == s && i+1 < len(Stages) {
			return Stages[i+1], true
		}
	}
	return "", false
}

// Valid reports whether s is one of the canonical stages.
func (s Stage) Valid() bool {
	for _, st := range Stages {
		if st == s {
			return true
		}
	}
	return false
}

// RunState describes where a pipeline run is in its lifecycle.
type RunState string

// Run lifecycle states. A run moves Queued -> Running per stage and ends in
// Complete or Failed; Failed is reachable from any Running state.
const (
	StateQueued   RunState = "queued"
	StateRunning  RunState = "running"
	StateComplete RunState = "complete"
	StateFailed   RunState = "failed"
)

// Terminal reports whether the state ends the run.
func (s RunState) Terminal() bool {
	return s == StateComplete || s == StateFailed
}
