// Package model holds the persistent record types shared by the storage
// backends and the public API.
package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord summarizes one completed evolution run.
type RunRecord struct {
	VersionedRecord
	ID             string  `json:"id"`
	CreatedAtUTC   string  `json:"created_at_utc"`
	Mode           string  `json:"mode"`
	Seed           int64   `json:"seed"`
	PopulationSize int     `json:"population_size"`
	Generations    int     `json:"generations"`
	BestFitness    float64 `json:"best_fitness"`
	BestProgram    string  `json:"best_program"`
}

// GenerationRecord holds per-generation scoreboard statistics.
type GenerationRecord struct {
	Generation int     `json:"generation"`
	Best       float64 `json:"best"`
	Worst      float64 `json:"worst"`
	Mean       float64 `json:"mean"`
	Median     float64 `json:"median"`
}
