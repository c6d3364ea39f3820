package domain

import (
	"time"

	"github.com/google/uuid"
)

// Имена шагов запуска. Шаги источников используют их SourceID.
const StepDeriveParcelKeys = "derive_parcel_keys"

// StepStats — счетчики одного шага запуска.
type StepStats struct {
	Step      string `json:"step"`
	Selected  int    `json:"selected"`
	Succeeded int    `json:"succeeded"`
	Empty     int    `json:"empty"`
	Rejected  int    `json:"rejected"`
	Transient int    `json:"transient"`
	Ambiguous int    `json:"ambiguous"`
	Failed    int    `json:"failed"`
}

// FailureRate — доля неуспешных записей шага. Rejected — терминальные
// отказы данных, Transient — временные сбои реестра, Failed — ошибки
// хранилища; Empty неуспехом не считается.
func (s StepStats) FailureRate() float64 {
	if s.Selected == 0 {
		return 0
	}
	return float64(s.Rejected+s.Transient+s.Failed) / float64(s.Selected)
}

// RunSummary — итог одного запуска оркестратора. Сохраняется в хранилище
// даже для прерванных запусков: историю запусков читает дашборд.
type RunSummary struct {
	RunID       uuid.UUID
	StartedAt   time.Time
	FinishedAt  time.Time
	Steps       []StepStats
	Aborted     bool
	AbortReason string
}
