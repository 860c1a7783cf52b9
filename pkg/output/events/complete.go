package events

import "github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/verdict"

// CompleteEvent is emitted when a scan finishes, successfully or not.
type CompleteEvent struct {
	BaseEvent
	Success     bool                    `json:"success"`
	ExitReason  string                  `json:"exit_reason"`
	Processed   int                     `json:"processed"`
	Total       int                     `json:"total"`
	NextIndex   int                     `json:"next_index"`
	Rotations   int                     `json:"rotations"`
	Verdicts    map[verdict.Verdict]int `json:"verdicts"`
	DurationSec float64                 `json:"duration_sec"`
	LeftAt      string                  `json:"left_at,omitempty"`
}
