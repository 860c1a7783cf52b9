package events

import (
	"strconv"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/verdict"
)

// ResultEvent is emitted for every target, probed or skipped.
type ResultEvent struct {
	BaseEvent
	Index     int             `json:"index"`
	Host      string          `json:"host"`
	Port      int             `json:"port"`
	Verdict   verdict.Verdict `json:"verdict"`
	Status    int             `json:"status,omitzero"`
	LatencyMs float64         `json:"latency_ms"`
	Evidence  string          `json:"evidence,omitempty"`
}

// Address renders host:port.
func (e *ResultEvent) Address() string {
	return e.Host + ":" + strconv.Itoa(e.Port)
}
