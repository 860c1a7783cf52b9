package events

// StartEvent is emitted once the datasource is resolved and before the
// first probe.
type StartEvent struct {
	BaseEvent
	Grafana      string     `json:"grafana"`
	Datasource   string     `json:"datasource_uid"`
	DatasourceID int64      `json:"datasource_id,omitzero"`
	TotalTargets int        `json:"total_targets"`
	Hosts        int        `json:"hosts"`
	Ports        []int      `json:"ports"`
	ResumeFrom   int        `json:"resume_from,omitzero"`
	Config       ScanConfig `json:"config"`
}

// ScanConfig contains the scan settings that shape the results.
type ScanConfig struct {
	Order          string  `json:"order"`
	RotateEvery    int     `json:"rotate_every"`
	ProbeTimeoutMs int64   `json:"probe_timeout_ms"`
	ClosedBelowMs  int64   `json:"closed_below_ms"`
	FilteredFromMs int64   `json:"filtered_from_ms"`
	Rate           float64 `json:"rate,omitzero"`
	Version        int64   `json:"version_start,omitzero"`
}
