package oracle

import (
	"maps"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/defaults"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/jsonutil"
)

// Datasource is a Grafana datasource as returned by
// GET /api/datasources/uid/{uid} and accepted by PUT /api/datasources/{id}.
// Members not modelled here are kept in Extra and written back unchanged.
type Datasource struct {
	ID               int64           `json:"id"`
	UID              string          `json:"uid"`
	OrgID            int64           `json:"orgId"`
	Name             string          `json:"name"`
	Type             string          `json:"type"`
	Access           string          `json:"access"`
	URL              string          `json:"url"`
	User             string          `json:"user"`
	Database         string          `json:"database"`
	BasicAuth        bool            `json:"basicAuth"`
	WithCredentials  bool            `json:"withCredentials"`
	IsDefault        bool            `json:"isDefault"`
	JSONData         map[string]any  `json:"jsonData"`
	SecureJSONFields map[string]bool `json:"secureJsonFields"`
	Version          int64           `json:"version,omitzero"`
	ReadOnly         bool            `json:"readOnly"`

	Extra map[string]any `json:",unknown"`
}

// Clone returns a deep enough copy to rewrite URL and Version freely.
func (d *Datasource) Clone() *Datasource {
	if d == nil {
		return nil
	}
	c := *d
	c.JSONData = maps.Clone(d.JSONData)
	c.SecureJSONFields = maps.Clone(d.SecureJSONFields)
	c.Extra = maps.Clone(d.Extra)
	return &c
}

// ParseDatasource decodes a datasource JSON object.
func ParseDatasource(data []byte) (*Datasource, error) {
	var ds Datasource
	if err := jsonutil.Unmarshal(data, &ds); err != nil {
		return nil, err
	}
	return &ds, nil
}

// MSSQLTemplate is the config written when the datasource is addressed by
// id without a lookup. Windows authentication makes the health check open
// a TDS connection without stored credentials.
func MSSQLTemplate(id int64, uid string) *Datasource {
	return &Datasource{
		ID:     id,
		UID:    uid,
		OrgID:  defaults.OrgID,
		Name:   defaults.DatasourceName,
		Type:   defaults.PluginID,
		Access: "proxy",
		JSONData: map[string]any{
			"authenticationType": defaults.AuthenticationType,
			"connMaxLifetime":    14400,
			"database":           defaults.MSSQLDatabase,
			"maxIdleConns":       100,
			"maxIdleConnsAuto":   true,
			"maxOpenConns":       100,
		},
		SecureJSONFields: map[string]bool{},
		Extra: map[string]any{
			"typeLogoUrl":   "public/app/plugins/datasource/mssql/img/sql_server_logo.svg",
			"basicAuthUser": "",
			"apiVersion":    "",
		},
	}
}

// updateResponse is the body of a successful PUT.
type updateResponse struct {
	Message    string      `json:"message"`
	Datasource *Datasource `json:"datasource"`
}
