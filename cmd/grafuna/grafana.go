package main

import (
	"log/slog"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/config"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/httpclient"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/oracle"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/session"
)

// grafana is one authenticated view of the target datasource.
type grafana struct {
	target  oracle.Target
	session *session.Manager
	client  *oracle.Client
}

// connect builds the HTTP stack, the session and the oracle client. It
// sends nothing.
func connect(tf *targetFlags, cfg *config.Config, logger *slog.Logger) (*grafana, error) {
	tgt, err := oracle.ParseTarget(*tf.Target)
	if err != nil {
		return nil, err
	}

	hc := httpclient.Config{
		InsecureSkipVerify: cfg.Insecure,
		Proxy:              cfg.Proxy,
		TLSProfile:         cfg.TLSProfile,
	}
	if *tf.Debug {
		hc.Trace = logger
	}
	client, err := httpclient.New(hc)
	if err != nil {
		return nil, err
	}

	header := cfg.Identity.Header(tgt, cfg.Datasource.OrgID)
	sess, err := session.New(client, session.Config{
		BaseURL:    tgt.BaseURL,
		Token:      *tf.Session,
		CookieName: cfg.Session.CookieName,
		Header:     header,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	oc := oracle.New(client, sess, oracle.Config{
		Target:       tgt,
		OrgID:        cfg.Datasource.OrgID,
		PluginID:     cfg.Datasource.PluginID,
		Identity:     cfg.Identity,
		ProbeTimeout: cfg.ProbeTimeout,
		Logger:       logger,
	})
	return &grafana{target: tgt, session: sess, client: oc}, nil
}
