// Package fixture is an in-memory SourceAdapter reading a small embedded
// JSON document shaped like sourceadapters.RawRecord, used to drive
// pipeline and claims tests without a real upstream.
package fixture

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vgprice/engine/internal/sourceadapters"
)

//go:embed records.json
var embeddedRecords []byte

type record struct {
	ExternalID   string `json:"external_id"`
	Kind         string `json:"kind"`
	TitleHint    string `json:"title_hint"`
	PlatformHint string `json:"platform_hint"`
	Currency     string `json:"currency"`
	AmountMinor  *int64 `json:"amount_minor"`
	RecordedAt   string `json:"recorded_at"`
	CountryISO2  string `json:"country_iso2"`
}

// Adapter is the fixture SourceAdapter. ProviderKey/Slug/Priority are
// configurable so tests can register several distinct instances to
// exercise the multi-agent tie-break rule.
type Adapter struct {
	ProviderKey string
	Slug        string
	Agent       string
	Priority    int16
	records     []record
}

// New builds an Adapter reading from the embedded fixture document.
func New(providerKey, slug, agent string, priority int16) (*Adapter, error) {
	var recs []record
	if err := json.Unmarshal(embeddedRecords, &recs); err != nil {
		return nil, fmt.Errorf("fixture: parse embedded records: %w", err)
	}
	return &Adapter{ProviderKey: providerKey, Slug: slug, Agent: agent, Priority: priority, records: recs}, nil
}

func (a *Adapter) ID() sourceadapters.Identity {
	return sourceadapters.Identity{ProviderKey: a.ProviderKey, Slug: a.Slug, Kind: "storefront"}
}

func (a *Adapter) Fetch(ctx context.Context, cursor string, region string) (sourceadapters.RawRecordStream, error) {
	return &stream{agent: a.Agent, priority: a.Priority, records: a.records}, nil
}

type stream struct {
	agent    string
	priority int16
	records  []record
	idx      int
}

func (s *stream) Next(ctx context.Context) (sourceadapters.RawRecord, bool, error) {
	if s.idx >= len(s.records) {
		return sourceadapters.RawRecord{}, false, nil
	}
	r := s.records[s.idx]
	s.idx++

	recordedAt, err := time.Parse(time.RFC3339, r.RecordedAt)
	if err != nil {
		return sourceadapters.RawRecord{}, true, fmt.Errorf("fixture: parse recorded_at for %s: %w", r.ExternalID, err)
	}

	attrs, _ := json.Marshal(map[string]any{"agent": s.agent, "agent_priority": s.priority})

	return sourceadapters.RawRecord{
		ExternalID:   r.ExternalID,
		Kind:         sourceadapters.RecordKind(r.Kind),
		TitleHint:    r.TitleHint,
		PlatformHint: r.PlatformHint,
		Currency:     r.Currency,
		AmountMinor:  r.AmountMinor,
		RecordedAt:   recordedAt,
		CountryISO2:  r.CountryISO2,
		Attributes:   attrs,
	}, true, nil
}

func (s *stream) Cursor() string { return "" }
func (s *stream) Close() error   { return nil }
