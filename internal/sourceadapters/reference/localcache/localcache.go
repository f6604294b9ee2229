// Package localcache is a reference SourceAdapter reading the local
// steam_apps_pretty.json lookup cache through internal/storage,
// streaming with json.Decoder rather than loading the whole document
// (it can be tens of megabytes for a full Steam app list).
package localcache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/vgprice/engine/internal/sourceadapters"
	"github.com/vgprice/engine/internal/storage"
)

// appEntry mirrors one row of steam_apps_pretty.json: {"appid": N, "name": "..."}.
type appEntry struct {
	AppID int64  `json:"appid"`
	Name  string `json:"name"`
}

// Adapter reads a flat JSON array of app entries and emits catalog-only
// RawRecords; it never carries price or media information.
type Adapter struct {
	ProviderKey string
	Slug        string
	store       *storage.LocalStorage
	key         string
}

// New builds the adapter over a LocalStorage rooted wherever
// STORAGE_PATH points, reading the object at key (default
// "steam_apps_pretty.json").
func New(store *storage.LocalStorage, key string) *Adapter {
	if key == "" {
		key = "steam_apps_pretty.json"
	}
	return &Adapter{ProviderKey: "steam-local-cache", Slug: "steam-local-cache", store: store, key: key}
}

func (a *Adapter) ID() sourceadapters.Identity {
	return sourceadapters.Identity{ProviderKey: a.ProviderKey, Slug: a.Slug, Kind: "catalog"}
}

func (a *Adapter) Fetch(ctx context.Context, cursor string, region string) (sourceadapters.RawRecordStream, error) {
	rc, err := a.store.GetReader(a.key)
	if err != nil {
		return nil, fmt.Errorf("localcache: open %s: %w", a.key, err)
	}

	dec := json.NewDecoder(rc)
	// Consume the opening '[' so decoding one element at a time works on
	// a flat JSON array without buffering it whole.
	if _, err := dec.Token(); err != nil {
		rc.Close()
		return nil, fmt.Errorf("localcache: read opening token: %w", err)
	}

	return &stream{dec: dec, rc: rc}, nil
}

type stream struct {
	dec *json.Decoder
	rc  io.ReadCloser
}

func (s *stream) Next(ctx context.Context) (sourceadapters.RawRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return sourceadapters.RawRecord{}, false, err
	}
	if !s.dec.More() {
		return sourceadapters.RawRecord{}, false, nil
	}

	var e appEntry
	if err := s.dec.Decode(&e); err != nil {
		return sourceadapters.RawRecord{}, true, fmt.Errorf("localcache: decode entry: %w", err)
	}

	attrs, _ := json.Marshal(map[string]any{"appid": e.AppID})
	return sourceadapters.RawRecord{
		ExternalID: fmt.Sprintf("app:%d", e.AppID),
		Kind:       sourceadapters.KindCatalog,
		TitleHint:  e.Name,
		Attributes: attrs,
	}, true, nil
}

func (s *stream) Cursor() string { return "" }
func (s *stream) Close() error   { return s.rc.Close() }
