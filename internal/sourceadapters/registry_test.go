package sourceadapters

import (
	"context"
	"sort"
	"testing"
)

type fakeAdapter struct {
	id Identity
}

func (f fakeAdapter) ID() Identity { return f.id }

func (f fakeAdapter) Fetch(ctx context.Context, cursor, region string) (RawRecordStream, error) {
	return nil, nil
}

func TestRegistryGetMissing(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("steam"); err == nil {
		t.Error("Get on empty registry should return an error")
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	steam := fakeAdapter{id: Identity{ProviderKey: "steam", Slug: "steam", Kind: "storefront"}}
	r.Register("steam", steam)

	got, err := r.Get("steam")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.ID().ProviderKey != "steam" {
		t.Errorf("Get returned adapter with ProviderKey %q, want steam", got.ID().ProviderKey)
	}
}

func TestRegistryRegisterReplaces(t *testing.T) {
	r := NewRegistry()
	r.Register("itad", fakeAdapter{id: Identity{ProviderKey: "itad-v1"}})
	r.Register("itad", fakeAdapter{id: Identity{ProviderKey: "itad-v2"}})

	got, err := r.Get("itad")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.ID().ProviderKey != "itad-v2" {
		t.Errorf("Register did not replace existing adapter, got %q", got.ID().ProviderKey)
	}
}

func TestRegistrySlugs(t *testing.T) {
	r := NewRegistry()
	r.Register("steam", fakeAdapter{})
	r.Register("epic", fakeAdapter{})
	r.Register("gog", fakeAdapter{})

	slugs := r.Slugs()
	sort.Strings(slugs)

	want := []string{"epic", "gog", "steam"}
	if len(slugs) != len(want) {
		t.Fatalf("Slugs() = %v, want %v", slugs, want)
	}
	for i := range want {
		if slugs[i] != want[i] {
			t.Errorf("Slugs()[%d] = %q, want %q", i, slugs[i], want[i])
		}
	}
}
