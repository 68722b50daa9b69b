package tenants

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/docintake/docintake/core/extraction"
	"github.com/docintake/docintake/core/store"
	"github.com/google/go-cmp/cmp"
)

type fakeProber struct {
	status extraction.FolderStatus
	err    error
	calls  []string
}

func (p *fakeProber) Probe(folderPath, processed string) (extraction.FolderStatus, error) {
	p.calls = append(p.calls, folderPath+"|"+processed)
	return p.status, p.err
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []Change
}

func (n *recordingNotifier) NotifyChange(_ context.Context, c Change) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, c)
	return nil
}

func newTestStore(t *testing.T, withRegistry bool) *store.FileStore {
	t.Helper()
	dir := t.TempDir()
	st := store.NewFileStore(dir)
	if err := st.WriteGlobal(context.Background(), testGlobal()); err != nil {
		t.Fatalf("write global: %v", err)
	}
	if withRegistry {
		if err := os.MkdirAll(filepath.Join(dir, "clients"), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	return st
}

func newTestResolver(t *testing.T, opts ...Option) *Resolver {
	t.Helper()
	r := NewResolver(newTestStore(t, true), opts...)
	if _, err := r.Create(context.Background(), "acme", json.RawMessage(`{"name":"Acme","enabled":true,"folderPath":"/in/acme"}`)); err != nil {
		t.Fatalf("create: %v", err)
	}
	return r
}

func TestResolverNoClientConfig(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(newTestStore(t, false))
	reg, err := r.ListAll(ctx)
	if err != nil || reg != nil {
		t.Fatalf("expected nil registry when inactive, got %#v %v", reg, err)
	}
	if _, err := r.ResolveEffective(ctx, "acme"); !errors.Is(err, extraction.ErrNoClientConfig) {
		t.Fatalf("expected ErrNoClientConfig, got %v", err)
	}
	cfg, err := r.ResolveGlobal(ctx)
	if err != nil || cfg.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected global config: %#v %v", cfg, err)
	}
}

func TestResolverEmptyRegistry(t *testing.T) {
	r := NewResolver(newTestStore(t, true))
	reg, err := r.ListAll(context.Background())
	if err != nil || reg == nil || len(reg.Clients) != 0 {
		t.Fatalf("expected empty registry, got %#v %v", reg, err)
	}
}

func TestResolverCreateValidation(t *testing.T) {
	ctx := context.Background()
	r := newTestResolver(t)
	tests := []struct {
		name    string
		id      string
		payload string
		field   string
	}{
		{name: "bad id", id: "Acme_1", payload: `{"name":"x","enabled":true,"folderPath":"/x"}`, field: "clientId"},
		{name: "not object", id: "x", payload: `[1]`, field: "record"},
		{name: "missing name", id: "x", payload: `{"enabled":true,"folderPath":"/x"}`, field: "name"},
		{name: "enabled string", id: "x", payload: `{"name":"x","enabled":"yes","folderPath":"/x"}`, field: "enabled"},
		{name: "folder number", id: "x", payload: `{"name":"x","enabled":true,"folderPath":3}`, field: "folderPath"},
		{name: "model bool", id: "x", payload: `{"name":"x","enabled":true,"folderPath":"/x","model":true}`, field: "model"},
		{name: "overrides array", id: "x", payload: `{"name":"x","enabled":true,"folderPath":"/x","fieldOverrides":[]}`, field: "fieldOverrides"},
		{name: "override entry", id: "x", payload: `{"name":"x","enabled":true,"folderPath":"/x","tagOverrides":{"a":1}}`, field: "tagOverrides.a"},
		{name: "id mismatch", id: "x", payload: `{"clientId":"y","name":"x","enabled":true,"folderPath":"/x"}`, field: "clientId"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Create(ctx, tc.id, json.RawMessage(tc.payload))
			var verr *extraction.ValidationError
			if !errors.As(err, &verr) || verr.Field != tc.field {
				t.Fatalf("expected validation error on %s, got %v", tc.field, err)
			}
		})
	}
	if _, err := r.Create(ctx, "Bad", json.RawMessage(`{}`)); !errors.Is(err, extraction.ErrInvalidClientID) {
		t.Fatalf("expected ErrInvalidClientID, got %v", err)
	}
	reg, _ := r.ListAll(ctx)
	if len(reg.Clients) != 1 {
		t.Fatalf("invalid payloads must not be persisted: %v", reg.Clients)
	}
}

func TestResolverCreateConflictAndMissing(t *testing.T) {
	ctx := context.Background()
	r := newTestResolver(t)
	_, err := r.Create(ctx, "acme", json.RawMessage(`{"name":"Again","enabled":true,"folderPath":"/x"}`))
	if !errors.Is(err, extraction.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := r.Update(ctx, "ghost", json.RawMessage(`{"name":"x"}`)); !errors.Is(err, extraction.ErrNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
	if err := r.Delete(ctx, "ghost"); !errors.Is(err, extraction.ErrNotFound) {
		t.Fatalf("expected not found on delete, got %v", err)
	}
}

func TestResolverUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	n := &recordingNotifier{}
	r := newTestResolver(t, WithNotifier(n))
	if _, err := r.SaveOverrides(ctx, "acme", SectionFields, json.RawMessage(`{"zeta":{},"alpha":{}}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	rec, err := r.Update(ctx, "acme", json.RawMessage(`{"enabled":false,"model":"m2"}`))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if rec.Enabled || rec.Model != "m2" || rec.Name != "Acme" {
		t.Fatalf("update must shallow-merge: %#v", rec)
	}
	if keys := rec.FieldOverrides.Keys(); len(keys) != 2 || keys[0] != "zeta" {
		t.Fatalf("override order lost on update: %v", keys)
	}
	if _, err := r.Update(ctx, "acme", json.RawMessage(`{"name":null}`)); err == nil {
		t.Fatalf("expected validation error when clearing name")
	}
	enabled, _ := r.ListEnabled(ctx)
	if len(enabled.Clients) != 0 {
		t.Fatalf("disabled client listed as enabled: %v", enabled.Clients)
	}
	if err := r.Delete(ctx, "acme"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.ResolveEffective(ctx, "acme"); !errors.Is(err, extraction.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	var ops []string
	for _, c := range n.changes {
		ops = append(ops, c.Op+":"+c.Section)
	}
	want := []string{"create:", "save_overrides:fields", "update:", "delete:"}
	if diff := cmp.Diff(want, ops); diff != "" {
		t.Fatalf("unexpected notifications (-want +got):\n%s", diff)
	}
}

func TestResolverSaveOverridesReadAfterWrite(t *testing.T) {
	ctx := context.Background()
	r := newTestResolver(t)
	before, err := r.ResolveEffective(ctx, "acme")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	sections := []struct {
		section string
		data    string
		check   func(*extraction.EffectiveConfig) bool
	}{
		{SectionFields, `{"total":{"enabled":false}}`, func(c *extraction.EffectiveConfig) bool { return !c.Fields[1].Enabled }},
		{SectionTags, `{"urgent":{"enabled":false}}`, func(c *extraction.EffectiveConfig) bool { return !c.Tags[0].Enabled }},
		{SectionPrompt, `{"preamble":"Hi."}`, func(c *extraction.EffectiveConfig) bool { return c.Prompt.Preamble == "Hi." }},
		{SectionOutput, `{"filenameTemplate":"{total}"}`, func(c *extraction.EffectiveConfig) bool { return c.Output.FilenameTemplate == "{total}" }},
		{SectionModel, `"claude"`, func(c *extraction.EffectiveConfig) bool { return c.Model == "claude" }},
	}
	for _, s := range sections {
		if _, err := r.SaveOverrides(ctx, "acme", s.section, json.RawMessage(s.data)); err != nil {
			t.Fatalf("save %s: %v", s.section, err)
		}
		cfg, err := r.ResolveEffective(ctx, "acme")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if !s.check(cfg) {
			t.Fatalf("section %s not reflected after save: %#v", s.section, cfg)
		}
	}
	for _, s := range sections {
		if _, err := r.RemoveOverrides(ctx, "acme", s.section); err != nil {
			t.Fatalf("remove %s: %v", s.section, err)
		}
	}
	after, err := r.ResolveEffective(ctx, "acme")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("remove must restore inheritance (-before +after):\n%s", diff)
	}
}

func TestResolverSaveStripsLegacy(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, true)
	legacy := &extraction.ClientRecord{
		Name: "Old", Enabled: true, FolderPath: "/in/old",
		FieldDefinitions: []extraction.FieldDefinition{{Key: "only", Type: extraction.FieldText, Enabled: true}},
		PromptTemplate:   &extraction.PromptTemplate{Preamble: "Legacy."},
	}
	if err := st.WriteClient(ctx, "old", legacy); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := NewResolver(st)
	cfg, err := r.ResolveEffective(ctx, "old")
	if err != nil || len(cfg.Fields) != 1 {
		t.Fatalf("legacy fields not applied: %#v %v", cfg, err)
	}
	rec, err := r.SaveOverrides(ctx, "old", SectionFields, json.RawMessage(`{"vendor":{"enabled":false}}`))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if rec.HasLegacyFields() || rec.PromptTemplate == nil {
		t.Fatalf("only the saved section's legacy data may be dropped: %#v", rec)
	}
	cfg, _ = r.ResolveEffective(ctx, "old")
	if len(cfg.Fields) != 3 || cfg.Fields[0].Enabled {
		t.Fatalf("granular override not applied after migration: %#v", cfg.Fields)
	}
	if _, err := r.RemoveOverrides(ctx, "old", SectionPrompt); err != nil {
		t.Fatalf("remove: %v", err)
	}
	cfg, _ = r.ResolveEffective(ctx, "old")
	if cfg.Prompt != testGlobal().PromptTemplate {
		t.Fatalf("legacy prompt must be removed: %#v", cfg.Prompt)
	}
}

func TestResolverOverrideErrors(t *testing.T) {
	ctx := context.Background()
	r := newTestResolver(t)
	if _, err := r.SaveOverrides(ctx, "acme", "colors", json.RawMessage(`{}`)); !errors.Is(err, extraction.ErrNotFound) {
		t.Fatalf("expected not found for unknown section, got %v", err)
	}
	if _, err := r.RemoveOverrides(ctx, "acme", "colors"); !errors.Is(err, extraction.ErrNotFound) {
		t.Fatalf("expected not found for unknown section, got %v", err)
	}
	if _, err := r.SaveOverrides(ctx, "acme", SectionPrompt, json.RawMessage(`{"preamble":1}`)); !errors.Is(err, extraction.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := r.SaveOverrides(ctx, "acme", SectionModel, json.RawMessage(`{"model":"m3"}`)); err != nil {
		t.Fatalf("object model payload: %v", err)
	}
	if _, err := r.SaveOverrides(ctx, "ghost", SectionModel, json.RawMessage(`"m"`)); !errors.Is(err, extraction.ErrNotFound) {
		t.Fatalf("expected client not found, got %v", err)
	}
}

func TestResolverAnnotatedFolderStatus(t *testing.T) {
	ctx := context.Background()
	p := &fakeProber{status: extraction.FolderStatus{Exists: true, PendingCount: 2, ProcessedCount: 5}}
	r := newTestResolver(t, WithProber(p))
	out, err := r.ResolveAnnotated(ctx, "acme")
	if err != nil {
		t.Fatalf("annotate: %v", err)
	}
	if out.FolderStatus == nil || out.FolderStatus.PendingCount != 2 || out.FolderError != "" {
		t.Fatalf("unexpected folder status: %#v", out)
	}
	if len(p.calls) != 1 || p.calls[0] != "/in/acme|processed" {
		t.Fatalf("unexpected folder status calls: %v", p.calls)
	}

	p.err = errors.New("permission denied")
	out, err = r.ResolveAnnotated(ctx, "acme")
	if err != nil {
		t.Fatalf("folder status failure must not abort annotation: %v", err)
	}
	if out.FolderError != "permission denied" || out.FolderStatus != nil || len(out.Fields) != 3 {
		t.Fatalf("unexpected annotated config: %#v", out)
	}
}

func TestResolverReadsThroughCacheUntilWrite(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, true)
	cache := NewCache(nil)
	r := NewResolver(st, WithCache(cache))
	if _, err := r.ListAll(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !cache.Loaded() {
		t.Fatalf("expected cache to be loaded")
	}
	// A write behind the resolver's back stays invisible until invalidated.
	if err := st.WriteClient(ctx, "side", &extraction.ClientRecord{Name: "Side", Enabled: true, FolderPath: "/s"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	reg, _ := r.ListAll(ctx)
	if _, ok := reg.Clients["side"]; ok {
		t.Fatalf("expected cached registry")
	}
	r.Invalidate()
	reg, _ = r.ListAll(ctx)
	if _, ok := reg.Clients["side"]; !ok {
		t.Fatalf("expected reload after invalidate")
	}
	if _, err := r.Create(ctx, "acme", json.RawMessage(`{"name":"Acme","enabled":true,"folderPath":"/in/acme"}`)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if cache.Loaded() {
		t.Fatalf("write must leave the cache invalidated")
	}
}

func TestResolverRejectsMistypedOverridesBeforeWriting(t *testing.T) {
	ctx := context.Background()
	r := newTestResolver(t)
	n := &recordingNotifier{}
	r.notifier = n

	tests := []struct {
		name  string
		write func() error
		field string
	}{
		{
			name: "save field attribute",
			write: func() error {
				_, err := r.SaveOverrides(ctx, "acme", SectionFields, json.RawMessage(`{"total":{"enabled":"yes"}}`))
				return err
			},
			field: "fieldOverrides.total.enabled",
		},
		{
			name: "save field type",
			write: func() error {
				_, err := r.SaveOverrides(ctx, "acme", SectionFields, json.RawMessage(`{"total":{"type":"money"}}`))
				return err
			},
			field: "fieldOverrides.total.type",
		},
		{
			name: "save tag parameters",
			write: func() error {
				_, err := r.SaveOverrides(ctx, "acme", SectionTags, json.RawMessage(`{"urgent":{"parameters":"oops"}}`))
				return err
			},
			field: "tagOverrides.urgent.parameters",
		},
		{
			name: "create with tag parameters",
			write: func() error {
				_, err := r.Create(ctx, "beta", json.RawMessage(`{"name":"Beta","enabled":true,"folderPath":"/in/beta","tagOverrides":{"urgent":{"parameters":"oops"}}}`))
				return err
			},
			field: "tagOverrides.urgent.parameters",
		},
		{
			name: "update with field attribute",
			write: func() error {
				_, err := r.Update(ctx, "acme", json.RawMessage(`{"fieldOverrides":{"vendor":{"label":7}}}`))
				return err
			},
			field: "fieldOverrides.vendor.label",
		},
		{
			name: "create with duplicate legacy keys",
			write: func() error {
				_, err := r.Create(ctx, "gamma", json.RawMessage(`{"name":"G","enabled":true,"folderPath":"/g","fieldDefinitions":[{"key":"a","type":"text"},{"key":"a","type":"text"}]}`))
				return err
			},
			field: "fieldDefinitions.a",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.write()
			var verr *extraction.ValidationError
			if !errors.As(err, &verr) || verr.Field != tc.field {
				t.Fatalf("expected validation error on %s, got %v", tc.field, err)
			}
		})
	}

	if len(n.changes) != 0 {
		t.Fatalf("rejected writes must not be persisted: %v", n.changes)
	}
	reg, err := r.ListAll(ctx)
	if err != nil || len(reg.Clients) != 1 {
		t.Fatalf("unexpected clients after rejected writes: %#v %v", reg, err)
	}
	cfg, err := r.ResolveEffective(ctx, "acme")
	if err != nil {
		t.Fatalf("client must stay resolvable: %v", err)
	}
	if !cfg.Fields[1].Enabled || cfg.Fields[1].Type != extraction.FieldNumber {
		t.Fatalf("rejected override leaked into the config: %#v", cfg.Fields[1])
	}
}
