package tenants

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/docintake/docintake/core/extraction"
	"github.com/docintake/docintake/core/infra/logging"
	"github.com/docintake/docintake/core/infra/metrics"
	"github.com/docintake/docintake/core/store"
)

// FolderProber reports the state of a client's intake folder.
type FolderProber interface {
	Probe(folderPath, processedSubfolder string) (extraction.FolderStatus, error)
}

// Change describes a persisted client write.
type Change struct {
	Op       string `json:"op"`
	ClientID string `json:"client_id"`
	Section  string `json:"section,omitempty"`
}

// ChangeNotifier is told about every persisted write.
type ChangeNotifier interface {
	NotifyChange(ctx context.Context, change Change) error
}

// Write operations reported to metrics and notifiers.
const (
	OpCreate          = "create"
	OpUpdate          = "update"
	OpDelete          = "delete"
	OpSaveOverrides   = "save_overrides"
	OpRemoveOverrides = "remove_overrides"
)

// Registry is the set of known client records keyed by client id.
type Registry struct {
	Clients map[string]*extraction.ClientRecord
}

// Resolver computes effective client configurations and owns client writes.
type Resolver struct {
	store    store.Store
	cache    *Cache
	prober   FolderProber
	notifier ChangeNotifier
	metrics  metrics.ConfigMetrics
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache shares a cache between resolvers.
func WithCache(c *Cache) Option { return func(r *Resolver) { r.cache = c } }

// WithProber attaches folder status to annotated configs.
func WithProber(p FolderProber) Option { return func(r *Resolver) { r.prober = p } }

// WithNotifier publishes every persisted write.
func WithNotifier(n ChangeNotifier) Option { return func(r *Resolver) { r.notifier = n } }

// WithMetrics records resolver activity.
func WithMetrics(m metrics.ConfigMetrics) Option { return func(r *Resolver) { r.metrics = m } }

// NewResolver builds a resolver over st.
func NewResolver(st store.Store, opts ...Option) *Resolver {
	r := &Resolver{store: st, metrics: metrics.Noop{}}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = NewCache(r.metrics)
	}
	return r
}

// Invalidate drops cached state, e.g. after a remote change event.
func (r *Resolver) Invalidate() {
	r.cache.Invalidate()
}

// Snapshot returns the loaded state, reading storage if nothing is cached.
func (r *Resolver) Snapshot(ctx context.Context) (*Snapshot, error) {
	return r.cache.GetOrLoad(ctx, r.load)
}

func (r *Resolver) load(ctx context.Context) (*Snapshot, error) {
	global, err := r.store.ReadGlobal(ctx)
	if err != nil {
		return nil, fmt.Errorf("load global config: %w", err)
	}
	snap := &Snapshot{Global: global, Clients: map[string]*extraction.ClientRecord{}}
	ids, err := r.store.ListClientIDs(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return snap, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	snap.Active = true
	for _, id := range ids {
		rec, err := r.store.ReadClient(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load client %s: %w", id, err)
		}
		rec.ClientID = id
		snap.Clients[id] = rec
	}
	return snap, nil
}

func (r *Resolver) client(ctx context.Context, id string) (*Snapshot, *extraction.ClientRecord, error) {
	if err := ValidateClientID(id); err != nil {
		return nil, nil, err
	}
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !snap.Active {
		return nil, nil, extraction.ErrNoClientConfig
	}
	rec, ok := snap.Clients[id]
	if !ok {
		return nil, nil, &extraction.NotFoundError{Kind: "client", ID: id}
	}
	return snap, rec, nil
}

// ResolveEffective returns the configuration the client runs with.
func (r *Resolver) ResolveEffective(ctx context.Context, clientID string) (*extraction.EffectiveConfig, error) {
	cfg, err := r.resolveEffective(ctx, clientID)
	r.metrics.IncResolutions("effective", metrics.Outcome(err))
	return cfg, err
}

func (r *Resolver) resolveEffective(ctx context.Context, clientID string) (*extraction.EffectiveConfig, error) {
	snap, rec, err := r.client(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return Effective(snap.Global, rec)
}

// ResolveGlobal returns the global baseline as an effective configuration,
// for single-tenant installs without a client registry.
func (r *Resolver) ResolveGlobal(ctx context.Context) (*extraction.EffectiveConfig, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return Effective(snap.Global, nil)
}

// ResolveAnnotated returns the effective configuration with provenance and
// folder status. A probe failure is recorded, never returned.
func (r *Resolver) ResolveAnnotated(ctx context.Context, clientID string) (*extraction.AnnotatedConfig, error) {
	cfg, err := r.resolveAnnotated(ctx, clientID)
	r.metrics.IncResolutions("annotated", metrics.Outcome(err))
	return cfg, err
}

func (r *Resolver) resolveAnnotated(ctx context.Context, clientID string) (*extraction.AnnotatedConfig, error) {
	snap, rec, err := r.client(ctx, clientID)
	if err != nil {
		return nil, err
	}
	out, err := Annotate(snap.Global, rec)
	if err != nil {
		return nil, err
	}
	if r.prober != nil {
		status, err := r.prober.Probe(rec.FolderPath, out.Output.ProcessedOriginalSubfolder)
		if err != nil {
			out.FolderError = err.Error()
			logging.Error("tenants", "folder probe failed", "client_id", clientID, "error", err)
		} else {
			out.FolderStatus = &status
		}
	}
	return out, nil
}

// ListAll returns every client record, or nil when no registry exists.
func (r *Resolver) ListAll(ctx context.Context) (*Registry, error) {
	return r.list(ctx, false)
}

// ListEnabled returns enabled client records, or nil when no registry exists.
func (r *Resolver) ListEnabled(ctx context.Context) (*Registry, error) {
	return r.list(ctx, true)
}

func (r *Resolver) list(ctx context.Context, enabledOnly bool) (*Registry, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if !snap.Active {
		return nil, nil
	}
	reg := &Registry{Clients: make(map[string]*extraction.ClientRecord, len(snap.Clients))}
	for id, rec := range snap.Clients {
		if enabledOnly && !rec.Enabled {
			continue
		}
		reg.Clients[id] = rec.Clone()
	}
	return reg, nil
}

// Create stores a new client record from a JSON payload.
func (r *Resolver) Create(ctx context.Context, clientID string, payload json.RawMessage) (*extraction.ClientRecord, error) {
	rec, err := r.create(ctx, clientID, payload)
	r.metrics.IncWrites(OpCreate, metrics.Outcome(err))
	return rec, err
}

func (r *Resolver) create(ctx context.Context, clientID string, payload json.RawMessage) (*extraction.ClientRecord, error) {
	if err := ValidateClientID(clientID); err != nil {
		return nil, err
	}
	doc, err := decodeObject("record", payload)
	if err != nil {
		return nil, err
	}
	rec, err := recordFromDocument(clientID, doc)
	if err != nil {
		return nil, err
	}
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := snap.Clients[clientID]; ok {
		return nil, &extraction.ConflictError{Kind: "client", ID: clientID}
	}
	if err := checkRecord(snap.Global, rec); err != nil {
		return nil, err
	}
	if err := r.persist(ctx, Change{Op: OpCreate, ClientID: clientID}, func() error {
		return r.store.WriteClient(ctx, clientID, rec)
	}); err != nil {
		return nil, err
	}
	return rec, nil
}

// Update shallow-merges a JSON payload onto an existing client record.
func (r *Resolver) Update(ctx context.Context, clientID string, payload json.RawMessage) (*extraction.ClientRecord, error) {
	rec, err := r.update(ctx, clientID, payload)
	r.metrics.IncWrites(OpUpdate, metrics.Outcome(err))
	return rec, err
}

func (r *Resolver) update(ctx context.Context, clientID string, payload json.RawMessage) (*extraction.ClientRecord, error) {
	if err := ValidateClientID(clientID); err != nil {
		return nil, err
	}
	patch, err := decodeObject("record", payload)
	if err != nil {
		return nil, err
	}
	snap, existing, err := r.client(ctx, clientID)
	if err != nil {
		return nil, err
	}
	current, err := json.Marshal(existing)
	if err != nil {
		return nil, fmt.Errorf("encode client %s: %w", clientID, err)
	}
	doc, err := decodeObject("record", current)
	if err != nil {
		return nil, err
	}
	for k, v := range patch {
		doc[k] = v
	}
	rec, err := recordFromDocument(clientID, doc)
	if err != nil {
		return nil, err
	}
	if err := checkRecord(snap.Global, rec); err != nil {
		return nil, err
	}
	if err := r.persist(ctx, Change{Op: OpUpdate, ClientID: clientID}, func() error {
		return r.store.WriteClient(ctx, clientID, rec)
	}); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes a client record.
func (r *Resolver) Delete(ctx context.Context, clientID string) error {
	err := r.delete(ctx, clientID)
	r.metrics.IncWrites(OpDelete, metrics.Outcome(err))
	return err
}

func (r *Resolver) delete(ctx context.Context, clientID string) error {
	if _, _, err := r.client(ctx, clientID); err != nil {
		return err
	}
	return r.persist(ctx, Change{Op: OpDelete, ClientID: clientID}, func() error {
		err := r.store.DeleteClient(ctx, clientID)
		if errors.Is(err, store.ErrNotFound) {
			return &extraction.NotFoundError{Kind: "client", ID: clientID}
		}
		return err
	})
}

// SaveOverrides replaces one override section and drops its legacy
// counterpart.
func (r *Resolver) SaveOverrides(ctx context.Context, clientID, section string, data json.RawMessage) (*extraction.ClientRecord, error) {
	rec, err := r.saveOverrides(ctx, clientID, section, data)
	r.metrics.IncWrites(OpSaveOverrides, metrics.Outcome(err))
	return rec, err
}

func (r *Resolver) saveOverrides(ctx context.Context, clientID, section string, data json.RawMessage) (*extraction.ClientRecord, error) {
	if err := ValidateClientID(clientID); err != nil {
		return nil, err
	}
	apply, err := overrideSetter(section, data)
	if err != nil {
		return nil, err
	}
	snap, existing, err := r.client(ctx, clientID)
	if err != nil {
		return nil, err
	}
	rec := existing.Clone()
	apply(rec)
	if err := checkRecord(snap.Global, rec); err != nil {
		return nil, err
	}
	if err := r.persist(ctx, Change{Op: OpSaveOverrides, ClientID: clientID, Section: section}, func() error {
		return r.store.WriteClient(ctx, clientID, rec)
	}); err != nil {
		return nil, err
	}
	return rec, nil
}

// RemoveOverrides deletes one override section and its legacy counterpart so
// the section inherits from global again.
func (r *Resolver) RemoveOverrides(ctx context.Context, clientID, section string) (*extraction.ClientRecord, error) {
	rec, err := r.removeOverrides(ctx, clientID, section)
	r.metrics.IncWrites(OpRemoveOverrides, metrics.Outcome(err))
	return rec, err
}

func (r *Resolver) removeOverrides(ctx context.Context, clientID, section string) (*extraction.ClientRecord, error) {
	if err := ValidateClientID(clientID); err != nil {
		return nil, err
	}
	reset, err := overrideClearer(section)
	if err != nil {
		return nil, err
	}
	_, existing, err := r.client(ctx, clientID)
	if err != nil {
		return nil, err
	}
	rec := existing.Clone()
	reset(rec)
	if err := r.persist(ctx, Change{Op: OpRemoveOverrides, ClientID: clientID, Section: section}, func() error {
		return r.store.WriteClient(ctx, clientID, rec)
	}); err != nil {
		return nil, err
	}
	return rec, nil
}

// persist invalidates the cache, runs write, and invalidates again so a load
// racing the write cannot leave stale state behind.
func (r *Resolver) persist(ctx context.Context, change Change, write func() error) error {
	r.cache.Invalidate()
	err := write()
	r.cache.Invalidate()
	if err != nil {
		return fmt.Errorf("%s client %s: %w", change.Op, change.ClientID, err)
	}
	logging.Info("tenants", "client written", "op", change.Op, "client_id", change.ClientID, "section", change.Section)
	if r.notifier != nil {
		if err := r.notifier.NotifyChange(ctx, change); err != nil {
			logging.Error("tenants", "change notification failed", "op", change.Op, "client_id", change.ClientID, "error", err)
		}
	}
	return nil
}

func recordFromDocument(clientID string, doc map[string]json.RawMessage) (*extraction.ClientRecord, error) {
	if raw, ok := doc["clientId"]; ok && !isNull(raw) {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil || id != clientID {
			return nil, &extraction.ValidationError{Field: "clientId", Reason: "is immutable"}
		}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode client %s: %w", clientID, err)
	}
	rec, err := store.ParseClient(data)
	if err != nil {
		return nil, recordError(err)
	}
	rec.ClientID = clientID
	return rec, nil
}
