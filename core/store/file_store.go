package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/docintake/docintake/core/extraction"
	"github.com/docintake/docintake/core/infra/logging"
	configschema "github.com/docintake/docintake/core/infra/schema"
	"gopkg.in/yaml.v3"
)

const (
	clientsDirName   = "clients"
	legacyClientFile = "clients.json"
	clientFileExt    = ".json"
)

var globalFileNames = []string{"global.yaml", "global.yml", "global.json"}

// FileStore keeps documents under a root directory:
//
//	global.yaml | global.json   global baseline
//	clients/<id>.json           one record per client (preferred)
//	clients.json                legacy id -> record map, read-only
//
// The legacy document is never written. The first write against a root that
// only has the legacy document copies its records into clients/ so no
// tenant disappears.
type FileStore struct {
	root string
}

// NewFileStore returns a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

// Root returns the store's root directory.
func (s *FileStore) Root() string { return s.root }

func (s *FileStore) clientsDir() string { return filepath.Join(s.root, clientsDirName) }

func (s *FileStore) legacyPath() string { return filepath.Join(s.root, legacyClientFile) }

func (s *FileStore) clientPath(id string) string {
	return filepath.Join(s.clientsDir(), id+clientFileExt)
}

// ReadGlobal loads and validates the global document.
func (s *FileStore) ReadGlobal(_ context.Context) (*extraction.GlobalConfig, error) {
	for _, name := range globalFileNames {
		path := filepath.Join(s.root, name)
		// #nosec G304 -- config root is operator-provided.
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read global config %s: %w", path, err)
		}
		cfg, err := ParseGlobal(data)
		if err != nil {
			return nil, fmt.Errorf("load global config %s: %w", path, err)
		}
		return cfg, nil
	}
	return nil, fmt.Errorf("global config in %s: %w", s.root, ErrNotFound)
}

// WriteGlobal stores cfg as global.yaml, replacing any existing global document.
func (s *FileStore) WriteGlobal(_ context.Context, cfg *extraction.GlobalConfig) error {
	if cfg == nil {
		return errors.New("global config required")
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create config root: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode global config: %w", err)
	}
	for _, name := range globalFileNames[1:] {
		_ = os.Remove(filepath.Join(s.root, name))
	}
	return os.WriteFile(filepath.Join(s.root, globalFileNames[0]), data, 0o644)
}

// ReadClient loads one client record.
func (s *FileStore) ReadClient(_ context.Context, id string) (*extraction.ClientRecord, error) {
	dirExists, err := exists(s.clientsDir())
	if err != nil {
		return nil, err
	}
	if dirExists {
		// #nosec G304 -- id is validated by the resolver before it reaches the store.
		data, err := os.ReadFile(s.clientPath(id))
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("client %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("read client %s: %w", id, err)
		}
		rec, err := ParseClient(data)
		if err != nil {
			return nil, fmt.Errorf("load client %s: %w", id, err)
		}
		rec.ClientID = id
		return rec, nil
	}
	legacy, err := s.readLegacy()
	if err != nil {
		return nil, err
	}
	rec, ok := legacy[id]
	if !ok {
		return nil, fmt.Errorf("client %s: %w", id, ErrNotFound)
	}
	return rec, nil
}

// ListClientIDs lists client ids in sorted order.
func (s *FileStore) ListClientIDs(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.clientsDir())
	if err == nil {
		ids := make([]string, 0, len(entries))
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != clientFileExt {
				continue
			}
			ids = append(ids, strings.TrimSuffix(name, clientFileExt))
		}
		sort.Strings(ids)
		return ids, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	legacy, err := s.readLegacy()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(legacy))
	for id := range legacy {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// WriteClient stores rec as clients/<id>.json.
func (s *FileStore) WriteClient(_ context.Context, id string, rec *extraction.ClientRecord) error {
	if rec == nil {
		return errors.New("client record required")
	}
	if err := s.ensureClientsDir(id); err != nil {
		return err
	}
	return s.writeClientFile(id, rec)
}

// DeleteClient removes clients/<id>.json.
func (s *FileStore) DeleteClient(_ context.Context, id string) error {
	if err := s.ensureClientsDir(""); err != nil {
		return err
	}
	err := os.Remove(s.clientPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("client %s: %w", id, ErrNotFound)
	}
	return err
}

func (s *FileStore) writeClientFile(id string, rec *extraction.ClientRecord) error {
	out := rec.Clone()
	out.ClientID = id
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode client %s: %w", id, err)
	}
	if err := os.WriteFile(s.clientPath(id), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write client %s: %w", id, err)
	}
	return nil
}

// ensureClientsDir creates clients/ on first write, seeding it from the
// legacy document. skipID is about to be written by the caller.
func (s *FileStore) ensureClientsDir(skipID string) error {
	dirExists, err := exists(s.clientsDir())
	if err != nil || dirExists {
		return err
	}
	legacy, err := s.readLegacy()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if err := os.MkdirAll(s.clientsDir(), 0o755); err != nil {
		return fmt.Errorf("create clients dir: %w", err)
	}
	for id, rec := range legacy {
		if id == skipID {
			continue
		}
		if err := s.writeClientFile(id, rec); err != nil {
			return err
		}
	}
	if len(legacy) > 0 {
		logging.Info("store", "migrated legacy clients document", "clients", len(legacy), "dir", s.clientsDir())
	}
	return nil
}

func (s *FileStore) readLegacy() (map[string]*extraction.ClientRecord, error) {
	// #nosec G304 -- config root is operator-provided.
	data, err := os.ReadFile(s.legacyPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("client registry in %s: %w", s.root, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read legacy clients: %w", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse legacy clients: %w", err)
	}
	out := make(map[string]*extraction.ClientRecord, len(raw))
	for id, body := range raw {
		rec, err := ParseClient(body)
		if err != nil {
			return nil, fmt.Errorf("legacy client %s: %w", id, err)
		}
		rec.ClientID = id
		out[id] = rec
	}
	return out, nil
}

// ParseGlobal validates a YAML or JSON global document and decodes it.
func ParseGlobal(data []byte) (*extraction.GlobalConfig, error) {
	schemaBytes, err := schemaFS.ReadFile(globalSchemaFile)
	if err != nil {
		return nil, fmt.Errorf("load global schema: %w", err)
	}
	if err := configschema.ValidateDocument("global", schemaBytes, data); err != nil {
		return nil, err
	}
	var cfg extraction.GlobalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse global config: %w", err)
	}
	if err := extraction.CheckUnique(cfg.FieldDefinitions, cfg.TagDefinitions); err != nil {
		return nil, fmt.Errorf("global config: %w", err)
	}
	return &cfg, nil
}

// ParseClient validates a JSON client document and decodes it. Unknown keys
// are ignored. Schema failures are returned as *schema.Error.
func ParseClient(data []byte) (*extraction.ClientRecord, error) {
	schemaBytes, err := schemaFS.ReadFile(clientSchemaFile)
	if err != nil {
		return nil, fmt.Errorf("load client schema: %w", err)
	}
	if err := configschema.ValidateSchema("client", schemaBytes, json.RawMessage(data)); err != nil {
		return nil, err
	}
	var rec extraction.ClientRecord
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return nil, fmt.Errorf("parse client: %w", err)
	}
	if err := extraction.CheckUnique(rec.FieldDefinitions, rec.TagDefinitions); err != nil {
		return nil, err
	}
	return &rec, nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
