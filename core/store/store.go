package store

import (
	"context"
	"embed"
	"errors"

	"github.com/docintake/docintake/core/extraction"
)

// ErrNotFound reports an absent global document, client record or registry.
var ErrNotFound = errors.New("not found")

const (
	globalSchemaFile = "schema/global.schema.json"
	clientSchemaFile = "schema/client.schema.json"
)

//go:embed schema/*.json
var schemaFS embed.FS

// Store is durable storage for the global config and per-client records.
// Every method returns ErrNotFound (possibly wrapped) for absence so callers
// can tell it apart from I/O failures.
type Store interface {
	ReadGlobal(ctx context.Context) (*extraction.GlobalConfig, error)
	ReadClient(ctx context.Context, id string) (*extraction.ClientRecord, error)
	// ListClientIDs returns ErrNotFound when no client registry of any kind exists.
	ListClientIDs(ctx context.Context) ([]string, error)
	WriteClient(ctx context.Context, id string, rec *extraction.ClientRecord) error
	DeleteClient(ctx context.Context, id string) error
}

// GlobalWriter is implemented by stores that can seed the global document.
type GlobalWriter interface {
	WriteGlobal(ctx context.Context, cfg *extraction.GlobalConfig) error
}
