package tenants

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/docintake/docintake/core/extraction"
	configschema "github.com/docintake/docintake/core/infra/schema"
	"github.com/docintake/docintake/core/store"
)

var clientIDPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// ValidateClientID rejects ids outside ^[a-z0-9-]+$.
func ValidateClientID(id string) error {
	if !clientIDPattern.MatchString(id) {
		return &extraction.ValidationError{
			Field:  "clientId",
			Reason: fmt.Sprintf("%q must match ^[a-z0-9-]+$", id),
			Err:    extraction.ErrInvalidClientID,
		}
	}
	return nil
}

// decodeObject splits a JSON object into its raw members.
func decodeObject(field string, payload []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &extraction.ValidationError{Field: field, Reason: "must be a JSON object"}
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, &extraction.ValidationError{Field: field, Reason: "malformed JSON", Err: err}
	}
	return doc, nil
}

// checkRecord runs a candidate record through the client schema and through
// resolution against global, so nothing that would fail to resolve is saved.
func checkRecord(global *extraction.GlobalConfig, rec *extraction.ClientRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode client %s: %w", rec.ClientID, err)
	}
	if _, err := store.ParseClient(data); err != nil {
		return recordError(err)
	}
	if _, err := Effective(global, rec); err != nil {
		return recordError(err)
	}
	return nil
}

// recordError maps store and schema failures onto *extraction.ValidationError
// naming the offending attribute.
func recordError(err error) error {
	var verr *extraction.ValidationError
	if errors.As(err, &verr) {
		return err
	}
	var serr *configschema.Error
	if errors.As(err, &serr) {
		first := serr.First()
		return &extraction.ValidationError{Field: first.Path(), Reason: first.Message, Err: err}
	}
	return &extraction.ValidationError{Reason: err.Error(), Err: err}
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
