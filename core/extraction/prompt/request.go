package prompt

import (
	"fmt"
	"time"

	"github.com/docintake/docintake/core/extraction"
	"github.com/google/uuid"
)

// Request is what the model client sends for one document. The network call
// itself lives outside this package.
type Request struct {
	ID          string    `json:"id"`
	ClientID    string    `json:"clientId,omitempty"`
	Model       string    `json:"model,omitempty"`
	Prompt      string    `json:"prompt"`
	Fingerprint string    `json:"configFingerprint"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewRequest assembles the prompt for cfg and stamps it with a request id and
// the configuration fingerprint.
func NewRequest(cfg extraction.EffectiveConfig, opts *Options) (*Request, error) {
	fp, err := extraction.Fingerprint(cfg)
	if err != nil {
		return nil, fmt.Errorf("fingerprint config: %w", err)
	}
	return &Request{
		ID:          uuid.NewString(),
		ClientID:    cfg.ClientID,
		Model:       cfg.Model,
		Prompt:      BuildExtractionPrompt(cfg, opts),
		Fingerprint: fp,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
