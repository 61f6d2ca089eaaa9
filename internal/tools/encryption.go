package tools

import (
	"context"

	"github.com/masc-dev/masc/internal/room"
)

func registerEncryption(r *Registry) {
	r.Register(Tool{
		Name:        "masc_encryption_status",
		Category:    CategoryEncryption,
		Description: "Report whether at-rest encryption of sensitive values is enabled.",
		Schema:      schema(`{"type":"object","properties":{}}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			return struct {
				Enabled bool `json:"enabled"`
			}{s.EncryptionEnabled()}, nil
		},
	})
}
