package frontend

import (
	"context"
	"fmt"
	"io"

	"github.com/harrison/tern/internal/coordinator"
	"github.com/harrison/tern/internal/models"
)

// Static stores a fixed list of profiles and quits.
type Static struct {
	Profiles []models.Profile
	Out      io.Writer
}

// Run stores every profile in order. The first failure stops the session.
func (s *Static) Run(ctx context.Context, client *coordinator.Client) error {
	for _, p := range s.Profiles {
		id, err := client.StoreProfile(ctx, p)
		if err != nil {
			return fmt.Errorf("failed to store profile %s -> %s: %w", p.SourceRoot, p.OutputRoot, err)
		}
		if s.Out != nil {
			p.ID = id
			fmt.Fprintf(s.Out, "Stored profile %s\n", p.Label())
		}
	}
	return client.Quit(ctx)
}
