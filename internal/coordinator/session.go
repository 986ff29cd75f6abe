package coordinator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/tern/internal/models"
)

// Mode selects what a process does with the store.
type Mode int

const (
	// ConvertSession runs the conversion engine over every profile.
	ConvertSession Mode = iota
	// WriteSession runs the front end to create profiles.
	WriteSession
)

// String returns the string representation of Mode.
func (m Mode) String() string {
	if m == WriteSession {
		return "write"
	}
	return "convert"
}

// DecideMode returns WriteSession when the profile manager was requested or
// the store did not exist before this process opened it.
func DecideMode(storeCreated, profileManager bool) Mode {
	if storeCreated || profileManager {
		return WriteSession
	}
	return ConvertSession
}

// FrontEnd creates profiles through a Client.
type FrontEnd interface {
	Run(ctx context.Context, client *Client) error
}

// Runner converts profiles, sending metadata updates to sink.
type Runner func(ctx context.Context, sink *Client, profiles []models.Profile) models.RunResult

// RunWriteSession runs frontEnd against store. The session ends when the
// front end sends a quit request or returns.
func RunWriteSession(ctx context.Context, store ProfileStore, logger Logger, frontEnd FrontEnd) error {
	c := New(store, logger)
	c.Start(ctx)
	defer c.Shutdown()

	errCh := make(chan error, 1)
	go func() {
		errCh <- frontEnd.Run(ctx, c.Client())
	}()

	select {
	case err := <-errCh:
		return err
	case <-c.Quit():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunConvertSession fetches every profile once, hands them to runner and
// returns after every metadata update the runner queued has been applied.
// Only a failure to fetch the profiles is returned as an error; upsert
// failures are counted in the result's PersistenceFaults.
func RunConvertSession(ctx context.Context, store ProfileStore, logger Logger, runner Runner) (models.RunResult, error) {
	c := New(store, logger)
	c.Start(ctx)
	client := c.Client()

	startedAt := time.Now()
	profiles, err := client.FetchProfiles(ctx)
	if err != nil {
		c.Shutdown()
		return models.RunResult{}, err
	}

	result := runner(ctx, client, profiles)
	result.RunID = uuid.NewString()

	record := models.RunRecord{
		RunID:      result.RunID,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		Converted:  result.Converted,
		UpToDate:   result.UpToDate,
		Failed:     result.Failed,
		Cancelled:  result.Cancelled,
	}
	if err := client.RecordRun(context.WithoutCancel(ctx), record); err != nil && logger != nil {
		logger.Warnf("Run %s not recorded: %v", result.RunID, err)
	}

	c.Shutdown()
	result.PersistenceFaults += c.UpsertFaults()
	return result, nil
}
