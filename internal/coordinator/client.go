package coordinator

import (
	"context"

	"github.com/harrison/tern/internal/models"
)

// Client issues requests to a Coordinator. The front end uses FetchColumn,
// FetchProfiles, StoreProfile and Quit; the dispatch pool uses Upsert.
type Client struct {
	c *Coordinator
}

// FetchColumn returns the distinct stored values of column.
func (cl *Client) FetchColumn(ctx context.Context, column string) ([]string, error) {
	resp, err := cl.call(ctx, request{kind: reqFetchColumn, column: column})
	return resp.values, err
}

// FetchProfiles returns every stored profile with its metadata.
func (cl *Client) FetchProfiles(ctx context.Context) ([]models.Profile, error) {
	resp, err := cl.call(ctx, request{kind: reqFetchProfiles})
	return resp.profiles, err
}

// StoreProfile stores a new profile and returns its id.
func (cl *Client) StoreProfile(ctx context.Context, profile models.Profile) (int64, error) {
	resp, err := cl.call(ctx, request{kind: reqStoreProfile, profile: profile})
	return resp.id, err
}

// RecordRun stores the summary of a conversion run.
func (cl *Client) RecordRun(ctx context.Context, run models.RunRecord) error {
	_, err := cl.call(ctx, request{kind: reqRecordRun, run: run})
	return err
}

// Quit ends the write session.
func (cl *Client) Quit(ctx context.Context) error {
	_, err := cl.call(ctx, request{kind: reqQuit})
	return err
}

// Upsert queues a metadata update and returns without waiting for the
// store. Failures are logged and counted by the coordinator.
func (cl *Client) Upsert(update models.MetadataUpdate) error {
	return cl.c.send(request{kind: reqUpsertMetadata, update: update})
}

func (cl *Client) call(ctx context.Context, req request) (response, error) {
	req.reply = make(chan response, 1)
	if err := cl.c.send(req); err != nil {
		return response{}, err
	}

	select {
	case resp := <-req.reply:
		return resp, resp.err
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
}
