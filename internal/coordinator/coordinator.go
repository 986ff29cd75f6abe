// Package coordinator owns all access to the profile store during a session.
//
// One driver goroutine receives requests over a channel. Writes are applied
// by the driver one at a time under an exclusive lock; reads are served on
// their own goroutines under a shared lock, so they overlap each other but
// never a write. Each synchronous request carries a one-slot reply channel.
package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/harrison/tern/internal/models"
)

// ErrClosed is returned for requests issued after Shutdown.
var ErrClosed = errors.New("coordinator is closed")

// requestBuffer is the capacity of the request channel.
const requestBuffer = 256

// ProfileStore is the persistence the coordinator drives. store.Store
// implements it.
type ProfileStore interface {
	FetchProfiles(ctx context.Context) ([]models.Profile, error)
	FetchColumn(ctx context.Context, column string) ([]string, error)
	StoreProfile(ctx context.Context, profile models.Profile) (int64, error)
	UpsertMetadata(ctx context.Context, profileID int64, sourceFile string, mtime int64) error
	RecordRun(ctx context.Context, run models.RunRecord) error
}

// Logger receives store faults that have no caller to return to.
type Logger interface {
	Warnf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type requestKind int

const (
	reqFetchColumn requestKind = iota
	reqFetchProfiles
	reqStoreProfile
	reqUpsertMetadata
	reqRecordRun
	reqQuit
)

func (k requestKind) String() string {
	switch k {
	case reqFetchColumn:
		return "fetch-column"
	case reqFetchProfiles:
		return "fetch-profiles"
	case reqStoreProfile:
		return "store-profile"
	case reqUpsertMetadata:
		return "upsert-metadata"
	case reqRecordRun:
		return "record-run"
	case reqQuit:
		return "quit"
	default:
		return "unknown"
	}
}

type request struct {
	kind    requestKind
	column  string
	profile models.Profile
	update  models.MetadataUpdate
	run     models.RunRecord
	reply   chan response // nil for fire-and-forget requests
}

type response struct {
	values   []string
	profiles []models.Profile
	id       int64
	err      error
}

// Coordinator serializes store access for one session.
type Coordinator struct {
	store  ProfileStore
	logger Logger

	requests chan request
	finished chan struct{}
	quit     chan struct{}
	quitOnce sync.Once

	// sendMu guards closed and the close of requests against in-flight sends.
	sendMu sync.RWMutex
	closed bool

	storeLock sync.RWMutex
	reads     sync.WaitGroup

	upsertFaults atomic.Int64
	started      atomic.Bool
}

// New creates a Coordinator over store. The logger may be nil.
func New(store ProfileStore, logger Logger) *Coordinator {
	return &Coordinator{
		store:    store,
		logger:   logger,
		requests: make(chan request, requestBuffer),
		finished: make(chan struct{}),
		quit:     make(chan struct{}),
	}
}

// Start launches the driver. Store operations run under a context that
// keeps ctx's values but not its cancellation, so accepted writes are always
// applied.
func (c *Coordinator) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.drive(context.WithoutCancel(ctx))
}

// Client returns a handle for issuing requests.
func (c *Coordinator) Client() *Client {
	return &Client{c: c}
}

// Quit is closed once a quit request has been served.
func (c *Coordinator) Quit() <-chan struct{} {
	return c.quit
}

// Done is closed when the driver has applied every accepted request.
func (c *Coordinator) Done() <-chan struct{} {
	return c.finished
}

// UpsertFaults returns how many metadata upserts failed in the store.
func (c *Coordinator) UpsertFaults() int {
	return int(c.upsertFaults.Load())
}

// Shutdown stops accepting requests and waits until every accepted request
// has been applied. It is safe to call more than once.
func (c *Coordinator) Shutdown() {
	c.sendMu.Lock()
	if !c.closed {
		c.closed = true
		close(c.requests)
	}
	c.sendMu.Unlock()

	if c.started.CompareAndSwap(false, true) {
		// Never started: nothing can be queued except what was sent before.
		go c.drive(context.Background())
	}
	<-c.finished
}

func (c *Coordinator) send(req request) error {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	c.requests <- req
	return nil
}

func (c *Coordinator) drive(ctx context.Context) {
	defer close(c.finished)

	for req := range c.requests {
		switch req.kind {
		case reqFetchColumn, reqFetchProfiles:
			c.reads.Add(1)
			go func() {
				defer c.reads.Done()
				c.storeLock.RLock()
				resp := c.read(ctx, req)
				c.storeLock.RUnlock()
				req.reply <- resp
			}()

		case reqQuit:
			c.quitOnce.Do(func() { close(c.quit) })
			req.reply <- response{}

		default:
			c.storeLock.Lock()
			resp := c.write(ctx, req)
			c.storeLock.Unlock()
			if req.reply != nil {
				req.reply <- resp
			}
		}
	}

	c.reads.Wait()
}

func (c *Coordinator) read(ctx context.Context, req request) response {
	var resp response
	switch req.kind {
	case reqFetchColumn:
		resp.values, resp.err = c.store.FetchColumn(ctx, req.column)
	case reqFetchProfiles:
		resp.profiles, resp.err = c.store.FetchProfiles(ctx)
	}
	return resp
}

func (c *Coordinator) write(ctx context.Context, req request) response {
	var resp response
	switch req.kind {
	case reqStoreProfile:
		resp.id, resp.err = c.store.StoreProfile(ctx, req.profile)
	case reqRecordRun:
		resp.err = c.store.RecordRun(ctx, req.run)
	case reqUpsertMetadata:
		u := req.update
		resp.err = c.store.UpsertMetadata(ctx, u.ProfileID, u.SourceFile, u.MTime)
		if resp.err != nil {
			c.upsertFaults.Add(1)
			if c.logger != nil {
				c.logger.Warnf("%s for %s: %v", req.kind, u.SourceFile, resp.err)
			}
		} else if c.logger != nil {
			c.logger.Debugf("Recorded %s at mtime %d", u.SourceFile, u.MTime)
		}
	}

	if resp.err != nil && models.FaultKindOf(resp.err) == models.FaultUnknown {
		resp.err = models.NewFault(models.PersistenceFault, req.kind.String(), "", resp.err)
	}
	return resp
}
