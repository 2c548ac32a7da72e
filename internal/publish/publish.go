package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/basilehenry/ipfs-publish/internal/ipfs"
	"github.com/basilehenry/ipfs-publish/internal/remote"
	"github.com/basilehenry/ipfs-publish/internal/store"
)

// ErrNothingToUpdate indicates the directory content is unchanged since
// the last recorded publication. Not an error in the domain sense, but
// the CLI reports it with a failure exit code for compatibility with
// existing callers.
var ErrNothingToUpdate = errors.New("nothing to update")

// Engine orchestrates the publish and deploy operations
type Engine struct {
	store  *store.Store
	ipfs   ipfs.Client
	remote remote.Runner
	logger *slog.Logger
	dryRun bool
	now    func() time.Time
}

// NewEngine creates a new publish engine
func NewEngine(st *store.Store, ipfsClient ipfs.Client, runner remote.Runner, logger *slog.Logger, dryRun bool) *Engine {
	return &Engine{
		store:  st,
		ipfs:   ipfsClient,
		remote: runner,
		logger: logger,
		dryRun: dryRun,
		now:    time.Now,
	}
}

// Publish adds the recorded directory to the network and appends a new
// version entry when the resulting hash differs from the latest one.
// Returns the hash, paired with ErrNothingToUpdate when it is unchanged.
func (e *Engine) Publish(ctx context.Context) (string, error) {
	unlock, err := e.store.Lock()
	if err != nil {
		return "", err
	}
	defer unlock()

	rec, err := e.store.Load()
	if err != nil {
		return "", err
	}

	info, statErr := os.Stat(rec.Directory)
	if statErr != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", store.ErrNotADirectory, rec.Directory)
	}

	e.logger.Info("publishing", "directory", rec.Directory, "dry_run", e.dryRun)

	hash, err := e.ipfs.Add(ctx, rec.Directory)
	if err != nil {
		return "", err
	}

	if last, ok := rec.Latest(); ok && last.Hash == hash {
		return hash, ErrNothingToUpdate
	}

	if e.dryRun {
		e.logger.Info("[dry-run] would record new version", "hash", hash)
		return hash, nil
	}

	rec.Append(hash, e.now())
	if err := e.store.Save(rec); err != nil {
		return "", err
	}

	e.logger.Info("recorded new version", "hash", hash, "versions", len(rec.Versions))
	return hash, nil
}

// Deploy pins the latest recorded hash on the remote node and publishes
// it under the node's name record. With no recorded versions it is a
// no-op: no remote invocation, empty output, success.
func (e *Engine) Deploy(ctx context.Context) (string, error) {
	rec, err := e.store.Load()
	if err != nil {
		return "", err
	}

	last, ok := rec.Latest()
	if !ok {
		e.logger.Info("no versions recorded, nothing to deploy")
		return "", nil
	}

	e.logger.Info("deploying", "hash", last.Hash, "published", last.DateTime)

	out, err := e.remote.PinPublish(ctx, last.Hash)
	if err != nil {
		return "", err
	}
	return out, nil
}
