package geosheet

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// documentLocks serializes writers of one document inside the process.
// Keys are absolute paths, values are one-slot semaphores.
var documentLocks sync.Map

// lockDocument takes the process-local lock for path and, when enabled, the
// "<path>.lock" file lock shared with other processes.
func lockDocument(ctx context.Context, path string, o *Options) (func(), error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if o.lockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.lockTimeout)
		defer cancel()
	}

	v, _ := documentLocks.LoadOrStore(abs, make(chan struct{}, 1))
	sem := v.(chan struct{})
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return nil, lockError(abs, ctx.Err())
	}
	release := func() { <-sem }
	if !o.fileLock {
		return release, nil
	}

	fl := flock.New(abs + ".lock")
	locked, err := fl.TryLockContext(ctx, o.lockRetry)
	if err != nil || !locked {
		release()
		if err == nil {
			err = ctx.Err()
		}
		return nil, lockError(abs, err)
	}
	return func() {
		_ = fl.Unlock()
		release()
	}, nil
}

func lockError(path string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrLocked, path, err)
}
