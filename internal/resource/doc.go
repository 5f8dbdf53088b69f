// Package resource bounds the background work of a Syncer.
//
// A Controller limits two things:
//
//   - Concurrency: how many index flushes run at once
//   - IO: the byte rate of segment writes (token bucket)
//
// Usage:
//
//	rc := resource.NewController(resource.Config{
//	    MaxBackgroundWorkers: 4,
//	    IOLimitBytesPerSec:   32 << 20,
//	})
//
//	if err := rc.AcquireBackground(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseBackground()
//
//	if err := rc.AcquireIO(ctx, len(segment)); err != nil {
//	    return err
//	}
//
// All methods are safe for concurrent use and treat a nil Controller as
// unlimited.
package resource
