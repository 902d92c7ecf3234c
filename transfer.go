package fetchq

import "context"

// ByteProgress reports transfer progress for one download.
type ByteProgress interface {
	// SetExpectedSize records the total size once it is known.
	SetExpectedSize(n int64)
	// Advance records n more bytes written.
	Advance(n int64)
}

// Transferer moves the bytes of a download to its destination.
// Implementations report progress through p, check ctx between chunks,
// and classify failures with Transient or Permanent.
type Transferer interface {
	Download(ctx context.Context, task DownloadTask, p ByteProgress) error
}
