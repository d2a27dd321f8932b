package errors

import "fmt"

var (
	// ErrPermissionDenied covers both the local pre-flight check and a
	// server-side rejection of a mutation the local role table allowed.
	ErrPermissionDenied = fmt.Errorf("permission denied")

	// ErrInvalidArgument marks a mutation parameter rejected before or by
	// the server (mute duration out of range, oversized card, banned word).
	ErrInvalidArgument = fmt.Errorf("invalid argument")

	// ErrTargetNotFound means the member or group no longer exists on the
	// server or has been detached locally.
	ErrTargetNotFound = fmt.Errorf("target not found")

	// ErrTransient marks timeouts and transport failures. The mutation may
	// or may not have been applied remotely; callers decide about retrying.
	ErrTransient = fmt.Errorf("transient failure")

	// ErrProtocolInconsistency flags a server signal that contradicts local
	// invariants. The server signal wins; this is logged, never fatal.
	ErrProtocolInconsistency = fmt.Errorf("protocol inconsistency")

	ErrGroupUnknown   = fmt.Errorf("group unknown")
	ErrWorkerPanic    = fmt.Errorf("worker panic")
	ErrEmptyWords     = fmt.Errorf("no words have been found")
	ErrInvalidPayload = fmt.Errorf("invalid event payload")
)
