package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// Reconciliation error taxonomy. Boundary handlers map these to
// user-facing responses; everything else surfaces as-is.
var (
	// ErrorInvalidAmount rejects non-positive or missing amounts before any write.
	ErrorInvalidAmount = errors.New("amount must be greater than zero")

	// ErrorAlreadyProcessed is the expected race loss when two admins act on
	// the same intent. Soft failure, never a crash.
	ErrorAlreadyProcessed = errors.New("intent already processed by another administrator")

	// ErrorPartialBatchFailure wraps a multi-entry write that failed partway.
	// The whole batch was rolled back; callers retry in full.
	ErrorPartialBatchFailure = errors.New("batch write failed; retry the whole batch")

	// ErrorVersionConflict is returned when a concurrent edit won; the caller
	// must re-read and resubmit.
	ErrorVersionConflict = errors.New("entry was modified concurrently; reload and retry")

	// ErrorAuditNoteRequired guards destructive edits and deletes.
	ErrorAuditNoteRequired = errors.New("audit note is required for this change")

	// ErrorEventSelectionRequired rejects a manual accept on a date that has
	// scheduled events; the administrator must associate one.
	ErrorEventSelectionRequired = errors.New("an event exists for this date; event_id is required")

	// ErrorUnauthorized covers both missing sessions and insufficient roles.
	ErrorUnauthorized = errors.New("unauthorized")
)

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
