package model

import "time"

// HoldJobState tracks whether a durable expiry job still has to run.
type HoldJobState string

const (
	HoldJobArmed HoldJobState = "armed"
	HoldJobDone  HoldJobState = "done"
)

// HoldJob is the persisted "release this booking no earlier than DueAt"
// request.  It is written in the same transaction as its booking so that a
// restart between booking creation and the deadline cannot lose it.
//
// Fields:
//
//	ID        – random UUID.
//	BookingID – booking to inspect when the job fires.
//	DueAt     – earliest firing time.
//	State     – armed until the job has run successfully or the booking
//	            was paid.
//	Attempts  – number of times the job has been claimed.
//	LastError – message of the most recent failed run, if any.
type HoldJob struct {
	ID        string       // hold_jobs.id
	BookingID uint64       // hold_jobs.booking_id
	DueAt     time.Time    // hold_jobs.due_at
	State     HoldJobState // hold_jobs.state
	Attempts  int          // hold_jobs.attempts
	LastError *string      // hold_jobs.last_error (nullable)
}
