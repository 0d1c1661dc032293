// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow the service layer to tell a
// missing row from a lost race without inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrShowNotFound indicates that a show was not located in the DB.
var ErrShowNotFound = errors.New("show not found")

// ErrBookingNotFound indicates that a booking was not located in the DB.
var ErrBookingNotFound = errors.New("booking not found")

// ErrVersionConflict is returned when a show's seat_version moved between
// the caller's read and its write.  The caller should re-read and retry.
var ErrVersionConflict = errors.New("seat map version conflict")

// ErrSeatTaken is returned when inserting a seat holder row collides with an
// existing one.  It carries the same retry meaning as ErrVersionConflict.
var ErrSeatTaken = errors.New("seat already taken")

// ErrStatusChanged is returned by conditional status updates when the
// booking is no longer in the expected status.
var ErrStatusChanged = errors.New("booking status changed")

// ErrJobNotFound is returned when a hold job id does not exist.
var ErrJobNotFound = errors.New("hold job not found")

// isDuplicateKey reports whether err is MySQL error 1062 (ER_DUP_ENTRY).
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
