package service

import "errors"

// Validation failures callers are expected to handle. Everything else coming
// out of the services is an infrastructure error wrapped with context.
var (
	ErrScheduleNotFound      = errors.New("schedule not found")
	ErrTrainerNotMapped      = errors.New("member has no mapped trainer")
	ErrSlotUnavailable       = errors.New("slot is not available")
	ErrNoRemainingCredit     = errors.New("no course with remaining lessons")
	ErrNotReservationOwner   = errors.New("member does not own this reservation")
	ErrSlotNotReserved       = errors.New("slot is not reserved")
	ErrAlreadySlotApplicant  = errors.New("member already holds this slot")
	ErrWaitingEntryNotFound  = errors.New("waiting entry not found")
	ErrDuplicateWaitingEntry = errors.New("waiting entry already exists")
	ErrInvalidSlotTime       = errors.New("slot time range is invalid")
	ErrNotSlotOwner          = errors.New("member does not own this slot")
)

// IsValidationError reports whether err is one of the caller-correctable
// failures above, as opposed to a storage problem.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrScheduleNotFound,
		ErrTrainerNotMapped,
		ErrSlotUnavailable,
		ErrNoRemainingCredit,
		ErrNotReservationOwner,
		ErrSlotNotReserved,
		ErrAlreadySlotApplicant,
		ErrWaitingEntryNotFound,
		ErrDuplicateWaitingEntry,
		ErrInvalidSlotTime,
		ErrNotSlotOwner,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
