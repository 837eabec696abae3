package appointment

import (
	"github.com/hackgods/dental-clinic-booking/internal/apperr"
)

// allowed lists the legal moves out of each non-terminal state.
var allowed = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusCompleted},
	StatusConfirmed: {StatusCancelled, StatusCompleted},
}

func CanTransition(from, to Status) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// checkTransition explains why from cannot move to to, or returns nil.
func checkTransition(from, to Status) error {
	if CanTransition(from, to) {
		return nil
	}

	switch to {
	case StatusConfirmed:
		switch from {
		case StatusConfirmed:
			return apperr.InvalidState("appointment is already confirmed")
		case StatusCancelled:
			return apperr.InvalidState("cannot confirm a cancelled appointment")
		case StatusCompleted:
			return apperr.InvalidState("cannot confirm a completed appointment")
		}
	case StatusCancelled:
		switch from {
		case StatusCancelled:
			return apperr.InvalidState("appointment is already cancelled")
		case StatusCompleted:
			return apperr.InvalidState("cannot cancel a completed appointment")
		}
	case StatusCompleted:
		switch from {
		case StatusCompleted:
			return apperr.InvalidState("appointment is already marked as completed")
		case StatusCancelled:
			return apperr.InvalidState("cannot complete a cancelled appointment")
		}
	}
	return apperr.InvalidState("cannot move appointment from " + string(from) + " to " + string(to))
}

// authorize applies the role rule: confirm and complete are admin only,
// cancel is open to the owning patient as well.
func authorize(actor Actor, a *Appointment, to Status) error {
	if actor.IsAdmin() {
		return nil
	}
	switch to {
	case StatusCancelled:
		if a.PatientID == actor.UserID {
			return nil
		}
		return apperr.Forbidden("not authorized to cancel this appointment")
	case StatusConfirmed:
		return apperr.Forbidden("only administrators can confirm appointments")
	case StatusCompleted:
		return apperr.Forbidden("only administrators can complete appointments")
	}
	return apperr.Forbidden("not authorized to change this appointment")
}
