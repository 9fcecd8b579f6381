package importer

import (
	"fmt"

	"github.com/jotishBolds/sbte-import-service/pkg/errors"
)

// cardNoLimit bounds the zero-padded counter: three digits allow 999 cards
// per (year, branch, semester) combination.
const cardNoLimit = 999

// Reservation tracks card numbers generated during one import request but
// not yet committed, so rows processed in the same request cannot collide.
// It is passed explicitly into every commit chunk; the uniqueness scope is
// exactly one request.
type Reservation struct {
	nos map[string]struct{}
}

func NewReservation() *Reservation {
	return &Reservation{nos: make(map[string]struct{})}
}

func (r *Reservation) Has(no string) bool {
	_, ok := r.nos[no]
	return ok
}

func (r *Reservation) Add(no string) {
	r.nos[no] = struct{}{}
}

// GenerateCardNo derives a human-readable grade-card number of the form
// GC<2-digit-year><2-digit-branch><semester><3-digit-counter>. The year and
// branch tokens are fixed slices of the enrollment number; the counter
// starts at 001 and advances past every number already persisted or
// reserved in this request. The returned number is reserved before it is
// returned.
func GenerateCardNo(enrollmentNo string, semester int, persisted map[string]struct{}, reserved *Reservation) (string, error) {
	if len(enrollmentNo) < 4 {
		return "", errors.ValidationError{
			Field:   "enrollment_no",
			Value:   enrollmentNo,
			Message: "too short to derive a card number",
		}
	}

	yearToken := enrollmentNo[0:2]
	branchToken := enrollmentNo[2:4]
	prefix := fmt.Sprintf("GC%s%s%d", yearToken, branchToken, semester)

	for counter := 1; counter <= cardNoLimit; counter++ {
		candidate := fmt.Sprintf("%s%03d", prefix, counter)
		if _, exists := persisted[candidate]; exists {
			continue
		}
		if reserved.Has(candidate) {
			continue
		}
		reserved.Add(candidate)
		return candidate, nil
	}

	return "", errors.ErrCardNumberExhausted
}
