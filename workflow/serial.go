package workflow

import (
	"strconv"

	"bitbucket.org/mmdatafocus/lottery_backend/utils"
)

// Serials are numeric strings identifying a ticket's 0-indexed position within
// a pack, valid over [0, 999]. An opening/closing serial denotes the position
// of the NEXT unsold ticket, while a pack's serial_end is the LAST valid ticket
// index (inclusive) — hence the +1 in the depletion formula.

const MaxSerial = 999

// ParseSerial validates and parses one serial string. Failures name the
// offending field and value.
func ParseSerial(field string, value string) (int, error) {
	if value == "" {
		return 0, utils.NewValidationError(field, value, "serial must not be empty")
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return 0, utils.NewValidationError(field, value, "serial must be numeric")
		}
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, utils.NewValidationError(field, value, "serial must be numeric")
	}
	if n > MaxSerial {
		return 0, utils.NewValidationError(field, value, "serial out of range [0, 999]")
	}
	return n, nil
}

// TicketsSoldContinuing computes tickets sold for a pack still in play at shift
// end: closing − opening, clamped at 0. Equal serials mean nothing sold.
// closing < opening signals an upstream data issue and clamps to 0 rather than
// erroring here.
func TicketsSoldContinuing(openingSerial string, closingSerial string) (int, error) {
	opening, err := ParseSerial("openingSerial", openingSerial)
	if err != nil {
		return 0, err
	}
	closing, err := ParseSerial("closingSerial", closingSerial)
	if err != nil {
		return 0, err
	}
	sold := closing - opening
	if sold < 0 {
		return 0, nil
	}
	return sold, nil
}

// TicketsSoldDepletion computes tickets sold for a fully sold-out pack:
// (serialEnd + 1) − opening, clamped at 0.
func TicketsSoldDepletion(openingSerial string, serialEnd string) (int, error) {
	opening, err := ParseSerial("openingSerial", openingSerial)
	if err != nil {
		return 0, err
	}
	end, err := ParseSerial("serialEnd", serialEnd)
	if err != nil {
		return 0, err
	}
	sold := (end + 1) - opening
	if sold < 0 {
		return 0, nil
	}
	return sold, nil
}
