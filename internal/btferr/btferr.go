// Package btferr defines the error-kind taxonomy from spec §7. Each kind is
// a prefix sentinel: callers build an error with
// fmt.Errorf("%w<message>", btferr.Configuration) and callers upstream test
// for the kind with errors.Is against the bare sentinel.
package btferr

import "errors"

// Kind is one of the four fatal error categories from spec §7. "Non-ready"
// is deliberately not a Kind: it is recovered locally as a (value, bool)
// return, never surfaced as an error.
type Kind struct{ s string }

func (k Kind) Error() string { return k.s }

// String renders the kind as the prefix used when wrapping: "configuration: ".
func (k Kind) String() string { return k.s }

var (
	// Configuration covers missing/unparsable settings keys, unknown
	// instruments, start_date > end_date, population_size > |search space|.
	Configuration = Kind{"configuration: "}
	// Data covers missing data files, unreadable lines, csv_format mismatch.
	Data = Kind{"data: "}
	// ContractViolation covers unknown strategy parameter names and
	// indicators called with an invalid length.
	ContractViolation = Kind{"contract violation: "}
	// RuntimeDegenerate covers zero total GA fitness, empty metric vectors
	// in a validation step, division by zero in the stability test.
	RuntimeDegenerate = Kind{"runtime degenerate: "}
)

// Is reports whether err is, or wraps, exactly this Kind sentinel. Exists so
// callers can write btferr.Configuration.Is(err) as an alternative to
// errors.Is(err, btferr.Configuration); both forms are equivalent since Kind
// is a comparable value type.
func (k Kind) Is(err error) bool {
	return errors.Is(err, k)
}
