package allocation

import "errors"

// Rule violations. Callers match with errors.Is; the returned errors carry
// the offending figures.
var (
	// ErrNegativeAmount rejects negative payment or line amounts.
	ErrNegativeAmount = errors.New("amount must not be negative")

	// ErrExceedsOutstanding rejects a FIFO run for more than the customer owes.
	ErrExceedsOutstanding = errors.New("amount exceeds total outstanding")

	// ErrLineExceedsOutstanding rejects a manual line above its target's outstanding.
	ErrLineExceedsOutstanding = errors.New("allocation exceeds target outstanding")

	// ErrExceedsAmount rejects plans whose lines add up to more than the payment.
	ErrExceedsAmount = errors.New("allocations exceed payment amount")

	// ErrUnknownTarget is returned for a line naming no open obligation.
	ErrUnknownTarget = errors.New("allocation target is not open for this customer")

	// ErrDuplicateTarget is returned when a manual plan names a target twice.
	ErrDuplicateTarget = errors.New("allocation target listed more than once")
)

// IsRuleViolation reports whether err breaks one of the allocation rules.
func IsRuleViolation(err error) bool {
	for _, rule := range []error{
		ErrNegativeAmount,
		ErrExceedsOutstanding,
		ErrLineExceedsOutstanding,
		ErrExceedsAmount,
		ErrUnknownTarget,
		ErrDuplicateTarget,
	} {
		if errors.Is(err, rule) {
			return true
		}
	}
	return false
}
