package musig

import (
	"fmt"
)

// SigningStageViolation reports an attempt to drive a tree signing session's
// getNonces -> setAggregatedNonces -> sign pipeline out of order.
type SigningStageViolation struct {
	Attempted string
	Current   Stage
}

func (e *SigningStageViolation) Error() string {
	return fmt.Sprintf("musig: cannot call %s while session is in stage %s", e.Attempted, e.Current)
}
