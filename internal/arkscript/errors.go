package arkscript

import "errors"

// ErrConfigDelayOrdering is returned when a VHTLC's three unilateral delays
// don't strictly increase, which would let a refund path race ahead of the
// receiver's claim path.
var ErrConfigDelayOrdering = errors.New("vhtlc delay ordering violated")
