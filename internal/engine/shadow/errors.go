package shadow

import "errors"

// ErrInvalidConfig marks contract violations in construction arguments:
// non-power-of-2 sizes, cone angles outside (0, pi), zero-length direction
// vectors, inverted bias bounds. Errors returned by constructors wrap this
// sentinel so callers can test with errors.Is.
//
// Routine failures (atlas full, singular camera matrix, unknown region id)
// are never reported through errors; those paths return nil or false and
// log, so a frame can degrade instead of aborting.
var ErrInvalidConfig = errors.New("shadow: invalid configuration")
