package console

import "errors"

// ErrInvariant is returned, wrapped, when an action would break a store
// invariant. The state passed to Reduce is left as it was.
var ErrInvariant = errors.New("console: invariant violation")
