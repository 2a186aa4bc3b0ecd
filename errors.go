package ripple

import "errors"

// ErrNoSession is returned by player operations that require a guild node
// when none exists. Check for it with [errors.Is].
//
// The other error kinds surfaced by this package live with the layer that
// produces them: [voice.ErrTimeout] when an event-count wait budget runs
// out, [backend.MissingFieldError] for incomplete connection descriptors,
// and [backend.NetworkError] for audio node transport failures.
var ErrNoSession = errors.New("ripple: no session for guild")

// ErrNoGateway is returned by Join and Leave when the client was built
// without a platform gateway.
var ErrNoGateway = errors.New("ripple: no gateway configured")
