// Package speaker defines the client contract for the speaker-verification
// service: voice-print enrollment from three phrase clips, and per-clip
// verification against the enrolled print.
//
// The service holds the voice-print server-side; the client only ever
// supplies comparison audio. The HTTP implementation lives in this package
// ([Client]); a test double lives in speaker/mock.
package speaker

import "context"

// Provider is the speaker-service contract consumed by the enrollment
// controller and the listening loop.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Enroll uploads exactly three WAV phrase clips and returns the
	// voice-print reference produced by the service. Any failure discards
	// the entire enrollment attempt — there is no partial enrollment.
	Enroll(ctx context.Context, clips [3][]byte) (string, error)

	// Verify submits a WAV clip for comparison against the enrolled
	// voice-print. A malformed or missing verdict maps to false, never to a
	// panic or a parse crash; transport failures return an error.
	Verify(ctx context.Context, wav []byte) (bool, error)
}
