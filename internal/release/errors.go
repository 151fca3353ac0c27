package release

import (
	"errors"
	"fmt"
)

// ErrIntegrity matches every *IntegrityError via errors.Is. It is the only
// fatal error class of the decision pipeline.
var ErrIntegrity = errors.New("release integrity failure")

// Reason classifies an integrity failure.
type Reason string

const (
	ReasonManifestMissing Reason = "manifest_missing"
	ReasonManifestInvalid Reason = "manifest_invalid"
	ReasonDigestMalformed Reason = "digest_malformed"
	ReasonArtifactMissing Reason = "artifact_missing"
	ReasonHashMismatch    Reason = "hash_mismatch"
	ReasonNotVerified     Reason = "not_verified"
)

// IntegrityError identifies the artifact (or manifest) that failed verification.
type IntegrityError struct {
	Key    string
	Reason Reason
	Err    error
}

func (e *IntegrityError) Error() string {
	var msg string
	switch e.Reason {
	case ReasonManifestMissing:
		msg = "release manifest missing: " + e.Key
	case ReasonManifestInvalid:
		msg = "release manifest invalid: " + e.Key
	case ReasonDigestMalformed:
		msg = "release digest malformed: " + e.Key
	case ReasonArtifactMissing:
		msg = "release file missing: " + e.Key
	case ReasonHashMismatch:
		msg = "release hash mismatch: " + e.Key
	case ReasonNotVerified:
		msg = "release not verified"
	default:
		msg = fmt.Sprintf("release %s: %s", e.Reason, e.Key)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// Is reports whether target is ErrIntegrity.
func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }

// ReasonOf extracts the Reason of an integrity error, or "" for other errors.
func ReasonOf(err error) Reason {
	var ie *IntegrityError
	if errors.As(err, &ie) {
		return ie.Reason
	}
	return ""
}
