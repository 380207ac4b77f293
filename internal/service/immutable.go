package service

import (
	appErrors "github.com/campusops/enrollment-api/pkg/errors"
)

// guardField enforces write-once semantics for a field. The first non-nil
// value sticks; later writes are absorbed and the stored value is returned
// verbatim, so a partial-update payload that resends an old value does not
// fail the whole operation. UI hiding and upstream authorization are
// conveniences on top of this; only this layer cannot be bypassed by a
// direct API call.
func guardField[T any](previous, requested *T) *T {
	if previous != nil {
		return previous
	}
	return requested
}

// guardIssuedFlag keeps certificate_issued one-way. Absorbing a true->false
// request silently would hide a real caller mistake, so it surfaces as a
// validation error instead.
func guardIssuedFlag(previous, requested bool) (bool, error) {
	if previous && !requested {
		return previous, appErrors.Clone(appErrors.ErrValidation, "certificate issuance cannot be revoked")
	}
	return previous || requested, nil
}
