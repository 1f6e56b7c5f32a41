package garage

import "errors"

// Domain errors for the garage package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, garage.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a registration does not exist.
	ErrNotFound = errors.New("garage: registration not found")

	// ErrExists is returned when creating a registration for a device
	// identifier that is already registered.
	ErrExists = errors.New("garage: registration already exists")

	// ErrInvalidAction is returned when a command verb is not recognised.
	ErrInvalidAction = errors.New("garage: invalid action")

	// ErrNotApproved is returned when a command targets a registration
	// that has not been approved by an admin.
	ErrNotApproved = errors.New("garage: registration not approved")
)
