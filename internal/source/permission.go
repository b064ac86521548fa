package source

import (
	"errors"
	"fmt"
)

// Permission is the outcome of a camera permission request on the client.
type Permission string

const (
	PermissionGranted           Permission = "granted"
	PermissionDeniedTemporarily Permission = "denied"
	PermissionDeniedPermanently Permission = "denied_forever"
)

// ErrPermissionRequired is returned when a camera frame arrives without the
// client's permission state.
var ErrPermissionRequired = errors.New("camera permission is required")

// ParsePermission reads the client's permission state. It must be stated
// explicitly; an empty value is not taken as granted.
func ParsePermission(s string) (Permission, error) {
	switch p := Permission(s); p {
	case PermissionGranted, PermissionDeniedTemporarily, PermissionDeniedPermanently:
		return p, nil
	case "":
		return "", ErrPermissionRequired
	default:
		return "", fmt.Errorf("unknown camera permission %q", s)
	}
}

// PermissionError ends a camera attempt. When Permanent is false the user can
// be asked again; otherwise access has to be granted from system settings.
type PermissionError struct {
	Permanent bool
}

func (e *PermissionError) Error() string {
	if e.Permanent {
		return "camera permission permanently denied"
	}
	return "camera permission denied"
}

// CheckCamera returns a *PermissionError unless p is PermissionGranted.
func CheckCamera(p Permission) error {
	switch p {
	case PermissionGranted:
		return nil
	case PermissionDeniedPermanently:
		return &PermissionError{Permanent: true}
	default:
		return &PermissionError{Permanent: false}
	}
}
