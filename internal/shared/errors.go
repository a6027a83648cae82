package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors
	ErrAuthFailed    = fmt.Errorf("authentication failed")
	ErrNoCredentials = fmt.Errorf("no credentials available")
	ErrTimeout       = fmt.Errorf("operation timed out")

	// Session errors
	ErrConnectionFailed = fmt.Errorf("session connection failed")
	ErrAPIRequest       = fmt.Errorf("session request failed")
	ErrNotFound         = fmt.Errorf("not found")

	// Pipeline errors
	ErrParseSkip                = fmt.Errorf("no link found")
	ErrUnsupportedLink          = fmt.Errorf("unsupported link kind")
	ErrContainerExpansionFailed = fmt.Errorf("container expansion failed")
	ErrUnavailable              = fmt.Errorf("item unavailable")
	ErrNoUsableEncoding         = fmt.Errorf("no usable encoding")
	ErrNoCoverArt               = fmt.Errorf("no cover art")
	ErrAcquisitionFailed        = fmt.Errorf("acquisition failed")
	ErrHelperFailed             = fmt.Errorf("helper failed")
	ErrLocked                   = fmt.Errorf("output directory is locked by another run")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
