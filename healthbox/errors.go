package healthbox

import "errors"

// Every error returned by the request layer wraps exactly one of these
// sentinels, so callers can classify failures with errors.Is. The
// underlying cause (transport error, status code, decode error) is wrapped
// alongside it.
var (
	// ErrAuthentication covers 401/403 responses and advanced API
	// enablement failures.
	ErrAuthentication = errors.New("healthbox: invalid credentials")

	// ErrCommunication covers requests that exceeded their timeout.
	ErrCommunication = errors.New("healthbox: timeout communicating with device")

	// ErrAPI covers any other non-2xx status or transport failure.
	ErrAPI = errors.New("healthbox: device API error")
)
