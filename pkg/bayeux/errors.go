package bayeux

import "fmt"

// Bayeux error strings follow the CometD convention "<code>::<args>::<tag>".
// These helpers build the error field for unsuccessful responses.

// ErrUnknownClient formats the error for a clientId the server does not know.
func ErrUnknownClient(clientID string) string {
	return fmt.Sprintf("401::%s::unknown_client_id", clientID)
}

// ErrClientExpired formats the error for a clientId whose session expired.
func ErrClientExpired(clientID string) string {
	return fmt.Sprintf("403::%s::client_expired", clientID)
}

// ErrConcurrentConnect formats the error for a second connect issued while
// one is already outstanding for the same clientId.
func ErrConcurrentConnect(clientID string) string {
	return fmt.Sprintf("409::%s::concurrent_connect", clientID)
}

// ErrMalformed formats the validation error for a missing or malformed field.
func ErrMalformed(channel, field string) string {
	return fmt.Sprintf("400::%s::missing_%s", channel, field)
}

// ErrUnknownChannel is the error for a channel no handler serves.
const ErrUnknownChannel = "404::Unknown Channel"

// ErrInternal formats an unexpected server-side failure.
func ErrInternal(err error) string {
	return fmt.Sprintf("500::Internal Server Error: %v", err)
}
