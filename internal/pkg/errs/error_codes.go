/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific business or system errors both inside the server
and in the error envelopes sent to chat clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrMalformedPayload indicates that an inbound WebSocket frame could not be decoded.
	ErrMalformedPayload = 1003

	// ErrOriginNotAllowed indicates that a WebSocket upgrade came from a disallowed origin.
	ErrOriginNotAllowed = 1008
)

// 2xxx: Chat Room Errors
const (
	// ErrUsernameRequired indicates that a join request carried an empty (or blank) username.
	ErrUsernameRequired = 2001

	// ErrUsernameTaken indicates that another connected user already holds the username.
	ErrUsernameTaken = 2002

	// ErrAlreadyJoined indicates that the connection has already joined under a username.
	ErrAlreadyJoined = 2003

	// ErrChatUnavailable indicates that the chat service is shutting down.
	ErrChatUnavailable = 2004
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000
)
