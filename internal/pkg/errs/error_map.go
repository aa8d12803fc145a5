/*
Package errs provides custom error types and application-level error code constants.

This file maps each error code to its CustomError template.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:    {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrMalformedPayload: {Code: ErrMalformedPayload, Message: "malformed payload"},
	ErrOriginNotAllowed: {Code: ErrOriginNotAllowed, Message: "Origin not allowed.", Status: http.StatusForbidden},

	// 2xxx: Chat Room Errors
	ErrUsernameRequired: {Code: ErrUsernameRequired, Message: "username required"},
	ErrUsernameTaken:    {Code: ErrUsernameTaken, Message: "name already taken"},
	ErrAlreadyJoined:    {Code: ErrAlreadyJoined, Message: "already joined"},
	ErrChatUnavailable:  {Code: ErrChatUnavailable, Message: "Chat is shutting down.", Status: http.StatusServiceUnavailable},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
