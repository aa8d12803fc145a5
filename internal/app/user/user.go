/*
Package user defines the identity of a participant who has joined the chat room.
*/
package user

import "github.com/google/uuid"

// User is a joined participant. It exists exactly once per live joined connection
// and is owned by the chat registry; sessions only keep a copy.
type User struct {
	// ID is the opaque identity assigned when the join succeeds.
	ID uuid.UUID `json:"id"`

	// Username is the trimmed, unique display name chosen by the client.
	Username string `json:"username"`

	// JoinTime is the join instant in milliseconds since the Unix epoch.
	JoinTime uint64 `json:"joinTime"`
}
