/*
Package chat contains the core logic of the chat room: the user registry, the broadcast hub,
the wire events, and the per-connection sessions that move data between them.

This file defines the Registry, the shared store of joined users keyed by identity.
*/
package chat

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"chatroom/internal/app/user"
	"chatroom/internal/pkg/clock"
	"chatroom/internal/pkg/errs"
	"chatroom/internal/pkg/randx"
)

var (
	// ErrEmptyName is returned by TryAdd when the candidate is blank after trimming.
	ErrEmptyName = errs.NewError(errs.ErrUsernameRequired)

	// ErrNameTaken is returned by TryAdd when a live user already holds the name.
	ErrNameTaken = errs.NewError(errs.ErrUsernameTaken)
)

// Registry maps user ids to joined users and enforces username uniqueness.
// It is safe for concurrent use.
type Registry struct {
	// mu guards both maps; every uniqueness decision is made while holding it.
	mu sync.Mutex

	// users holds the joined users keyed by id.
	users map[uuid.UUID]user.User

	// names indexes users by username.
	names map[string]uuid.UUID

	clock clock.Clock
}

// NewRegistry returns an empty registry stamping join times from clk.
func NewRegistry(clk clock.Clock) *Registry {
	return &Registry{
		users: make(map[uuid.UUID]user.User),
		names: make(map[string]uuid.UUID),
		clock: clk,
	}
}

// TryAdd trims candidate and claims it for a new user.
// It fails with ErrEmptyName for a blank name and ErrNameTaken if the name is held.
func (r *Registry) TryAdd(candidate string) (user.User, error) {
	name := strings.TrimSpace(candidate)
	if name == "" {
		return user.User{}, ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.names[name]; taken {
		return user.User{}, ErrNameTaken
	}

	u := user.User{
		ID:       randx.UserID(),
		Username: name,
		JoinTime: r.clock.NowMillis(),
	}
	r.users[u.ID] = u
	r.names[name] = u.ID

	return u, nil
}

// Remove deletes the user with the given id and returns it.
// The boolean is false when no such user was registered.
func (r *Registry) Remove(id uuid.UUID) (user.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return user.User{}, false
	}

	delete(r.users, id)
	if r.names[u.Username] == id {
		delete(r.names, u.Username)
	}

	return u, true
}

// Usernames returns a snapshot of the joined usernames ordered by join time, then name.
func (r *Registry) Usernames() []string {
	r.mu.Lock()
	users := make([]user.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	r.mu.Unlock()

	sort.Slice(users, func(i, j int) bool {
		if users[i].JoinTime != users[j].JoinTime {
			return users[i].JoinTime < users[j].JoinTime
		}
		return users[i].Username < users[j].Username
	})

	names := make([]string, len(users))
	for i, u := range users {
		names[i] = u.Username
	}
	return names
}

// Len returns the number of joined users.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.users)
}
