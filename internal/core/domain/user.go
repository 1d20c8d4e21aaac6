package domain

import "time"

type UserID string

type User struct {
	ID        UserID    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a detached copy so callers never share the stored record.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// UserPatch carries the mutable fields of a user.
type UserPatch struct {
	Name  string
	Email string
}

type CreateUserRequest struct {
	Name  string
	Email string
}
