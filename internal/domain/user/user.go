// Package user contains the user aggregate and its plan configuration.
package user

import (
	"time"

	"github.com/lllypuk/querydeck/internal/domain/errs"
	"github.com/lllypuk/querydeck/internal/domain/uuid"
)

// Plan holds the per-user plan configuration. Both ceilings are optional:
// an absent value means "not granted" for MaxQueryCount and "use the default"
// for QueryRevisionLimit. Defaulting itself lives in service.QuotaPolicy.
type Plan struct {
	MaxQueryCount      *int
	QueryRevisionLimit *int
}

// User represents an authenticated account that owns workspaces and queries.
type User struct {
	id        uuid.UUID
	username  string
	email     string
	firstName string
	lastName  string
	plan      *Plan
	createdAt time.Time
	updatedAt time.Time
}

// NewUser creates a new user. A nil plan is valid and means no plan assigned.
func NewUser(username, email, firstName, lastName string) (*User, error) {
	if username == "" || email == "" {
		return nil, errs.ErrInvalidInput
	}

	now := time.Now()
	return &User{
		id:        uuid.NewUUID(),
		username:  username,
		email:     email,
		firstName: firstName,
		lastName:  lastName,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Reconstruct restores a user from storage.
func Reconstruct(
	id uuid.UUID,
	username, email, firstName, lastName string,
	plan *Plan,
	createdAt, updatedAt time.Time,
) *User {
	return &User{
		id:        id,
		username:  username,
		email:     email,
		firstName: firstName,
		lastName:  lastName,
		plan:      plan,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// ID returns the user id.
func (u *User) ID() uuid.UUID {
	return u.id
}

// Username returns the login name.
func (u *User) Username() string {
	return u.username
}

// Email returns the user email.
func (u *User) Email() string {
	return u.email
}

// FirstName returns the given name.
func (u *User) FirstName() string {
	return u.firstName
}

// LastName returns the family name.
func (u *User) LastName() string {
	return u.lastName
}

// Plan returns the plan configuration, nil when none is assigned.
func (u *User) Plan() *Plan {
	return u.plan
}

// CreatedAt returns the creation time.
func (u *User) CreatedAt() time.Time {
	return u.createdAt
}

// UpdatedAt returns the last modification time.
func (u *User) UpdatedAt() time.Time {
	return u.updatedAt
}

// AssignPlan replaces the user's plan configuration.
func (u *User) AssignPlan(plan *Plan) {
	u.plan = plan
	u.updatedAt = time.Now()
}

// UpdateProfile updates the mutable profile fields. Empty values are ignored;
// at least one field must change.
func (u *User) UpdateProfile(email, firstName, lastName string) error {
	updated := false

	if email != "" {
		u.email = email
		updated = true
	}
	if firstName != "" {
		u.firstName = firstName
		updated = true
	}
	if lastName != "" {
		u.lastName = lastName
		updated = true
	}

	if !updated {
		return errs.ErrInvalidInput
	}

	u.updatedAt = time.Now()
	return nil
}
