package storage

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

type User struct {
	ID            uuid.UUID
	Email         string
	PasswordHash  string
	FullName      string
	Role          string
	Status        string
	Currency      string
	ReferenceCode string
}

type NewUser struct {
	Email         string
	PasswordHash  string
	FullName      string
	DateOfBirth   time.Time
	PhoneNumber   string
	Currency      string
	Address       string
	ReferenceCode string
}

type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
}
