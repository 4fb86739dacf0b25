package model

import "time"

type Role string

const (
	// RoleAdmin is the clinic side; the identity provider calls it "mineers".
	RoleAdmin Role = "mineers"
	RoleLab   Role = "lab"
)

// Principal is the authenticated caller. Only ID and Role drive authorization.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

func (p *Principal) IsLab() bool {
	return p != nil && p.Role == RoleLab
}

// Session is what the identity provider hands back after sign-in.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      Principal `json:"user"`
}

// User is an entry of the identity provider's directory.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         Role
}

type SignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}
