package model

import (
	"time"
)

// User is a registered account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Phone        string    `json:"phone"`
	Name         string    `json:"name"`
	State        string    `json:"state"`
	GSTIN        string    `json:"gstin,omitempty"`
	BusinessType string    `json:"business_type,omitempty"`
	Turnover     *float64  `json:"turnover,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile is the public view of a user.
type Profile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	CompanyName string `json:"company_name"`
	GSTIN       string `json:"gstin"`
}

// Profile returns the public profile, with N/A for missing business details.
func (u *User) Profile() Profile {
	p := Profile{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		CompanyName: u.BusinessType,
		GSTIN:       u.GSTIN,
	}
	if p.CompanyName == "" {
		p.CompanyName = "N/A"
	}
	if p.GSTIN == "" {
		p.GSTIN = "N/A"
	}
	return p
}

// SignUpRequest is the request to register an account.
type SignUpRequest struct {
	Email        string   `json:"email"`
	Password     string   `json:"password"`
	Phone        string   `json:"phone"`
	Name         string   `json:"name"`
	State        string   `json:"state"`
	GSTIN        string   `json:"gstin,omitempty"`
	BusinessType string   `json:"business_type,omitempty"`
	Turnover     *float64 `json:"turnover,omitempty"`
}

// SignInRequest is the request to sign in.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned after sign-up or sign-in.
type AuthResponse struct {
	AccessToken string  `json:"access_token"`
	ExpiresAt   int64   `json:"expires_at"`
	Profile     Profile `json:"profile"`
}
