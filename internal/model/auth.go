package model

import "time"

type AuthRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// AuthClaims is the identity carried inside an access token.
type AuthClaims struct {
	Subject string
	Email   string
}

type User struct {
	ID           string
	Email        string
	PasswordHash string
	PasswordSalt string
	CreatedAt    time.Time
}

type UserView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (u *User) View() UserView {
	return UserView{ID: u.ID, Email: u.Email}
}
