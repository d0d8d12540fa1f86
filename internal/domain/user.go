package domain

import (
	"time"
)

// User is the minimal profile read from the user directory.
type User struct {
	ID         string    `bson:"_id" json:"id"`
	Username   string    `bson:"username" json:"username"`
	Email      string    `bson:"email,omitempty" json:"-"`
	AvatarURL  string    `bson:"avatar,omitempty" json:"avatar,omitempty"`
	IsDisabled bool      `bson:"isDisabled,omitempty" json:"-"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
}

// DisplayName falls back to the id for accounts created without a username.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.ID
}

type UserSession struct {
	ID        string     `bson:"_id" json:"id"`
	UserID    string     `bson:"userId" json:"userId"`
	IsRevoked bool       `bson:"isRevoked" json:"isRevoked"`
	UserAgent string     `bson:"userAgent,omitempty" json:"userAgent,omitempty"`
	CreatedAt time.Time  `bson:"createdAt" json:"createdAt"`
	RevokedAt *time.Time `bson:"revokedAt,omitempty" json:"revokedAt,omitempty"`
}
