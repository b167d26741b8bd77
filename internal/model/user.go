package model

import "time"

// User is a registered account of the assistant.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"`
	Password  string    `gorm:"not null" json:"-"`
	Email     *string   `gorm:"uniqueIndex" json:"email"`
	Phone     string    `gorm:"index" json:"phone,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// EmailValue returns the email or an empty string when none was given.
func (u User) EmailValue() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}
