package user

import "time"

type User struct {
	ID           int64     `db:"id" json:"id"`
	Login        string    `db:"login" json:"login"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsAdmin      bool      `db:"is_admin" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
