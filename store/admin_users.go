package store

import (
	"time"
)

// AdminUser is an operator allowed to read the journal and audit APIs.
type AdminUser struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (db *DB) CreateAdminUser(username, passwordHash string) (int64, error) {
	return db.insertID(`INSERT INTO admin_users (username, password_hash) VALUES (?, ?)`, username, passwordHash)
}

func (db *DB) GetAdminUser(username string) (*AdminUser, error) {
	var u AdminUser
	var lastLogin, createdAt any
	err := db.QueryRow(db.Q(`SELECT id, username, password_hash, last_login_at, created_at FROM admin_users WHERE username=?`), username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &lastLogin, &createdAt)
	if err != nil {
		return nil, err
	}
	u.LastLoginAt = parseTimePtr(lastLogin)
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

func (db *DB) CountAdminUsers() (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM admin_users`).Scan(&count)
	return count, err
}

// RecordAdminLogin stamps the user's last successful login.
func (db *DB) RecordAdminLogin(username string) error {
	_, err := db.Exec(db.Q(`UPDATE admin_users SET last_login_at=`+db.dialect.Now()+` WHERE username=?`), username)
	return err
}
