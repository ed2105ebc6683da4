package store

import "context"

// User is an application account. Password holds whatever credential form
// was written: a bcrypt hash, or a legacy plaintext/SHA-256 value.
type User struct {
	ID       int64  `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	Password string `db:"password" json:"-"`
}

// AddUser inserts a user. A taken username yields ErrDuplicate.
func (s *Store) AddUser(ctx context.Context, username, password string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, password) VALUES (?, ?)", username, password)
	return classify(err, "add user")
}

// GetUserByUsername returns the user or ErrNotFound.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (User, error) {
	var u User
	err := s.db.GetContext(ctx, &u,
		"SELECT id, username, password FROM users WHERE username = ?", username)
	if err != nil {
		return User{}, classify(err, "get user")
	}
	return u, nil
}

// UpdateUserPassword replaces the stored credential.
func (s *Store) UpdateUserPassword(ctx context.Context, username, password string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET password = ? WHERE username = ?", password, username)
	if err != nil {
		return classify(err, "update user password")
	}
	return expectOneRow(res, "update user password")
}
