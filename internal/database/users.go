package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tunedeck/internal/apperr"
	"tunedeck/pkg/models"

	"github.com/mattn/go-sqlite3"
)

const userColumns = "id, username, email, password_hash, role, created_at"

// InsertUser stores a new user. A taken email yields apperr.ErrDuplicateEntry.
func (db *Database) InsertUser(ctx context.Context, user models.User) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, user.PasswordHash, string(user.Role), user.CreatedAt.UTC())
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("user %s: %w", user.Email, apperr.ErrDuplicateEntry)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByEmail looks a user up by login email
func (db *Database) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return db.getUser(db.getUserByEmailStmt.QueryRowContext(ctx, email), email)
}

// GetUserByID looks a user up by ID
func (db *Database) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return db.getUser(db.getUserByIDStmt.QueryRowContext(ctx, id), id)
}

func (db *Database) getUser(row *sql.Row, key string) (*models.User, error) {
	var user models.User
	var role string
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", key, apperr.ErrNotFound)
		}
		return nil, err
	}
	user.Role = models.Role(role)
	return &user, nil
}
