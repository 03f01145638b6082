package store

import (
	"context"
	"database/sql"
	"errors"
	"synapsechat-backend/internal/models"
	"synapsechat-backend/internal/snowflake"
)

// CreateUser stores a new profile. A nil passwordHash leaves the account without a password,
// so it can only be signed in through a provider.
func (s *Store) CreateUser(ctx context.Context, profile models.UserProfile, passwordHash []byte) error {
	var password any
	if passwordHash != nil {
		password = passwordHash
	}

	_, err := s.db.ExecContext(ctx, "INSERT INTO users (id, email, display_name, photo_url, password) VALUES (?, ?, ?, ?, ?)",
		profile.UID, profile.Email, profile.DisplayName, nullString(profile.PhotoURL), password)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

const profileQuery = "SELECT id, email, display_name, photo_url FROM users"

func scanProfile(row *sql.Row) (*models.UserProfile, error) {
	var profile models.UserProfile
	var photoURL sql.NullString

	err := row.Scan(&profile.UID, &profile.Email, &profile.DisplayName, &photoURL)
	if err != nil {
		return nil, err
	}

	profile.PhotoURL = photoURL.String
	profile.CreatedAt = snowflake.Time(profile.UID)
	return &profile, nil
}

// GetProfile returns nil without error when no profile exists for uid.
func (s *Store) GetProfile(ctx context.Context, uid int64) (*models.UserProfile, error) {
	profile, err := scanProfile(s.db.QueryRowContext(ctx, profileQuery+" WHERE id = ?", uid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return profile, err
}

// FindOrCreateUser returns the profile registered with profile.Email, creating it without a
// password when there is none yet. created reports whether the profile was inserted.
func (s *Store) FindOrCreateUser(ctx context.Context, profile models.UserProfile) (*models.UserProfile, bool, error) {
	existing, err := scanProfile(s.db.QueryRowContext(ctx, profileQuery+" WHERE email = ?", profile.Email))
	if err == nil {
		return existing, false, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	err = s.CreateUser(ctx, profile, nil)
	if errors.Is(err, ErrEmailTaken) {
		// signed up in between
		existing, err = scanProfile(s.db.QueryRowContext(ctx, profileQuery+" WHERE email = ?", profile.Email))
		return existing, false, err
	} else if err != nil {
		return nil, false, err
	}

	profile.CreatedAt = snowflake.Time(profile.UID)
	return &profile, true, nil
}

func (s *Store) GetCredentials(ctx context.Context, email string) (models.Credentials, error) {
	var creds models.Credentials
	err := s.db.QueryRowContext(ctx, "SELECT id, email, password FROM users WHERE email = ?", email).
		Scan(&creds.UID, &creds.Email, &creds.Password)
	if errors.Is(err, sql.ErrNoRows) {
		return creds, ErrNotFound
	}
	return creds, err
}

func (s *Store) UserExists(ctx context.Context, uid int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)", uid).Scan(&exists)
	return exists, err
}

func (s *Store) UpdateDisplayName(ctx context.Context, uid int64, displayName string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE users SET display_name = ? WHERE id = ?", displayName, uid)
	return err
}

func (s *Store) UpdatePhotoURL(ctx context.Context, uid int64, photoURL string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE users SET photo_url = ? WHERE id = ?", nullString(photoURL), uid)
	return err
}

func (s *Store) DeleteUser(ctx context.Context, uid int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", uid)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
