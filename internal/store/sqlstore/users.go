package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pliu/dmchat/internal/common"
	"github.com/pliu/dmchat/internal/dbx"
	"github.com/pliu/dmchat/internal/models"
	"github.com/pliu/dmchat/internal/timex"
)

const userColumns = "id, email, username, full_name, password, profile_pic, last_seen, last_login, last_logout, login_count, created_at, updated_at"

const searchLimit = 20

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u                               models.User
		lastSeen, lastLogin, lastLogout sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.FullName, &u.Password, &u.ProfilePic,
		&lastSeen, &lastLogin, &lastLogout, &u.LoginCount, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.LastSeen = nullTime(lastSeen)
	u.LastLogin = nullTime(lastLogin)
	u.LastLogout = nullTime(lastLogout)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func (s *SQLStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		user.ID = id.String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = timex.Now()
	}
	user.UpdatedAt = user.CreatedAt

	query := s.rebind(`INSERT INTO users (id, email, username, full_name, password, profile_pic, login_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, user.ID, user.Email, user.Username, user.FullName,
		user.Password, user.ProfilePic, user.LoginCount, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user already exists", common.ErrConflict)
		}
		return dbError(err)
	}
	return nil
}

func (s *SQLStore) findUser(ctx context.Context, q dbx.DBTX, where string, args ...any) (*models.User, error) {
	query := s.rebind("SELECT " + userColumns + " FROM users WHERE " + where)
	u, err := scanUser(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, dbError(err)
	}
	return u, nil
}

func (s *SQLStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, s.db, "id = ?", id)
}

// FindUserByEmail matches case-insensitively.
func (s *SQLStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, s.db, "lower(email) = ?", strings.ToLower(email))
}

// FindUserByHandleOrEmail matches either column, emails case-insensitively.
func (s *SQLStore) FindUserByHandleOrEmail(ctx context.Context, handleOrEmail string) (*models.User, error) {
	return s.findUser(ctx, s.db, "username = ? OR lower(email) = ?", handleOrEmail, strings.ToLower(handleOrEmail))
}

func (s *SQLStore) queryUsers(ctx context.Context, query string, args ...any) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, dbError(err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, dbError(err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err)
	}
	return users, nil
}

// SearchUsers does a case-insensitive substring match on the handle.
// Emails in the result are masked.
func (s *SQLStore) SearchUsers(ctx context.Context, query string) ([]models.User, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	users, err := s.queryUsers(ctx,
		"SELECT "+userColumns+` FROM users WHERE LOWER(username) LIKE ? ESCAPE '\' ORDER BY username LIMIT ?`,
		pattern, searchLimit)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i] = users[i].Public()
	}
	return users, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (s *SQLStore) ListUsersExcept(ctx context.Context, id string) ([]models.User, error) {
	return s.queryUsers(ctx, "SELECT "+userColumns+" FROM users WHERE id <> ? ORDER BY created_at DESC", id)
}

func (s *SQLStore) exec(ctx context.Context, q dbx.DBTX, query string, args ...any) error {
	res, err := q.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return dbError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbError(err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (s *SQLStore) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	return s.exec(ctx, s.db, "UPDATE users SET last_seen = ?, updated_at = ? WHERE id = ?", at.UTC(), at.UTC(), id)
}

func (s *SQLStore) MarkLogout(ctx context.Context, id string, at time.Time) error {
	return s.exec(ctx, s.db, "UPDATE users SET last_logout = ?, updated_at = ? WHERE id = ?", at.UTC(), at.UTC(), id)
}

// IncrementLoginCount records a successful login and returns the fresh record.
func (s *SQLStore) IncrementLoginCount(ctx context.Context, id string, at time.Time) (*models.User, error) {
	var user *models.User
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.exec(ctx, tx, "UPDATE users SET login_count = login_count + 1, last_login = ?, updated_at = ? WHERE id = ?", at.UTC(), at.UTC(), id); err != nil {
			return err
		}
		var err error
		user, err = s.findUser(ctx, tx, "id = ?", id)
		return err
	})
	if err != nil {
		return nil, wrapTxError(err)
	}
	return user, nil
}

// UpdateProfile changes the non-empty fields and returns the fresh record.
func (s *SQLStore) UpdateProfile(ctx context.Context, id string, fullName, profilePic string) (*models.User, error) {
	var user *models.User
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		err := s.exec(ctx, tx, `UPDATE users
			SET full_name = COALESCE(NULLIF(?, ''), full_name),
			    profile_pic = COALESCE(NULLIF(?, ''), profile_pic),
			    updated_at = ?
			WHERE id = ?`, fullName, profilePic, timex.Now(), id)
		if err != nil {
			return err
		}
		user, err = s.findUser(ctx, tx, "id = ?", id)
		return err
	})
	if err != nil {
		return nil, wrapTxError(err)
	}
	return user, nil
}

// wrapTxError leaves classified errors alone and marks begin/commit
// failures as storage errors.
func wrapTxError(err error) error {
	for _, known := range []error{common.ErrNotFound, common.ErrForbidden, common.ErrConflict, common.ErrStorage} {
		if errors.Is(err, known) {
			return err
		}
	}
	return dbError(err)
}
