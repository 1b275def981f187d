package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"userctl/internal/database"
	"userctl/internal/model"
)

// userColumns is the select list shared by every read query, in the
// order the users table declares them.
var userColumns = []string{"id", "name", "email", "age", "created_at"}

// Users persists user records. Every operation opens its own session
// against the provider and releases it before returning; mutations run
// inside a transaction so partial writes never land.
type Users struct {
	provider *database.Provider
	timeout  time.Duration
	builder  sq.StatementBuilderType
}

// NewUsers returns a repository backed by the given provider. timeout
// bounds each operation; zero disables the bound.
func NewUsers(provider *database.Provider, timeout time.Duration) *Users {
	return &Users{
		provider: provider,
		timeout:  timeout,
		builder:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (u *Users) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if u.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, u.timeout)
}

// Create inserts a new user and returns the stored record with its
// assigned id. The creation timestamp is set here, not by the caller.
func (u *Users) Create(ctx context.Context, name, email string, age *int) (*model.User, error) {
	ctx, cancel := u.opContext(ctx)
	defer cancel()

	user := &model.User{
		Name:      name,
		Email:     email,
		Age:       age,
		CreatedAt: time.Now().UTC(),
	}

	query, args, err := u.builder.
		Insert("users").
		Columns("name", "email", "age", "created_at").
		Values(user.Name, user.Email, user.Age, user.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert: %w", err)
	}

	err = u.provider.Transaction(ctx, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, &user.ID, query, args...)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, persistence("create user", err)
	}

	log.Debug().Int64("id", user.ID).Str("email", user.Email).Msg("User created")
	return user, nil
}

// FindByID retrieves a user by id. A missing row yields a nil user and
// no error.
func (u *Users) FindByID(ctx context.Context, id int64) (*model.User, error) {
	ctx, cancel := u.opContext(ctx)
	defer cancel()

	query, args, err := u.builder.
		Select(userColumns...).
		From("users").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	conn, err := u.provider.Session(ctx)
	if err != nil {
		return nil, persistence("get user", err)
	}
	defer conn.Close()

	user := &model.User{}
	err = conn.GetContext(ctx, user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, persistence("get user", err)
	}
	return user, nil
}

// FindByEmail retrieves a user by email address. A missing row yields
// a nil user and no error.
func (u *Users) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	ctx, cancel := u.opContext(ctx)
	defer cancel()

	query, args, err := u.builder.
		Select(userColumns...).
		From("users").
		Where(sq.Eq{"email": email}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	conn, err := u.provider.Session(ctx)
	if err != nil {
		return nil, persistence("get user", err)
	}
	defer conn.Close()

	user := &model.User{}
	err = conn.GetContext(ctx, user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, persistence("get user", err)
	}
	return user, nil
}

// FindAll returns every user, newest first. Ties on the creation
// timestamp fall back to descending id so the order stays stable.
func (u *Users) FindAll(ctx context.Context) ([]*model.User, error) {
	ctx, cancel := u.opContext(ctx)
	defer cancel()

	query, args, err := u.builder.
		Select(userColumns...).
		From("users").
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	conn, err := u.provider.Session(ctx)
	if err != nil {
		return nil, persistence("list users", err)
	}
	defer conn.Close()

	var users []*model.User
	if err := conn.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, persistence("list users", err)
	}
	return users, nil
}

// Update rewrites the name, email and age of an existing user. It
// returns ErrNotFound when no row matches the id and ErrEmailTaken
// when the new email collides with another user.
func (u *Users) Update(ctx context.Context, user *model.User) error {
	ctx, cancel := u.opContext(ctx)
	defer cancel()

	query, args, err := u.builder.
		Update("users").
		Set("name", user.Name).
		Set("email", user.Email).
		Set("age", user.Age).
		Where(sq.Eq{"id": user.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	err = u.provider.Transaction(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, query, args...)
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
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return persistence("update user", err)
	}

	log.Debug().Int64("id", user.ID).Msg("User updated")
	return nil
}

// Delete removes a user by id and reports whether a row was removed.
func (u *Users) Delete(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := u.opContext(ctx)
	defer cancel()

	query, args, err := u.builder.
		Delete("users").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build delete: %w", err)
	}

	var affected int64
	err = u.provider.Transaction(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return false, persistence("delete user", err)
	}

	if affected > 0 {
		log.Debug().Int64("id", id).Msg("User deleted")
	}
	return affected > 0, nil
}

// ExistsByEmail reports whether any user holds the email address.
func (u *Users) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	ctx, cancel := u.opContext(ctx)
	defer cancel()

	query, args, err := u.builder.
		Select("1").
		From("users").
		Where(sq.Eq{"email": email}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build select: %w", err)
	}

	conn, err := u.provider.Session(ctx)
	if err != nil {
		return false, persistence("check email", err)
	}
	defer conn.Close()

	var one int
	err = conn.GetContext(ctx, &one, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, persistence("check email", err)
	}
	return true, nil
}

// Count returns the number of stored users.
func (u *Users) Count(ctx context.Context) (int64, error) {
	ctx, cancel := u.opContext(ctx)
	defer cancel()

	query, args, err := u.builder.
		Select("COUNT(*)").
		From("users").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build select: %w", err)
	}

	conn, err := u.provider.Session(ctx)
	if err != nil {
		return 0, persistence("count users", err)
	}
	defer conn.Close()

	var total int64
	if err := conn.GetContext(ctx, &total, query, args...); err != nil {
		return 0, persistence("count users", err)
	}
	return total, nil
}
