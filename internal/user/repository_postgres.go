package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresRepository implements Repository on top of database/sql with the
// pgx stdlib driver.
type PostgresRepository struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

const (
	listUsersQuery = `
		SELECT id, name, email, phone, gender, profile_image, created_at
		FROM users
		WHERE name ILIKE $1 OR email ILIKE $1 OR phone ILIKE $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	countUsersQuery = `
		SELECT COUNT(*)
		FROM users
		WHERE name ILIKE $1 OR email ILIKE $1 OR phone ILIKE $1
	`
	getUserByIDQuery = `
		SELECT id, name, email, phone, gender, profile_image, created_at
		FROM users
		WHERE id = $1
	`
	emailTakenQuery = `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id <> $2)`

	insertUserQuery = `
		INSERT INTO users (name, email, phone, gender, profile_image)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	updateUserQuery = `
		UPDATE users
		SET name = $1, email = $2, phone = $3, gender = $4
		WHERE id = $5
	`
	updateUserWithImageQuery = `
		UPDATE users
		SET name = $1, email = $2, phone = $3, gender = $4, profile_image = $5
		WHERE id = $6
	`
	deleteUserQuery = `DELETE FROM users WHERE id = $1`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context, params ListParams) ([]User, int, error) {
	pattern := "%" + params.Search + "%"

	var total int
	if err := r.db.QueryRowContext(ctx, countUsersQuery, pattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	offset := (params.Page - 1) * params.Limit
	rows, err := r.db.QueryContext(ctx, listUsersQuery, pattern, params.Limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, total, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int) (User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, getUserByIDQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}

func (r *PostgresRepository) EmailTaken(ctx context.Context, email string, excludeID int) (bool, error) {
	var taken bool
	if err := r.db.QueryRowContext(ctx, emailTakenQuery, email, excludeID).Scan(&taken); err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return taken, nil
}

func (r *PostgresRepository) Create(ctx context.Context, u User) (User, error) {
	err := r.db.QueryRowContext(
		ctx,
		insertUserQuery,
		u.Name,
		u.Email,
		u.Phone,
		u.Gender,
		imageArg(u.ProfileImage),
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrEmailExists
		}
		return User{}, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id int, u User, replaceImage bool) error {
	var (
		result sql.Result
		err    error
	)
	if replaceImage {
		result, err = r.db.ExecContext(ctx, updateUserWithImageQuery, u.Name, u.Email, u.Phone, u.Gender, imageArg(u.ProfileImage), id)
	} else {
		result, err = r.db.ExecContext(ctx, updateUserQuery, u.Name, u.Email, u.Phone, u.Gender, id)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, deleteUserQuery, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func scanUser(scanner rowScanner) (User, error) {
	u := User{}
	var image sql.NullString

	if err := scanner.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Phone,
		&u.Gender,
		&image,
		&u.CreatedAt,
	); err != nil {
		return User{}, err
	}

	if image.Valid {
		u.ProfileImage = &image.String
	}

	return u, nil
}

// imageArg maps a nil pointer to a real NULL so the column never ends up
// holding an empty string.
func imageArg(image *string) any {
	if image == nil {
		return nil
	}
	return *image
}

// isUniqueViolation detects the unique constraint on users.email slipping
// past the pre-flight check under concurrent writes.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
