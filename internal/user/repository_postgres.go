package user

import (
	"database/sql"
)

type PostgresRepository struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

const (
	getUserByIDQuery = `
		SELECT user_id, email, name, phone, address, post_code, post_place, backoffice_customer_uid, created_at, updated_at
		FROM profiles
		WHERE user_id = $1
	`
	saveUserQuery = `
		INSERT INTO profiles (user_id, email, name, phone, address, post_code, post_place, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE
		SET email = EXCLUDED.email,
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address,
			post_code = EXCLUDED.post_code,
			post_place = EXCLUDED.post_place,
			updated_at = EXCLUDED.updated_at
		RETURNING user_id, email, name, phone, address, post_code, post_place, backoffice_customer_uid, created_at, updated_at
	`
	setBackOfficeCustomerUIDQuery = `
		INSERT INTO profiles (user_id, backoffice_customer_uid, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET backoffice_customer_uid = EXCLUDED.backoffice_customer_uid,
			updated_at = EXCLUDED.updated_at
	`
	// EnsureSchemaQuery creates the profiles table when missing.
	EnsureSchemaQuery = `
		CREATE TABLE IF NOT EXISTS profiles (
			user_id INT PRIMARY KEY,
			email TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			post_code TEXT NOT NULL DEFAULT '',
			post_place TEXT NOT NULL DEFAULT '',
			backoffice_customer_uid TEXT,
			created_at TEXT,
			updated_at TEXT
		)
	`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByID(id int) (User, error) {
	user, err := scanUser(r.db.QueryRow(getUserByIDQuery, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

func (r *PostgresRepository) Save(user User) (User, error) {
	row := r.db.QueryRow(
		saveUserQuery,
		user.ID,
		user.Email,
		user.Name,
		user.Phone,
		user.Address,
		user.PostCode,
		user.PostPlace,
		user.CreatedAt,
		user.UpdatedAt,
	)
	return scanUser(row)
}

func (r *PostgresRepository) SetBackOfficeCustomerUID(id int, uid string, updatedAt string) error {
	_, err := r.db.Exec(setBackOfficeCustomerUIDQuery, id, uid, updatedAt)
	return err
}

func scanUser(scanner rowScanner) (User, error) {
	user := User{}
	var customerUID sql.NullString
	var createdAt sql.NullString
	var updatedAt sql.NullString

	if err := scanner.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Phone,
		&user.Address,
		&user.PostCode,
		&user.PostPlace,
		&customerUID,
		&createdAt,
		&updatedAt,
	); err != nil {
		return User{}, err
	}

	if customerUID.Valid {
		user.BackOfficeCustomerUID = customerUID.String
	}
	if createdAt.Valid {
		user.CreatedAt = createdAt.String
	}
	if updatedAt.Valid {
		user.UpdatedAt = updatedAt.String
	}
	return user, nil
}
