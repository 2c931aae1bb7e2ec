package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"astra/errs"
	"astra/models"
)

// ErrUserExists は同じ出生情報のユーザーが同時に作られたときに返る
var ErrUserExists = errors.New("user with the same birth details already exists")

const userColumns = `id, name, birth_date, birth_time, birth_location, latitude, longitude,
	timezone, natal_chart, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var (
		u     models.User
		chart string
	)
	err := row.Scan(&u.ID, &u.Name, &u.BirthDate, &u.BirthTime, &u.BirthLocation,
		&u.Latitude, &u.Longitude, &u.Timezone, &chart, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	decodeJSON(chart, &u.NatalChart)
	return &u, nil
}

// FindUserByBirthDetails は名前と出生情報の完全一致で検索する
func (s *Store) FindUserByBirthDetails(ctx context.Context, name, birthDate, birthTime, location string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+userColumns+`
		FROM users
		WHERE name = ? AND birth_date = ? AND birth_time = ? AND birth_location = ?
	`), name, birthDate, birthTime, location)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrUserNotFound
	}
	if err != nil {
		return nil, dbError(err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrUserNotFound
	}
	if err != nil {
		return nil, dbError(err)
	}
	return u, nil
}

// CreateUser はユーザーとプロフィールを同じトランザクションで作成する
func (s *Store) CreateUser(ctx context.Context, u *models.User, language string) error {
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	return s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, s.rebind(`
			INSERT INTO users
			(name, birth_date, birth_time, birth_location, latitude, longitude, timezone, natal_chart, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING id
		`), u.Name, u.BirthDate, u.BirthTime, u.BirthLocation, u.Latitude, u.Longitude,
			u.Timezone, encodeJSON(u.NatalChart), now, now).Scan(&u.ID)
		if isUniqueViolation(err) {
			return ErrUserExists
		}
		if err != nil {
			return dbError(err)
		}

		_, err = tx.ExecContext(ctx, s.rebind(`
			INSERT INTO user_profiles (user_id, preferred_language, created_at, updated_at)
			VALUES (?, ?, ?, ?)
		`), u.ID, language, now, now)
		return dbError(err)
	})
}

// DeleteUser は外部キーのカスケードで関連行もすべて削除する
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return dbError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbError(err)
	}
	if n == 0 {
		return errs.ErrUserNotFound
	}
	return nil
}
