package storage

import (
	"context"
	"fmt"

	"github.com/calbook/calbook/libs/db"
	"github.com/calbook/calbook/libs/sealer"
	"github.com/calbook/calbook/services/booking-service/internal/model"
)

type UserRepository struct {
	pool   *db.Pool
	sealer *sealer.Sealer
}

func NewUserRepository(pool *db.Pool, s *sealer.Sealer) *UserRepository {
	return &UserRepository{pool: pool, sealer: s}
}

const userColumns = `id, COALESCE(name, ''), COALESCE(email, ''), COALESCE(image, ''), COALESCE(role, ''), refresh_token IS NOT NULL`

func (r *UserRepository) GetByID(ctx context.Context, id string) (model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Image, &u.Role, &u.HasCalendar)
	if IsNotFound(err) {
		return model.User{}, model.ErrUserNotFound
	}
	return u, err
}

// RefreshToken returns the decrypted calendar refresh token of a user.
func (r *UserRepository) RefreshToken(ctx context.Context, id string) (string, error) {
	var email string
	var sealed *string
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(email, ''), refresh_token FROM users WHERE id = $1`, id).Scan(&email, &sealed)
	if IsNotFound(err) {
		return "", model.ErrUserNotFound
	}
	if err != nil {
		return "", err
	}
	if sealed == nil || *sealed == "" {
		return "", model.ErrNoCredential
	}
	token, err := r.sealer.Open(*sealed, []byte(email))
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrNoCredential, err)
	}
	return token, nil
}

type CredentialUpsert struct {
	// ID is used only when the email is not known yet.
	ID           string
	Email        string
	Name         string
	Image        string
	RefreshToken string
}

// UpsertCredential stores an encrypted refresh token for the user owning
// Email, creating the user on first sight.
func (r *UserRepository) UpsertCredential(ctx context.Context, in CredentialUpsert) (model.User, error) {
	sealed, err := r.sealer.Seal(in.RefreshToken, []byte(in.Email))
	if err != nil {
		return model.User{}, err
	}
	var u model.User
	err = r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, name, image, refresh_token)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5)
		ON CONFLICT (email) DO UPDATE
		SET refresh_token = EXCLUDED.refresh_token,
			updated_at = now()
		RETURNING `+userColumns,
		in.ID, in.Email, in.Name, in.Image, sealed,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Image, &u.Role, &u.HasCalendar)
	return u, err
}

func (r *UserRepository) SetRole(ctx context.Context, id, role string) (model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx, `
		UPDATE users SET role = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		id, role,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Image, &u.Role, &u.HasCalendar)
	if IsNotFound(err) {
		return model.User{}, model.ErrUserNotFound
	}
	return u, err
}

// ListSellers returns sellers that have connected a calendar.
func (r *UserRepository) ListSellers(ctx context.Context) ([]model.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE role = 'seller' AND refresh_token IS NOT NULL
		ORDER BY name NULLS LAST, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Image, &u.Role, &u.HasCalendar); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
