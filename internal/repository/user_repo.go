package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"jomat-backend/internal/domain"
)

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (int64, error)
	GetByID(ctx context.Context, id int64) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByRefreshToken(ctx context.Context, token string) (domain.User, error)
	List(ctx context.Context) ([]domain.PublicUser, error)
	SetRefreshToken(ctx context.Context, id int64, token string) error
	RotateRefreshToken(ctx context.Context, id int64, current, next string) (bool, error)
	SetVerificationToken(ctx context.Context, id int64, token string) error
	RedeemVerificationToken(ctx context.Context, token string) (bool, error)
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `
	id, title, first_name, middle, last_name, degree, specialty, phone,
	country, orcid, email, alternative_email, username, password, role,
	available_as_reviewer, receive_news, comments, is_verified,
	COALESCE(verification_token, ''), COALESCE(refresh_token, ''), created_at
`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) (int64, error) {
	const query = `
		INSERT INTO users (
			title, first_name, middle, last_name, degree, specialty, phone,
			country, orcid, email, alternative_email, username, password, role,
			available_as_reviewer, receive_news, comments, is_verified,
			verification_token, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING id
	`
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var id int64
	err := r.pool.QueryRow(ctx, query,
		user.Title,
		user.FirstName,
		nullable(user.Middle),
		user.LastName,
		user.Degree,
		nullable(user.Specialty),
		user.Phone,
		user.Country,
		user.ORCID,
		user.Email,
		nullable(user.AlternativeEmail),
		user.Username,
		user.PasswordHash,
		user.Role,
		user.AvailableAsReviewer,
		user.ReceiveNews,
		nullable(user.Comments),
		user.IsVerified,
		nullable(user.VerificationToken),
		createdAt,
	).Scan(&id)
	return id, err
}

func (r *PgUserRepository) GetByID(ctx context.Context, id int64) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *PgUserRepository) GetByRefreshToken(ctx context.Context, token string) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE refresh_token = $1`
	return r.scanUser(r.pool.QueryRow(ctx, query, token))
}

func (r *PgUserRepository) List(ctx context.Context) ([]domain.PublicUser, error) {
	const query = `SELECT id, email FROM users ORDER BY id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []domain.PublicUser{}
	for rows.Next() {
		var u domain.PublicUser
		if err := rows.Scan(&u.ID, &u.Email); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *PgUserRepository) SetRefreshToken(ctx context.Context, id int64, token string) error {
	const query = `UPDATE users SET refresh_token = $1 WHERE id = $2`
	_, err := r.pool.Exec(ctx, query, token, id)
	return err
}

// RotateRefreshToken reemplaza el refresh token solo si el valor almacenado
// sigue siendo el presentado. Devuelve false si otra rotación ganó la carrera.
func (r *PgUserRepository) RotateRefreshToken(ctx context.Context, id int64, current, next string) (bool, error) {
	const query = `UPDATE users SET refresh_token = $1 WHERE id = $2 AND refresh_token = $3`
	tag, err := r.pool.Exec(ctx, query, next, id, current)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgUserRepository) SetVerificationToken(ctx context.Context, id int64, token string) error {
	const query = `UPDATE users SET verification_token = $1 WHERE id = $2`
	_, err := r.pool.Exec(ctx, query, token, id)
	return err
}

// RedeemVerificationToken consume el token en una sola sentencia: el UPDATE
// condicional garantiza un solo uso sin necesidad de transacción.
func (r *PgUserRepository) RedeemVerificationToken(ctx context.Context, token string) (bool, error) {
	const query = `
		UPDATE users
		SET is_verified = TRUE, verification_token = NULL
		WHERE verification_token = $1
	`
	tag, err := r.pool.Exec(ctx, query, token)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PgUserRepository) scanUser(row rowScanner) (domain.User, error) {
	var (
		u                domain.User
		middle           *string
		specialty        *string
		alternativeEmail *string
		comments         *string
	)
	err := row.Scan(
		&u.ID,
		&u.Title,
		&u.FirstName,
		&middle,
		&u.LastName,
		&u.Degree,
		&specialty,
		&u.Phone,
		&u.Country,
		&u.ORCID,
		&u.Email,
		&alternativeEmail,
		&u.Username,
		&u.PasswordHash,
		&u.Role,
		&u.AvailableAsReviewer,
		&u.ReceiveNews,
		&comments,
		&u.IsVerified,
		&u.VerificationToken,
		&u.RefreshToken,
		&u.CreatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.Middle = deref(middle)
	u.Specialty = deref(specialty)
	u.AlternativeEmail = deref(alternativeEmail)
	u.Comments = deref(comments)
	return u, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
