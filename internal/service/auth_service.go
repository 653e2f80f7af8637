package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"jomat-backend/internal/domain"
	"jomat-backend/internal/email"
	"jomat-backend/internal/repository"
)

// AuthService coordina registro, login, verificación de email y rotación de
// refresh tokens. Es el único componente con reglas de negocio de auth.
type AuthService struct {
	logger        *zap.Logger
	users         repository.UserRepository
	emailSender   email.Sender
	tokens        *TokenService
	resendLimiter ResendRateLimiter
	verifyBaseURL string
}

var (
	ErrMissingFields           = errors.New("missing required fields")
	ErrEmailMismatch           = errors.New("emails do not match")
	ErrDuplicateEmail          = errors.New("user already exists")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrInvalidRefreshToken     = errors.New("invalid refresh token")
	ErrTokenVerificationFailed = errors.New("token verification failed")
	ErrInvalidVerification     = errors.New("invalid or expired token")
	ErrUserNotFound            = errors.New("user not found")
	ErrAlreadyVerified         = errors.New("email already verified")
	ErrRateLimited             = errors.New("rate limited")
)

const (
	bcryptCost      = 10
	resendWindow    = 10 * time.Minute
	resendMaxPerKey = 3
)

func NewAuthService(
	logger *zap.Logger,
	users repository.UserRepository,
	emailSender email.Sender,
	tokens *TokenService,
	resendLimiter ResendRateLimiter,
	verifyBaseURL string,
) *AuthService {
	if resendLimiter == nil {
		resendLimiter = NewResendRateLimiter(resendWindow, resendMaxPerKey)
	}
	return &AuthService{
		logger:        logger,
		users:         users,
		emailSender:   emailSender,
		tokens:        tokens,
		resendLimiter: resendLimiter,
		verifyBaseURL: strings.TrimRight(verifyBaseURL, "/"),
	}
}

type RegisterInput struct {
	Title               string
	FirstName           string
	Middle              string
	LastName            string
	Degree              string
	Specialty           string
	Phone               string
	Country             string
	ORCID               string
	Email               string
	ConfirmEmail        string
	AlternativeEmail    string
	Username            string
	Password            string
	AvailableAsReviewer bool
	ReceiveNews         bool
	Comments            string
}

// TokenPair es el par emitido en login y refresh. ExpiresAt es epoch en
// milisegundos: en login corresponde al refresh token, en refresh al access.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
}

// Register crea la cuenta sin verificar, con un token de verificación fresco,
// y despacha el correo de verificación sin bloquear la respuesta.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("auth service not configured")
	}

	required := []string{
		input.Title, input.FirstName, input.LastName, input.Degree,
		input.Phone, input.Country, input.ORCID, input.Email,
		input.ConfirmEmail, input.Username, input.Password,
	}
	for _, field := range required {
		if strings.TrimSpace(field) == "" {
			return domain.User{}, ErrMissingFields
		}
	}

	// Login y ResendVerification recortan el email con el mismo criterio.
	emailAddr := strings.TrimSpace(input.Email)
	if emailAddr != strings.TrimSpace(input.ConfirmEmail) {
		return domain.User{}, ErrEmailMismatch
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return domain.User{}, err
	}

	verificationToken, err := newVerificationToken()
	if err != nil {
		return domain.User{}, err
	}

	user := domain.User{
		Title:               strings.TrimSpace(input.Title),
		FirstName:           strings.TrimSpace(input.FirstName),
		Middle:              strings.TrimSpace(input.Middle),
		LastName:            strings.TrimSpace(input.LastName),
		Degree:              strings.TrimSpace(input.Degree),
		Specialty:           strings.TrimSpace(input.Specialty),
		Phone:               strings.TrimSpace(input.Phone),
		Country:             strings.TrimSpace(input.Country),
		ORCID:               strings.TrimSpace(input.ORCID),
		Email:               emailAddr,
		AlternativeEmail:    strings.TrimSpace(input.AlternativeEmail),
		Username:            strings.TrimSpace(input.Username),
		PasswordHash:        string(hashBytes),
		Role:                "user",
		AvailableAsReviewer: input.AvailableAsReviewer,
		ReceiveNews:         input.ReceiveNews,
		Comments:            strings.TrimSpace(input.Comments),
		IsVerified:          false,
		VerificationToken:   verificationToken,
		CreatedAt:           time.Now().UTC(),
	}

	id, err := s.users.Create(ctx, user)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, ErrDuplicateEmail
		}
		return domain.User{}, err
	}
	user.ID = id

	s.sendVerificationEmail(ctx, user.Email, "Verify Your Email", verificationToken)

	return user, nil
}

// Login valida credenciales y emite un par nuevo de tokens, reemplazando el
// refresh token almacenado. Email desconocido y password incorrecto fallan
// con el mismo error para no permitir enumeración de cuentas.
func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (domain.User, TokenPair, error) {
	if s.users == nil || s.tokens == nil {
		return domain.User{}, TokenPair{}, errors.New("auth service not configured")
	}

	emailAddr = strings.TrimSpace(emailAddr)
	if emailAddr == "" || password == "" {
		return domain.User{}, TokenPair{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, TokenPair{}, ErrInvalidCredentials
		}
		return domain.User{}, TokenPair{}, err
	}
	if user.PasswordHash == "" {
		return domain.User{}, TokenPair{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, TokenPair{}, ErrInvalidCredentials
	}

	accessToken, err := s.tokens.IssueAccessToken(user.ID)
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}
	refreshToken, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}

	// Sobrescribir invalida cualquier refresh token anterior del usuario.
	if err := s.users.SetRefreshToken(ctx, user.ID, refreshToken); err != nil {
		return domain.User{}, TokenPair{}, err
	}

	pair := TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().UTC().Add(s.tokens.RefreshTTL()).UnixMilli(),
	}
	return user, pair, nil
}

// Refresh rota el refresh token presentado. El token solo es válido si además
// de tener firma y vigencia correctas sigue siendo el almacenado para el
// usuario; la rotación es un update condicional, así dos refresh concurrentes
// con el mismo token no pueden ganar ambos.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if s.users == nil || s.tokens == nil {
		return TokenPair{}, errors.New("auth service not configured")
	}

	user, err := s.users.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TokenPair{}, ErrInvalidRefreshToken
		}
		return TokenPair{}, err
	}

	claims, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, ErrTokenVerificationFailed
	}
	if claims.UserID != user.ID {
		return TokenPair{}, ErrTokenVerificationFailed
	}

	newAccess, err := s.tokens.IssueAccessToken(user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	newRefresh, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return TokenPair{}, err
	}

	rotated, err := s.users.RotateRefreshToken(ctx, user.ID, refreshToken, newRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	if !rotated {
		// Otro refresh concurrente ya consumió este token.
		return TokenPair{}, ErrInvalidRefreshToken
	}

	return TokenPair{
		AccessToken:  newAccess,
		RefreshToken: newRefresh,
		ExpiresAt:    time.Now().UTC().Add(s.tokens.AccessTTL()).UnixMilli(),
	}, nil
}

// VerifyEmail canjea el token de verificación. El canje es una sola sentencia
// condicional en el store, por lo que cada token se consume exactamente una vez.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	if s.users == nil {
		return errors.New("auth service not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidVerification
	}
	redeemed, err := s.users.RedeemVerificationToken(ctx, token)
	if err != nil {
		return err
	}
	if !redeemed {
		return ErrInvalidVerification
	}
	return nil
}

// ResendVerification reemplaza el token pendiente por uno nuevo y reenvía el
// correo. El token anterior queda inválido de forma permanente.
func (s *AuthService) ResendVerification(ctx context.Context, emailAddr string) error {
	if s.users == nil {
		return errors.New("auth service not configured")
	}

	emailAddr = strings.TrimSpace(emailAddr)
	if emailAddr == "" {
		return ErrMissingFields
	}

	if s.resendLimiter != nil && !s.resendLimiter.Allow(emailAddr) {
		return ErrRateLimited
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}

	token, err := newVerificationToken()
	if err != nil {
		return err
	}
	if err := s.users.SetVerificationToken(ctx, user.ID, token); err != nil {
		return err
	}

	// El fallo de envío no revierte el token ya almacenado; el usuario puede
	// reintentar el reenvío.
	s.sendVerificationEmail(ctx, user.Email, "Resend: Verify Your Email", token)

	return nil
}

func (s *AuthService) sendVerificationEmail(ctx context.Context, toEmail, subject, token string) {
	if s.emailSender == nil {
		return
	}
	link := s.verifyBaseURL + "/" + token
	body := verificationEmailBody(link)
	if err := s.emailSender.Send(ctx, toEmail, subject, body); err != nil {
		if s.logger != nil {
			s.logger.Warn("send verification email failed", zap.Error(err), zap.String("email", toEmail))
		}
	}
}

func verificationEmailBody(link string) string {
	return fmt.Sprintf(`<div style="font-family: Arial, sans-serif; text-align: center;">
  <h2>Email Verification</h2>
  <p>Click the button below to verify your email:</p>
  <a href="%s" style="background: #007bff; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Verify Email</a>
  <p>If you didn't request this, please ignore this email.</p>
</div>`, link)
}

// newVerificationToken genera 32 bytes aleatorios en hex. Es un token opaco,
// no un JWT: no transporta claims y no se puede forjar adivinando.
func newVerificationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
