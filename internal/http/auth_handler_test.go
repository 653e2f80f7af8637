package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"jomat-backend/internal/domain"
	"jomat-backend/internal/service"
)

type fakeUserRepo struct {
	nextID     int64
	usersByID  map[int64]domain.User
	emailIndex map[string]int64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		usersByID:  make(map[int64]domain.User),
		emailIndex: make(map[string]int64),
	}
}

func (f *fakeUserRepo) Create(_ context.Context, user domain.User) (int64, error) {
	if _, exists := f.emailIndex[user.Email]; exists {
		return 0, &pgconn.PgError{Code: "23505"}
	}
	f.nextID++
	user.ID = f.nextID
	f.usersByID[user.ID] = user
	f.emailIndex[user.Email] = user.ID
	return user.ID, nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (domain.User, error) {
	user, ok := f.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	id, ok := f.emailIndex[email]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return f.usersByID[id], nil
}

func (f *fakeUserRepo) GetByRefreshToken(_ context.Context, token string) (domain.User, error) {
	if token == "" {
		return domain.User{}, pgx.ErrNoRows
	}
	for _, user := range f.usersByID {
		if user.RefreshToken == token {
			return user, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (f *fakeUserRepo) List(_ context.Context) ([]domain.PublicUser, error) {
	users := []domain.PublicUser{}
	for id := int64(1); id <= f.nextID; id++ {
		if user, ok := f.usersByID[id]; ok {
			users = append(users, domain.PublicUser{ID: user.ID, Email: user.Email})
		}
	}
	return users, nil
}

func (f *fakeUserRepo) SetRefreshToken(_ context.Context, id int64, token string) error {
	user, ok := f.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.RefreshToken = token
	f.usersByID[id] = user
	return nil
}

func (f *fakeUserRepo) RotateRefreshToken(_ context.Context, id int64, current, next string) (bool, error) {
	user, ok := f.usersByID[id]
	if !ok || user.RefreshToken != current {
		return false, nil
	}
	user.RefreshToken = next
	f.usersByID[id] = user
	return true, nil
}

func (f *fakeUserRepo) SetVerificationToken(_ context.Context, id int64, token string) error {
	user, ok := f.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.VerificationToken = token
	f.usersByID[id] = user
	return nil
}

func (f *fakeUserRepo) RedeemVerificationToken(_ context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	for id, user := range f.usersByID {
		if user.VerificationToken == token {
			user.IsVerified = true
			user.VerificationToken = ""
			f.usersByID[id] = user
			return true, nil
		}
	}
	return false, nil
}

type fakeSender struct {
	sent int
	err  error
}

func (f *fakeSender) Send(_ context.Context, _, _, _ string) error {
	f.sent++
	return f.err
}

func newTestServer(t *testing.T) (*gin.Engine, *fakeUserRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := newFakeUserRepo()
	logger := zap.NewNop()
	tokens := service.NewTokenService("access-secret", "refresh-secret", time.Hour, 7*24*time.Hour)
	authSvc := service.NewAuthService(logger, repo, &fakeSender{}, tokens, nil, "https://example.com/verify-email")

	authH := NewAuthHandler(logger, authSvc, repo)
	authorH := NewAuthorHandler(logger, repo)
	guard := AccessGuard(tokens, repo)
	router := NewRouter(logger, []string{"https://example.com"}, authH, authorH, guard, nil)
	return router, repo
}

func registerBody(email string) []byte {
	payload := map[string]any{
		"title":         "Dr",
		"first_name":    "Ada",
		"last_name":     "Lovelace",
		"degree":        "PhD",
		"phone":         "+4412345678",
		"country":       "UK",
		"orcid":         "0000-0001-2345-6789",
		"email":         email,
		"confirm_email": email,
		"username":      "ada",
		"password":      "s3cret-pass",
	}
	body, _ := json.Marshal(payload)
	return body
}

func doJSON(router *gin.Engine, method, path string, body []byte, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRegisterVerifyLoginProtectedFlow(t *testing.T) {
	router, repo := newTestServer(t)

	rec := doJSON(router, http.MethodPost, "/api/auth/register", registerBody("a@x.com"), "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	stored, err := repo.GetByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("expected user stored: %v", err)
	}

	rec = doJSON(router, http.MethodGet, "/api/auth/verify/"+stored.VerificationToken, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(router, http.MethodPost, "/api/auth/login", []byte(`{"email":"a@x.com","password":"s3cret-pass"}`), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var loginResp struct {
		Token        string      `json:"token"`
		RefreshToken string      `json:"refreshToken"`
		ExpiresAt    int64       `json:"expiresAt"`
		User         domain.User `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &loginResp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if loginResp.Token == "" || loginResp.RefreshToken == "" || loginResp.ExpiresAt == 0 {
		t.Fatalf("incomplete login response: %s", rec.Body.String())
	}
	if loginResp.User.ID != stored.ID {
		t.Fatalf("expected sanitized user in login response, got %+v", loginResp.User)
	}

	path := fmt.Sprintf("/api/auth/users/%d", stored.ID)
	rec = doJSON(router, http.MethodGet, path, nil, loginResp.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("protected route: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var userResp struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &userResp); err != nil {
		t.Fatalf("decode user response: %v", err)
	}
	if userResp.ID != stored.ID || userResp.Email != "a@x.com" {
		t.Fatalf("unexpected user payload: %s", rec.Body.String())
	}

	// Sin Authorization header la ruta protegida rechaza con 401.
	rec = doJSON(router, http.MethodGet, path, nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer, got %d", rec.Code)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	router, _ := newTestServer(t)

	rec := doJSON(router, http.MethodPost, "/api/auth/register", registerBody("a@x.com"), "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", rec.Code)
	}

	wrongPass := doJSON(router, http.MethodPost, "/api/auth/login", []byte(`{"email":"a@x.com","password":"nope"}`), "")
	unknown := doJSON(router, http.MethodPost, "/api/auth/login", []byte(`{"email":"ghost@x.com","password":"nope"}`), "")

	if wrongPass.Code != http.StatusBadRequest || unknown.Code != http.StatusBadRequest {
		t.Fatalf("expected 400/400, got %d/%d", wrongPass.Code, unknown.Code)
	}
	if wrongPass.Body.String() != unknown.Body.String() {
		t.Fatalf("login failure bodies must match: %q vs %q", wrongPass.Body.String(), unknown.Body.String())
	}
}

func TestRefreshEndpointRotation(t *testing.T) {
	router, repo := newTestServer(t)

	doJSON(router, http.MethodPost, "/api/auth/register", registerBody("a@x.com"), "")
	stored, _ := repo.GetByEmail(context.Background(), "a@x.com")
	doJSON(router, http.MethodGet, "/api/auth/verify/"+stored.VerificationToken, nil, "")

	rec := doJSON(router, http.MethodPost, "/api/auth/login", []byte(`{"email":"a@x.com","password":"s3cret-pass"}`), "")
	var loginResp struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &loginResp); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	// Sin bearer: 401.
	rec = doJSON(router, http.MethodPost, "/api/auth/refresh", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer, got %d", rec.Code)
	}

	rec = doJSON(router, http.MethodPost, "/api/auth/refresh", nil, loginResp.RefreshToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var refreshResp struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refreshToken"`
		ExpiresAt    int64  `json:"expiresAt"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &refreshResp); err != nil {
		t.Fatalf("decode refresh: %v", err)
	}
	if refreshResp.RefreshToken == loginResp.RefreshToken {
		t.Fatalf("expected a rotated refresh token")
	}

	// El token anterior ya no es canjeable.
	rec = doJSON(router, http.MethodPost, "/api/auth/refresh", nil, loginResp.RefreshToken)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for superseded token, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestListUsersGuarded(t *testing.T) {
	router, repo := newTestServer(t)

	doJSON(router, http.MethodPost, "/api/auth/register", registerBody("a@x.com"), "")
	doJSON(router, http.MethodPost, "/api/auth/register", registerBody("b@x.com"), "")
	stored, _ := repo.GetByEmail(context.Background(), "a@x.com")
	doJSON(router, http.MethodGet, "/api/auth/verify/"+stored.VerificationToken, nil, "")

	// Sin bearer: 401.
	rec := doJSON(router, http.MethodGet, "/api/auth/users", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer, got %d", rec.Code)
	}

	rec = doJSON(router, http.MethodPost, "/api/auth/login", []byte(`{"email":"a@x.com","password":"s3cret-pass"}`), "")
	var loginResp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &loginResp); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	rec = doJSON(router, http.MethodGet, "/api/auth/users", nil, loginResp.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("list users: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var users []domain.PublicUser
	if err := json.Unmarshal(rec.Body.Bytes(), &users); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d (%s)", len(users), rec.Body.String())
	}
	if users[0].Email != "a@x.com" || users[1].Email != "b@x.com" {
		t.Fatalf("unexpected list payload: %s", rec.Body.String())
	}
}

func TestResendVerificationFlow(t *testing.T) {
	router, repo := newTestServer(t)

	doJSON(router, http.MethodPost, "/api/auth/register", registerBody("b@x.com"), "")
	stored, _ := repo.GetByEmail(context.Background(), "b@x.com")
	oldToken := stored.VerificationToken

	rec := doJSON(router, http.MethodPost, "/api/auth/resend-verification", []byte(`{"email":"b@x.com"}`), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("resend: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	stored, _ = repo.GetByEmail(context.Background(), "b@x.com")
	if stored.VerificationToken == oldToken {
		t.Fatalf("expected a new verification token")
	}

	rec = doJSON(router, http.MethodGet, "/api/auth/verify/"+oldToken, nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 redeeming replaced token, got %d", rec.Code)
	}

	rec = doJSON(router, http.MethodPost, "/api/auth/resend-verification", []byte(`{"email":"ghost@x.com"}`), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown email, got %d", rec.Code)
	}

	doJSON(router, http.MethodGet, "/api/auth/verify/"+stored.VerificationToken, nil, "")
	rec = doJSON(router, http.MethodPost, "/api/auth/resend-verification", []byte(`{"email":"b@x.com"}`), "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for already verified email, got %d", rec.Code)
	}
}

func TestRegisterValidationErrors(t *testing.T) {
	router, _ := newTestServer(t)

	payload := map[string]any{
		"title":         "Dr",
		"first_name":    "Ada",
		"last_name":     "Lovelace",
		"phone":         "+4412345678",
		"country":       "UK",
		"orcid":         "0000-0001-2345-6789",
		"email":         "a@x.com",
		"confirm_email": "a@x.com",
		"username":      "ada",
		"password":      "s3cret-pass",
	}
	body, _ := json.Marshal(payload)
	rec := doJSON(router, http.MethodPost, "/api/auth/register", body, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing degree, got %d", rec.Code)
	}

	payload["degree"] = "PhD"
	payload["confirm_email"] = "other@x.com"
	body, _ = json.Marshal(payload)
	rec = doJSON(router, http.MethodPost, "/api/auth/register", body, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for mismatched emails, got %d", rec.Code)
	}

	rec = doJSON(router, http.MethodPost, "/api/auth/register", registerBody("a@x.com"), "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	rec = doJSON(router, http.MethodPost, "/api/auth/register", registerBody("a@x.com"), "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate email, got %d", rec.Code)
	}
}

func TestAddAuthorLookup(t *testing.T) {
	router, repo := newTestServer(t)

	doJSON(router, http.MethodPost, "/api/auth/register", registerBody("a@x.com"), "")
	stored, _ := repo.GetByEmail(context.Background(), "a@x.com")
	doJSON(router, http.MethodGet, "/api/auth/verify/"+stored.VerificationToken, nil, "")

	rec := doJSON(router, http.MethodPost, "/api/auth/login", []byte(`{"email":"a@x.com","password":"s3cret-pass"}`), "")
	var loginResp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &loginResp); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	rec = doJSON(router, http.MethodPost, "/api/authors/add-author", []byte(`{"email":"a@x.com"}`), loginResp.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("add-author: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(router, http.MethodPost, "/api/authors/add-author", []byte(`{"email":"ghost@x.com"}`), loginResp.Token)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("add-author: expected 404 for unknown email, got %d", rec.Code)
	}

	rec = doJSON(router, http.MethodPost, "/api/authors/add-author", []byte(`{"email":"a@x.com"}`), "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("add-author: expected 401 without bearer, got %d", rec.Code)
	}
}
