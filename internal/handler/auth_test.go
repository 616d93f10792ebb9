package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tirtakita/api/internal/auth"
	"github.com/tirtakita/api/internal/database"
	"github.com/tirtakita/api/internal/enum"
	"github.com/tirtakita/api/internal/handler"
	"golang.org/x/crypto/bcrypt"
)

type mockAuthStore struct {
	getUserByEmailFn func(ctx context.Context, email string) (database.User, error)
	getUserFn        func(ctx context.Context, id uuid.UUID) (database.User, error)
}

func (m *mockAuthStore) GetUserByEmail(ctx context.Context, email string) (database.User, error) {
	if m.getUserByEmailFn != nil {
		return m.getUserByEmailFn(ctx, email)
	}
	return database.User{}, pgx.ErrNoRows
}

func (m *mockAuthStore) GetUser(ctx context.Context, id uuid.UUID) (database.User, error) {
	if m.getUserFn != nil {
		return m.getUserFn(ctx, id)
	}
	return database.User{}, pgx.ErrNoRows
}

func setupAuthRouter(store *mockAuthStore) *chi.Mux {
	h := handler.NewAuthHandler(store, testJWTSecret)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func testUser(t *testing.T, password string) database.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return database.User{
		ID:             uuid.New(),
		CompanyID:      uuid.New(),
		Email:          "budi@tirtakita.com",
		HashedPassword: string(hashed),
		FullName:       "Budi Santoso",
		Role:           enum.RoleAdmin,
		CreatedAt:      time.Now(),
	}
}

func TestLogin_HappyPath(t *testing.T) {
	user := testUser(t, "rahasia123")

	store := &mockAuthStore{
		getUserByEmailFn: func(ctx context.Context, email string) (database.User, error) {
			if email != user.Email {
				t.Errorf("email: got %v, want %v", email, user.Email)
			}
			return user, nil
		},
	}

	router := setupAuthRouter(store)
	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"email":    user.Email,
		"password": "rahasia123",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	accessToken, _ := resp["access_token"].(string)
	if accessToken == "" {
		t.Fatal("access_token missing")
	}
	if resp["refresh_token"] == "" {
		t.Fatal("refresh_token missing")
	}

	claims, err := auth.ValidateToken(testJWTSecret, accessToken)
	if err != nil {
		t.Fatalf("validate issued token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("token user_id: got %v, want %v", claims.UserID, user.ID)
	}
	if claims.CompanyID != user.CompanyID {
		t.Errorf("token company_id: got %v, want %v", claims.CompanyID, user.CompanyID)
	}
	if claims.Role != user.Role {
		t.Errorf("token role: got %v, want %v", claims.Role, user.Role)
	}

	u := resp["user"].(map[string]interface{})
	if u["email"] != user.Email {
		t.Errorf("user email: got %v, want %v", u["email"], user.Email)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	user := testUser(t, "rahasia123")

	store := &mockAuthStore{
		getUserByEmailFn: func(ctx context.Context, email string) (database.User, error) {
			return user, nil
		},
	}

	router := setupAuthRouter(store)
	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"email":    user.Email,
		"password": "salah",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusUnauthorized, rr.Body.String())
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	router := setupAuthRouter(&mockAuthStore{})
	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"email":    "nobody@tirtakita.com",
		"password": "whatever",
	})

	// Same response as a wrong password so callers can't probe for accounts.
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusUnauthorized, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["error"] != "invalid credentials" {
		t.Errorf("error: got %v, want 'invalid credentials'", resp["error"])
	}
}

func TestLogin_MissingFields(t *testing.T) {
	router := setupAuthRouter(&mockAuthStore{})
	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"email": "budi@tirtakita.com",
	})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestRefresh_HappyPath(t *testing.T) {
	user := testUser(t, "rahasia123")

	refreshToken, err := auth.GenerateRefreshToken(testJWTSecret, user.ID)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	store := &mockAuthStore{
		getUserFn: func(ctx context.Context, id uuid.UUID) (database.User, error) {
			if id != user.ID {
				t.Errorf("user id: got %v, want %v", id, user.ID)
			}
			return user, nil
		},
	}

	router := setupAuthRouter(store)
	rr := doRequest(t, router, "POST", "/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["access_token"] == "" {
		t.Fatal("access_token missing")
	}
}

func TestRefresh_InvalidToken(t *testing.T) {
	router := setupAuthRouter(&mockAuthStore{})
	rr := doRequest(t, router, "POST", "/auth/refresh", map[string]string{
		"refresh_token": "not-a-jwt",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusUnauthorized, rr.Body.String())
	}
}

func TestRefresh_UserDeleted(t *testing.T) {
	refreshToken, err := auth.GenerateRefreshToken(testJWTSecret, uuid.New())
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	router := setupAuthRouter(&mockAuthStore{})
	rr := doRequest(t, router, "POST", "/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusUnauthorized, rr.Body.String())
	}
}
