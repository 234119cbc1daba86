package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/delapena-bakeshop/api/internal/auth"
	"github.com/delapena-bakeshop/api/internal/database"
	"github.com/delapena-bakeshop/api/internal/handler"
)

type mockAuthStore struct {
	getUserByEmailFn func(ctx context.Context, email string) (database.User, error)
	getUserByIDFn    func(ctx context.Context, id uuid.UUID) (database.User, error)
}

func (m *mockAuthStore) GetUserByEmail(ctx context.Context, email string) (database.User, error) {
	if m.getUserByEmailFn != nil {
		return m.getUserByEmailFn(ctx, email)
	}
	return database.User{}, pgx.ErrNoRows
}

func (m *mockAuthStore) GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error) {
	if m.getUserByIDFn != nil {
		return m.getUserByIDFn(ctx, id)
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
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
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
		Username:       "cashier",
		FirstName:      "Jose",
		LastName:       "Santos",
		Email:          "cashier@delapena.ph",
		HashedPassword: string(hashed),
		Role:           database.UserRoleCashier,
	}
}

func TestLogin_HappyPath(t *testing.T) {
	user := testUser(t, "password123")

	store := &mockAuthStore{
		getUserByEmailFn: func(ctx context.Context, email string) (database.User, error) {
			if email != user.Email {
				t.Errorf("email: got %q, want %q", email, user.Email)
			}
			return user, nil
		},
	}

	router := setupAuthRouter(store)
	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"email":    user.Email,
		"password": "password123",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	token, _ := resp["access_token"].(string)
	if token == "" {
		t.Fatal("access_token missing")
	}
	claims, err := auth.ValidateToken(testJWTSecret, token)
	if err != nil {
		t.Fatalf("validate issued token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("token user: got %v, want %v", claims.UserID, user.ID)
	}
	if claims.Role != "Cashier" {
		t.Errorf("token role: got %q, want Cashier", claims.Role)
	}

	u := resp["user"].(map[string]interface{})
	if u["email"] != user.Email {
		t.Errorf("user email: got %v, want %v", u["email"], user.Email)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	user := testUser(t, "password123")

	store := &mockAuthStore{
		getUserByEmailFn: func(ctx context.Context, email string) (database.User, error) {
			return user, nil
		},
	}

	router := setupAuthRouter(store)
	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"email":    user.Email,
		"password": "wrong",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	router := setupAuthRouter(&mockAuthStore{})
	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"email":    "nobody@delapena.ph",
		"password": "password123",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	resp := decodeResponse(t, rr)
	if resp["error"] != "invalid credentials" {
		t.Errorf("error: got %v, want invalid credentials", resp["error"])
	}
}

func TestLogin_MissingFields(t *testing.T) {
	router := setupAuthRouter(&mockAuthStore{})
	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{"email": "x@y.z"})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestRefresh_HappyPath(t *testing.T) {
	user := testUser(t, "password123")
	refresh, err := auth.GenerateRefreshToken(testJWTSecret, user.ID)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	store := &mockAuthStore{
		getUserByIDFn: func(ctx context.Context, id uuid.UUID) (database.User, error) {
			if id != user.ID {
				t.Errorf("user id: got %v, want %v", id, user.ID)
			}
			return user, nil
		},
	}

	router := setupAuthRouter(store)
	rr := doRequest(t, router, "POST", "/auth/refresh", map[string]string{
		"refresh_token": refresh,
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["access_token"] == "" {
		t.Error("access_token missing")
	}
}

func TestRefresh_InvalidToken(t *testing.T) {
	router := setupAuthRouter(&mockAuthStore{})
	rr := doRequest(t, router, "POST", "/auth/refresh", map[string]string{
		"refresh_token": "not-a-jwt",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}
