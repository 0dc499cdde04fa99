package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"auth_backend/internal/middleware"
	"auth_backend/internal/model"
	"auth_backend/internal/service"
	"auth_backend/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memUserRepo is an in-memory UserRepository backing the real service in tests
type memUserRepo struct {
	byEmail map[string]*model.User
	nextID  int
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byEmail: make(map[string]*model.User), nextID: 1}
}

func (r *memUserRepo) CreateWithRole(_ context.Context, user *model.User) error {
	user.ID = r.nextID
	r.nextID++
	r.byEmail[user.Email] = user
	return nil
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return r.byEmail[email], nil
}

func (r *memUserRepo) FindByID(_ context.Context, id int) (*model.User, error) {
	for _, u := range r.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func setupRouter() (*gin.Engine, *memUserRepo) {
	gin.SetMode(gin.TestMode)

	repo := newMemUserRepo()
	jwtUtil := utils.NewJWTUtil("test-secret", utils.TokenTTL)
	authHandler := NewAuthHandler(service.NewAuthService(repo, jwtUtil))

	router := gin.New()
	apiGroup := router.Group("/api")
	authHandler.RegisterAuthRoutes(apiGroup, middleware.JWTAuthMiddleware(jwtUtil))
	return router, repo
}

func doJSON(router *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSignup(t *testing.T) {
	router, repo := setupRouter()

	w := doJSON(router, http.MethodPost, "/api/auth/signup", gin.H{
		"email":    "alice@example.com",
		"password": "password123",
		"name":     "Alice",
		"role":     "student",
	}, nil)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		ID    int     `json:"id"`
		Email string  `json:"email"`
		Name  *string `json:"name"`
		Role  string  `json:"role"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.ID)
	assert.Equal(t, "alice@example.com", resp.Email)
	require.NotNil(t, resp.Name)
	assert.Equal(t, "Alice", *resp.Name)
	assert.Equal(t, model.RoleStudent, resp.Role)

	// Hash must never appear in the response
	assert.NotContains(t, w.Body.String(), "password")
	assert.Contains(t, repo.byEmail, "alice@example.com")
}

func TestSignup_MissingFields(t *testing.T) {
	router, repo := setupRouter()

	for _, body := range []gin.H{
		{"password": "pw", "role": "STUDENT"},
		{"email": "alice@example.com", "role": "STUDENT"},
		{},
	} {
		w := doJSON(router, http.MethodPost, "/api/auth/signup", body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"email and password are required"}`, w.Body.String())
	}
	assert.Empty(t, repo.byEmail)
}

func TestSignup_InvalidRole(t *testing.T) {
	router, repo := setupRouter()

	for _, role := range []string{"teacher", "superuser", ""} {
		w := doJSON(router, http.MethodPost, "/api/auth/signup", gin.H{
			"email":    "alice@example.com",
			"password": "pw",
			"role":     role,
		}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, "role %q", role)
		assert.JSONEq(t, `{"error":"Invalid role"}`, w.Body.String(), "role %q", role)
	}
	assert.Empty(t, repo.byEmail)
}

func TestSignup_AdministratorNormalizesToOfficial(t *testing.T) {
	router, _ := setupRouter()

	w := doJSON(router, http.MethodPost, "/api/auth/signup", gin.H{
		"email":    "boss@example.com",
		"password": "pw",
		"role":     "ADMINISTRATOR",
	}, nil)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, model.RoleOfficial, resp["role"])
}

func TestSignup_EmailTaken(t *testing.T) {
	router, _ := setupRouter()

	first := doJSON(router, http.MethodPost, "/api/auth/signup", gin.H{
		"email": "alice@example.com", "password": "pw", "role": "ADMIN",
	}, nil)
	require.Equal(t, http.StatusCreated, first.Code)

	second := doJSON(router, http.MethodPost, "/api/auth/signup", gin.H{
		"email": "alice@example.com", "password": "other", "role": "STUDENT",
	}, nil)
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.JSONEq(t, `{"error":"Email already registered"}`, second.Body.String())
}

func TestLogin(t *testing.T) {
	router, _ := setupRouter()

	signup := doJSON(router, http.MethodPost, "/api/auth/signup", gin.H{
		"email": "alice@example.com", "password": "password123", "role": "OFFICIAL",
	}, nil)
	require.Equal(t, http.StatusCreated, signup.Code)

	w := doJSON(router, http.MethodPost, "/api/auth/login", gin.H{
		"email": "alice@example.com", "password": "password123",
	}, nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID    int    `json:"id"`
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, 1, resp.User.ID)
	assert.Equal(t, "alice@example.com", resp.User.Email)
	assert.Equal(t, model.RoleOfficial, resp.User.Role)

	// Token subject must be the user's id, expiry 7 days out
	claims, err := utils.NewJWTUtil("test-secret", utils.TokenTTL).ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "1", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestLogin_MissingFields(t *testing.T) {
	router, _ := setupRouter()

	w := doJSON(router, http.MethodPost, "/api/auth/login", gin.H{"email": "alice@example.com"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"email and password are required"}`, w.Body.String())
}

func TestLogin_InvalidCredentials(t *testing.T) {
	router, _ := setupRouter()

	signup := doJSON(router, http.MethodPost, "/api/auth/signup", gin.H{
		"email": "alice@example.com", "password": "password123", "role": "STUDENT",
	}, nil)
	require.Equal(t, http.StatusCreated, signup.Code)

	wrongPassword := doJSON(router, http.MethodPost, "/api/auth/login", gin.H{
		"email": "alice@example.com", "password": "wrong",
	}, nil)
	unknownEmail := doJSON(router, http.MethodPost, "/api/auth/login", gin.H{
		"email": "ghost@example.com", "password": "password123",
	}, nil)

	// Both failures must be indistinguishable to the client
	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	assert.JSONEq(t, `{"error":"Invalid credentials"}`, wrongPassword.Body.String())
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
}

func TestMe(t *testing.T) {
	router, _ := setupRouter()

	signup := doJSON(router, http.MethodPost, "/api/auth/signup", gin.H{
		"email": "alice@example.com", "password": "password123", "name": "Alice", "role": "admin",
	}, nil)
	require.Equal(t, http.StatusCreated, signup.Code)

	login := doJSON(router, http.MethodPost, "/api/auth/login", gin.H{
		"email": "alice@example.com", "password": "password123",
	}, nil)
	require.Equal(t, http.StatusOK, login.Code)

	var loginResp struct {
		Token string `json:"token"`
		User  struct {
			ID    int     `json:"id"`
			Email string  `json:"email"`
			Name  *string `json:"name"`
			Role  string  `json:"role"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(login.Body.Bytes(), &loginResp))

	w := doJSON(router, http.MethodGet, "/api/me", nil, map[string]string{
		"Authorization": "Bearer " + loginResp.Token,
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var me struct {
		ID    int     `json:"id"`
		Email string  `json:"email"`
		Name  *string `json:"name"`
		Role  string  `json:"role"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))

	// Round-trip consistency across signup, login and me
	assert.Equal(t, loginResp.User.ID, me.ID)
	assert.Equal(t, "alice@example.com", me.Email)
	require.NotNil(t, me.Name)
	assert.Equal(t, "Alice", *me.Name)
	assert.Equal(t, model.RoleAdmin, me.Role)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestMe_MissingToken(t *testing.T) {
	router, _ := setupRouter()

	w := doJSON(router, http.MethodGet, "/api/me", nil, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Missing token"}`, w.Body.String())
}

func TestMe_InvalidToken(t *testing.T) {
	router, _ := setupRouter()

	w := doJSON(router, http.MethodGet, "/api/me", nil, map[string]string{
		"Authorization": "Bearer garbage.token.value",
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Invalid token"}`, w.Body.String())
}

func TestMe_UserDeletedAfterTokenIssued(t *testing.T) {
	router, repo := setupRouter()

	signup := doJSON(router, http.MethodPost, "/api/auth/signup", gin.H{
		"email": "alice@example.com", "password": "password123", "role": "STUDENT",
	}, nil)
	require.Equal(t, http.StatusCreated, signup.Code)

	login := doJSON(router, http.MethodPost, "/api/auth/login", gin.H{
		"email": "alice@example.com", "password": "password123",
	}, nil)
	require.Equal(t, http.StatusOK, login.Code)

	var loginResp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(login.Body.Bytes(), &loginResp))

	// Simulate the account being removed while the token is still valid
	delete(repo.byEmail, "alice@example.com")

	w := doJSON(router, http.MethodGet, "/api/me", nil, map[string]string{
		"Authorization": "Bearer " + loginResp.Token,
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"User not found"}`, w.Body.String())
}
