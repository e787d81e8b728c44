package services

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func setupAuthConfig() {
	viper.Set("argon2.salt_length", 16)
	viper.Set("argon2.time", 1)
	viper.Set("argon2.memory", 64*1024)
	viper.Set("argon2.threads", 4)
	viper.Set("argon2.key_length", 32)
	viper.Set("jwt.secret_key", "test-secret")
	viper.Set("jwt.expiry_hours", 24)
	viper.Set("ledger.default_currency", "NGN")
}

func TestAuthService_Register(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	setupAuthConfig()
	service := NewAuthService(db, nil)

	t.Run("successful registration", func(t *testing.T) {
		req := RegisterRequest{
			Email:       "amina@example.com",
			Password:    "password123",
			FirstName:   "Amina",
			LastName:    "Okafor",
			PhoneNumber: "+2348012345678",
		}

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO users").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO accounts").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		body, _ := json.Marshal(req)
		r := httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var response AuthResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.NotEmpty(t, response.Token)
		assert.Equal(t, req.Email, response.User.Email)
		assert.Equal(t, "user", response.User.Role)
		assert.True(t, len(response.User.AccountID) > 4 && response.User.AccountID[:4] == "WAL-")
	})

	t.Run("agent registration gets agent account", func(t *testing.T) {
		req := RegisterRequest{
			Email:       "agent@example.com",
			Password:    "password123",
			FirstName:   "Bode",
			LastName:    "Adeyemi",
			PhoneNumber: "+2348098765432",
			Role:        "agent",
		}

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO users").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO accounts").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		body, _ := json.Marshal(req)
		r := httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var response AuthResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, "agent", response.User.Role)
		assert.True(t, len(response.User.AccountID) > 4 && response.User.AccountID[:4] == "AGT-")
	})

	t.Run("invalid request body", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer([]byte("invalid")))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthService_Login(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	setupAuthConfig()
	service := NewAuthService(db, nil)

	userColumns := []string{"id", "email", "first_name", "last_name", "phone_number",
		"account_id", "role", "kyc_status", "password_hash", "failed_login_attempts", "locked_until"}

	t.Run("successful login", func(t *testing.T) {
		hashedPassword, _ := hashPassword("password123")

		mock.ExpectQuery("SELECT id, email, first_name, last_name, phone_number").
			WithArgs("+2348012345678").
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow("u-1", "amina@example.com", "Amina", "Okafor", "+2348012345678",
					"WAL-1001", "user", "APPROVED", hashedPassword, 0, nil))
		mock.ExpectExec("UPDATE users SET failed_login_attempts = 0").
			WillReturnResult(sqlmock.NewResult(0, 1))

		req := LoginRequest{PhoneNumber: "+2348012345678", Password: "password123"}

		body, _ := json.Marshal(req)
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var response AuthResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.NotEmpty(t, response.Token)
		assert.Equal(t, "WAL-1001", response.User.AccountID)
	})

	t.Run("user not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, first_name, last_name, phone_number").
			WithArgs("+2340000000000").
			WillReturnError(sql.ErrNoRows)

		req := LoginRequest{PhoneNumber: "+2340000000000", Password: "password123"}

		body, _ := json.Marshal(req)
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("locked account", func(t *testing.T) {
		hashedPassword, _ := hashPassword("password123")

		mock.ExpectQuery("SELECT id, email, first_name, last_name, phone_number").
			WithArgs("+2348012345678").
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow("u-1", "amina@example.com", "Amina", "Okafor", "+2348012345678",
					"WAL-1001", "user", "APPROVED", hashedPassword, 5, time.Now().Add(10*time.Minute)))

		req := LoginRequest{PhoneNumber: "+2348012345678", Password: "password123"}

		body, _ := json.Marshal(req)
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusLocked, w.Code)
	})

	t.Run("wrong password increments the failure counter", func(t *testing.T) {
		hashedPassword, _ := hashPassword("password123")

		mock.ExpectQuery("SELECT id, email, first_name, last_name, phone_number").
			WithArgs("+2348012345678").
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow("u-1", "amina@example.com", "Amina", "Okafor", "+2348012345678",
					"WAL-1001", "user", "APPROVED", hashedPassword, 0, nil))
		mock.ExpectExec("UPDATE users SET failed_login_attempts").
			WillReturnResult(sqlmock.NewResult(0, 1))

		req := LoginRequest{PhoneNumber: "+2348012345678", Password: "wrongpassword"}

		body, _ := json.Marshal(req)
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestPasswordHashing(t *testing.T) {
	setupAuthConfig()

	password := "testpassword"

	hashed, err := hashPassword(password)
	assert.NoError(t, err)
	assert.NotEmpty(t, hashed)

	assert.True(t, verifyPassword(password, hashed))
	assert.False(t, verifyPassword("wrongpassword", hashed))
}

func TestGenerateJWT(t *testing.T) {
	setupAuthConfig()

	token, err := generateJWT("u-123", "admin")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)
}
