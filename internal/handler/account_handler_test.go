package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"foodorder/internal/domain/model"
	"foodorder/internal/repository"
	"foodorder/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAccountServer(customers *CustomerRepoMock, stores *StoreRepoMock, v *AccountValidatorMock) *AccountHandler {
	return NewAccountHandler(usecase.NewAccountUsecase(customers, stores, v, testSecret, testLog))
}

func TestAccountHandler_RegisterCustomer(t *testing.T) {
	customers := new(CustomerRepoMock)
	v := new(AccountValidatorMock)
	v.On("ValidateRegister", mock.Anything, model.ActorCustomer, mock.Anything).Return(nil)
	customers.On("Create", mock.Anything, mock.MatchedBy(func(c model.Customer) bool {
		return c.Email == "bob@example.com" && c.PasswordHash != "" && c.PasswordHash != "password123"
	})).Return(model.Customer{ID: 7, Name: "Bob", Email: "bob@example.com"}, nil)

	e := newTestEcho()
	newAccountServer(customers, new(StoreRepoMock), v).RegisterRoutes(e)

	rec := doJSON(t, e, http.MethodPost, "/auth/customers/register", map[string]string{
		"name":     "Bob",
		"email":    "Bob@Example.com",
		"password": "password123",
	}, "")

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out usecase.AuthOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, int64(7), out.Account.ID)
	assert.Equal(t, model.ActorCustomer, out.Account.Type)
	assert.NotEmpty(t, out.Token.AccessToken)
	assert.Equal(t, 86400, out.Token.ExpiresIn)
	customers.AssertExpectations(t)
}

func TestAccountHandler_RegisterValidation(t *testing.T) {
	e := newTestEcho()
	newAccountServer(new(CustomerRepoMock), new(StoreRepoMock), new(AccountValidatorMock)).RegisterRoutes(e)

	rec := doJSON(t, e, http.MethodPost, "/auth/stores/register", map[string]string{
		"email":    "not-an-email",
		"password": "short",
	}, "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	res := decodeError(t, rec)
	assert.Equal(t, "validation", res.Code)
	assert.Contains(t, res.Error, "name is required")
	assert.Contains(t, res.Error, "email must be a valid email")
	assert.Contains(t, res.Error, "password must be at least 8 characters")
}

func TestAccountHandler_InvalidBody(t *testing.T) {
	e := newTestEcho()
	newAccountServer(new(CustomerRepoMock), new(StoreRepoMock), new(AccountValidatorMock)).RegisterRoutes(e)

	rec := doJSON(t, e, http.MethodPost, "/auth/customers/login", "{broken", "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid body", decodeError(t, rec).Error)
}

func TestAccountHandler_StoreLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name     string
		store    model.Store
		findErr  error
		password string
		wantCode int
	}{
		{
			name:     "ok",
			store:    model.Store{ID: 3, Email: "shop@example.com", PasswordHash: string(hash), IsActive: true},
			password: "password123",
			wantCode: http.StatusOK,
		},
		{
			name:     "wrong password",
			store:    model.Store{ID: 3, Email: "shop@example.com", PasswordHash: string(hash), IsActive: true},
			password: "password999",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "unknown email",
			findErr:  repository.ErrNotFound,
			password: "password123",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "inactive store",
			store:    model.Store{ID: 3, Email: "shop@example.com", PasswordHash: string(hash), IsActive: false},
			password: "password123",
			wantCode: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stores := new(StoreRepoMock)
			v := new(AccountValidatorMock)
			v.On("ValidateLogin", mock.Anything, "shop@example.com", tt.password).Return(nil)
			stores.On("FindByEmail", mock.Anything, "shop@example.com").Return(tt.store, tt.findErr)

			e := newTestEcho()
			newAccountServer(new(CustomerRepoMock), stores, v).RegisterRoutes(e)

			rec := doJSON(t, e, http.MethodPost, "/auth/stores/login", map[string]string{
				"email":    "shop@example.com",
				"password": tt.password,
			}, "")
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}
}
