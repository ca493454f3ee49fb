package validator

import (
	"context"
	"strings"

	"foodorder/internal/domain/model"
	"foodorder/internal/repository"
	"foodorder/internal/usecase"

	validatorv10 "github.com/go-playground/validator/v10"
)

// パスワード最低文字数
const minPasswordLen = 8

type accountValidator struct {
	customers repository.CustomerRepository
	stores    repository.StoreRepository
	v         *validatorv10.Validate
}

// Usecaseは interface を依存注入
func NewAccountValidator(customers repository.CustomerRepository, stores repository.StoreRepository) usecase.AccountValidator {
	return &accountValidator{customers: customers, stores: stores, v: validatorv10.New()}
}

// 登録の入力を検証
func (a *accountValidator) ValidateRegister(ctx context.Context, actor model.ActorType, in usecase.RegisterInput) error {
	// 必須チェック
	if strings.TrimSpace(in.Name) == "" {
		return usecase.ValidationError("name is required")
	}
	if err := a.checkEmail(in.Email); err != nil {
		return err
	}
	if len(in.Password) < minPasswordLen {
		return usecase.ValidationError("password must be at least %d characters", minPasswordLen)
	}

	// email重複チェック（DBが必要）
	var err error
	switch actor {
	case model.ActorStore:
		_, err = a.stores.FindByEmail(ctx, in.Email)
	default:
		_, err = a.customers.FindByEmail(ctx, in.Email)
	}
	if err == nil {
		return usecase.Conflict("email already used")
	}
	return nil
}

// ログインの入力を検証
func (a *accountValidator) ValidateLogin(ctx context.Context, email string, password string) error {
	if err := a.checkEmail(email); err != nil {
		return err
	}
	if password == "" {
		return usecase.ValidationError("password is required")
	}
	return nil
}

// email形式
func (a *accountValidator) checkEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return usecase.ValidationError("email is required")
	}
	if err := a.v.Var(email, "email"); err != nil {
		return usecase.ValidationError("email is invalid")
	}
	return nil
}
