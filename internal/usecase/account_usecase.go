package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"foodorder/internal/domain/model"
	repo "foodorder/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// accesstokenの有効期限
const accessTokenTTL = 24 * time.Hour

// 登録・ログインの入力チェックの約束
type AccountValidator interface {
	ValidateRegister(ctx context.Context, actor model.ActorType, in RegisterInput) error
	ValidateLogin(ctx context.Context, email string, password string) error
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	// 店舗のみ
	Category string
	Address  string
	Phone    string
}

type LoginInput struct {
	Email    string
	Password string
}

type AccountOutput struct {
	ID       int64           `json:"id"`
	Type     model.ActorType `json:"type"`
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	IsActive bool            `json:"is_active"`
}

type AccessToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type AuthOutput struct {
	Account AccountOutput `json:"account"`
	Token   AccessToken   `json:"token"`
}

// 顧客・店舗アカウントの登録とログイン
type AccountUsecase struct {
	customers repo.CustomerRepository
	stores    repo.StoreRepository
	validator AccountValidator
	jwtSecret []byte
	log       *slog.Logger
	now       func() time.Time
}

func NewAccountUsecase(
	customers repo.CustomerRepository,
	stores repo.StoreRepository,
	validator AccountValidator,
	jwtSecret string,
	log *slog.Logger,
) *AccountUsecase {
	return &AccountUsecase{
		customers: customers,
		stores:    stores,
		validator: validator,
		jwtSecret: []byte(jwtSecret),
		log:       log,
		now:       time.Now,
	}
}

func (u *AccountUsecase) Register(ctx context.Context, actor model.ActorType, in RegisterInput) (AuthOutput, error) {
	if !actor.Valid() {
		return AuthOutput{}, ValidationError("invalid account type")
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)

	if err := u.validator.ValidateRegister(ctx, actor, in); err != nil {
		return AuthOutput{}, err
	}

	pwHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		u.log.ErrorContext(ctx, "hash password failed", "err", err)
		return AuthOutput{}, Internal()
	}

	var acc AccountOutput
	switch actor {
	case model.ActorStore:
		s, err := u.stores.Create(ctx, model.Store{
			Name:         in.Name,
			Email:        in.Email,
			PasswordHash: string(pwHash),
			IsActive:     true,
			Category:     strings.TrimSpace(in.Category),
			Address:      strings.TrimSpace(in.Address),
			Phone:        strings.TrimSpace(in.Phone),
		})
		if err != nil {
			return AuthOutput{}, u.createError(ctx, err)
		}
		acc = storeAccount(s)
	default:
		c, err := u.customers.Create(ctx, model.Customer{
			Name:         in.Name,
			Email:        in.Email,
			PasswordHash: string(pwHash),
		})
		if err != nil {
			return AuthOutput{}, u.createError(ctx, err)
		}
		acc = customerAccount(c)
	}

	return u.authOutput(ctx, acc)
}

func (u *AccountUsecase) Login(ctx context.Context, actor model.ActorType, in LoginInput) (AuthOutput, error) {
	if !actor.Valid() {
		return AuthOutput{}, ValidationError("invalid account type")
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := u.validator.ValidateLogin(ctx, email, in.Password); err != nil {
		return AuthOutput{}, err
	}

	var (
		acc    AccountOutput
		pwHash string
		err    error
	)
	switch actor {
	case model.ActorStore:
		var s model.Store
		s, err = u.stores.FindByEmail(ctx, email)
		acc, pwHash = storeAccount(s), s.PasswordHash
	default:
		var c model.Customer
		c, err = u.customers.FindByEmail(ctx, email)
		acc, pwHash = customerAccount(c), c.PasswordHash
	}
	if errors.Is(err, repo.ErrNotFound) {
		return AuthOutput{}, Unauthorized("invalid email or password")
	}
	if err != nil {
		u.log.ErrorContext(ctx, "find account failed", "err", err)
		return AuthOutput{}, Internal()
	}

	//パスワード照合（bcrypt）
	if err := bcrypt.CompareHashAndPassword([]byte(pwHash), []byte(in.Password)); err != nil {
		return AuthOutput{}, Unauthorized("invalid email or password")
	}
	if !acc.IsActive {
		return AuthOutput{}, Forbidden("account is inactive")
	}

	return u.authOutput(ctx, acc)
}

func (u *AccountUsecase) createError(ctx context.Context, err error) error {
	if errors.Is(err, repo.ErrDuplicate) {
		return Conflict("email already used")
	}
	u.log.ErrorContext(ctx, "create account failed", "err", err)
	return Internal()
}

func (u *AccountUsecase) authOutput(ctx context.Context, acc AccountOutput) (AuthOutput, error) {
	token, err := u.issueAccessToken(acc)
	if err != nil {
		u.log.ErrorContext(ctx, "issue token failed", "err", err)
		return AuthOutput{}, Internal()
	}
	return AuthOutput{
		Account: acc,
		Token: AccessToken{
			AccessToken: token,
			ExpiresIn:   int(accessTokenTTL.Seconds()),
		},
	}, nil
}

// jwt発行（sub=ID, actor=customer/store）
func (u *AccountUsecase) issueAccessToken(acc AccountOutput) (string, error) {
	now := u.now()
	claims := jwt.MapClaims{
		"sub":   strconv.FormatInt(acc.ID, 10),
		"actor": string(acc.Type),
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   now.Add(accessTokenTTL).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(u.jwtSecret)
}

func storeAccount(s model.Store) AccountOutput {
	return AccountOutput{ID: s.ID, Type: model.ActorStore, Name: s.Name, Email: s.Email, IsActive: s.IsActive}
}

// 顧客に無効化はないので常にtrue
func customerAccount(c model.Customer) AccountOutput {
	return AccountOutput{ID: c.ID, Type: model.ActorCustomer, Name: c.Name, Email: c.Email, IsActive: true}
}
