package access

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidToken       = errors.New("invalid token")
)

// Checker is the capability surface injected into the vault, treasury and
// oracle services. Implementations answer whether an account currently holds
// a role.
type Checker interface {
	HasRole(ctx context.Context, accountUUID, role string) (bool, error)
}

type AccountService interface {
	Checker

	Register(ctx context.Context, name, email, password, uuid string) (Account, error)
	Login(ctx context.Context, email, password string) (Account, string, error)
	GetAccount(ctx context.Context, uuid string) (Account, error)
	ListAccounts(ctx context.Context, page, limit int) ([]Account, int64, error)
	GrantRole(ctx context.Context, granterUUID, accountUUID, role string) (Account, error)
	RevokeRole(ctx context.Context, granterUUID, accountUUID, role string) (Account, error)
	VerifyToken(tokenString string) (string, error)
}

type accountService struct {
	repo      AccountRepository
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewAccountService(repo AccountRepository, jwtSecret []byte) AccountService {
	return &accountService{
		repo:      repo,
		jwtSecret: jwtSecret,
		tokenTTL:  24 * time.Hour,
	}
}

func (s *accountService) Register(ctx context.Context, name, email, password, uuid string) (Account, error) {
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, err
	}
	a, err := s.repo.CreateAccount(ctx, name, email, string(hashBytes), uuid, []string{})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, errors.New("account exists with that email")
		}
		return Account{}, err
	}
	return a, nil
}

func (s *accountService) Login(ctx context.Context, email, password string) (Account, string, error) {
	uuid, hash, err := s.repo.GetAccountAuthByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, "", ErrInvalidCredentials
		}
		return Account{}, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return Account{}, "", ErrInvalidCredentials
	}

	a, err := s.repo.GetAccountByUUID(ctx, uuid)
	if err != nil {
		return Account{}, "", err
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   a.UUID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		Issuer:    "primevault",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return Account{}, "", err
	}

	return a, signed, nil
}

// VerifyToken returns the account UUID carried by a valid bearer token.
func (s *accountService) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func (s *accountService) GetAccount(ctx context.Context, uuid string) (Account, error) {
	return s.repo.GetAccountByUUID(ctx, uuid)
}

func (s *accountService) ListAccounts(ctx context.Context, page, limit int) ([]Account, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	offset := (page - 1) * limit
	return s.repo.ListAccounts(ctx, limit, offset)
}

func (s *accountService) HasRole(ctx context.Context, accountUUID, role string) (bool, error) {
	a, err := s.repo.GetAccountByUUID(ctx, accountUUID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return false, nil
		}
		return false, err
	}
	return a.HasRole(role), nil
}

func (s *accountService) GrantRole(ctx context.Context, granterUUID, accountUUID, role string) (Account, error) {
	if !IsValidRole(role) {
		return Account{}, ErrInvalidRole
	}
	if err := s.requireGovernance(ctx, granterUUID); err != nil {
		return Account{}, err
	}

	a, err := s.repo.GetAccountByUUID(ctx, accountUUID)
	if err != nil {
		return Account{}, err
	}
	if a.HasRole(role) {
		return a, nil
	}
	return s.repo.SetRoles(ctx, accountUUID, append(a.Roles, role))
}

func (s *accountService) RevokeRole(ctx context.Context, granterUUID, accountUUID, role string) (Account, error) {
	if !IsValidRole(role) {
		return Account{}, ErrInvalidRole
	}
	if err := s.requireGovernance(ctx, granterUUID); err != nil {
		return Account{}, err
	}

	a, err := s.repo.GetAccountByUUID(ctx, accountUUID)
	if err != nil {
		return Account{}, err
	}
	roles := make([]string, 0, len(a.Roles))
	for _, r := range a.Roles {
		if r != role {
			roles = append(roles, r)
		}
	}
	return s.repo.SetRoles(ctx, accountUUID, roles)
}

var ErrNotAuthorized = errors.New("caller lacks required capability")

func (s *accountService) requireGovernance(ctx context.Context, uuid string) error {
	ok, err := s.HasRole(ctx, uuid, RoleGovernance)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAuthorized
	}
	return nil
}
