package service

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/protomind/user-service/internal/core/domain"
	"github.com/protomind/user-service/internal/core/ports"
)

// AuthService implements login and email confirmation.
type AuthService struct {
	repo      ports.UserRepository
	codes     ports.ConfirmationStore
	jwtSecret string
	tokenTTL  time.Duration
}

func NewAuthService(repo ports.UserRepository, codes ports.ConfirmationStore, jwtSecret string, tokenTTL time.Duration) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{repo: repo, codes: codes, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	if email == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}
	if user.Blocked {
		return "", nil, domain.ErrUserBlocked
	}
	// External accounts may exist without a password.
	if user.PasswordHash == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return "", nil, err
	}

	return token, user, nil
}

// ConfirmEmail redeems the code sent in the confirm-email link and sets the
// account password chosen by its owner.
func (s *AuthService) ConfirmEmail(ctx context.Context, email, code, password string) (*domain.User, error) {
	if email == "" || code == "" || password == "" {
		return nil, domain.ErrInvalidConfirmationCode
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	ok, err := s.codes.Consume(ctx, email, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInvalidConfirmationCode
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.repo.SetPassword(ctx, user.ID, hash, now); err != nil {
		return nil, err
	}

	user.PasswordHash = hash
	user.EmailVerifiedAt = &now
	user.UpdatedAt = now
	return user, nil
}

func (s *AuthService) generateToken(user *domain.User) (string, error) {
	roles := make([]string, 0, len(user.Roles))
	for _, r := range user.Roles {
		roles = append(roles, r.String())
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"roles": roles,
		"iat":   now.Unix(),
		"exp":   now.Add(s.tokenTTL).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}
