package services

import (
	"errors"

	"contagem/internal/domain"
	"contagem/internal/repos"
	"contagem/internal/validate"

	"golang.org/x/crypto/bcrypt"
)

var ErrBadCreds = errors.New("invalid email or password")

// AuthService binds operator accounts to the sid cookie. The same sid keys
// the operator's counting station.
type AuthService struct {
	Users *repos.UserRepo
}

func (s *AuthService) Login(sid, email, password string) (*domain.User, error) {
	email, ok := validate.Email(email)
	if !ok || password == "" {
		return nil, ErrBadCreds
	}
	u, err := s.Users.ByEmail(email)
	if err != nil {
		return nil, ErrBadCreds
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return nil, ErrBadCreds
	}
	if err := s.Users.BindSession(sid, u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *AuthService) Logout(sid string) error {
	return s.Users.UnbindSession(sid)
}

func (s *AuthService) CurrentUser(sid string) (*domain.User, error) {
	if sid == "" {
		return nil, ErrBadCreds
	}
	return s.Users.SessionUser(sid)
}
