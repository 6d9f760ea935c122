package users

import (
	"context"
	"fmt"
	"strings"

	pkgerrors "github.com/Syntia28/nikos/pkg/errors"
)

// Service reads user profiles.
type Service interface {
	Profile(ctx context.Context, uid string) (*Profile, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Profile(ctx context.Context, uid string) (*Profile, error) {
	if strings.TrimSpace(uid) == "" {
		return nil, pkgerrors.SignInRequired()
	}
	acc, err := s.repo.FindByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	return acc.ToProfile(), nil
}
