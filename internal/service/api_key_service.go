package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/draftwire/socialcast/internal/models"
	"github.com/draftwire/socialcast/internal/repository"
	"github.com/draftwire/socialcast/pkg/utils"
)

const maxApiKeysPerUser = 5

type ApiKeyService interface {
	Create(ctx context.Context, userID int64) (*models.ApiKey, error)
	List(ctx context.Context, userID int64) ([]*models.ApiKey, error)
	GetUserID(ctx context.Context, apiKey string) (int64, error)
	Remove(ctx context.Context, userID, keyID int64) error
}

type apiKeyService struct {
	k repository.ApiKeyRepository
}

func NewApiKeyService(k repository.ApiKeyRepository) ApiKeyService {
	return &apiKeyService{
		k: k,
	}
}

func (s *apiKeyService) Create(ctx context.Context, userID int64) (*models.ApiKey, error) {
	keys, err := s.k.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if len(keys) >= maxApiKeysPerUser {
		err = fmt.Errorf("only %d API keys can be created", maxApiKeysPerUser)
		slog.Info(err.Error())
		return nil, err
	}

	key, err := utils.GenerateRandomKey(16)
	if err != nil {
		slog.Info(err.Error())
		return nil, errors.New("error generating API key")
	}

	apiKey := models.ApiKey{
		UserID: userID,
		ApiKey: key,
	}

	id, err := s.k.Create(ctx, &apiKey)
	if err != nil {
		return nil, errors.New("error saving API key")
	}
	apiKey.ID = id

	return &apiKey, nil
}

func (s *apiKeyService) GetUserID(ctx context.Context, apiKey string) (int64, error) {
	userID, exists, err := s.k.GetByKey(ctx, apiKey)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, errors.New("key doesn't exist")
	}
	return userID, nil
}

func (s *apiKeyService) List(ctx context.Context, userID int64) ([]*models.ApiKey, error) {
	return s.k.GetByUserID(ctx, userID)
}

func (s *apiKeyService) Remove(ctx context.Context, userID, keyID int64) error {
	valid, err := s.k.CheckByUserID(ctx, keyID, userID)
	if err != nil {
		return err
	}
	if !valid {
		err = errors.New("key doesn't exist")
		slog.Info(err.Error())
		return err
	}
	return s.k.Remove(ctx, keyID)
}
