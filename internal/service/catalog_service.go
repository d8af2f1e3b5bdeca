package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/fixaro/marketplace-core/internal/model"
	"github.com/fixaro/marketplace-core/internal/repository"
)

// CatalogService — справочник акторов и услуг: создание записей каталога
// и листинги. Бизнес-правил здесь нет, только существование сущностей
// для ядра расписания.
type CatalogService struct {
	providers repository.ProviderRepository
	customers repository.CustomerRepository
	services  repository.ServiceRepository
}

func NewCatalogService(
	providers repository.ProviderRepository,
	customers repository.CustomerRepository,
	services repository.ServiceRepository,
) *CatalogService {
	return &CatalogService{providers: providers, customers: customers, services: services}
}

func (s *CatalogService) CreateProvider(ctx context.Context, displayName, description, phone string) (*model.Provider, error) {
	if displayName == "" {
		return nil, fmt.Errorf("%w: display name is required", ErrInvalidInput)
	}
	p := &model.Provider{
		DisplayName:  displayName,
		Description:  description,
		ContactPhone: phone,
	}
	if err := s.providers.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *CatalogService) CreateCustomer(ctx context.Context, displayName, phone string) (*model.Customer, error) {
	if displayName == "" {
		return nil, fmt.Errorf("%w: display name is required", ErrInvalidInput)
	}
	c := &model.Customer{
		DisplayName:  displayName,
		ContactPhone: phone,
	}
	if err := s.customers.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CatalogService) CreateService(ctx context.Context, name, description string, durationMin *int64) (*model.Service, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	svc := &model.Service{
		Name:               name,
		Description:        description,
		DefaultDurationMin: durationMin,
		IsActive:           true,
	}
	if err := s.services.Create(ctx, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

// ListServices — каталог услуг с пагинацией.
func (s *CatalogService) ListServices(ctx context.Context, onlyActive bool, limit, offset int) ([]model.Service, int64, error) {
	return s.services.List(ctx, onlyActive, limit, offset)
}

// ListProviderServices — услуги, которые оказывает провайдер.
func (s *CatalogService) ListProviderServices(ctx context.Context, providerID string) ([]model.Service, error) {
	provider, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: provider %s", ErrNotFound, providerID)
		}
		return nil, err
	}
	return s.services.ListByProvider(ctx, provider.ID)
}
