package service

import (
	"context"

	"github.com/freelanceflow/freelanceflow/internal/api/dto"
	"github.com/freelanceflow/freelanceflow/internal/cache"
	"github.com/freelanceflow/freelanceflow/internal/domain/settings"
	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/types"
)

// SettingsService manages the freelancer's billing settings
type SettingsService interface {
	// GetSettings returns the freelancer's settings, creating the defaults on first access
	GetSettings(ctx context.Context) (*dto.SettingsResponse, error)
	UpdateSettings(ctx context.Context, req dto.UpdateSettingsRequest) (*dto.SettingsResponse, error)
}

type settingsService struct {
	ServiceParams
}

func NewSettingsService(params ServiceParams) SettingsService {
	return &settingsService{ServiceParams: params}
}

func (s *settingsService) GetSettings(ctx context.Context) (*dto.SettingsResponse, error) {
	if err := types.ValidateFreelancerContext(ctx); err != nil {
		return nil, err
	}

	key := settingsCacheKey(ctx)
	if s.Cache != nil {
		if cached, found := s.Cache.Get(ctx, key); found {
			if setting, ok := cached.(settings.FreelancerSetting); ok {
				return &dto.SettingsResponse{FreelancerSetting: &setting}, nil
			}
		}
	}

	setting, err := getOrCreateSettings(ctx, s.ServiceParams)
	if err != nil {
		return nil, err
	}

	if s.Cache != nil {
		s.Cache.Set(ctx, key, *setting, 0)
	}
	return &dto.SettingsResponse{FreelancerSetting: setting}, nil
}

func (s *settingsService) UpdateSettings(ctx context.Context, req dto.UpdateSettingsRequest) (*dto.SettingsResponse, error) {
	if err := types.ValidateFreelancerContext(ctx); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var updated *settings.FreelancerSetting
	err := s.DB.WithTx(ctx, func(txCtx context.Context) error {
		setting, err := s.SettingsRepo.GetForUpdate(txCtx)
		if ierr.IsNotFound(err) {
			if err := createDefaultSettings(txCtx, s.ServiceParams); err != nil {
				return err
			}
			setting, err = s.SettingsRepo.GetForUpdate(txCtx)
		}
		if err != nil {
			return err
		}

		req.ApplyTo(setting)
		if err := setting.Validate(); err != nil {
			return err
		}
		setting.UpdatedAt = s.now()

		if err := s.SettingsRepo.Update(txCtx, setting); err != nil {
			if ierr.IsAlreadyExists(err) {
				return ierr.WithError(err).
					WithHintf("Invoice prefix %s is already used by another freelancer", setting.InvoicePrefix).
					WithReportableDetails(map[string]any{
						"invoice_prefix": setting.InvoicePrefix,
					}).
					Mark(ierr.ErrAlreadyExists)
			}
			return err
		}
		updated = setting
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateSettings(ctx)

	s.Logger.Infow("updated freelancer settings",
		"freelancer_id", updated.FreelancerID,
		"invoice_prefix", updated.InvoicePrefix,
	)
	return &dto.SettingsResponse{FreelancerSetting: updated}, nil
}

func (s *settingsService) invalidateSettings(ctx context.Context) {
	if s.Cache != nil {
		s.Cache.Delete(ctx, settingsCacheKey(ctx))
	}
}

func settingsCacheKey(ctx context.Context) string {
	return cache.GenerateKey(cache.PrefixSettings, types.GetFreelancerID(ctx))
}

// getOrCreateSettings reads the settings without locking, inserting the defaults when missing
func getOrCreateSettings(ctx context.Context, p ServiceParams) (*settings.FreelancerSetting, error) {
	setting, err := p.SettingsRepo.Get(ctx)
	if err == nil {
		return setting, nil
	}
	if !ierr.IsNotFound(err) {
		return nil, err
	}

	if err := createDefaultSettings(ctx, p); err != nil {
		return nil, err
	}
	return p.SettingsRepo.Get(ctx)
}
