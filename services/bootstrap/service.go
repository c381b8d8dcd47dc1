package bootstrap

import (
	"context"
	"fmt"

	"chwone-controlplane/services/license"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

type ServiceParams struct {
	fx.In
	DB *gorm.DB
}

func NewService(p ServiceParams) *Service {
	return &Service{db: p.DB}
}

// Migrate creates or alters the license tables.
func (s *Service) Migrate(ctx context.Context) error {
	models := license.Models()
	if err := s.db.WithContext(ctx).AutoMigrate(models...); err != nil {
		zap.L().Error("[bootstrap] migration failed", zap.Error(err))
		return fmt.Errorf("migrate license tables: %w", err)
	}
	zap.L().Info("[bootstrap] schema migrated", zap.Int("tables", len(models)))
	return nil
}
