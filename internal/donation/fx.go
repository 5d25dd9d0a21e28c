package donation

import (
	donationdomain "github.com/jkvis/donateflow/internal/donation/domain"
	"github.com/jkvis/donateflow/internal/donation/service"
	"github.com/jkvis/donateflow/pkg/repository"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("donation.service",
	fx.Provide(func(db *gorm.DB) repository.Repository[donationdomain.Donation] {
		return repository.ProvideStore[donationdomain.Donation](db)
	}),
	fx.Provide(service.NewService),
)
