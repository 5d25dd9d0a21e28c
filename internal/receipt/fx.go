package receipt

import (
	"github.com/jkvis/donateflow/internal/config"
	"github.com/jkvis/donateflow/internal/providers/artifact"
	"github.com/jkvis/donateflow/internal/receipt/delivery"
	receiptdomain "github.com/jkvis/donateflow/internal/receipt/domain"
	"github.com/jkvis/donateflow/internal/receipt/render"
	"github.com/jkvis/donateflow/internal/receipt/service"
	"github.com/jkvis/donateflow/pkg/repository"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("receipt",
	fx.Provide(func(db *gorm.DB) repository.Repository[receiptdomain.Receipt] {
		return repository.ProvideStore[receiptdomain.Receipt](db)
	}),
	fx.Provide(func(cfg config.Config) (artifact.Store, error) {
		return artifact.NewFileStore(cfg.ArtifactDir)
	}),
	fx.Provide(render.NewRenderer),
	fx.Provide(service.NewService),
	fx.Provide(delivery.NewDispatcher),
)
