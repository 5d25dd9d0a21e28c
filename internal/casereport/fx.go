package casereport

import (
	"github.com/jkvis/donateflow/internal/casereport/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("casereport",
	fx.Provide(repository.Provide),
)
