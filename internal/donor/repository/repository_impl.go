package repository

import (
	"github.com/jkvis/donateflow/internal/donor/domain"
	"github.com/jkvis/donateflow/pkg/repository"
	"gorm.io/gorm"
)

func Provide(db *gorm.DB) repository.Repository[domain.Donor] {
	return repository.ProvideStore[domain.Donor](db)
}
