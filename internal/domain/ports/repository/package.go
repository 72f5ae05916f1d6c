package repository

import (
	"context"

	"travel-booking-payments/internal/domain/model"
)

type PackageRepository interface {
	Save(ctx context.Context, tx Tx, pkg *model.Package) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Package, error)
	ListActive(ctx context.Context, tx Tx) ([]*model.Package, error)
}
