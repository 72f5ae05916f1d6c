package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"travel-booking-payments/internal/domain"
	"travel-booking-payments/internal/domain/model"
	"travel-booking-payments/internal/domain/ports/repository"
)

var _ repository.PackageRepository = (*packageRepo)(nil)

type packageRepo struct{ pool *pgxpool.Pool }

func NewPackageRepo(pool *pgxpool.Pool) *packageRepo {
	return &packageRepo{pool: pool}
}

const packageColumns = `id, name, type, price, credits, cashback, active, created_at, updated_at`

func scanPackage(row pgx.Row) (*model.Package, error) {
	pkg := &model.Package{}
	err := row.Scan(&pkg.ID, &pkg.Name, &pkg.Type, &pkg.Price, &pkg.Credits, &pkg.Cashback, &pkg.Active, &pkg.CreatedAt, &pkg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return pkg, nil
}

func (r *packageRepo) Save(ctx context.Context, tx repository.Tx, pkg *model.Package) error {
	const q = `
INSERT INTO packages (
  id, name, type, price, credits, cashback, active, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9
) ON CONFLICT (id) DO UPDATE SET
  name=$2, type=$3, price=$4, credits=$5, cashback=$6, active=$7, updated_at=$9;`

	_, err := execSQL(ctx, r.pool, tx, q, pkg.ID, pkg.Name, pkg.Type, pkg.Price, pkg.Credits, pkg.Cashback, pkg.Active, pkg.CreatedAt, pkg.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *packageRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Package, error) {
	const q = `SELECT ` + packageColumns + ` FROM packages WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPackage(row)
}

func (r *packageRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Package, error) {
	const q = `SELECT ` + packageColumns + ` FROM packages WHERE active ORDER BY created_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Package
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pkg)
	}
	return out, nil
}
