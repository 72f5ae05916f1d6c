package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"travel-booking-payments/internal/domain/model"
	"travel-booking-payments/internal/domain/ports/repository"
	"travel-booking-payments/internal/infra/metrics"
	red "travel-booking-payments/internal/infra/redis"
)

var _ repository.PackageRepository = (*packageRepoCacheDecorator)(nil)

// packageRepoCacheDecorator is a read-through cache over the catalog. The
// catalog is read on every checkout and changes rarely, so both single
// lookups and the active list are cached with write-path invalidation.
type packageRepoCacheDecorator struct {
	inner repository.PackageRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewPackageRepoCacheDecorator(inner repository.PackageRepository, cache red.RedisClient) repository.PackageRepository {
	return &packageRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   1 * time.Hour,
	}
}

func (d *packageRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Package, error) {
	key := fmt.Sprintf("package:%s", id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		metrics.IncCacheRequest("package", "hit")
		var pkg model.Package
		if json.Unmarshal([]byte(val), &pkg) == nil {
			return &pkg, nil
		}
	}

	metrics.IncCacheRequest("package", "miss")
	pkg, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if pkg != nil {
		bytes, _ := json.Marshal(pkg)
		d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return pkg, nil
}

func (d *packageRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, pkg *model.Package) error {
	d.cache.Del(ctx, fmt.Sprintf("package:%s", pkg.ID))
	d.cache.Del(ctx, "packages:active")
	return d.inner.Save(ctx, tx, pkg)
}

func (d *packageRepoCacheDecorator) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Package, error) {
	key := "packages:active"
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		metrics.IncCacheRequest("package_list", "hit")
		var pkgs []*model.Package
		if json.Unmarshal([]byte(val), &pkgs) == nil {
			return pkgs, nil
		}
	}

	metrics.IncCacheRequest("package_list", "miss")
	pkgs, err := d.inner.ListActive(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(pkgs) > 0 {
		bytes, _ := json.Marshal(pkgs)
		d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return pkgs, nil
}
