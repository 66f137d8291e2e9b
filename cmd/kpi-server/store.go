package main

import (
	"context"
	"fmt"

	"github.com/hospitalkpi/kpi/internal/config"
	"github.com/hospitalkpi/kpi/internal/domain/hospital"
	"github.com/hospitalkpi/kpi/internal/domain/identity"
	"github.com/hospitalkpi/kpi/internal/domain/kpi"
	"github.com/hospitalkpi/kpi/internal/platform/db"
)

// stores bundles the repositories for the configured driver.
type stores struct {
	Hospitals hospital.Repository
	Users     identity.Repository
	KPIs      kpi.Repository
	Health    db.Pinger
	closeFn   func()
}

func (s *stores) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		return openSQLiteStores(ctx, cfg.SQLitePath)
	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		return &stores{
			Hospitals: hospital.NewRepoPG(pool),
			Users:     identity.NewRepoPG(pool),
			KPIs:      kpi.NewRepoPG(pool),
			Health:    pool,
			closeFn:   pool.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func openSQLiteStores(ctx context.Context, path string) (*stores, error) {
	lite, err := db.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	return &stores{
		Hospitals: hospital.NewRepoSQLite(lite),
		Users:     identity.NewRepoSQLite(lite),
		KPIs:      kpi.NewRepoSQLite(lite),
		Health:    lite,
		closeFn:   func() { _ = lite.Close() },
	}, nil
}
