package main

import (
	"fmt"

	"github.com/mitarbeiterportal/portal/pkg/config"
	"github.com/mitarbeiterportal/portal/pkg/db"
	"github.com/mitarbeiterportal/portal/pkg/portal"
	vaultgorm "github.com/mitarbeiterportal/portal/pkg/vault/gorm"
)

// openServices connects to DATABASE_URL for the administrative commands.
func openServices() (*portal.Services, func(), error) {
	conn, err := db.Connect(db.Config{MaxOpenConns: 2})
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { _ = sqlDB.Close() }

	store, err := vaultgorm.NewStore(conn, portal.Schema)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("failed to open vault: %w", err)
	}
	return portal.NewServices(store, settingsFrom(config.Get())), closeFn, nil
}
