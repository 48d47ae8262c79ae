package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/buildquote/matchline/internal/clock"
	"github.com/buildquote/matchline/internal/config"
	"github.com/buildquote/matchline/internal/migration"
	"github.com/buildquote/matchline/internal/observability"
	"github.com/buildquote/matchline/internal/seed"
	"github.com/buildquote/matchline/internal/server"
	"github.com/buildquote/matchline/pkg/db"
)

func main() {
	app := fx.New(
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,

		fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
			if cfg.IsCloud() {
				return nil
			}
			return seed.EnsureDemoData(conn)
		}),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
