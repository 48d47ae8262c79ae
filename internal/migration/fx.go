package migration

import (
	auditdomain "github.com/buildquote/matchline/internal/audit/domain"
	catalogdomain "github.com/buildquote/matchline/internal/catalog/domain"
	classifierdomain "github.com/buildquote/matchline/internal/classifier/domain"
	"github.com/buildquote/matchline/internal/config"
	itemdomain "github.com/buildquote/matchline/internal/item/domain"
	mappingdomain "github.com/buildquote/matchline/internal/mapping/domain"
	matchingdomain "github.com/buildquote/matchline/internal/matching/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// Embedded SQL migrations target postgres; lighter dialects used
			// for development get the schema via AutoMigrate.
			return conn.AutoMigrate(
				&itemdomain.Item{},
				&catalogdomain.PriceEntry{},
				&classifierdomain.Rule{},
				&matchingdomain.MatchResult{},
				&mappingdomain.ItemMapping{},
				&auditdomain.AuditLog{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
