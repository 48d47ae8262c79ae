package audit

import (
	"github.com/buildquote/matchline/internal/audit/repository"
	"github.com/buildquote/matchline/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
