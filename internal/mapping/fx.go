package mapping

import (
	"github.com/buildquote/matchline/internal/mapping/repository"
	"github.com/buildquote/matchline/internal/mapping/service"
	"go.uber.org/fx"
)

var Module = fx.Module("mapping",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
