package classifier

import (
	"github.com/buildquote/matchline/internal/classifier/repository"
	"github.com/buildquote/matchline/internal/classifier/service"
	"go.uber.org/fx"
)

var Module = fx.Module("classifier",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
