package matching

import (
	"github.com/buildquote/matchline/internal/matching/candidate"
	"github.com/buildquote/matchline/internal/matching/repository"
	"github.com/buildquote/matchline/internal/matching/service"
	"go.uber.org/fx"
)

var Module = fx.Module("matching",
	fx.Provide(candidate.New),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
