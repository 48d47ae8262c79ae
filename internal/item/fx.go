package item

import (
	"github.com/buildquote/matchline/internal/item/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("item",
	fx.Provide(repository.Provide),
)
