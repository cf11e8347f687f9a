package donor

import (
	"go.uber.org/fx"

	"github.com/sudocentral/paypal-mailwizz/internal/donor/repository"
)

var Module = fx.Module("donor",
	fx.Provide(repository.Provide),
)
