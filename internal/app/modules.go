package app

import (
	"github.com/specialistvlad/sweptgrid/internal/registry"
	"github.com/specialistvlad/sweptgrid/modules/constant"
	"github.com/specialistvlad/sweptgrid/modules/gaussian"
	"github.com/specialistvlad/sweptgrid/modules/heat"
	"github.com/specialistvlad/sweptgrid/modules/identity"
	"github.com/specialistvlad/sweptgrid/modules/increment"
)

// coreModules is the definitive list of all plugins that are compiled into
// the sweptgrid binary.
var coreModules = []registry.Module{
	&identity.Module{},
	&increment.Module{},
	&heat.Module{},
	&constant.Module{},
	&gaussian.Module{},
}
