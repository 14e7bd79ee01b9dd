package purchaseorder

import "go.uber.org/fx"

// Module provides the purchase order repository to Fx.
var Module = fx.Provide(NewRepository)
