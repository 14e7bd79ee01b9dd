package purchaseorder

import "go.uber.org/fx"

// Module wires the purchase order and site routes.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)
