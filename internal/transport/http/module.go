package http

import (
	"go.uber.org/fx"

	authtransport "github.com/Additional-Code/procura/internal/transport/http/auth"
	invoicetransport "github.com/Additional-Code/procura/internal/transport/http/invoice"
	purchaseordertransport "github.com/Additional-Code/procura/internal/transport/http/purchaseorder"
	suppliertransport "github.com/Additional-Code/procura/internal/transport/http/supplier"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	authtransport.Module,
	purchaseordertransport.Module,
	suppliertransport.Module,
	invoicetransport.Module,
)
