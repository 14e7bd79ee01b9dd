package app

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/audit"
	"github.com/Additional-Code/procura/internal/cache"
	"github.com/Additional-Code/procura/internal/config"
	"github.com/Additional-Code/procura/internal/database"
	"github.com/Additional-Code/procura/internal/logger"
	"github.com/Additional-Code/procura/internal/maintenance"
	"github.com/Additional-Code/procura/internal/messaging"
	"github.com/Additional-Code/procura/internal/migration"
	"github.com/Additional-Code/procura/internal/observability"
	invoicerepo "github.com/Additional-Code/procura/internal/repository/invoice"
	purchaseorderrepo "github.com/Additional-Code/procura/internal/repository/purchaseorder"
	supplierrepo "github.com/Additional-Code/procura/internal/repository/supplier"
	userrepo "github.com/Additional-Code/procura/internal/repository/user"
	"github.com/Additional-Code/procura/internal/seeder"
	grpcserver "github.com/Additional-Code/procura/internal/server/grpc"
	httpserver "github.com/Additional-Code/procura/internal/server/http"
	authsvc "github.com/Additional-Code/procura/internal/service/auth"
	invoicesvc "github.com/Additional-Code/procura/internal/service/invoice"
	purchaseordersvc "github.com/Additional-Code/procura/internal/service/purchaseorder"
	suppliersvc "github.com/Additional-Code/procura/internal/service/supplier"
	transporthttp "github.com/Additional-Code/procura/internal/transport/http"
	"github.com/Additional-Code/procura/internal/worker"
	workerpurchaseorder "github.com/Additional-Code/procura/internal/worker/purchaseorder"
)

// Infra provides configuration, logging and storage without domain services.
var Infra = fx.Options(
	config.Module,
	logger.Module,
	database.Module,
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	Infra,
	cache.Module,
	messaging.Module,
	observability.Module,
	purchaseorderrepo.Module,
	supplierrepo.Module,
	userrepo.Module,
	invoicerepo.Module,
	purchaseordersvc.Module,
	suppliersvc.Module,
	authsvc.Module,
	invoicesvc.Module,
)

// Logged routes Fx lifecycle events through the application logger.
var Logged = fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
	return &fxevent.ZapLogger{Logger: l.Named("fx")}
})

// HTTP wires the HTTP and gRPC servers on top of the core modules.
var HTTP = fx.Options(
	Core,
	Logged,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker consumes purchase-order events into the audit store and notifications.
var Worker = fx.Options(
	Core,
	Logged,
	audit.Module,
	worker.Module,
	workerpurchaseorder.Module,
)

// Migrate exposes the schema migrator.
var Migrate = fx.Options(Infra, migration.Module)

// Seed exposes the development data seeder.
var Seed = fx.Options(Infra, seeder.Module)

// Maintenance exposes destructive data operations.
var Maintenance = fx.Options(Infra, maintenance.Module)

// Module is the default application wiring.
var Module = HTTP
