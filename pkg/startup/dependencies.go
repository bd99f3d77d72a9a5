package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/repositories/allocation"
	"github.com/Ramsey-B/fern/internal/repositories/cabinet"
	cablerepo "github.com/Ramsey-B/fern/internal/repositories/cable"
	"github.com/Ramsey-B/fern/internal/repositories/panel"
	poolrepo "github.com/Ramsey-B/fern/internal/repositories/pool"
	portrepo "github.com/Ramsey-B/fern/internal/repositories/port"
	"github.com/Ramsey-B/fern/internal/repositories/printtask"
	roomrepo "github.com/Ramsey-B/fern/internal/repositories/room"
	"github.com/Ramsey-B/fern/internal/repositories/sequence"
	"github.com/Ramsey-B/fern/pkg/assets"
	"github.com/Ramsey-B/fern/pkg/cabling"
	"github.com/Ramsey-B/fern/pkg/connectivity"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/identity"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// DatabaseDependency connects to PostgreSQL and runs schema migrations.
type DatabaseDependency struct {
	Config *config.Config
	Logger ectologger.Logger
	DB     database.DB
}

func (d *DatabaseDependency) GetName() string     { return "database" }
func (d *DatabaseDependency) DependsOn() []string { return nil }

func (d *DatabaseDependency) Start(ctx context.Context) error {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Config.DatabaseHost,
		d.Config.DatabasePort,
		d.Config.DatabaseUserName,
		d.Config.DatabasePassword,
		d.Config.DatabaseName,
		d.Config.DatabaseSSLMode,
	)

	db, err := sqlx.ConnectContext(ctx, d.Config.DatabaseDriver, dsn)
	if err != nil {
		return errors.Wrap(err, "failed to connect to database")
	}

	db.SetMaxOpenConns(d.Config.DatabaseMaxOpenConns)
	db.SetMaxIdleConns(d.Config.DatabaseMaxIdleConns)
	db.SetConnMaxLifetime(d.Config.DatabaseConnMaxLifetime)

	driver, err := migratepostgres.WithInstance(db.DB, &migratepostgres.Config{})
	if err != nil {
		return errors.Wrap(err, "failed to create migration driver")
	}

	migrations := database.NewMigrationService(d.Logger, &database.MigrationConfig{
		MigrationFolderPath: d.Config.DatabaseMigrationFolderPath,
		Version:             uint(d.Config.DatabaseMigrationVersion),
		Force:               d.Config.DatabaseMigrationForce,
		AutoRollback:        d.Config.DatabaseMigrationAutoRollback,
	})
	if err := migrations.Migrate(d.Config.DatabaseName, driver); err != nil {
		return errors.Wrap(err, "failed to run migrations")
	}

	d.DB = database.NewDatabaseInstance(db, d.Logger)
	return nil
}

func (d *DatabaseDependency) Stop(ctx context.Context) error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}

// GraphDependency connects to the graph database holding the cabling graph.
type GraphDependency struct {
	Config *config.Config
	Logger ectologger.Logger
	Client *connectivity.Client
}

func (d *GraphDependency) GetName() string     { return "graph" }
func (d *GraphDependency) DependsOn() []string { return nil }

func (d *GraphDependency) Start(ctx context.Context) error {
	client, err := connectivity.NewClient(connectivity.Config{
		Host:     d.Config.GraphDBHost,
		Port:     d.Config.GraphDBPort,
		Username: d.Config.GraphDBUser,
		Password: d.Config.GraphDBPassword,
	}, d.Logger)
	if err != nil {
		return errors.Wrap(err, "failed to create graph client")
	}

	if err := client.VerifyConnectivity(ctx); err != nil {
		return errors.Wrap(err, "failed to verify graph connectivity")
	}

	d.Client = client
	return nil
}

func (d *GraphDependency) Stop(ctx context.Context) error {
	if d.Client == nil {
		return nil
	}
	return d.Client.Close(ctx)
}

// TracingDependency installs the OTLP tracer provider.
type TracingDependency struct {
	Config   *config.Config
	Logger   ectologger.Logger
	provider *sdktrace.TracerProvider
}

func (d *TracingDependency) GetName() string     { return "tracing" }
func (d *TracingDependency) DependsOn() []string { return nil }

func (d *TracingDependency) Start(ctx context.Context) error {
	provider, err := tracing.NewProvider(ctx, tracing.ProviderConfig{
		ServiceName:  d.Config.AppName,
		Enabled:      d.Config.TracingEnabled,
		OTLPEndpoint: d.Config.TracingOTLPEndpoint,
		OTLPProtocol: d.Config.TracingOTLPProtocol,
		OTLPInsecure: d.Config.TracingOTLPInsecure,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create tracer provider")
	}

	d.provider = provider
	return nil
}

func (d *TracingDependency) Stop(ctx context.Context) error {
	if d.provider == nil {
		return nil
	}
	return d.provider.Shutdown(ctx)
}

// KafkaDependency owns the event producer. The writer only dials on first
// publish, so startup never blocks on the brokers.
type KafkaDependency struct {
	Config   *config.Config
	Logger   ectologger.Logger
	Producer *kafka.Producer
}

func (d *KafkaDependency) GetName() string     { return "kafka" }
func (d *KafkaDependency) DependsOn() []string { return nil }

func (d *KafkaDependency) Start(ctx context.Context) error {
	d.Producer = kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      d.Config.KafkaBrokers,
		Topic:        d.Config.KafkaOutputTopic,
		BatchSize:    d.Config.KafkaBatchSize,
		BatchTimeout: time.Duration(d.Config.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: d.Config.KafkaRequiredAcks,
		Compression:  d.Config.KafkaCompression,
	}, d.Logger)
	return nil
}

func (d *KafkaDependency) Stop(ctx context.Context) error {
	if d.Producer == nil {
		return nil
	}
	return d.Producer.Close()
}

// ContainerDependency assembles the repositories and services and registers
// them in the DI container the route handlers resolve from.
type ContainerDependency struct {
	Config   *config.Config
	Logger   ectologger.Logger
	Database *DatabaseDependency
	Graph    *GraphDependency
	Kafka    *KafkaDependency
}

func (d *ContainerDependency) GetName() string { return "container" }
func (d *ContainerDependency) DependsOn() []string {
	return []string{"database", "graph", "kafka"}
}

func (d *ContainerDependency) Start(ctx context.Context) error {
	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		return errors.Wrap(err, "failed to create DI container")
	}

	db := d.Database.DB

	sequenceRepo := sequence.NewRepository(db, d.Logger)
	allocationRepo := allocation.NewRepository(db, d.Logger)
	poolRepo := poolrepo.NewRepository(db, d.Logger)
	printTaskRepo := printtask.NewRepository(db, d.Logger)
	roomRepo := roomrepo.NewRepository(db, d.Logger)
	cabinetRepo := cabinet.NewRepository(db, d.Logger)
	panelRepo := panel.NewRepository(db, d.Logger)
	portRepo := portrepo.NewRepository(db, d.Logger)
	cableRepo := cablerepo.NewRepository(db, d.Logger)

	allocator := identity.NewAllocator(db, sequenceRepo, allocationRepo, poolRepo, d.Logger, identity.Config{
		Prefix: d.Config.ShortIDPrefix,
		Width:  d.Config.ShortIDWidth,
	})
	ledger := identity.NewLedger(db, sequenceRepo, allocationRepo, poolRepo, d.Logger)
	printTasks := identity.NewPrintTasks(db, printTaskRepo, poolRepo, ledger, allocator, d.Logger)

	graph := connectivity.NewGraph(d.Graph.Client, d.Logger)
	resolver := connectivity.NewResolver(graph, d.Logger, connectivity.ResolverConfig{
		DefaultDepth: d.Config.TopologyDefaultDepth,
		MaxDepth:     d.Config.TopologyMaxDepth,
	})

	emitter := events.NewEmitter(d.Kafka.Producer, d.Logger)

	assetService := assets.NewService(db, roomRepo, cabinetRepo, panelRepo, portRepo, cableRepo, allocator, graph, emitter, d.Logger)
	cablingService := cabling.NewService(db, cableRepo, portRepo, allocator, ledger, graph, emitter, d.Logger)

	registrations := []error{
		ectoinject.RegisterInstance[ectologger.Logger](container, d.Logger),
		ectoinject.RegisterInstance[database.DB](container, db),
		ectoinject.RegisterInstance[*identity.Allocator](container, allocator),
		ectoinject.RegisterInstance[*identity.Ledger](container, ledger),
		ectoinject.RegisterInstance[*identity.PrintTasks](container, printTasks),
		ectoinject.RegisterInstance[*connectivity.Graph](container, graph),
		ectoinject.RegisterInstance[*connectivity.Resolver](container, resolver),
		ectoinject.RegisterInstance[*events.Emitter](container, emitter),
		ectoinject.RegisterInstance[*assets.Service](container, assetService),
		ectoinject.RegisterInstance[*cabling.Service](container, cablingService),
	}
	for _, err := range registrations {
		if err != nil {
			return errors.Wrap(err, "failed to register dependency")
		}
	}

	return nil
}

func (d *ContainerDependency) Stop(ctx context.Context) error {
	return nil
}
