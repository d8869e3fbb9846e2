package main

import (
	"context"
	"database/sql"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"obligo/internal/audit"
	"obligo/internal/compliance/catalog"
	"obligo/internal/compliance/dependency"
	"obligo/internal/compliance/escalation"
	"obligo/internal/compliance/generator"
	compliancehandler "obligo/internal/compliance/handler"
	compliancemetrics "obligo/internal/compliance/metrics"
	"obligo/internal/compliance/ports"
	"obligo/internal/compliance/ragengine"
	instancestore "obligo/internal/compliance/store/instance"
	masterstore "obligo/internal/compliance/store/master"
	taskstore "obligo/internal/compliance/store/task"
	"obligo/internal/compliance/workflow"
	"obligo/internal/notify"
	"obligo/internal/platform/config"
	"obligo/internal/platform/httpserver"
	"obligo/internal/platform/logger"
	platformmetrics "obligo/internal/platform/metrics"
	"obligo/internal/platform/middleware"
	platformpg "obligo/internal/platform/postgres"
	platformredis "obligo/internal/platform/redis"
	"obligo/internal/scheduler"
	tenanthandler "obligo/internal/tenant/handler"
	tenantmetrics "obligo/internal/tenant/metrics"
	tenantservice "obligo/internal/tenant/service"
	entitystore "obligo/internal/tenant/store/entity"
	rolestore "obligo/internal/tenant/store/role"
	tenantstore "obligo/internal/tenant/store/tenant"
	httptransport "obligo/internal/transport/http"
)

// masterStorage is the union of what the engines and the catalog need from
// the master store. Both the memory and postgres implementations satisfy it.
type masterStorage interface {
	generator.MasterStore
	catalog.MasterStore
}

type instanceStorage interface {
	generator.InstanceStore
	ragengine.InstanceStore
	dependency.InstanceStore
	escalation.InstanceStore
	workflow.InstanceStore
	tenantservice.InstancePurger
}

type taskStorage interface {
	generator.TaskStore
	workflow.TaskStore
}

type stores struct {
	masters   masterStorage
	instances instanceStorage
	tasks     taskStorage
	tenants   tenantservice.TenantStore
	entities  tenantservice.EntityStore
	roles     tenantservice.RoleStore
	audit     audit.Store
}

// main wires dependencies, starts the scheduler and the HTTP server, and
// handles graceful shutdown. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, db, err := buildStores(ctx, cfg)
	if err != nil {
		log.Error("storage setup failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	redisClient, err := platformredis.New(config.DefaultRedisConfig(cfg.RedisURL))
	if err != nil {
		log.Error("redis setup failed", "error", err)
		os.Exit(1)
	}
	var ledger escalation.Ledger
	if redisClient != nil {
		ledger = escalation.NewRedisLedger(redisClient)
		defer redisClient.Close()
	} else {
		ledger = escalation.NewMemoryLedger()
	}

	var notifier ports.Notifier
	if len(cfg.KafkaBrokers) > 0 {
		kafkaNotifier, err := notify.NewKafka(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			log.Error("kafka setup failed", "error", err)
			os.Exit(1)
		}
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
	} else {
		notifier = notify.NewLog(log)
	}

	auditPublisher, inbox := audit.NewChannelPublisher(log, 1024)
	auditWorker := audit.NewWorker(st.audit, inbox, log)
	go func() {
		_ = auditWorker.Run(ctx)
	}()

	complianceMetrics := compliancemetrics.New()

	tenantSvc := tenantservice.New(st.tenants, st.entities, st.roles,
		tenantservice.WithLogger(log),
		tenantservice.WithMetrics(tenantmetrics.New()),
		tenantservice.WithInstancePurger(st.instances),
	)

	gen := generator.New(st.masters, st.instances, st.tasks, tenantSvc,
		generator.WithLogger(log),
		generator.WithMetrics(complianceMetrics),
		generator.WithAuditPublisher(auditPublisher),
	)
	ragEngine := ragengine.New(st.instances, tenantSvc, cfg.AmberThresholdDays,
		ragengine.WithLogger(log),
		ragengine.WithMetrics(complianceMetrics),
		ragengine.WithAuditPublisher(auditPublisher),
	)
	resolver := dependency.New(st.instances, tenantSvc,
		dependency.WithLogger(log),
		dependency.WithMetrics(complianceMetrics),
		dependency.WithAuditPublisher(auditPublisher),
	)
	scanner := escalation.New(st.instances, tenantSvc, notifier, ledger,
		escalation.WithLogger(log),
		escalation.WithMetrics(complianceMetrics),
		escalation.WithAuditPublisher(auditPublisher),
	)

	sched := scheduler.New(jobTable(cfg, gen, ragEngine, resolver, scanner),
		scheduler.WithLogger(log),
	)
	sched.Start()
	defer sched.Stop()

	catalogSvc := catalog.New(st.masters, catalog.WithLogger(log))
	workflowSvc := workflow.New(st.instances, st.tasks,
		workflow.WithLogger(log),
		workflow.WithMetrics(complianceMetrics),
		workflow.WithAuditPublisher(auditPublisher),
	)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:       log,
		Metrics:      platformmetrics.New(),
		JWTValidator: middleware.NewHS256Validator(cfg.JWTSigningKey),
		Compliance:   compliancehandler.New(catalogSvc, workflowSvc, log),
		Tenants:      tenanthandler.New(tenantSvc, log),
		Triggers:     sched,
	})

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting obligo", "addr", cfg.Addr, "postgres", cfg.PostgresURL != "", "redis", redisClient != nil, "kafka", len(cfg.KafkaBrokers) > 0)

	if err := httpserver.Run(srv, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// buildStores selects postgres-backed stores when a URL is configured and
// falls back to in-memory stores for development.
func buildStores(ctx context.Context, cfg config.Config) (*stores, *sql.DB, error) {
	if cfg.PostgresURL == "" {
		return &stores{
			masters:   masterstore.NewMemory(),
			instances: instancestore.NewMemory(),
			tasks:     taskstore.NewMemory(),
			tenants:   tenantstore.NewMemory(),
			entities:  entitystore.NewMemory(),
			roles:     rolestore.NewMemory(),
			audit:     audit.NewMemoryStore(),
		}, nil, nil
	}

	db, err := sql.Open("pgx", cfg.PostgresURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	if cfg.AutoMigrate {
		if err := platformpg.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
	}

	return &stores{
		masters:   masterstore.NewPostgres(db),
		instances: instancestore.NewPostgres(db),
		tasks:     taskstore.NewPostgres(db),
		tenants:   tenantstore.NewPostgres(db),
		entities:  entitystore.NewPostgres(db),
		roles:     rolestore.NewPostgres(db),
		audit:     audit.NewPostgresStore(db),
	}, db, nil
}

type recalcSummary struct {
	Rag          *ragengine.Summary  `json:"rag"`
	Dependencies *dependency.Summary `json:"dependencies"`
}

// jobTable fixes the background cadences. Names double as trigger-endpoint
// identifiers.
func jobTable(cfg config.Config, gen *generator.Generator, ragEngine *ragengine.Engine, resolver *dependency.Resolver, scanner *escalation.Scanner) []scheduler.Job {
	generate := func(trigger generator.Trigger) scheduler.RunFunc {
		return func(ctx context.Context) (any, error) {
			summary, err := gen.Run(ctx, trigger)
			return summary, err
		}
	}
	scan := func(kind ports.NotificationKind) scheduler.RunFunc {
		return func(ctx context.Context) (any, error) {
			summary, err := scanner.Run(ctx, kind)
			return summary, err
		}
	}

	return []scheduler.Job{
		{
			Name:    string(generator.TriggerDaily),
			Cadence: scheduler.Daily(cfg.Triggers.DailyGenerate),
			Run:     generate(generator.TriggerDaily),
		},
		{
			Name:    string(generator.TriggerQuarterly),
			Cadence: scheduler.FirstOf(cfg.Triggers.DailyGenerate, time.January, time.April, time.July, time.October),
			Run:     generate(generator.TriggerQuarterly),
		},
		{
			// Fires on the first of every month; annual masters only produce
			// a new period when their fiscal year rolls over, everything else
			// is an idempotent no-op.
			Name:    string(generator.TriggerAnnual),
			Cadence: scheduler.FirstOf(cfg.Triggers.DailyGenerate),
			Run:     generate(generator.TriggerAnnual),
		},
		{
			Name:    "hourly-recalc",
			Cadence: scheduler.Hourly(),
			Run: func(ctx context.Context) (any, error) {
				out := recalcSummary{}
				var err error
				if out.Rag, err = ragEngine.Run(ctx); err != nil {
					return out, err
				}
				out.Dependencies, err = resolver.Run(ctx)
				return out, err
			},
		},
		{
			Name:    "daily-overdue-sweep",
			Cadence: scheduler.Daily(cfg.Triggers.OverdueSweep),
			Run: func(ctx context.Context) (any, error) {
				summary, err := ragEngine.Run(ctx)
				return summary, err
			},
		},
		{
			Name:    "reminder-tminus3",
			Cadence: scheduler.Daily(cfg.Triggers.ReminderTMin3),
			Run:     scan(ports.KindTMinus3),
		},
		{
			Name:    "reminder-due",
			Cadence: scheduler.Daily(cfg.Triggers.ReminderDue),
			Run:     scan(ports.KindDueToday),
		},
		{
			Name:    "escalate-overdue",
			Cadence: scheduler.Daily(cfg.Triggers.Escalate),
			Run:     scan(ports.KindOverdue),
		},
	}
}
