package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"courseflow/internal/audit"
	"courseflow/internal/availability"
	"courseflow/internal/course"
	coursemetrics "courseflow/internal/course/metrics"
	jwttoken "courseflow/internal/jwt_token"
	"courseflow/internal/platform/config"
	"courseflow/internal/platform/httpserver"
	"courseflow/internal/platform/logger"
	platformredis "courseflow/internal/platform/redis"
	"courseflow/internal/registration"
	regadapters "courseflow/internal/registration/adapters"
	"courseflow/internal/seed"
	"courseflow/internal/settlement"
	setadapters "courseflow/internal/settlement/adapters"
	settlementmetrics "courseflow/internal/settlement/metrics"
	httptransport "courseflow/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Server.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// stores groups one backend's implementation of every persistence interface.
type stores struct {
	availability availability.Store
	courses      course.Store
	payments     settlement.Store
	ledger       registration.Store
	audit        audit.Store
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, cleanup, err := openStores(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	group, ctx := errgroup.WithContext(ctx)

	auditOpts := []audit.Option{}
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := audit.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		defer sink.Close()

		inbox := make(chan audit.Event, 256)
		auditOpts = append(auditOpts, audit.WithTee(inbox))
		worker := audit.NewWorker(sink, inbox, log)
		group.Go(func() error {
			err := worker.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		log.Info("audit stream enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}
	auditor := audit.NewPublisher(st.audit, auditOpts...)

	calendar := availability.NewService(st.availability,
		availability.WithLogger(log),
		availability.WithAuditPublisher(auditor),
	)

	settlementOpts := []settlement.ServiceOption{
		settlement.WithLogger(log),
		settlement.WithMetrics(settlementmetrics.New()),
		settlement.WithAuditPublisher(auditor),
	}
	if redisClient != nil {
		cache := settlement.NewRedisSummaryCache(redisClient.Client, cfg.Redis.SummaryTTL)
		settlementOpts = append(settlementOpts, settlement.WithSummaryCache(cache))
		log.Info("settlement summary cache enabled", "ttl", cfg.Redis.SummaryTTL)
	}
	payments := settlement.NewService(st.payments, setadapters.NewCourseDirectory(st.courses), settlementOpts...)

	courses := course.NewService(st.courses, calendar, payments,
		course.WithLogger(log),
		course.WithMetrics(coursemetrics.New()),
		course.WithAuditPublisher(auditor),
	)

	registrations := registration.NewService(st.ledger, regadapters.NewCourseDirectory(st.courses),
		registration.WithLogger(log),
		registration.WithAuditPublisher(auditor),
	)

	if cfg.Server.Seed {
		seed.Run(ctx, log, calendar, courses, registrations)
	}

	tokens := jwttoken.NewService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)

	router := httptransport.NewRouter(httptransport.Services{
		Availability:  calendar,
		Courses:       courses,
		Payments:      payments,
		Registrations: registrations,
	}, tokens, log)

	srv := httpserver.New(cfg.Server.Addr, router)

	group.Go(func() error {
		log.Info("http server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func openStores(cfg config.Config, log *slog.Logger) (stores, func(), error) {
	if cfg.Postgres.URL == "" {
		log.Info("no postgres URL configured, using in-memory stores")
		return stores{
			availability: availability.NewInMemoryStore(),
			courses:      course.NewInMemoryStore(),
			payments:     settlement.NewInMemoryStore(),
			ledger:       registration.NewInMemoryStore(),
			audit:        audit.NewInMemoryStore(),
		}, func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.Postgres.URL)
	if err != nil {
		return stores{}, nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return stores{}, nil, err
	}
	log.Info("connected to postgres")
	return stores{
		availability: availability.NewPostgres(db),
		courses:      course.NewPostgres(db),
		payments:     settlement.NewPostgres(db),
		ledger:       registration.NewPostgres(db),
		audit:        audit.NewPostgres(db),
	}, func() { db.Close() }, nil
}
