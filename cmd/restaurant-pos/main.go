package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"restaurant-pos/internal/catalog"
	"restaurant-pos/internal/config"
	"restaurant-pos/internal/connections/database"
	"restaurant-pos/internal/connections/rabbitmq"
	redisconn "restaurant-pos/internal/connections/redis"
	"restaurant-pos/internal/floor"
	"restaurant-pos/internal/handlers"
	"restaurant-pos/internal/httpx"
	"restaurant-pos/internal/kitchen"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/notifier"
	"restaurant-pos/internal/repository"
	"restaurant-pos/pkg/idempotency"
	"restaurant-pos/pkg/metrics"
)

func main() {
	app := &cli.App{
		Name:  "restaurant-pos",
		Usage: "table/order/reservation coordinator for a single restaurant location",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the POS API",
				Action: serve,
			},
			{
				Name:   "sweep-reservations",
				Usage:  "expire reservations unclaimed past the grace period and exit",
				Action: sweep,
			},
			{
				Name:   "kitchen-worker",
				Usage:  "consume order events from the kitchen queue and log tickets",
				Action: kitchenWorker,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	lg := logger.New("restaurant-pos", cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	coord, cleanup, err := buildCoordinator(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer cleanup()

	rdb, err := redisconn.Connect(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	defer rdb.Close()
	idem := idempotency.NewStore(rdb, time.Duration(cfg.Redis.IdemTTLSeconds)*time.Second)

	srvMetrics := metrics.NewServer(prometheus.DefaultRegisterer, "api")
	h := handlers.New(coord, lg, srvMetrics, time.Duration(cfg.Floor.DefaultDurationMins)*time.Minute)

	addr := ":" + strconv.Itoa(cfg.HTTP.Port)
	lg.WithFields(logrus.Fields{"addr": addr}).Info("service_started")
	return httpx.New(addr, h.Routes(idempotency.Middleware(idem))).Run(ctx)
}

func sweep(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	lg := logger.New("reservation-sweeper", cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	coord, cleanup, err := buildCoordinator(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer cleanup()

	n, err := coord.ExpireReservations(ctx)
	if err != nil {
		return err
	}
	lg.WithFields(logrus.Fields{"expired": n}).Info("sweep_finished")
	return nil
}

func kitchenWorker(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	lg := logger.New("kitchen-worker", cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mq, err := rabbitmq.Dial(cfg.Rabbit)
	if err != nil {
		return fmt.Errorf("rabbitmq connect: %w", err)
	}
	defer mq.Close()
	if err := mq.DeclareAll(); err != nil {
		return fmt.Errorf("rabbitmq topology: %w", err)
	}
	if err := mq.Ping(); err != nil {
		return err
	}

	deliveries, err := mq.Consume(rabbitmq.KitchenQueue, "kitchen-worker", 10)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	lg.WithFields(logrus.Fields{"queue": rabbitmq.KitchenQueue}).Info("worker_started")
	return kitchen.New(lg).Run(ctx, deliveries)
}

// buildCoordinator wires the full floor stack: storage, catalog, broker,
// in-memory state restored from persistence.
func buildCoordinator(ctx context.Context, cfg config.App, lg *logrus.Entry) (*floor.Coordinator, func(), error) {
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}

	mq, err := rabbitmq.Dial(cfg.Rabbit)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("rabbitmq connect: %w", err)
	}
	if err := mq.DeclareAll(); err != nil {
		mq.Close()
		pool.Close()
		return nil, nil, fmt.Errorf("rabbitmq topology: %w", err)
	}

	clock := floor.SystemClock{}
	store := repository.NewStore(pool)

	reg := floor.NewRegistry()
	tables, err := store.LoadTables(ctx)
	if err != nil {
		mq.Close()
		pool.Close()
		return nil, nil, fmt.Errorf("load tables: %w", err)
	}
	for _, t := range tables {
		if err := reg.AddTable(t); err != nil {
			mq.Close()
			pool.Close()
			return nil, nil, fmt.Errorf("register table %d: %w", t.ID, err)
		}
	}

	ledger := floor.NewLedger(reg, clock)
	orders, err := store.LoadOpenOrders(ctx)
	if err != nil {
		mq.Close()
		pool.Close()
		return nil, nil, fmt.Errorf("load orders: %w", err)
	}
	for _, o := range orders {
		ledger.Restore(o)
	}

	book := floor.NewBook(reg, clock, floor.BookConfig{
		MaxAttempts: cfg.Floor.AssignMaxAttempts,
		Grace:       time.Duration(cfg.Floor.GraceMinutes) * time.Minute,
	})
	reservations, err := store.LoadActiveReservations(ctx)
	if err != nil {
		mq.Close()
		pool.Close()
		return nil, nil, fmt.Errorf("load reservations: %w", err)
	}
	for _, r := range reservations {
		book.Restore(r)
	}

	floorMetrics := metrics.NewFloor(prometheus.DefaultRegisterer)
	coord := floor.NewCoordinator(reg, ledger, book, store, catalog.New(pool),
		notifier.New(mq, lg), clock, lg, floorMetrics)

	lg.WithFields(logrus.Fields{
		"tables":       len(tables),
		"open_orders":  len(orders),
		"reservations": len(reservations),
	}).Info("floor_restored")

	cleanup := func() {
		mq.Close()
		pool.Close()
	}
	return coord, cleanup, nil
}
