package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/mdns/v2"
	"github.com/spf13/cobra"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"liteassistant/auth"
	"liteassistant/internal/automation"
	"liteassistant/internal/config"
	"liteassistant/internal/db"
	"liteassistant/internal/engine"
	"liteassistant/internal/events"
	"liteassistant/internal/history"
	"liteassistant/internal/mqtt"
	"liteassistant/internal/notify"
	"liteassistant/internal/redis"
	"liteassistant/internal/scheduler"
	"liteassistant/internal/taskqueue"
	"liteassistant/internal/timers"
	"liteassistant/internal/utils"
	"liteassistant/internal/web"
	"liteassistant/internal/web/api"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:   "liteassistant",
		Short: "Home automation hub for Tasmota and MQTT devices",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			utils.InitLogging(cfg.LogLevel)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the hub (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbConn, err := db.NewDB(cmd.Context(), cfg.DBURL)
			if err != nil {
				return err
			}
			defer dbConn.Close()
			return dbConn.Migrate(cmd.Context())
		},
	})

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.NewDB(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("connect to DB: %w", err)
	}
	defer dbConn.Close()
	if err := dbConn.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate DB: %w", err)
	}

	redisClient, err := redis.NewRedisClient(ctx, cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("connect to Redis: %w", err)
	}
	defer redisClient.Close()

	historyWriter, err := history.NewWriter(ctx, history.Config{
		Enabled: cfg.InfluxEnabled,
		URL:     cfg.InfluxURL,
		Token:   cfg.InfluxToken,
		Org:     cfg.InfluxOrg,
		Bucket:  cfg.InfluxBucket,
	})
	if err != nil {
		log.Printf("HISTORY: %v. Continuing without telemetry history", err)
		historyWriter = &history.Writer{}
	}
	defer historyWriter.Close()

	broadcaster := events.NewBroadcaster(redisClient)

	queue := taskqueue.NewQueue(cfg.RedisAddr, cfg.NotifyQueueConcurrency)
	notifier := notify.NewService(dbConn, queue)
	queue.HandleFunc(taskqueue.TypeNotificationDeliver, notifier.HandleDeliverTask)
	if err := queue.Start(); err != nil {
		return fmt.Errorf("start task queue: %w", err)
	}
	defer queue.Stop()

	// The bus delivers to the ingestion engine, which itself publishes
	// through the bus, so the handler is bound once both exist.
	var ingest *engine.Engine
	bus := mqtt.NewBus(mqtt.Config{
		Broker:   cfg.MQTTBroker,
		ClientID: cfg.MQTTClientID,
		Username: cfg.MQTTUsername,
		Password: cfg.MQTTPassword,
	}, func(topic, payload string) {
		ingest.HandleMessage(ctx, topic, payload)
	})

	rules := automation.NewEngine(dbConn, bus, notifier, broadcaster)
	schedules := scheduler.NewEngine(dbConn, bus, notifier, broadcaster)
	timerRegistry := timers.NewRegistry(dbConn, bus, notifier, broadcaster)
	ingest = engine.NewEngine(dbConn, bus, rules, broadcaster, historyWriter)

	if err := rules.Load(ctx); err != nil {
		return fmt.Errorf("load automations: %w", err)
	}
	defer rules.Stop()
	if err := schedules.Load(ctx); err != nil {
		return fmt.Errorf("load schedules: %w", err)
	}
	defer schedules.Stop()

	bus.Subscribe(engine.Topics(cfg.MQTTCustomTopics)...)
	connectCtx, cancelConnect := context.WithTimeout(ctx, 10*time.Second)
	if err := bus.Connect(connectCtx); err != nil {
		log.Printf("MQTT: Broker not reachable yet (%v); retrying in the background", err)
	}
	cancelConnect()
	defer bus.Close()

	authModule := auth.NewAuthModule(dbConn.Pool(), redisClient, cfg.JWTSecret)
	if err := authModule.EnsureUser(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return err
	}

	driver := scheduler.NewDriver()
	err = driver.AddTick("rules", cfg.RuleTick, func(ctx context.Context, now time.Time) {
		rules.OnTick(ctx, now)
		schedules.OnTick(ctx, now)
	})
	if err != nil {
		return fmt.Errorf("register rule tick: %w", err)
	}
	err = driver.AddTick("timers", cfg.TimerTick, timerRegistry.Scan)
	if err != nil {
		return fmt.Errorf("register timer tick: %w", err)
	}
	driver.Start()
	defer driver.Stop()

	webServer := web.NewWebServer(":"+cfg.AppPort, authModule, api.Dependencies{
		Store:     dbConn,
		Rules:     rules,
		Schedules: schedules,
		Devices:   ingest,
		Timers:    timerRegistry,
		Notifier:  notifier,
		History:   historyWriter,
		Events:    broadcaster,
	})
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- webServer.Start()
	}()

	go startMDNSServer(cfg.MDNSLocalName)

	log.Println("ENGINE: LiteAssistant started")
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			log.Printf("WEB: Server stopped: %v", err)
		}
	}

	log.Println("ENGINE: Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("WEB: Shutdown error: %v", err)
	}
	return nil
}

func startMDNSServer(localName string) {
	addr4, err := net.ResolveUDPAddr("udp4", mdns.DefaultAddressIPv4)
	if err != nil {
		log.Println("MDNS: Failed to resolve UDP4 address:", err)
		return
	}

	addr6, err := net.ResolveUDPAddr("udp6", mdns.DefaultAddressIPv6)
	if err != nil {
		log.Println("MDNS: Failed to resolve UDP6 address:", err)
		return
	}

	l4, err := net.ListenUDP("udp4", addr4)
	if err != nil {
		log.Println("MDNS: Failed to listen on UDP4:", err)
		return
	}

	l6, err := net.ListenUDP("udp6", addr6)
	if err != nil {
		log.Println("MDNS: Failed to listen on UDP6:", err)
		return
	}

	_, err = mdns.Server(ipv4.NewPacketConn(l4), ipv6.NewPacketConn(l6), &mdns.Config{
		LocalNames: []string{localName},
	})
	if err != nil {
		log.Println("MDNS: Failed to start server:", err)
		return
	}
	log.Printf("MDNS: Answering for %s", localName)
}
