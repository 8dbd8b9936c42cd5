package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	adactor "github.com/berfenger/engymgr/internal/adapter/actor"
	"github.com/berfenger/engymgr/internal/adapter/sink"
	"github.com/berfenger/engymgr/internal/config"
	"github.com/berfenger/engymgr/internal/core/actor"
	"github.com/berfenger/engymgr/internal/core/domain"
	"github.com/berfenger/engymgr/internal/core/port"
	"github.com/berfenger/engymgr/internal/core/service"
	"github.com/berfenger/engymgr/internal/metrics"
	"github.com/berfenger/engymgr/internal/server"
	"github.com/berfenger/engymgr/internal/util/actorutil"
	"github.com/berfenger/engymgr/pkg/sdm_modbus"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/reugn/go-quartz/quartz"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	// event sinks
	eventStream := &eventstream.EventStream{}
	sinks := []port.EventSink{sink.NewEventStreamSink(eventStream)}

	var gatherer prometheus.Gatherer
	var collector *metrics.Collector
	if cfg.MetricsEnable {
		registry := prometheus.NewRegistry()
		collector = metrics.NewCollector(registry)
		gatherer = registry
		sinks = append(sinks, collector)
	}

	if cfg.JournalConfig.Path != "" {
		opts := []sink.JournalOption{sink.WithJournalLogger(logger)}
		if !cfg.JournalConfig.IncludeMeterUpdates {
			opts = append(opts, sink.WithoutMeterUpdates())
		}
		journal, err := sink.NewJournalSink(cfg.JournalConfig.Path, opts...)
		if err != nil {
			logger.Error("journal open failed", zap.String("path", cfg.JournalConfig.Path), zap.Error(err))
			return
		}
		defer journal.Close()
		sinks = append(sinks, journal)
	}

	// energy manager and meter bank
	manager := service.NewEnergyManager(domain.EnergyCeilings{
		CableAmps:    cfg.EnergyConfig.CableMaxAmps,
		BackendKW:    cfg.EnergyConfig.BackendMaxKW,
		VoltageVolts: cfg.EnergyConfig.VoltageMaxVolts,
	}, sink.NewMultiSink(sinks...),
		service.WithLogger(logger),
		service.WithSubscription(cfg.EnergyConfig.SubscriptionMaxWatts, cfg.EnergyConfig.LineVoltage))
	bank := service.NewMeterBank(manager, cfg.MonitorConfig.VariationPercent)

	// periodic state snapshot
	sched := quartz.NewStdScheduler()
	schedCtx, cancelSched := context.WithCancel(context.Background())
	defer cancelSched()
	sched.Start(schedCtx)
	stateInterval := time.Duration(cfg.MonitorConfig.StateIntervalMillis) * time.Millisecond
	if err := service.ScheduleStatePublisher(sched, manager, stateInterval); err != nil {
		panic(err)
	}

	// init Modbus actor provider
	var modbusProv actor.ModbusActorProvider
	if cfg.MeterModbusTcp.Enable {
		modbusProv, err = modbusActorProvider(cfg, collector, logger)
		if err != nil {
			panic(err)
		}
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, eventStream, manager, bank, modbusProv, mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		return
	}

	server := server.NewServer(*cfg, ctx, pid, manager, bank, gatherer)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	sched.Stop()
	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => ENGYMGR_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("ENGYMGR_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("engymgr")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check bounds
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func modbusActorProvider(cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) (actor.ModbusActorProvider, error) {

	var instrument *sdm_modbus.ModbusInstrument
	if collector != nil {
		instrument = collector.ModbusInstrument()
	}

	meter, err := sdm_modbus.CreateSDMModbusReader(cfg.MeterModbusTcp.Host,
		cfg.MeterModbusTcp.Port, uint8(cfg.MeterModbusTcp.UnitId),
		time.Duration(cfg.MeterModbusTcp.TimeoutMillis)*time.Millisecond, logger, instrument)

	if err != nil {
		return nil, err
	}

	return func() *adactor.ModbusActor {
		return adactor.NewModbusActor(meter, logger)
	}, nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "engymgr")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("meter_modbus_tcp.enable", false)
	viper.SetDefault("meter_modbus_tcp.port", 502)
	viper.SetDefault("meter_modbus_tcp.unit_id", 1)
	viper.SetDefault("meter_modbus_tcp.timeout_millis", 1000)
	viper.SetDefault("energy.cable_max_amps", 32)
	viper.SetDefault("energy.backend_max_kw", 22)
	viper.SetDefault("energy.voltage_max_volts", 253)
	viper.SetDefault("energy.subscription_max_watts", 0)
	viper.SetDefault("energy.line_voltage", domain.DEFAULT_LINE_VOLTAGE)
	viper.SetDefault("monitor.poll_interval_millis", 5000)
	viper.SetDefault("monitor.state_interval_millis", 60000)
	viper.SetDefault("monitor.variation_percent", domain.DEFAULT_VARIATION_PERCENT)
	viper.SetDefault("monitor.mqtt_telemetry_enable", true)
	viper.SetDefault("journal.path", "")
	viper.SetDefault("journal.include_meter_updates", false)
	viper.SetDefault("metrics_enable", true)
	viper.SetDefault("http_log", false)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
