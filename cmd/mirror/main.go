package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	mirror "github.com/WelcomerTeam/Mirror"
	"github.com/WelcomerTeam/Mirror/codec"
	"github.com/WelcomerTeam/Mirror/messaging"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	configurationLocation := flag.String("configuration", "mirror.yaml", "Path of configuration file")
	envLocation := flag.String("env", ".env", "Path of .env file")
	flag.Parse()

	if err := godotenv.Load(*envLocation); err != nil && !os.IsNotExist(err) {
		println("Failed to load .env:", err.Error())
	}

	configuration, err := mirror.LoadConfiguration(*configurationLocation)
	if err != nil {
		println("Failed to load configuration:", err.Error())
		os.Exit(1)
	}

	logger := newLogger(configuration)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer cancel()

	gatewayCodec, err := codec.New(configuration.Gateway.Codec)
	if err != nil {
		logger.Panic().Err(err).Msg("Failed to create codec")
	}

	producer, err := messaging.NewProducer(configuration.Producer.Type)
	if err != nil {
		logger.Panic().Err(err).Strs("available", messaging.Producers()).Msg("Failed to create producer")
	}

	producerArgs := configuration.Producer.Configuration
	if producerArgs == nil {
		producerArgs = make(map[string]any)
	}

	if configuration.Producer.Channel != "" {
		producerArgs["Channel"] = configuration.Producer.Channel
	}

	err = producer.Connect(ctx, configuration.Identifier, producerArgs)
	if err != nil {
		logger.Panic().Err(err).Str("producer", producer.String()).Msg("Failed to connect producer")
	}

	defer producer.Close()

	publisher := messaging.NewPublisher(logger, producer, configuration.Identifier, configuration.Producer.Buffer)

	publisherDone := make(chan struct{})

	go func() {
		publisher.Run(ctx)
		close(publisherDone)
	}()

	restURL, err := url.Parse(configuration.REST.URL)
	if err != nil {
		logger.Panic().Err(err).Msg("Failed to parse rest url")
	}

	client, err := mirror.NewClient(mirror.ClientOptions{
		Logger:      logger,
		Identifier:  configuration.Identifier,
		Codec:       gatewayCodec,
		Token:       configuration.Identify.Token,
		GatewayURL:  configuration.Gateway.URL,
		Properties:  configuration.Identify.Properties,
		Presence:    configuration.Identify.Presence,
		ClientState: configuration.Identify.ClientState,
		Compress:    configuration.Gateway.Compress,
		REST:        mirror.NewHTTPRESTClient(nil, *restURL, configuration.Identify.Token),
		Store:       newStore(logger, configuration),
		Flags:       configuration.Features,
		Consumer:    publisher.Consume,
	})
	if err != nil {
		logger.Panic().Err(err).Msg("Failed to create client")
	}

	if configuration.Prometheus.Address != "" {
		go func() {
			if err := setupPrometheus(logger, configuration.Prometheus.Address); err != nil {
				logger.Error().Err(err).Msg("Failed to serve prometheus")
			}
		}()
	}

	if configuration.HTTP.Enabled {
		api := mirror.NewAPI(logger, client)

		go func() {
			if err := api.ListenAndServe(configuration.HTTP.Host); err != nil {
				logger.Error().Err(err).Msg("Failed to serve http")
			}
		}()
	}

	if err = client.Connect(ctx); err != nil {
		logger.Panic().Err(err).Msg("Failed to connect")
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Shutting down")
			client.Close()
			<-publisherDone

			return
		case status := <-client.Status():
			event := logger.Info().Str("status", status.Kind.String())

			if status.Kind == mirror.StatusClosed {
				event.Int("code", status.Code).Str("reason", status.Reason).Msg("Gateway closed")
				client.Close()
				cancel()
				<-publisherDone

				return
			}

			event.Msg("Gateway status changed")
		}
	}
}

func newLogger(configuration mirror.Configuration) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(configuration.Logging.Level))
	if err != nil || configuration.Logging.Level == "" {
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	writers := []io.Writer{}

	if configuration.Logging.EncodeAsJSON {
		writers = append(writers, os.Stdout)
	} else {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.Stamp,
		})
	}

	if configuration.Logging.FileLoggingEnabled {
		if err := os.MkdirAll(configuration.Logging.Directory, 0o744); err != nil {
			println("Failed to create log directory:", err.Error())
		}

		writers = append(writers, &lumberjack.Logger{
			Filename:   filepath.Join(configuration.Logging.Directory, configuration.Logging.Filename),
			MaxBackups: configuration.Logging.MaxBackups,
			MaxSize:    configuration.Logging.MaxSize,
			MaxAge:     configuration.Logging.MaxAge,
			Compress:   configuration.Logging.Compress,
		})
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
}

func newStore(logger zerolog.Logger, configuration mirror.Configuration) mirror.OriginalStore {
	var ttl time.Duration

	if configuration.Store.TTL != "" {
		parsed, err := time.ParseDuration(configuration.Store.TTL)
		if err != nil {
			logger.Warn().Err(err).Msg("Invalid store ttl, using default")
		} else {
			ttl = parsed
		}
	}

	if configuration.Store.Type != "redis" {
		return mirror.NewMemoryStore(mirror.MemoryStoreOptions{
			TTL:   ttl,
			Limit: configuration.Store.Limit,
		})
	}

	return mirror.NewRedisStore(redis.NewClient(&redis.Options{
		Addr:     configuration.Store.Redis.Address,
		Password: configuration.Store.Redis.Password,
		DB:       configuration.Store.Redis.DB,
	}), configuration.Store.Prefix, ttl)
}

func setupPrometheus(logger zerolog.Logger, address string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		prometheus.DefaultGatherer,
		promhttp.HandlerOpts{},
	))

	logger.Info().Msgf("Serving prometheus at %s", address)

	err := http.ListenAndServe(address, mux)
	if err != nil {
		return fmt.Errorf("failed to serve prometheus: %w", err)
	}

	return nil
}
