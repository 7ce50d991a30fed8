package serverapp

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/fr3shw3b/textgen-gateway/pkg/config"
	"github.com/fr3shw3b/textgen-gateway/pkg/gateway"
	"github.com/fr3shw3b/textgen-gateway/pkg/metrics"
	"github.com/fr3shw3b/textgen-gateway/pkg/server"
	"github.com/fr3shw3b/textgen-gateway/pkg/sessions"
	"github.com/fr3shw3b/textgen-gateway/pkg/slots"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/joho/godotenv"
)

// Run starts the gateway. workdirOverride takes precedence over
// the WORKDIR environment variable when not empty.
func Run(port int, workdirOverride string) error {
	err := godotenv.Load(".env.server")
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal("Failed to load environment variables: ", err)
	}

	conf, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration for server: ", err)
	}
	if workdirOverride != "" {
		conf.Workdir = workdirOverride
	}

	logger := logrus.New()
	logLevel, err := logrus.ParseLevel(conf.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	err = os.MkdirAll(conf.Workdir, 0o755)
	if err != nil {
		return fmt.Errorf("create workdir %s: %w", conf.Workdir, err)
	}
	slotStore := slots.NewStore(conf.Workdir, logger)

	collector := metrics.NewCollector(conf.MetricsNamespace)
	opts := []gateway.Option{gateway.WithRecorder(collector)}

	if conf.WatchWorkdir {
		watcher, err := slots.NewWatcher(conf.Workdir, logger)
		if err != nil {
			// Polling alone still works, just without early wake-ups.
			logger.Warn("Failed to watch workdir, falling back to polling only: ", err)
		} else {
			defer watcher.Close()
			opts = append(opts, gateway.WithNotifier(watcher))
		}
	}

	if conf.RedisAddr != "" {
		counter := slots.NewRedisCounter(
			redis.NewClient(&redis.Options{Addr: conf.RedisAddr}),
			conf.RedisNonceKey,
		)
		defer counter.Close()
		opts = append(opts, gateway.WithNonceCounter(counter))
	}

	gw := gateway.NewGateway(
		&gateway.Params{
			PollInterval:   time.Duration(conf.PollIntervalMs) * time.Millisecond,
			DrainPollLimit: conf.DrainPollLimit,
		},
		slotStore,
		logger,
		opts...,
	)

	store := sessions.NewInMemoryStore(logger)

	srv := server.NewDefaultServer(
		&server.ServerParams{},
		gw,
		store,
		collector,
		logger,
	)

	router := mux.NewRouter()
	router.Handle("/metrics", collector.Handler()).Methods(http.MethodGet)
	router.Handle("/", srv)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		ReadTimeout:       1 * time.Second,
		WriteTimeout:      1 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		Handler:           router,
	}

	logger.Info("Serving slots in ", conf.Workdir)
	log.Printf("Server listening on port %d ... \n", port)
	return httpSrv.ListenAndServe()
}
