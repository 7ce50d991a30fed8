package config

import (
	"os"
	"strconv"
)

type Config struct {
	// Directory shared with the text generation worker.
	Workdir          string
	PollIntervalMs   int
	DrainPollLimit   int
	WatchWorkdir     bool
	RedisAddr        string
	RedisNonceKey    string
	MetricsNamespace string
	LogLevel         string
}

func Load() (*Config, error) {
	workdir, workdirExists := os.LookupEnv("WORKDIR")
	if !workdirExists {
		workdir = "./ai_workdir_text"
	}

	intervalStr, intervalExists := os.LookupEnv("POLL_INTERVAL_MS")
	if !intervalExists {
		intervalStr = "100"
	}
	pollIntervalMs, err := strconv.Atoi(intervalStr)
	if err != nil {
		return nil, err
	}

	limitStr, limitExists := os.LookupEnv("DRAIN_POLL_LIMIT")
	if !limitExists {
		limitStr = "120"
	}
	drainPollLimit, err := strconv.Atoi(limitStr)
	if err != nil {
		return nil, err
	}

	watchStr, watchExists := os.LookupEnv("WATCH_WORKDIR")
	if !watchExists {
		watchStr = "true"
	}
	watchWorkdir, err := strconv.ParseBool(watchStr)
	if err != nil {
		return nil, err
	}

	// Leaving REDIS_ADDR unset keeps nonce allocation purely on the filesystem.
	redisAddr := os.Getenv("REDIS_ADDR")

	redisNonceKey, keyExists := os.LookupEnv("REDIS_NONCE_KEY")
	if !keyExists {
		redisNonceKey = "textgen:nonce"
	}

	metricsNamespace, namespaceExists := os.LookupEnv("METRICS_NAMESPACE")
	if !namespaceExists {
		metricsNamespace = "textgen_gateway"
	}

	logLevel, logLevelExists := os.LookupEnv("LOG_LEVEL")
	if !logLevelExists {
		logLevel = "info"
	}

	return &Config{
		Workdir:          workdir,
		PollIntervalMs:   pollIntervalMs,
		DrainPollLimit:   drainPollLimit,
		WatchWorkdir:     watchWorkdir,
		RedisAddr:        redisAddr,
		RedisNonceKey:    redisNonceKey,
		MetricsNamespace: metricsNamespace,
		LogLevel:         logLevel,
	}, nil
}
