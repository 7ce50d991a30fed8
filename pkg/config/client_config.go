package config

import (
	"os"
	"strconv"
)

type ClientConfig struct {
	MaxReconnectAttempts  int
	RequestTimeoutSeconds int
	LogLevel              string
}

func LoadForClient() (*ClientConfig, error) {
	maxReconnectStr, maxReconnectExists := os.LookupEnv("MAX_RECONNECTION_ATTEMPTS")
	if !maxReconnectExists {
		maxReconnectStr = "100"
	}
	maxReconnectAttempts, err := strconv.Atoi(
		maxReconnectStr,
	)
	if err != nil {
		return nil, err
	}

	timeoutStr, timeoutExists := os.LookupEnv("REQUEST_TIMEOUT_SECONDS")
	if !timeoutExists {
		timeoutStr = "300"
	}
	requestTimeoutSeconds, err := strconv.Atoi(timeoutStr)
	if err != nil {
		return nil, err
	}

	logLevel, logLevelExists := os.LookupEnv("LOG_LEVEL")
	if !logLevelExists {
		logLevel = "info"
	}

	return &ClientConfig{
		MaxReconnectAttempts:  maxReconnectAttempts,
		RequestTimeoutSeconds: requestTimeoutSeconds,
		LogLevel:              logLevel,
	}, nil
}
