package clientapp

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/fr3shw3b/textgen-gateway/pkg/client"
	"github.com/fr3shw3b/textgen-gateway/pkg/config"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Params struct {
	ServerHost   string
	ServerPort   int
	SystemPrompt string
	Prompt       string
	// Print chunks as they arrive instead of only the final reply.
	Stream bool
}

func Run(params *Params) error {
	err := godotenv.Load(".env.client")
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal("Failed to load environment variables: ", err)
	}

	conf, err := config.LoadForClient()
	if err != nil {
		log.Fatal("Failed to load configuration for client: ", err)
	}

	customFormatter := new(logrus.TextFormatter)
	customFormatter.TimestampFormat = "2006-01-02T15:04:05.999999999Z07:00"
	customFormatter.FullTimestamp = true
	logger := logrus.New()
	logger.SetFormatter(customFormatter)
	logLevel, err := logrus.ParseLevel(conf.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// One connection, one prompt: the client is a one-shot tool,
	// every run gets a fresh session on the server.
	clientInstance := client.NewDefaultClient(
		&client.ClientParams{
			ServerHost:           params.ServerHost,
			ServerPort:           params.ServerPort,
			MaxReconnectAttempts: conf.MaxReconnectAttempts,
			RequestTimeout:       time.Duration(conf.RequestTimeoutSeconds) * time.Second,
		},
		logger,
	)

	err = clientInstance.Connect()
	if err != nil {
		return err
	}
	defer clientInstance.Close()

	var onChunk func(string)
	if params.Stream {
		onChunk = func(chunk string) {
			fmt.Print(chunk)
		}
	}

	started := time.Now()
	reply, err := clientInstance.Generate(context.Background(), params.SystemPrompt, params.Prompt, onChunk)
	if err != nil {
		return err
	}
	logger.Debug("generation took ", time.Since(started))

	printResult(reply, params.Stream)
	return nil
}

func printResult(reply string, streamed bool) {
	if streamed {
		fmt.Print("\n")
		return
	}
	fmt.Print("Reply\n____________\n\n\n")
	fmt.Println(reply)
}
