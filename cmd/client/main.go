package main

import (
	"log"
	"os"

	"github.com/fr3shw3b/textgen-gateway/internal/clientapp"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.App{
		Name:  "client",
		Usage: "Sends one prompt to the text generation gateway and prints the reply",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server-host",
				Value: "localhost",
				Usage: "The host on which the server is accessible",
			},
			&cli.IntFlag{
				Name:  "server-port",
				Value: 3000,
				Usage: "The port the server is running on",
			},
			&cli.StringFlag{
				Name:  "system-prompt",
				Value: "You are a helpful assistant.",
				Usage: "The system prompt to send along with the prompt",
			},
			&cli.StringFlag{
				Name:     "prompt",
				Required: true,
				Usage:    "The prompt to generate a reply for",
			},
			&cli.BoolFlag{
				Name:  "stream",
				Usage: "Print the reply chunk by chunk as it is generated",
			},
		},
		Action: func(cCtx *cli.Context) error {
			return clientapp.Run(&clientapp.Params{
				ServerHost:   cCtx.String("server-host"),
				ServerPort:   cCtx.Int("server-port"),
				SystemPrompt: cCtx.String("system-prompt"),
				Prompt:       cCtx.String("prompt"),
				Stream:       cCtx.Bool("stream"),
			})
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
