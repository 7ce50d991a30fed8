package main

import (
	"log"
	"os"

	"github.com/fr3shw3b/textgen-gateway/internal/serverapp"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.App{
		Name:  "server",
		Usage: "The text generation streaming gateway",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "port",
				Value: 3000,
				Usage: "The port to run the server on",
			},
			&cli.StringFlag{
				Name:  "workdir",
				Usage: "The directory shared with the text generation worker, overrides WORKDIR",
			},
		},
		Action: func(cCtx *cli.Context) error {
			port := cCtx.Int("port")
			workdir := cCtx.String("workdir")
			return serverapp.Run(port, workdir)
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
