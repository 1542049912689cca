package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/log"
	"github.com/mitchellh/go-homedir"
	"github.com/urfave/cli"

	"github.com/boostbt/boost"
)

var cfg *boost.Config

func main() {
	app := cli.NewApp()
	app.Name = "boost"
	app.Version = boost.Version
	app.Usage = "connects to the swarm of a torrent"
	app.ArgsUsage = "<torrent file>"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "read config from `FILE`",
			Value: "~/.boost.yaml",
		},
		cli.IntFlag{
			Name:  "port, p",
			Usage: "listen port for incoming peer connections",
		},
		cli.BoolFlag{
			Name:  "debug, d",
			Usage: "enable debug log",
		},
	}
	app.Before = handleBeforeCommand
	app.Action = handleRun
	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func handleBeforeCommand(c *cli.Context) error {
	if c.GlobalBool("debug") {
		boost.SetLogLevel(log.DEBUG)
	}
	configPath, err := homedir.Expand(c.GlobalString("config"))
	if err != nil {
		return err
	}
	cfg, err = boost.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if c.GlobalIsSet("port") {
		cfg.Port = c.GlobalInt("port")
	}
	return nil
}

func handleRun(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.NewExitError("give a torrent file as the first argument", 1)
	}
	client, err := boost.NewClientFromFile(c.Args().First(), cfg)
	if err != nil {
		return err
	}
	if err = client.Start(); err != nil {
		return err
	}
	defer client.Close()

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, syscall.SIGINT, syscall.SIGTERM)
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case s := <-sigC:
			fmt.Println("received signal:", s)
			return nil
		case <-ticker.C:
			stats := client.Stats()
			fmt.Printf("peers: %d downloaded: %d uploaded: %d left: %d\n",
				stats.Peers, stats.BytesDownloaded, stats.BytesUploaded, stats.BytesLeft)
		}
	}
}
