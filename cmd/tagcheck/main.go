package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"github.com/somakeit/chargeauth/authtag"
	"github.com/somakeit/chargeauth/config"
	"github.com/somakeit/chargeauth/contextlogger"
	"github.com/somakeit/chargeauth/staticauth"
	"github.com/somakeit/chargeauth/steve"
)

func main() {
	flag.Usage = func() {
		fmt.Println("tagcheck [args] <id tag>")
		fmt.Println("tagcheck prints the authorization outcome for one id tag as JSON.")
		fmt.Println("Exit status is 0 if the tag is accepted, 1 if it is not and 2 on error.")
		flag.PrintDefaults()
	}
	configFile := flag.String("config", "/etc/chargeauth/chargepointd.yaml", "Configuration file")
	level := flag.String("loglevel", "warn", "log level")
	stop := flag.Bool("stop", false, "Authorize as a check during a running transaction rather than a new one")
	timeout := flag.Duration("timeout", 10*time.Second, "Time allowed for the lookups")
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	logLevel, err := logrus.ParseLevel(*level)
	if err != nil {
		fmt.Println("Invalid log level: ", err)
		flag.Usage()
		os.Exit(2)
	}

	log := logrus.StandardLogger()
	log.Level = logLevel
	log.Out = os.Stderr
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	authtag.Logger = &contextlogger.ContextLogger{Logger: log}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Error("Invalid configuration: ", err)
		os.Exit(2)
	}

	tags, settings, err := openBackend(cfg, log)
	if err != nil {
		log.Error(err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	out, err := authtag.New(tags, settings).Authorize(ctx, authtag.Request{
		IDTag:            flag.Arg(0),
		StartTransaction: !*stop,
		ChargeBoxID:      &cfg.ChargeBoxID,
		ConnectorID:      &cfg.ConnectorID,
	})
	if err != nil {
		log.Error("Authorization failed: ", err)
		os.Exit(2)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Error("Failed to print outcome: ", err)
		os.Exit(2)
	}
	if !out.Accepted() {
		os.Exit(1)
	}
}

func openBackend(cfg config.Config, log *logrus.Logger) (authtag.TagLookup, authtag.Settings, error) {
	if cfg.TagsFile != "" {
		static, err := staticauth.Load(cfg.TagsFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load tags: %w", err)
		}
		return static, static, nil
	}

	if err := mysql.SetLogger(log); err != nil {
		return nil, nil, fmt.Errorf("failed to set mysql logger: %w", err)
	}
	db, err := steve.Open(cfg.DB.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	client, err := steve.NewClient(db, cfg.DB.AppID)
	if err != nil {
		return nil, nil, err
	}
	return client, client, nil
}
