package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/somakeit/chargeauth/admitter"
	"github.com/somakeit/chargeauth/admitter/latch"
	"github.com/somakeit/chargeauth/admitter/led"
	"github.com/somakeit/chargeauth/authcache"
	"github.com/somakeit/chargeauth/authtag"
	"github.com/somakeit/chargeauth/config"
	"github.com/somakeit/chargeauth/contextlogger"
	"github.com/somakeit/chargeauth/guard"
	"github.com/somakeit/chargeauth/guard/console"
	"github.com/somakeit/chargeauth/guard/nfc"
	"github.com/somakeit/chargeauth/metrics"
	"github.com/somakeit/chargeauth/staticauth"
	"github.com/somakeit/chargeauth/steve"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/mfrc522"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/rpi"
)

func main() {
	flag.Usage = func() {
		fmt.Println("chargepointd [args]")
		fmt.Println("chargepointd authorizes RFID tags presented at a charge point connector.")
		flag.PrintDefaults()
		fmt.Print(`
Required raspberry pi pins:
  1  - MFRC522_3V3
  6  - MFRC522_Ground
  15 - Connector cable latch
  16 - MFRC522_IRQ
  18 - LED
  19 - MFRC522_MOSI
  21 - MFRC522_MISO
  22 - MFRC522_RST
  23 - MFRC522_SCK
  24 - MFRC522_SDA
`)
	}
	configFile := flag.String("config", "/etc/chargeauth/chargepointd.yaml", "Configuration file")
	level := flag.String("loglevel", "", "log level, overrides the configuration file")
	withConsole := flag.Bool("console", false, "Also read id tags from STDIN")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Println("Invalid configuration: ", err)
		flag.Usage()
		os.Exit(2)
	}
	if *level != "" {
		cfg.LogLevel = *level
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Println("Invalid log level: ", err)
		flag.Usage()
		os.Exit(2)
	}

	log := logrus.StandardLogger()
	log.Level = logLevel
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	if cfg.LogFile != "-" {
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Fatal("Cannot open log file: ", err)
		}
		defer file.Close()
		log.Out = file
	}
	log.Info("Starting chargepointd")

	ctxLog := &contextlogger.ContextLogger{Logger: log}
	authtag.Logger = ctxLog
	authcache.Logger = ctxLog
	console.Logger = ctxLog

	m, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal("Failed to register metrics: ", err)
	}
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log.Fatal("Metrics server failed: ", http.ListenAndServe(cfg.MetricsAddr, mux))
		}()
	}

	tags, settings := openBackend(cfg, log)
	engine := authtag.New(tags, settings)
	engine.Metrics = m

	var auth authtag.Authorizer = engine
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatal("Invalid redis URL: ", err)
		}
		cache := authcache.New(engine, redis.NewClient(opts))
		if cfg.Redis.KeyPrefix != "" {
			cache.Prefix = cfg.Redis.KeyPrefix
		}
		if cfg.Redis.DefaultTTL > 0 {
			cache.DefaultTTL = cfg.Redis.DefaultTTL
		}
		cache.Metrics = m
		auth = cache
	}

	if _, err := host.Init(); err != nil {
		log.Fatal("Failed to init host: ", err)
	}

	spi, err := spireg.Open("")
	if err != nil {
		log.Fatal("Failed to open SPI: ", err)
	}

	reader, err := mfrc522.NewSPI(spi, rpi.P1_22, rpi.P1_16)
	if err != nil {
		log.Fatal("Failed to init reader: ", err)
	}
	if err := reader.SetAntennaGain(cfg.Reader.Gain); err != nil {
		log.Fatal("Failed to set antenna gain: ", err)
	}

	locked := gpio.Low
	if !cfg.LatchActiveHigh() {
		locked = gpio.High
	}
	if err := rpi.P1_15.Out(locked); err != nil {
		log.Fatal("Failed to pre-lock latch: ", err)
	}

	cableLatch := latch.New(rpi.P1_15)
	cableLatch.OpenFor = cfg.Latch.OpenFor
	if !cfg.LatchActiveHigh() {
		cableLatch.Logic = latch.ActiveLow
	}

	admitters := admitter.Mux{
		cableLatch,
		led.New(rpi.P1_18),
		ctxLog,
	}

	tagGuard, err := nfc.New(cfg.ChargeBoxID, cfg.ConnectorID, reader, auth, admitters)
	if err != nil {
		log.Fatal("Failed to init guard: ", err)
	}
	tagGuard.ReadTimeout = cfg.Reader.ReadTimeout
	tagGuard.AuthTimeout = cfg.Reader.AuthTimeout
	tagGuard.CancelTimeout = cfg.Reader.CancelTimeout
	tagGuard.UpperHex = cfg.Reader.UpperHex

	g := guard.Mux{tagGuard}
	if *withConsole {
		g = append(g, console.New(os.Stdin, os.Stdout, auth, cfg.ChargeBoxID, cfg.ConnectorID))
	}

	log.Info("Ready")
	log.Fatal(g.Guard())
}

func openBackend(cfg config.Config, log *logrus.Logger) (authtag.TagLookup, authtag.Settings) {
	if cfg.TagsFile != "" {
		static, err := staticauth.Load(cfg.TagsFile)
		if err != nil {
			log.Fatal("Failed to load tags: ", err)
		}
		return static, static
	}

	if err := mysql.SetLogger(log); err != nil {
		log.Fatal("Failed to set mysql logger: ", err)
	}
	db, err := steve.Open(cfg.DB.DSN)
	if err != nil {
		log.Fatal("Failed to open database: ", err)
	}
	client, err := steve.NewClient(db, cfg.DB.AppID)
	if err != nil {
		log.Fatal("Failed to init steve: ", err)
	}
	return client, client
}
