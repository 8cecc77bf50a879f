package main

import (
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/mkovacic/sale-notifier/pkg/config"
	"github.com/mkovacic/sale-notifier/pkg/handler"
	"github.com/mkovacic/sale-notifier/pkg/metrics"
	"github.com/mkovacic/sale-notifier/pkg/notifier"
	"github.com/mkovacic/sale-notifier/pkg/notifier/discord"
	"github.com/mkovacic/sale-notifier/pkg/notifier/kafka"
	"github.com/mkovacic/sale-notifier/pkg/notifier/slack"
)

func main() {
	for _, envFile := range os.Args[1:] {
		if err := godotenv.Load(envFile); err != nil {
			log.Printf("Error loading %s: %v", envFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	// One shared client for all chat sinks so a hung destination cannot
	// hold a request open past the delivery timeout.
	httpClient := &http.Client{Timeout: cfg.NotifyTimeout}

	notifiers := []notifier.Notifier{
		slack.New(httpClient, cfg.SlackWebhookURL),
		discord.New(httpClient, cfg.DiscordWebhookURL),
	}

	if len(cfg.KafkaBrokers) > 0 {
		kafkaNotifier, err := kafka.New(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaUsername, cfg.KafkaPassword)
		if err != nil {
			log.Fatalf("Could not construct kafka notifier: %v", err)
		}
		defer kafkaNotifier.Close()
		notifiers = append(notifiers, kafkaNotifier)
	}

	webhookHandler, err := handler.NewHandler(cfg, notifiers, metrics.New())
	if err != nil {
		log.Fatalf("Could not create WebhookHandler: %v", err)
	}

	router := handler.NewRouter(webhookHandler)

	log.Println("server running at 0.0.0.0:" + cfg.Port)
	if err := router.Run("0.0.0.0:" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
