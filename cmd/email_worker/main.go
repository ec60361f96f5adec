package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/oksasatya/go-ddd-accounts/config"
	"github.com/oksasatya/go-ddd-accounts/internal/container"
	"github.com/oksasatya/go-ddd-accounts/internal/infrastructure/events"
	"github.com/oksasatya/go-ddd-accounts/pkg/helpers"
	"github.com/oksasatya/go-ddd-accounts/pkg/mailer"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env, cfg.LogLevel)

	if !cfg.MailSendEnabled {
		logger.Info("MAIL_SEND_ENABLED=false; email worker disabled (no real emails will be sent)")
		return
	}
	if cfg.RabbitMQURL == "" || cfg.RabbitMQAccountQueue == "" {
		logger.Fatal("RabbitMQ not configured")
	}
	if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" || cfg.MailgunSender == "" {
		logger.Fatal("Mailgun not configured")
	}

	consumer, err := helpers.NewRabbitConsumer(cfg.RabbitMQURL, cfg.RabbitMQAccountQueue, 16)
	if err != nil {
		logger.WithError(err).Fatal("amqp setup failed")
	}
	defer consumer.Close()

	msgs, err := consumer.Deliveries()
	if err != nil {
		logger.WithError(err).Fatal("consume failed")
	}

	container.SetConfig(cfg)
	container.SetLogger(logger)
	container.SetMailgun(mailer.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender))
	handler, err := container.WelcomeHandler()
	if err != nil {
		logger.WithError(err).Fatal("wiring failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for msg := range msgs {
			c, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := handler.Handle(c, msg.Body)
			cancel()
			switch {
			case err == nil:
				_ = msg.Ack(false)
			case errors.Is(err, events.ErrUndeliverable):
				logger.WithError(err).Warn("dropping account message")
				_ = msg.Nack(false, false)
			default:
				logger.WithError(err).Warn("welcome email failed; requeueing")
				_ = msg.Nack(false, true)
			}
		}
	}()

	logger.WithField("queue", cfg.RabbitMQAccountQueue).Info("email worker listening")
	select {
	case <-ctx.Done():
	case <-done:
		logger.Warn("delivery channel closed")
		os.Exit(1)
	}
	logger.Info("shutting down...")
	consumer.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}
