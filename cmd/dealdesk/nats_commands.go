package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"

	"github.com/openhouselabs/dealdesk/service/events"
)

// subscribeCommand streams delivery events from JetStream.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe to delivery events",
		ArgsUsage: "[submission_id]",
		Description: `Subscribe to delivery events published to NATS JetStream.

Events are published to the subject: deliveries.{submission_id}
Without an argument, all delivery events are streamed.

Example:
  dealdesk nats subscribe --json
  dealdesk nats subscribe 5f3c0a1e-... --json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.BoolFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Create a durable consumer (survives restarts)",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (required for durable)",
				Value: "dealdesk-cli",
			},
		},
		Action: func(c *cli.Context) error {
			subject := events.StreamSubjects
			if c.NArg() > 0 {
				subject = fmt.Sprintf("deliveries.%s", c.Args().Get(0))
			}

			return streamDeliveries(subject, c.String("nats-url"), c.Bool("durable"), c.String("consumer-name"), c.Bool("json"))
		},
	}
}

// streamDeliveries connects to NATS and streams delivery events.
func streamDeliveries(subject, natsURL string, durable bool, consumerName string, jsonOutput bool) error {
	// Connect to NATS
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if !jsonOutput {
		fmt.Printf("📡 Subscribing to: %s\n", subject)
		fmt.Printf("   NATS: %s\n", natsURL)
		if durable {
			fmt.Printf("   Consumer: %s (durable)\n", consumerName)
		}
		fmt.Printf("\nWaiting for delivery events... (Ctrl-C to exit)\n\n")
	}

	// Create consumer config
	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	}

	if durable {
		consumerConfig.Durable = consumerName
		consumerConfig.Name = consumerName
	}

	cons, err := js.CreateOrUpdateConsumer(context.Background(), events.StreamName, consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Receive messages
	msgChan := make(chan jetstream.Msg, 10)

	// Start consuming in background
	go func() {
		_, _ = cons.Consume(func(msg jetstream.Msg) {
			msgChan <- msg
		})
	}()

	count := 0
	for {
		select {
		case msg := <-msgChan:
			var event events.DeliveryEvent
			if err := json.Unmarshal(msg.Data(), &event); err != nil {
				if !jsonOutput {
					fmt.Fprintf(os.Stderr, "Error parsing event: %v\n", err)
				}
				msg.Ack()
				continue
			}

			count++

			if jsonOutput {
				// Output raw JSON
				data, _ := json.Marshal(event)
				fmt.Println(string(data))
			} else {
				// Human-friendly output
				fmt.Printf("─────────────────────────────────────────────────────\n")
				fmt.Printf("Delivery #%d\n", count)
				fmt.Printf("─────────────────────────────────────────────────────\n")
				fmt.Printf("Submission:   %s\n", event.SubmissionID)
				if event.TransactionID != "" {
					fmt.Printf("Transaction:  %s\n", event.TransactionID)
				}
				if event.Address != "" {
					fmt.Printf("Address:      %s\n", event.Address)
				}
				fmt.Printf("Filename:     %s\n", event.Filename)
				fmt.Printf("Email Sent:   %v\n", event.EmailSent)
				fmt.Printf("Attached:     %v\n", event.AttachmentSuccess)
				if event.PDFURL != "" {
					fmt.Printf("PDF URL:      %s\n", event.PDFURL)
				}
				for _, res := range event.Results {
					status := "ok"
					if !res.Success {
						status = "FAILED: " + res.Detail
					}
					fmt.Printf("  %-18s %s\n", res.Destination+":", status)
				}
				fmt.Printf("Published:    %s\n", event.PublishedAt.Format(time.RFC3339))
				fmt.Printf("\n")
			}

			msg.Ack()

		case <-sigChan:
			if !jsonOutput {
				fmt.Printf("\n\n✅ Received %d delivery events\n", count)
				fmt.Println("Shutting down...")
			}
			return nil
		}
	}
}

// inspectStreamCommand shows information about the NATS JetStream stream.
func inspectStreamCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect-stream",
		Usage: "Inspect the DELIVERIES JetStream stream",
		Description: `Show information about the JetStream stream including:
- Message count
- Consumers
- Storage usage
- Stream configuration

Example:
  dealdesk nats inspect-stream`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
		},
		Action: func(c *cli.Context) error {
			natsURL := c.String("nats-url")
			jsonOutput := c.Bool("json")

			nc, err := nats.Connect(natsURL)
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			stream, err := js.Stream(ctx, events.StreamName)
			if err != nil {
				return fmt.Errorf("failed to get stream %s: %w", events.StreamName, err)
			}

			info, err := stream.Info(ctx)
			if err != nil {
				return fmt.Errorf("failed to get stream info: %w", err)
			}

			if jsonOutput {
				return outputJSON(info)
			}

			fmt.Printf("Stream: %s\n", info.Config.Name)
			fmt.Printf("  Description: %s\n", info.Config.Description)
			fmt.Printf("  Subjects:    %v\n", info.Config.Subjects)
			fmt.Printf("  Messages:    %d\n", info.State.Msgs)
			fmt.Printf("  Bytes:       %d\n", info.State.Bytes)
			fmt.Printf("  First Seq:   %d\n", info.State.FirstSeq)
			fmt.Printf("  Last Seq:    %d\n", info.State.LastSeq)
			fmt.Printf("  Consumers:   %d\n", info.State.Consumers)
			fmt.Printf("  Max Age:     %s\n", info.Config.MaxAge)
			fmt.Printf("  Storage:     %s\n", info.Config.Storage)

			return nil
		},
	}
}
