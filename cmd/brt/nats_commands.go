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

	natspkg "github.com/brojonat/brtgate/service/nats"
)

// subscribeCommand streams submission outcome events.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe to submission events",
		ArgsUsage: "[code]",
		Description: `Stream submission outcomes published by brtd to NATS JetStream.

Events are published to the subject: brt.submissions.{code}
where code is "ok" or an error code such as e_bad_sequence. Without a code
all outcomes are streamed.

Example:
  brt nats subscribe e_bad_sequence --json`,
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
				Value: "brt-cli",
			},
		},
		Action: func(c *cli.Context) error {
			subject := natspkg.StreamSubjects
			if c.NArg() == 1 {
				subject = natspkg.SubjectPrefix + c.Args().Get(0)
			}
			return streamSubmissions(c, subject)
		},
	}
}

// streamSubmissions connects to NATS and prints events until interrupted.
func streamSubmissions(c *cli.Context, subject string) error {
	natsURL := c.String("nats-url")
	jsonOutput := c.Bool("json")
	w := c.App.Writer

	nc, err := nats.Connect(natsURL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	}
	if c.Bool("durable") {
		consumerConfig.Durable = c.String("consumer-name")
		consumerConfig.Name = c.String("consumer-name")
	}

	cons, err := js.CreateOrUpdateConsumer(context.Background(), natspkg.StreamName, consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	if !jsonOutput {
		fmt.Fprintf(w, "📡 Subscribing to: %s\n", subject)
		fmt.Fprintf(w, "   NATS: %s\n", natsURL)
		fmt.Fprintf(w, "\nWaiting for submissions... (Ctrl-C to exit)\n\n")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	msgChan := make(chan jetstream.Msg, 10)
	consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
		msgChan <- msg
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	defer consumeCtx.Stop()

	count := 0
	for {
		select {
		case msg := <-msgChan:
			var event natspkg.SubmissionEvent
			if err := json.Unmarshal(msg.Data(), &event); err != nil {
				fmt.Fprintf(os.Stderr, "Error parsing event: %v\n", err)
				msg.Ack()
				continue
			}
			count++

			if jsonOutput {
				data, _ := json.Marshal(event)
				fmt.Fprintln(w, string(data))
			} else {
				fmt.Fprintf(w, "Submission #%d\n", count)
				fmt.Fprintf(w, "  ID:        %s\n", event.ID)
				fmt.Fprintf(w, "  Outcome:   %s\n", event.Code)
				if event.Error != "" {
					fmt.Fprintf(w, "  Error:     %s\n", event.Error)
				}
				fmt.Fprintf(w, "  Network:   %s\n", event.Network)
				fmt.Fprintf(w, "  Submitted: %s\n\n", event.SubmittedAt.Format(time.RFC3339))
			}
			msg.Ack()

		case <-sigChan:
			if !jsonOutput {
				fmt.Fprintf(w, "\n✅ Received %d submissions\n", count)
			}
			return nil
		}
	}
}
