// Command nostrcore-demo is a thin wiring example over the public contract
// surface: generate a keypair, wrap a direct message, connect to relays
// loaded from an optional YAML config, and flush the outbox. It is a
// demonstration, not a product.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nostrcore/internal/client"
	"nostrcore/internal/config"
	"nostrcore/internal/crypto"
	"nostrcore/internal/giftwrap"
	"nostrcore/internal/nostr"
	"nostrcore/internal/outbox"
	"nostrcore/internal/relay"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "Path to config.yaml (optional)")
	recipientHex := flag.String("recipient", "", "hex-encoded x-only pubkey to send a demo DM to (optional)")
	message := flag.String("message", "hello from nostrcore-demo", "demo message content")
	flag.Parse()

	if *showVersion {
		fmt.Printf("nostrcore-demo version=%s commit=%s\n", version, commit)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	senderPriv, err := crypto.GeneratePrivateKey()
	if err != nil {
		log.Fatalf("nostrcore-demo: generate key: %v", err)
	}
	senderPubBytes, err := crypto.DerivePublicKey(senderPriv)
	if err != nil {
		log.Fatalf("nostrcore-demo: derive pubkey: %v", err)
	}
	senderPub := nostr.EncodeHex(senderPubBytes)
	logger.Info("generated demo identity", "pubkey", senderPub)

	cfg := config.LoadFromPath(*configPath)

	// One transport instance serves both the supervisor (dial/close) and
	// the wire client (send/receive) so a connection the supervisor
	// reports as live actually has a socket the wire client can write to.
	transport := relay.NewWebsocketTransport()
	sup := relay.NewSupervisor(transport, cfg.BackoffConfig(), cfg.HealthCheckConfig(), logger)
	for _, seed := range cfg.Relays {
		sup.Add(seed.URL, seed.Primary)
	}

	ob, err := outbox.Open(cfg.OutboxConfig(), "", logger)
	if err != nil {
		log.Fatalf("nostrcore-demo: open outbox: %v", err)
	}

	wire := relay.NewWireClient(transport)
	cl := client.New(client.Config{PublishRedundancy: cfg.PublishRedundancy}, sup, wire, wire, ob, client.NewMetrics(nil), logger)
	wire.SetDispatcher(cl)
	sup.OnConnect = func(url string) {
		go wire.ReadLoop(ctx, url)
	}

	if *recipientHex != "" {
		recipient, err := hex.DecodeString(*recipientHex)
		if err != nil || len(recipient) != 32 {
			log.Fatalf("nostrcore-demo: --recipient must be 32 bytes hex")
		}
		gw, err := giftwrap.Wrap(senderPriv, senderPub, *recipientHex, *message, giftwrap.SendOptions{}, time.Now())
		if err != nil {
			log.Fatalf("nostrcore-demo: wrap: %v", err)
		}
		result := cl.Publish(ctx, gw, nil)
		logger.Info("publish result", "success", result.Success, "queued", result.Queued, "event_id", gw.ID)
	}

	cl.StartHealthCheck(ctx)
	if err := cl.OnOnline(ctx, cl.OutboxSender()); err != nil {
		logger.Warn("nostrcore-demo: initial online handling failed", "error", err)
	}

	if _, err := cl.SubscribeDirectMessages(ctx, "inbox", senderPriv, time.Now().Add(-24*time.Hour).Unix(), func(msg giftwrap.Unwrapped, relayURL, giftWrapID string) {
		logger.Info("received direct message", "from", msg.SenderPubKey, "relay", relayURL, "gift_wrap_id", giftWrapID, "content", msg.Content)
	}, nil); err != nil {
		logger.Warn("nostrcore-demo: inbox subscribe failed", "error", err)
	}

	<-ctx.Done()
	cl.Disconnect()
	logger.Info("nostrcore-demo stopped")
}
