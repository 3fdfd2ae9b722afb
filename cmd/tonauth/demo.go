package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/layer-3/tonauth/adapters/backend"
	"github.com/layer-3/tonauth/adapters/bridge/simwallet"
	"github.com/layer-3/tonauth/adapters/events"
	"github.com/layer-3/tonauth/adapters/store"
	"github.com/layer-3/tonauth/core"
	"github.com/layer-3/tonauth/dispatch"
	"github.com/layer-3/tonauth/ports"
	"github.com/layer-3/tonauth/session"
	apihttp "github.com/layer-3/tonauth/transport/http"
)

var (
	demoBackend string
	demoDomain  string
	demoTimeout time.Duration
	demoNATS    string
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Connect a simulated wallet to a running backend and exercise every request",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), demoTimeout)
		defer cancel()

		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		out := json.NewEncoder(cmd.OutOrStdout())
		out.SetIndent("", "  ")

		client := backend.NewClient(demoBackend, nil)
		wallet, err := simwallet.New(demoDomain)
		if err != nil {
			return err
		}

		var publisher ports.EventPublisher = events.NoopPublisher{}
		if demoNATS != "" {
			pub, err := events.NewNATSPublisher(demoNATS)
			if err != nil {
				return err
			}
			defer pub.Close()
			publisher = pub
			logger.Info("publishing connection events to NATS", "nats_url", demoNATS)
		}

		manager := session.NewManager(wallet, client, client, store.NewMemoryKV(),
			session.WithLogger(logger),
			session.WithEventPublisher(publisher),
		)
		defer manager.Close()
		dispatcher := dispatch.New(wallet, manager, dispatch.NewLogSink(logger), dispatch.WithLogger(logger))

		if err := manager.ConnectWithProof(ctx); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		result, err := manager.VerifyProof(ctx)
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		if err := out.Encode(map[string]any{"valid": result.Valid(), "checks": result}); err != nil {
			return err
		}
		if !result.Valid() {
			return fmt.Errorf("proof rejected: %s", result.Describe())
		}

		token := manager.Snapshot().AuthToken
		info, err := client.AccountInfo(ctx, token)
		if err != nil {
			return fmt.Errorf("account info: %w", err)
		}
		if err := out.Encode(info); err != nil {
			return err
		}

		signed, err := dispatcher.SignData(ctx, core.SignDataPayload{
			Type: core.SignDataText,
			Text: "Confirm login to " + demoDomain,
		}, nil)
		if err != nil {
			return fmt.Errorf("sign data: %w", err)
		}
		account := wallet.Account()
		check, err := client.CheckSignData(ctx, apihttp.CheckSignDataRequest{
			Address:         signed.Address,
			Network:         account.Chain,
			PublicKey:       account.PublicKey,
			Signature:       signed.Signature,
			Timestamp:       signed.Timestamp,
			Domain:          signed.Domain,
			Payload:         signed.Payload,
			WalletStateInit: account.WalletStateInit,
		})
		if err != nil {
			return fmt.Errorf("check sign data: %w", err)
		}
		if err := out.Encode(check); err != nil {
			return err
		}

		tx, err := dispatcher.SendTransaction(ctx, core.Transaction{
			ValidUntil: time.Now().Add(5 * time.Minute).Unix(),
			Network:    account.Chain,
			Messages: []core.Message{{
				Address: account.Address,
				Amount:  "1000000",
			}},
		}, nil)
		if err != nil {
			return fmt.Errorf("send transaction: %w", err)
		}
		boc, err := base64.StdEncoding.DecodeString(tx.BOC)
		if err != nil {
			return fmt.Errorf("wallet returned an undecodable BOC: %w", err)
		}
		if err := out.Encode(map[string]any{"boc": tx.BOC, "bytes": len(boc)}); err != nil {
			return err
		}

		if err := client.Logout(ctx, token); err != nil {
			return fmt.Errorf("logout: %w", err)
		}
		if err := manager.Disconnect(ctx); err != nil {
			return err
		}
		return out.Encode(manager.Events())
	},
}

func init() {
	demoCmd.Flags().StringVar(&demoBackend, "backend", "http://localhost:8080", "backend base URL")
	demoCmd.Flags().StringVar(&demoDomain, "domain", "localhost", "app domain the wallet signs for")
	demoCmd.Flags().DurationVar(&demoTimeout, "timeout", 30*time.Second, "overall timeout")
	demoCmd.Flags().StringVar(&demoNATS, "nats", os.Getenv("TONAUTH_NATS_URL"), "NATS URL to publish connection events to")
}
