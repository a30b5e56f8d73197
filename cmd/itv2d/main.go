// itv2d is the ITv2 panel-integration gateway daemon.
//
// It listens for PowerSeries NEO panels on the configured TCP port,
// runs the keyed session handshake with each one, and logs the
// decoded notification stream.
//
// Configuration is read from itv2d.yaml in the working directory or
// /etc/itv2d, overridable through ITV2_-prefixed environment
// variables:
//
//	listen_port                          TCP port (default: 3072)
//	integration_access_code_type1        8+ digit decimal string
//	integration_identification_number    8+ digit decimal string
//	integration_access_code_type2        32 hex characters
//	heartbeat_initial_delay              e.g. "10s"
//	heartbeat_interval                   e.g. "30s"
//	transaction_timeout                  e.g. "30s"
//	handshake_timeout                    e.g. "60s"
//
// Example:
//
//	ITV2_INTEGRATION_ACCESS_CODE_TYPE2=000102030405060708090a0b0c0d0e0f itv2d
package main

import (
	"context"
	"errors"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/pion/logging"
	"github.com/spf13/viper"

	"github.com/bhumlicek/itv2/pkg/gateway"
	"github.com/bhumlicek/itv2/pkg/seckey"
	"github.com/bhumlicek/itv2/pkg/session"
)

func main() {
	v := viper.New()
	v.SetConfigName("itv2d")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/itv2d")
	v.SetEnvPrefix("itv2")
	v.AutomaticEnv()

	v.SetDefault("listen_port", gateway.DefaultPort)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Fatalf("reading config: %v", err)
		}
	}

	lf := logging.NewDefaultLoggerFactory()
	logger := lf.NewLogger("itv2d")

	cfg := gateway.Config{
		ListenPort: v.GetInt("listen_port"),
		Secrets: seckey.Secrets{
			AccessCodeType1:      v.GetString("integration_access_code_type1"),
			IdentificationNumber: v.GetString("integration_identification_number"),
			AccessCodeType2:      v.GetString("integration_access_code_type2"),
		},
		HeartbeatInitialDelay: v.GetDuration("heartbeat_initial_delay"),
		HeartbeatInterval:     v.GetDuration("heartbeat_interval"),
		TransactionTimeout:    v.GetDuration("transaction_timeout"),
		HandshakeTimeout:      v.GetDuration("handshake_timeout"),
		LoggerFactory:         lf,
		OnNotification: func(n session.Notification) {
			logger.Infof("%s: %v %+v", n.SessionID, n.Message.Command(), n.Message)
		},
		OnSessionStarted: func(id uuid.UUID, remote net.Addr) {
			logger.Infof("panel %s connected from %s", id, remote)
		},
		OnSessionClosed: func(id uuid.UUID) {
			logger.Infof("panel %s disconnected", id)
		},
	}

	g, err := gateway.New(cfg)
	if err != nil {
		log.Fatalf("configuring gateway: %v", err)
	}
	if err := g.Start(); err != nil {
		log.Fatalf("starting gateway: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	if err := g.Stop(); err != nil && !errors.Is(err, gateway.ErrClosed) {
		logger.Errorf("stop: %v", err)
	}
}
