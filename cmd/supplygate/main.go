package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/chain"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/config"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/contract"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/engine"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/messaging"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/noncelock"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/signer"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/store"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/www"
)

var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "supplygate.yaml", "path to config file")
	writeConfig := flag.String("write-config", "", "write the effective config to this path and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("supplygate", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg.ApplyEnv()

	if *writeConfig != "" {
		if err := cfg.Save(*writeConfig); err != nil {
			log.Fatalf("write config: %v", err)
		}
		log.Printf("supplygate: wrote config to %s", *writeConfig)
		return
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	// Signing key
	keyHex, err := cfg.PrivateKey()
	if err != nil {
		log.Fatalf("signer: %v", err)
	}
	sgn, err := signer.FromHex(keyHex)
	if err != nil {
		log.Fatalf("signer: %v", err)
	}
	log.Printf("supplygate: signing as %s", sgn.Address().Hex())

	// Ledger node
	dialCtx, dialCancel := context.WithTimeout(context.Background(), cfg.Chain.DialTimeout)
	chainClient, err := chain.Dial(dialCtx, chain.Config{
		RPCURL:      cfg.Chain.RPCURL,
		NonceSource: chain.NonceSource(cfg.Chain.NonceSource),
	})
	dialCancel()
	if err != nil {
		log.Fatalf("chain: %v", err)
	}
	defer chainClient.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), cfg.Chain.DialTimeout)
	if err := chainClient.Ping(pingCtx); err != nil {
		log.Printf("supplygate: ledger node not available (%v)", err)
	} else {
		log.Printf("supplygate: ledger node connected (%s)", chainClient.Name())
	}
	pingCancel()

	// Contract
	parsed, err := contract.LoadABI(cfg.Chain.ABIPath)
	if err != nil {
		log.Fatalf("contract: %v", err)
	}
	if !common.IsHexAddress(cfg.Chain.ContractAddress) {
		log.Fatalf("contract: invalid address %q", cfg.Chain.ContractAddress)
	}
	ctr := contract.New(common.HexToAddress(cfg.Chain.ContractAddress), parsed)
	if err := ctr.Validate(); err != nil {
		log.Fatalf("contract: %v", err)
	}

	// Nonce lock
	var locker noncelock.Locker = noncelock.NewLocal()
	if cfg.Chain.NonceLock == "redis" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		rl := noncelock.NewRedis(redisClient, "supplygate", cfg.Chain.LockTTL)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rl.Ping(ctx)
		cancel()
		if err != nil {
			log.Fatalf("nonce lock: redis not available: %v", err)
		}
		log.Printf("supplygate: redis nonce lock (%s)", cfg.Redis.Address)
		locker = rl
	}

	// Database
	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	log.Printf("supplygate: database open (%s)", cfg.Database.Driver)

	// Messaging client
	msgClient := messaging.NewClient(&cfg.Messaging)
	if err := msgClient.Connect(); err != nil {
		log.Printf("supplygate: messaging connect failed (%v)", err)
	} else if msgClient.Backend() != messaging.BackendNone {
		log.Printf("supplygate: messaging connected (%s)", msgClient.Backend())
	}
	defer msgClient.Close()

	// Engine
	eng, err := engine.New(engine.Config{
		AppConfig: cfg,
		DB:        db,
		Chain:     chainClient,
		Signer:    sgn,
		Contract:  ctr,
		Locker:    locker,
		MsgClient: msgClient,
	})
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	eng.Start()
	defer eng.Stop()

	// Outbox drainer
	if msgClient.Backend() != messaging.BackendNone {
		drainer := messaging.NewOutboxDrainer(db, msgClient, cfg.Messaging.OutboxDrainInterval)
		drainer.Start()
		defer drainer.Stop()
	}

	// Web server
	handler, stopWeb := www.NewRouter(eng)

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("supplygate: web server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("web server: %v", err)
		}
	}()

	log.Printf("supplygate: ready")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("supplygate: shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	stopWeb()

	log.Printf("supplygate: stopped")
}
