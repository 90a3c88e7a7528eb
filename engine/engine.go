// Package engine assembles the gateway: it owns the event bus, bridges the
// lifecycle engine onto it, records every attempted transition and watches
// collaborator health.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/chain"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/config"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/contract"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/lifecycle"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/messaging"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/noncelock"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/signer"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/store"
)

type LogFunc func(format string, args ...any)

type Config struct {
	AppConfig *config.Config
	DB        *store.DB
	Chain     chain.Backend
	Signer    *signer.Signer
	Contract  *contract.Contract
	Locker    noncelock.Locker
	MsgClient *messaging.Client
	LogFunc   LogFunc
}

type Engine struct {
	cfg       *config.Config
	db        *store.DB
	chain     chain.Backend
	signer    *signer.Signer
	msgClient *messaging.Client
	lifecycle *lifecycle.Engine
	Events    *EventBus
	logFn     LogFunc

	stopOnce sync.Once
	stopChan chan struct{}

	statusMu       sync.RWMutex
	chainConnected bool
	msgConnected   bool
}

func New(c Config) (*Engine, error) {
	if c.AppConfig == nil || c.DB == nil || c.MsgClient == nil {
		return nil, errors.New("engine: app config, database and messaging client are required")
	}
	logFn := c.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}
	e := &Engine{
		cfg:       c.AppConfig,
		db:        c.DB,
		chain:     c.Chain,
		signer:    c.Signer,
		msgClient: c.MsgClient,
		Events:    NewEventBus(),
		logFn:     logFn,
		stopChan:  make(chan struct{}),
	}
	le := &lifecycleEmitter{bus: e.Events}
	if c.Signer != nil {
		le.from = c.Signer.Address().Hex()
	}
	policy, err := PolicyFromConfig(&c.AppConfig.Lifecycle)
	if err != nil {
		return nil, err
	}
	lc, err := lifecycle.New(c.Chain, c.Signer, c.Contract, c.Locker, le, policy)
	if err != nil {
		return nil, err
	}
	e.lifecycle = lc
	return e, nil
}

// PolicyFromConfig converts the lifecycle section into wei-denominated
// transaction parameters.
func PolicyFromConfig(lc *config.LifecycleConfig) (lifecycle.Policy, error) {
	valueWei, err := chain.ParseWei(lc.DepositValueEth)
	if err != nil {
		return lifecycle.Policy{}, fmt.Errorf("lifecycle.deposit_value_eth: %w", err)
	}
	return lifecycle.Policy{
		DocumentURI:     lc.DocumentURI(),
		GasLimit:        lc.GasLimit,
		DepositGasPrice: chain.GweiToWei(lc.DepositGasPriceGwei),
		DepositValue:    valueWei,
	}, nil
}

func (e *Engine) Start() {
	e.wireEventHandlers()

	// Emit initial connection status
	e.checkConnectionStatus()

	go e.connectionHealthLoop()

	e.logFn("engine: started (signer %s, %s)", e.signer.Address().Hex(), e.chain.Name())
}

func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopChan) })
	e.logFn("engine: stopped")
}

// Accessors
func (e *Engine) DB() *store.DB                { return e.db }
func (e *Engine) AppConfig() *config.Config    { return e.cfg }
func (e *Engine) Lifecycle() *lifecycle.Engine { return e.lifecycle }
func (e *Engine) Chain() chain.Backend         { return e.chain }
func (e *Engine) Signer() *signer.Signer       { return e.signer }
func (e *Engine) MsgClient() *messaging.Client { return e.msgClient }

// ChainConnected reports the result of the last node ping.
func (e *Engine) ChainConnected() bool {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.chainConnected
}

// MessagingConnected reports the last observed broker state.
func (e *Engine) MessagingConnected() bool {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.msgConnected
}

func (e *Engine) checkConnectionStatus() {
	timeout := e.cfg.Chain.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	err := e.chain.Ping(ctx)
	cancel()

	var events []Event

	e.statusMu.Lock()
	// Chain
	if err == nil {
		if !e.chainConnected {
			e.chainConnected = true
			events = append(events, Event{Type: EventChainConnected, Payload: ConnectionEvent{Detail: e.chain.Name() + " connected"}})
		}
	} else if e.chainConnected {
		e.chainConnected = false
		events = append(events, Event{Type: EventChainDisconnected, Payload: ConnectionEvent{Detail: err.Error()}})
	}

	// Messaging
	if e.msgClient.Backend() != messaging.BackendNone {
		if e.msgClient.IsConnected() {
			if !e.msgConnected {
				e.msgConnected = true
				events = append(events, Event{Type: EventMessagingConnected, Payload: ConnectionEvent{Detail: e.msgClient.Backend() + " connected"}})
			}
		} else if e.msgConnected {
			e.msgConnected = false
			events = append(events, Event{Type: EventMessagingDisconnected, Payload: ConnectionEvent{Detail: e.msgClient.Backend() + " disconnected"}})
		}
	}
	e.statusMu.Unlock()

	for _, evt := range events {
		e.Events.Emit(evt)
	}
}

func (e *Engine) connectionHealthLoop() {
	interval := e.cfg.Chain.HealthInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.checkConnectionStatus()
		}
	}
}
