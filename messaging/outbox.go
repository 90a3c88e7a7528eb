package messaging

import (
	"log"
	"time"

	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/protocol"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/store"
)

const drainBatch = 50

// OutboxDrainer periodically sends pending outbox messages.
type OutboxDrainer struct {
	db       *store.DB
	pub      Publisher
	interval time.Duration
	stopChan chan struct{}
	done     chan struct{}
}

func NewOutboxDrainer(db *store.DB, pub Publisher, interval time.Duration) *OutboxDrainer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &OutboxDrainer{
		db:       db,
		pub:      pub,
		interval: interval,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (d *OutboxDrainer) Start() {
	go d.run()
}

// Stop ends the drain loop and waits for an in-flight drain to finish.
func (d *OutboxDrainer) Stop() {
	close(d.stopChan)
	<-d.done
}

func (d *OutboxDrainer) run() {
	defer close(d.done)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopChan:
			return
		case <-ticker.C:
			d.Drain()
		}
	}
}

// Drain publishes one batch of pending messages and returns how many were
// sent. Expired envelopes are acked without publishing.
func (d *OutboxDrainer) Drain() int {
	msgs, err := d.db.ListPendingOutbox(drainBatch)
	if err != nil {
		log.Printf("outbox: list pending: %v", err)
		return 0
	}
	sent := 0
	for _, msg := range msgs {
		if hdr, err := protocol.DecodeHeader(msg.Payload); err == nil && protocol.IsExpiredHeader(hdr) {
			log.Printf("outbox: dropping expired %s %s after %d retries", msg.MsgType, hdr.ID, msg.Retries)
			d.db.AckOutbox(msg.ID)
			continue
		}
		if err := d.pub.Publish(msg.Topic, msg.Key, msg.Payload); err != nil {
			log.Printf("outbox: publish to %s failed: %v", msg.Topic, err)
			d.db.IncrementOutboxRetries(msg.ID)
			continue
		}
		d.db.AckOutbox(msg.ID)
		sent++
	}
	return sent
}
