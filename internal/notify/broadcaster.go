package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/IBM/sarama"
)

// Event is the JSON shape published to the broadcast topic — a thin
// pointer back at the durable record, not the record itself, so
// consumers that want the full payload go fetch it rather than this
// module growing a second copy of the wire format.
type Event struct {
	Sequence uint64 `json:"sequence"`
	Kind     uint8  `json:"kind"`
	IdemKey  string `json:"idem_key"`
}

// Broadcaster polls the Outbox for NEW entries and publishes them to
// Kafka, advancing each through SENT then ACKED as the producer
// confirms delivery.
type Broadcaster struct {
	outbox   *Outbox
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
	logger   *log.Logger
}

// Config configures a Broadcaster.
type Config struct {
	Brokers  []string
	Topic    string
	Interval time.Duration
}

// New dials the Kafka brokers and returns a Broadcaster bound to
// outbox. cfg.Interval defaults to 250ms.
func New(outbox *Outbox, cfg Config, logger *log.Logger) (*Broadcaster, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = 250 * time.Millisecond
	}
	if logger == nil {
		logger = log.Default()
	}

	scfg := sarama.NewConfig()
	scfg.Producer.Return.Successes = true
	scfg.Producer.RequiredAcks = sarama.WaitForAll
	scfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(cfg.Brokers, scfg)
	if err != nil {
		return nil, err
	}

	return &Broadcaster{
		outbox:   outbox,
		producer: producer,
		topic:    cfg.Topic,
		interval: cfg.Interval,
		logger:   logger,
	}, nil
}

// Start first moves every entry left in SENT by an earlier run (marked
// but never acknowledged) back to NEW so it is delivered again, then
// launches the polling loop in a new goroutine, stopping when ctx is
// cancelled.
func (b *Broadcaster) Start(ctx context.Context) {
	if err := b.outbox.ScanByState(StateSent, func(e Entry) error {
		e.State = StateNew
		return b.outbox.put(e)
	}); err != nil {
		b.logger.Printf("broadcaster: requeue unacked entries: %v", err)
	}
	b.logger.Println("broadcaster: started")

	go func() {
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.drainOnce()
			}
		}
	}()
}

// drainOnce publishes every NEW entry once. A publish failure is
// logged and left in NEW for the next tick to retry — the outbox
// itself is the retry queue.
func (b *Broadcaster) drainOnce() {
	_ = b.outbox.ScanByState(StateNew, func(e Entry) error {
		value, err := json.Marshal(Event{Sequence: e.Sequence, Kind: uint8(e.Kind), IdemKey: e.IdemKey})
		if err != nil {
			return nil
		}

		if err := b.outbox.MarkSent(e.Sequence, e.Retries+1); err != nil {
			b.logger.Printf("broadcaster: mark sent seq %d: %v", e.Sequence, err)
		}

		msg := &sarama.ProducerMessage{Topic: b.topic, Key: sarama.StringEncoder(e.IdemKey), Value: sarama.ByteEncoder(value)}
		if _, _, err := b.producer.SendMessage(msg); err != nil {
			b.logger.Printf("broadcaster: send seq %d: %v", e.Sequence, err)
			e.Retries++
			e.LastAttempt = time.Now().UnixNano()
			if err := b.outbox.put(e); err != nil {
				b.logger.Printf("broadcaster: requeue seq %d: %v", e.Sequence, err)
			}
			return nil
		}

		if err := b.outbox.MarkAcked(e.Sequence); err != nil {
			b.logger.Printf("broadcaster: mark acked seq %d: %v", e.Sequence, err)
		}
		return nil
	})
}

// Close closes the underlying producer.
func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
