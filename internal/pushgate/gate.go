package pushgate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/surflamp/surf-lamp-processor/internal/models"
)

// Gate keeps one circuit breaker per lamp so a single unreachable device
// stops costing delivery timeouts after a few consecutive failures. An open
// breaker re-admits one trial request after the cooldown.
type Gate struct {
	mu        sync.Mutex
	breakers  map[int64]*gobreaker.CircuitBreaker
	threshold uint32
	cooldown  time.Duration
	logger    *zap.Logger
}

func NewGate(threshold int, cooldown time.Duration, logger *zap.Logger) *Gate {
	if threshold < 1 {
		threshold = 1
	}
	return &Gate{
		breakers:  make(map[int64]*gobreaker.CircuitBreaker),
		threshold: uint32(threshold),
		cooldown:  cooldown,
		logger:    logger,
	}
}

func (g *Gate) breakerFor(lampID int64) *gobreaker.CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cb, ok := g.breakers[lampID]; ok {
		return cb
	}

	settings := gobreaker.Settings{
		Name:        fmt.Sprintf("lamp-%d", lampID),
		MaxRequests: 1,
		Interval:    0,
		Timeout:     g.cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= g.threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			g.logger.Info("Push breaker state changed",
				zap.String("device", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	cb := gobreaker.NewCircuitBreaker(settings)
	g.breakers[lampID] = cb
	return cb
}

// Pusher delivers merged records to devices through the per-lamp gate.
type Pusher struct {
	gate      *Gate
	transport Transport
	logger    *zap.Logger
	now       func() time.Time
}

func NewPusher(gate *Gate, transport Transport, logger *zap.Logger) *Pusher {
	return &Pusher{
		gate:      gate,
		transport: transport,
		logger:    logger,
		now:       time.Now,
	}
}

// Push formats and delivers the record to one device. A lamp without a known
// IP fails before the gate is consulted and does not count against its
// breaker. An open gate is a silent skip.
func (p *Pusher) Push(ctx context.Context, dev models.Device, rec models.SurfRecord) error {
	if dev.ArduinoIP == nil || *dev.ArduinoIP == "" {
		return fmt.Errorf("no IP address on record for arduino %d", dev.ArduinoID)
	}

	cb := p.gate.breakerFor(dev.LampID)
	_, err := cb.Execute(func() (interface{}, error) {
		payload := Format(rec, dev, p.now())
		return nil, p.transport.Send(ctx, *dev.ArduinoIP, payload)
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		p.logger.Debug("Skipping device, push gate open",
			zap.Int64("lamp_id", dev.LampID))
		return nil
	}
	return err
}
