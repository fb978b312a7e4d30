package payment

import (
	"context"
	"math/rand"
	"time"

	"openbooking/internal/pkg/config"
)

// Gateway is the external charge processor. The simulated implementation
// stands in for a real PSP; the contract that matters is a definite
// SUCCESS/FAILED decision per call.
type Gateway interface {
	Charge(ctx context.Context, amountCents int64) (approved bool, message string)
}

type simulatedGateway struct {
	successRate float64
	minDelay    time.Duration
	maxDelay    time.Duration
	rng         *rand.Rand
}

func NewSimulatedGateway(cfg config.PaymentConfig) Gateway {
	return &simulatedGateway{
		successRate: cfg.GatewaySuccessRate,
		minDelay:    time.Duration(cfg.GatewayMinDelayMS) * time.Millisecond,
		maxDelay:    time.Duration(cfg.GatewayMaxDelayMS) * time.Millisecond,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (g *simulatedGateway) Charge(ctx context.Context, amountCents int64) (bool, string) {
	delay := g.minDelay
	if g.maxDelay > g.minDelay {
		delay += time.Duration(g.rng.Int63n(int64(g.maxDelay - g.minDelay)))
	}
	if delay > 0 {
		select {
		case <-ctx.Done():
			return false, "payment cancelled"
		case <-time.After(delay):
		}
	}

	if g.rng.Float64() < g.successRate {
		return true, "payment approved"
	}
	return false, "payment declined by gateway"
}
