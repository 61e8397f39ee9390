package session

import (
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config is the reconnection policy supplied by the embedding application.
type Config struct {
	// Attempts bounds the connection attempts per outage, first attempt included.
	Attempts int
	// Delay is the wait between attempts. With Multiplier > 1 it is the first wait.
	Delay time.Duration
	// Multiplier grows the delay after every failed attempt. 1 keeps it fixed.
	Multiplier float64
	// MaxDelay caps the delay when Multiplier > 1. Zero keeps the backoff default.
	MaxDelay time.Duration
	Logger   *slog.Logger
}

// DefaultConfig returns 5 attempts one second apart.
func DefaultConfig() Config {
	return Config{
		Attempts:   5,
		Delay:      time.Second,
		Multiplier: 1,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Attempts < 1 {
		c.Attempts = def.Attempts
	}
	if c.Delay <= 0 {
		c.Delay = def.Delay
	}
	if c.Multiplier < 1 {
		c.Multiplier = def.Multiplier
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// policy builds a fresh backoff for one outage.
func (c Config) policy() backoff.BackOff {
	var b backoff.BackOff
	if c.Multiplier > 1 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = c.Delay
		exp.Multiplier = c.Multiplier
		exp.RandomizationFactor = 0
		exp.MaxElapsedTime = 0
		if c.MaxDelay > 0 {
			exp.MaxInterval = c.MaxDelay
		}
		b = exp
	} else {
		b = backoff.NewConstantBackOff(c.Delay)
	}
	return backoff.WithMaxRetries(b, uint64(c.Attempts-1))
}
