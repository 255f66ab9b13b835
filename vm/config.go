package vm

import (
	"errors"
	"fmt"
)

// Config fixes the shape of a machine: how long a run may be, how large a
// program may be, and how much stack and memory it has. The proving
// circuit is generated from the same values, so two configs that compare
// equal describe the same circuit.
type Config struct {
	// MaxSteps is the number of trace rows; shorter runs are padded.
	MaxSteps int
	// MaxProgramLen is the number of program slots in the circuit.
	MaxProgramLen int
	// StackDepth bounds the operand stack.
	StackDepth int
	// MemorySize is the number of addressable memory cells.
	MemorySize int
}

// Option configures a Config.
type Option func(*Config) error

var errInvalidConfig = errors.New("invalid machine configuration")

func DefaultConfig() Config {
	return Config{
		MaxSteps:      32,
		MaxProgramLen: 32,
		StackDepth:    8,
		MemorySize:    8,
	}
}

// NewConfig starts from DefaultConfig and applies opts in order.
func NewConfig(opts ...Option) (Config, error) {
	cfg := DefaultConfig()
	for _, o := range opts {
		if err := o(&cfg); err != nil {
			return Config{}, fmt.Errorf("apply option: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func WithMaxSteps(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return fmt.Errorf("%w: max steps %d", errInvalidConfig, n)
		}
		c.MaxSteps = n
		return nil
	}
}

func WithMaxProgramLen(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return fmt.Errorf("%w: max program length %d", errInvalidConfig, n)
		}
		c.MaxProgramLen = n
		return nil
	}
}

func WithStackDepth(n int) Option {
	return func(c *Config) error {
		if n < 2 {
			return fmt.Errorf("%w: stack depth %d", errInvalidConfig, n)
		}
		c.StackDepth = n
		return nil
	}
}

func WithMemorySize(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return fmt.Errorf("%w: memory size %d", errInvalidConfig, n)
		}
		c.MemorySize = n
		return nil
	}
}

// Validate checks the invariants NewConfig guarantees, for configs built
// as struct literals or read back from artifacts.
func (c Config) Validate() error {
	switch {
	case c.MaxSteps < 1:
		return fmt.Errorf("%w: max steps %d", errInvalidConfig, c.MaxSteps)
	case c.MaxProgramLen < 1:
		return fmt.Errorf("%w: max program length %d", errInvalidConfig, c.MaxProgramLen)
	case c.StackDepth < 2:
		// binary operators need two operands
		return fmt.Errorf("%w: stack depth %d", errInvalidConfig, c.StackDepth)
	case c.MemorySize < 1:
		return fmt.Errorf("%w: memory size %d", errInvalidConfig, c.MemorySize)
	}
	return nil
}

// ID names the shape, e.g. in key file names.
func (c Config) ID() string {
	return fmt.Sprintf("n%d-p%d-s%d-m%d", c.MaxSteps, c.MaxProgramLen, c.StackDepth, c.MemorySize)
}

// StateWidth is the length of State.Vector.
func (c Config) StateWidth() int {
	return 3 + c.StackDepth + c.MemorySize
}
