package ber

import "log/slog"

const (
	// DefaultMaxDepth bounds the frame stack of a session.
	DefaultMaxDepth = 40
	// DefaultMaxChoices bounds how many untagged CHOICE heads one lookup
	// may pass through.
	DefaultMaxChoices = 8
	// DefaultWindow is the number of bytes an encoder holds back waiting
	// for a definite length.
	DefaultWindow = 4096
	// MinBufferSize is the smallest dst accepted by Encoder.Encode.
	MinBufferSize = 16
)

// Option configures a Decoder or Encoder.
type Option func(*options)

type options struct {
	maxDepth   int
	maxChoices int
	window     int
	logger     *slog.Logger
}

func defaultOptions() options {
	return options{
		maxDepth:   DefaultMaxDepth,
		maxChoices: DefaultMaxChoices,
		window:     DefaultWindow,
	}
}

// WithMaxDepth sets the maximum frame depth. Deeper input fails with
// ErrStackOverflow. Values below 2 are ignored.
func WithMaxDepth(n int) Option {
	return func(o *options) {
		if n >= 2 {
			o.maxDepth = n
		}
	}
}

// WithMaxChoices sets how many nested untagged CHOICE heads a lookup may
// enter before failing with ErrChoicesOverflow. Values below 1 are ignored.
func WithMaxChoices(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.maxChoices = n
		}
	}
}

// WithWindow sets the encoder's staging window. Constructed values whose
// content outgrows the window are emitted with indefinite length. Only
// encoders use it; values below MinBufferSize are ignored.
func WithWindow(n int) Option {
	return func(o *options) {
		if n >= MinBufferSize {
			o.window = n
		}
	}
}

// WithLogger sets a logger for debug and trace output. If not set, logging
// is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
