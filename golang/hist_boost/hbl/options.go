package hbl

import "go.uber.org/zap"

//Option customizes a booster at construction.
type Option func(*Booster)

//WithLogger sets the logger used for round and eval reports. Nil keeps the no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Booster) {
		if logger != nil {
			b.logger = logger
		}
	}
}

//WithMetrics attaches prometheus collectors updated after every round and eval.
func WithMetrics(metrics *Metrics) Option {
	return func(b *Booster) {
		b.metrics = metrics
	}
}
