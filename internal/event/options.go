package event

import (
	"reflect"

	"github.com/dshills/mvpkit/internal/event/schedule"
	"github.com/dshills/mvpkit/internal/logging"
)

// ErrorHandler receives every isolated subscriber failure.
type ErrorHandler func(err error)

// aggregatorConfig holds aggregator configuration.
type aggregatorConfig struct {
	logger           logging.Logger
	errorHandler     ErrorHandler
	defaultScheduler schedule.Scheduler
}

func defaultAggregatorConfig() aggregatorConfig {
	return aggregatorConfig{
		logger: logging.NewNop(),
	}
}

// Option configures an Aggregator.
type Option func(*aggregatorConfig)

// WithLogger sets the logger that records subscriber failures and sweeps.
func WithLogger(l logging.Logger) Option {
	return func(c *aggregatorConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithErrorHandler sets the callback that receives subscriber failures.
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *aggregatorConfig) {
		c.errorHandler = h
	}
}

// WithDefaultScheduler sets the scheduler used by subscriptions that do not
// name one. Without it such subscriptions run on the publisher's goroutine.
func WithDefaultScheduler(s schedule.Scheduler) Option {
	return func(c *aggregatorConfig) {
		c.defaultScheduler = s
	}
}

// subscriptionConfig contains per-subscription settings.
type subscriptionConfig struct {
	scheduler  schedule.Scheduler
	filter     func(any) bool
	filterType reflect.Type
	once       bool
	scope      *Scope
}

// SubscriptionOption configures a subscription.
type SubscriptionOption func(*subscriptionConfig)

// OnScheduler requires the handler to run on s.
func OnScheduler(s schedule.Scheduler) SubscriptionOption {
	return func(c *subscriptionConfig) {
		c.scheduler = s
	}
}

// WithFilter delivers only messages for which fn returns true.
// T must be the subscribed message type.
func WithFilter[T any](fn func(T) bool) SubscriptionOption {
	return func(c *subscriptionConfig) {
		if fn == nil {
			return
		}
		c.filterType = reflect.TypeFor[T]()
		c.filter = func(msg any) bool {
			m, ok := msg.(T)
			return ok && fn(m)
		}
	}
}

// Once disposes the subscription after its first delivery.
func Once() SubscriptionOption {
	return func(c *subscriptionConfig) {
		c.once = true
	}
}

// WithScope ties the subscription to s; closing s kills it.
func WithScope(s *Scope) SubscriptionOption {
	return func(c *subscriptionConfig) {
		c.scope = s
	}
}
