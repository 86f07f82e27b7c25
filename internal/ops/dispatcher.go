package ops

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"graf/internal/bands"
	"graf/internal/cfg"
	"graf/internal/db"
	"graf/internal/logging"
	"graf/internal/metrics"
)

const (
	msgInternal  = "Internal error"
	msgNoAction  = "Operation not set"
	msgNoSupport = "Operation not supported"
)

// Store opens the transaction a request runs in.
type Store interface {
	BeginSession(ctx context.Context) (*db.Session, error)
}

// handler runs one operation inside s. A non-nil error means an internal
// failure; expected outcomes such as validation errors come back as a Result.
type handler func(ctx context.Context, s *db.Session, req Request) (Result, error)

// Dispatcher routes requests to operation handlers, one transaction each.
type Dispatcher struct {
	store    Store
	bounds   cfg.Bounds
	retries  int
	bands    *bands.Picker
	logger   *zap.Logger
	metrics  *metrics.Metrics
	handlers map[string]handler
}

// NewDispatcher creates a dispatcher. A nil logger or metrics is replaced by
// a no-op logger and a private registry.
func NewDispatcher(store Store, conf *cfg.Config, picker *bands.Picker, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New(nil)
	}

	d := &Dispatcher{
		store:   store,
		bounds:  conf.Bounds,
		retries: conf.MaxTxRetries,
		bands:   picker,
		logger:  logger,
		metrics: m,
	}
	d.handlers = map[string]handler{
		"create_node": d.createNode,
		"create_edge": d.createEdge,
		"edit_node":   d.editNode,
		"move_node":   d.moveNode,
		"delete_node": d.deleteNode,
		"delete_edge": d.deleteEdge,
		"fetch_graph": d.fetchGraph,

		// Names used by earlier clients.
		"add_node":   d.createNode,
		"add_edge":   d.createEdge,
		"del_node":   d.deleteNode,
		"del_edge":   d.deleteEdge,
		"fetch_json": d.fetchGraph,
	}
	return d
}

// Actions returns every accepted operation name, sorted.
func (d *Dispatcher) Actions() []string {
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the request and returns its Result. The transaction is
// committed only when the operation succeeds.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Result {
	start := time.Now()
	action := req.Action()

	res := d.dispatch(ctx, action, req)

	label := action
	if res.Status == StatusUnsupported {
		label = "unsupported"
	}
	d.metrics.ObserveOperation(label, int(res.Status), time.Since(start))
	return res
}

func (d *Dispatcher) dispatch(ctx context.Context, action string, req Request) Result {
	if action == "" {
		return failure(StatusNoAction, msgNoAction)
	}
	h, ok := d.handlers[action]
	if !ok {
		res := failure(StatusUnsupported, msgNoSupport)
		res.Action = action
		return res
	}

	logger := logging.FromContext(ctx, d.logger).With(zap.String("action", action))

	for attempt := 0; ; attempt++ {
		res, err := d.run(ctx, h, req)
		if err == nil {
			res.Action = action
			return res
		}
		if errors.Is(err, db.ErrConflict) && attempt < d.retries {
			d.metrics.ObserveConflict(action)
			logger.Debug("retrying after conflict", zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}

		logger.Error("operation failed", zap.Int("attempts", attempt+1), zap.Error(err))
		res = failure(StatusInternal, msgInternal)
		res.Action = action
		return res
	}
}

// run executes h in a fresh session.
func (d *Dispatcher) run(ctx context.Context, h handler, req Request) (Result, error) {
	s, err := d.store.BeginSession(ctx)
	if err != nil {
		return Result{}, err
	}
	defer s.Rollback()

	res, err := h(ctx, s, req)
	if err != nil {
		return Result{}, err
	}
	if !res.OK() {
		return res, nil
	}
	if err := s.Commit(); err != nil {
		return Result{}, fmt.Errorf("committing: %w", err)
	}
	return res, nil
}
