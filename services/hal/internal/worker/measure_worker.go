// services/hal/internal/worker/measure_worker.go
package worker

import (
	"context"
	"time"

	"wsencode-go/services/hal/internal/halcore"
)

// MeasureWorker serialises split-phase measurements across adaptors: Trigger
// starts a conversion, Collect is scheduled when it should be ready and
// retried with backoff while the device reports not-ready. One goroutine per
// worker; adaptors never see concurrent calls from it.
type MeasureWorker struct {
	cfg  halcore.WorkerConfig
	reqQ chan halcore.MeasureReq
	sink chan<- halcore.Result // fan-in sink owned by the service

	pending  map[string]*collectItem
	want     map[string]bool // prio re-trigger requested while pending
	collects []*collectItem
	timer    *time.Timer
}

type collectItem struct {
	id      string
	adaptor halcore.Adaptor
	due     time.Time
	retries int
}

func New(cfg halcore.WorkerConfig, sink chan<- halcore.Result) *MeasureWorker {
	if cfg.TriggerTimeout <= 0 {
		cfg.TriggerTimeout = 100 * time.Millisecond
	}
	if cfg.CollectTimeout <= 0 {
		cfg.CollectTimeout = 250 * time.Millisecond
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 5 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 6
	}
	if cfg.InputQueueSize <= 0 {
		cfg.InputQueueSize = 16
	}
	return &MeasureWorker{
		cfg:     cfg,
		reqQ:    make(chan halcore.MeasureReq, cfg.InputQueueSize),
		sink:    sink,
		pending: map[string]*collectItem{},
		want:    map[string]bool{},
		timer:   time.NewTimer(time.Hour),
	}
}

// Submit enqueues a request. Non-prio requests are dropped when the queue is
// full; prio requests get a short grace window.
func (w *MeasureWorker) Submit(req halcore.MeasureReq) bool {
	select {
	case w.reqQ <- req:
		return true
	default:
		if req.Prio {
			select {
			case w.reqQ <- req:
				return true
			case <-time.After(5 * time.Millisecond):
			}
		}
		return false
	}
}

func (w *MeasureWorker) Start(ctx context.Context) {
	stopTimer(w.timer)
	go w.loop(ctx)
}

func (w *MeasureWorker) loop(ctx context.Context) {
	for {
		if next := w.minDue(); next.IsZero() {
			resetTimer(w.timer, time.Hour)
		} else {
			resetTimer(w.timer, time.Until(next))
		}
		select {
		case <-ctx.Done():
			return
		case req := <-w.reqQ:
			w.handleReq(ctx, req)
		case <-w.timer.C:
			w.collectDue(ctx)
		}
	}
}

func (w *MeasureWorker) handleReq(ctx context.Context, req halcore.MeasureReq) {
	if _, ok := w.pending[req.ID]; ok {
		// A cycle is already in flight; remember prio interest only.
		if req.Prio {
			w.want[req.ID] = true
		}
		return
	}
	tctx, cancel := context.WithTimeout(ctx, w.cfg.TriggerTimeout)
	after, err := req.Adaptor.Trigger(tctx)
	cancel()
	if err != nil {
		w.emit(halcore.Result{ID: req.ID, Err: err})
		return
	}
	it := &collectItem{id: req.ID, adaptor: req.Adaptor, due: time.Now().Add(after)}
	w.pending[req.ID] = it
	w.collects = append(w.collects, it)
}

func (w *MeasureWorker) collectDue(ctx context.Context) {
	now := time.Now()
	var keep []*collectItem
	for _, it := range w.collects {
		if now.Before(it.due) {
			keep = append(keep, it)
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, w.cfg.CollectTimeout)
		s, err := it.adaptor.Collect(cctx)
		cancel()
		switch {
		case err == nil:
			delete(w.pending, it.id)
			delete(w.want, it.id)
			w.emit(halcore.Result{ID: it.id, Sample: s})
		case err == halcore.ErrNotReady && it.retries < w.cfg.MaxRetries:
			it.retries++
			it.due = now.Add(w.cfg.RetryBackoff)
			keep = append(keep, it)
		default:
			delete(w.pending, it.id)
			w.emit(halcore.Result{ID: it.id, Err: err})
			if w.want[it.id] {
				// A prio request arrived mid-cycle; start a fresh one.
				tctx, cancel := context.WithTimeout(ctx, w.cfg.TriggerTimeout)
				after, terr := it.adaptor.Trigger(tctx)
				cancel()
				if terr == nil {
					it.retries = 0
					it.due = time.Now().Add(after)
					w.pending[it.id] = it
					keep = append(keep, it)
				}
				delete(w.want, it.id)
			}
		}
	}
	w.collects = keep
}

func (w *MeasureWorker) emit(r halcore.Result) {
	w.sink <- r
}

func (w *MeasureWorker) minDue() time.Time {
	var min time.Time
	for _, it := range w.collects {
		if min.IsZero() || it.due.Before(min) {
			min = it.due
		}
	}
	return min
}

// Timer helpers; Stop/Reset on an already-fired timer must drain the channel.

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	stopTimer(t)
	t.Reset(d)
}
