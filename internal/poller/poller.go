package poller

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/catalog"
	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/metrics"
	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/protocol"
	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/ws"
)

// Broadcaster fans a message out to every connected client.
type Broadcaster interface {
	Broadcast(msg any, exclude *ws.Client) (int, error)
}

// Config holds poller configuration.
type Config struct {
	Interval time.Duration // Poll interval (default: 5s)
	Timeout  time.Duration // Per-sweep storage timeout (default: 10s)
	IDColumn string        // Identity column (default: idProducto)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 5 * time.Second,
		Timeout:  10 * time.Second,
		IDColumn: catalog.DefaultTable.IDColumn,
	}
}

// Poller periodically publishes records that appeared in the store since
// the last sweep.
type Poller struct {
	cfg   Config
	store catalog.Store
	out   Broadcaster

	mark    atomic.Int64
	sweepMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, store catalog.Store, out Broadcaster) *Poller {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.IDColumn == "" {
		cfg.IDColumn = def.IDColumn
	}
	return &Poller{cfg: cfg, store: store, out: out}
}

// Start reads the initial high-water mark and begins the polling loop. A
// failure to read the mark is returned and the loop is not started.
func (p *Poller) Start(ctx context.Context) error {
	mctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	max, err := p.store.MaxID(mctx)
	cancel()
	if err != nil {
		return fmt.Errorf("poller: read initial mark: %w", err)
	}
	p.mark.Store(max)

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go p.run()

	log.Printf("poller: started (interval=%s, mark=%d)", p.cfg.Interval, max)
	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Printf("poller: stopped (mark=%d)", p.Mark())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Mark returns the largest record identity published so far.
func (p *Poller) Mark() int64 {
	return p.mark.Load()
}

func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if n, err := p.Sweep(p.ctx); err != nil {
				if p.ctx.Err() == nil {
					log.Printf("poller: sweep failed after %d records: %v", n, err)
				}
			} else if n > 0 {
				log.Printf("poller: published %d new records (mark=%d)", n, p.Mark())
			}
		}
	}
}

// Sweep publishes every stored record above the mark in ascending identity
// order and returns how many it published. A storage error leaves the mark
// untouched; a broadcast error stops the sweep before the failed record.
func (p *Poller) Sweep(ctx context.Context) (int, error) {
	p.sweepMu.Lock()
	defer p.sweepMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	mark := p.mark.Load()
	records, err := p.store.QueryNew(ctx, mark)
	if err != nil {
		metrics.PollerErrors.Inc()
		return 0, err
	}

	fresh := make([]catalog.Record, 0, len(records))
	for _, r := range records {
		if id, ok := catalog.RecordID(r, p.cfg.IDColumn); ok && id > mark {
			fresh = append(fresh, r)
		}
	}
	catalog.SortByID(fresh, p.cfg.IDColumn)

	for i, r := range fresh {
		if _, err := p.out.Broadcast(protocol.NewProduct(r), nil); err != nil {
			metrics.PollerErrors.Inc()
			return i, fmt.Errorf("poller: broadcast record: %w", err)
		}
		id, _ := catalog.RecordID(r, p.cfg.IDColumn)
		p.advance(id)
		metrics.PollerPublished.Inc()
	}
	return len(fresh), nil
}

// advance raises the mark to id. The mark never decreases.
func (p *Poller) advance(id int64) {
	for {
		cur := p.mark.Load()
		if id <= cur || p.mark.CompareAndSwap(cur, id) {
			return
		}
	}
}
