package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brickfi/pool-data/internal/router"
)

// APYWriter consumes APYMsg from the router buffer and writes to the
// apy_points table.
type APYWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	// Input from the message router
	input *router.GrowableBuffer[router.APYMsg]

	// Database
	db *pgxpool.Pool

	// Batching
	batch       []apyRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics WriterMetrics
}

// NewAPYWriter creates a new APYWriter.
func NewAPYWriter(
	cfg WriterConfig,
	input *router.GrowableBuffer[router.APYMsg],
	db *pgxpool.Pool,
	logger *slog.Logger,
) *APYWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &APYWriter{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
		batch:  make([]apyRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming messages and writing to the database.
func (w *APYWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("apy writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer.
func (w *APYWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping apy writer")

	if w.cancel != nil {
		w.cancel()
	}

	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("apy writer stopped")
	case <-ctx.Done():
		w.logger.Warn("apy writer stop timed out")
	}

	// Final flush on the caller's context; the run context is already cancelled.
	w.flush(ctx)

	return nil
}

// Stats returns current metrics.
func (w *APYWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads from the input buffer and accumulates batches.
func (w *APYWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			msg, ok := w.input.TryReceive()
			if !ok {
				select {
				case <-w.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}

			w.handleMessage(msg)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *APYWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

// handleMessage transforms and adds a message to the batch.
func (w *APYWriter) handleMessage(msg router.APYMsg) {
	row := w.transform(msg)

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush(w.ctx)
	}
}

// transform converts an APYMsg to an apyRow.
func (w *APYWriter) transform(msg router.APYMsg) apyRow {
	return apyRow{
		ExchangeTs:  msg.ExchangeTs,
		ReceivedAt:  msg.ReceivedAt.UnixMicro(),
		PoolAddress: msg.PoolAddress,
		Tranche:     msg.Tranche,
		OldAPY:      msg.OldAPY,
		NewAPY:      msg.NewAPY,
	}
}

// flush writes the current batch to the database.
func (w *APYWriter) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	batch := w.batch
	w.batch = make([]apyRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed apy points",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *APYWriter) batchInsert(ctx context.Context, rows []apyRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO apy_points (exchange_ts, received_at, pool_address, tranche, old_apy, new_apy)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (pool_address, tranche, exchange_ts) DO NOTHING
		`, r.ExchangeTs, r.ReceivedAt, r.PoolAddress, r.Tranche, r.OldAPY, r.NewAPY)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
