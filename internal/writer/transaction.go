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

// TransactionWriter consumes TransactionMsg from the router buffer and
// writes to the transactions table.
type TransactionWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	// Input from the message router
	input *router.GrowableBuffer[router.TransactionMsg]

	// Database
	db *pgxpool.Pool

	// Batching
	batch       []transactionRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics WriterMetrics
}

// NewTransactionWriter creates a new TransactionWriter.
func NewTransactionWriter(
	cfg WriterConfig,
	input *router.GrowableBuffer[router.TransactionMsg],
	db *pgxpool.Pool,
	logger *slog.Logger,
) *TransactionWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransactionWriter{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
		batch:  make([]transactionRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming messages and writing to the database.
func (w *TransactionWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("transaction writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer.
func (w *TransactionWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping transaction writer")

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
		w.logger.Info("transaction writer stopped")
	case <-ctx.Done():
		w.logger.Warn("transaction writer stop timed out")
	}

	// Final flush on the caller's context; the run context is already cancelled.
	w.flush(ctx)

	return nil
}

// Stats returns current metrics.
func (w *TransactionWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads from the input buffer and accumulates batches.
func (w *TransactionWriter) consumeLoop() {
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
func (w *TransactionWriter) flushLoop() {
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
func (w *TransactionWriter) handleMessage(msg router.TransactionMsg) {
	row := w.transform(msg)

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush(w.ctx)
	}
}

// transform converts a TransactionMsg to a transactionRow.
func (w *TransactionWriter) transform(msg router.TransactionMsg) transactionRow {
	return transactionRow{
		ID:          msg.ID,
		ExchangeTs:  msg.ExchangeTs,
		ReceivedAt:  msg.ReceivedAt.UnixMicro(),
		PoolAddress: msg.PoolAddress,
		Kind:        msg.Kind,
		Tranche:     msg.Tranche,
		Wallet:      msg.Wallet,
		TxHash:      msg.TxHash,
		Amount:      msg.Amount,
	}
}

// flush writes the current batch to the database.
func (w *TransactionWriter) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	batch := w.batch
	w.batch = make([]transactionRow, 0, w.cfg.BatchSize)
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

	w.logger.Debug("flushed transactions",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *TransactionWriter) batchInsert(ctx context.Context, rows []transactionRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO transactions (id, exchange_ts, received_at, pool_address, kind, tranche, wallet, tx_hash, amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, r.ExchangeTs, r.ReceivedAt, r.PoolAddress, r.Kind, r.Tranche, r.Wallet, r.TxHash, r.Amount)
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
