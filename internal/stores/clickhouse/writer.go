package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"flowmap/internal/config"
	"flowmap/internal/domain"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"gitlab.com/nevasik7/alerting/logger"
)

// One decoded transfer as stored for long-term analysis. Raw amount goes
// as a Decimal(38,0) string so nothing is rounded before it reaches CH.
type TransferRow struct {
	FetchedAt    time.Time
	Period       string
	EventID      string
	TxHash       string
	LogIndex     uint32
	TokenAddress string
	FromAddress  string
	ToAddress    string
	FromProtocol string // empty when the sender is a plain wallet
	ToProtocol   string
	RawAmount    string
	BlockNumber  uint64
}

// Writer batches transfer rows into ClickHouse off the hot path. Enqueue
// never blocks the aggregation run on a slow insert beyond channel capacity.
type Writer struct {
	log  logger.Logger
	conn ch.Conn
	cfg  config.ClickHouseConfig

	inCh      chan TransferRow
	closedCh  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewWriter(log logger.Logger, conn ch.Conn, cfg config.ClickHouseConfig) *Writer {
	if cfg.Writer.BatchMaxRows <= 0 {
		cfg.Writer.BatchMaxRows = 1000
	}
	if cfg.Writer.BatchMaxInterval <= 0 {
		cfg.Writer.BatchMaxInterval = 500 * time.Millisecond
	}
	if cfg.Writer.MaxRetries < 0 {
		cfg.Writer.MaxRetries = 0
	}
	if cfg.Writer.RetryBackoff <= 0 {
		cfg.Writer.RetryBackoff = 200 * time.Millisecond
	}

	w := &Writer{
		log:      log,
		conn:     conn,
		cfg:      cfg,
		inCh:     make(chan TransferRow, 8192),
		closedCh: make(chan struct{}),
	}

	w.wg.Add(1)
	go w.loop()

	return w
}

// Row converts one classified event into its storage form.
func Row(ev domain.TransferEvent, period domain.Period, fromProto, toProto string, fetchedAt time.Time) TransferRow {
	return TransferRow{
		FetchedAt:    fetchedAt,
		Period:       string(period),
		EventID:      domain.MakeEventID(ev.TxHash, ev.LogIndex),
		TxHash:       ev.TxHash,
		LogIndex:     ev.LogIndex,
		TokenAddress: ev.Contract,
		FromAddress:  ev.From,
		ToAddress:    ev.To,
		FromProtocol: fromProto,
		ToProtocol:   toProto,
		RawAmount:    ev.RawAmount.String(),
		BlockNumber:  ev.BlockNumber,
	}
}

func (w *Writer) Enqueue(row TransferRow) error {
	select {
	case <-w.closedCh:
		return errors.New("clickhouse writer closed")
	default:
	}

	select {
	case w.inCh <- row:
		return nil
	case <-w.closedCh:
		return errors.New("clickhouse writer closed")
	}
}

func (w *Writer) Health(ctx context.Context) error {
	return w.conn.Ping(ctx)
}

func (w *Writer) Close(ctx context.Context) error {
	w.closeOnce.Do(func() {
		close(w.closedCh)
		close(w.inCh)
	})

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) loop() {
	defer w.wg.Done()

	batch := make([]TransferRow, 0, w.cfg.Writer.BatchMaxRows)
	ticker := time.NewTicker(w.cfg.Writer.BatchMaxInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := w.insertBatch(context.Background(), batch); err != nil {
			w.log.Errorf("Failed insert [%d] rows by batch to clickhouse, error=%v", len(batch), err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case row, ok := <-w.inCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, row)
			if len(batch) >= w.cfg.Writer.BatchMaxRows {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (w *Writer) insertBatch(ctx context.Context, rows []TransferRow) error {
	backoff := w.cfg.Writer.RetryBackoff
	query := fmt.Sprintf(`
		INSERT INTO %s (
			fetched_at,
			period,
			event_id,
			tx_hash,
			log_index,
			token_address,
			from_address,
			to_address,
			from_protocol,
			to_protocol,
			raw_amount,
			block_number
		)
	`, w.cfg.Table)

	var lastErr error
	for attempt := 0; attempt <= w.cfg.Writer.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}

		batch, err := w.conn.PrepareBatch(ctx, query)
		if err != nil {
			lastErr = err
			continue
		}

		appendFailed := false
		for i := range rows {
			r := &rows[i]
			if err = batch.Append(
				r.FetchedAt,
				r.Period,
				r.EventID,
				r.TxHash,
				r.LogIndex,
				r.TokenAddress,
				r.FromAddress,
				r.ToAddress,
				r.FromProtocol,
				r.ToProtocol,
				r.RawAmount,
				r.BlockNumber,
			); err != nil {
				lastErr = err
				_ = batch.Abort()
				appendFailed = true
				break
			}
		}
		if appendFailed {
			continue
		}

		if err = batch.Send(); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return fmt.Errorf("insert failed after %d attempts: %w", w.cfg.Writer.MaxRetries+1, lastErr)
}
