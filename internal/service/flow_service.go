package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flowmap/internal/domain"
	"flowmap/internal/flow"
	"flowmap/internal/metrics"
	"flowmap/internal/pubsub"
	"flowmap/internal/stores/clickhouse"

	"gitlab.com/nevasik7/alerting/logger"
	"golang.org/x/sync/errgroup"
)

var ErrReportNotReady = errors.New("no report generated yet")

type Fetcher interface {
	FetchTransferEvents(ctx context.Context, tokenAddress string, blocksBack uint64) ([]domain.TransferEvent, error)
}

type ReportWriter interface {
	Write(report *domain.FlowReport) error
	Read(period domain.Period) (*domain.FlowReport, error)
}

type ReportCache interface {
	Set(ctx context.Context, report *domain.FlowReport) error
	Get(ctx context.Context, period domain.Period) (*domain.FlowReport, error)
	Health(ctx context.Context) error
}

type RawSink interface {
	Enqueue(row clickhouse.TransferRow) error
	Health(ctx context.Context) error
}

// FlowService runs the whole pipeline: fetch both lookback windows, fold
// them into flow graphs, persist the artifacts, then feed the optional
// sinks. It is the only orchestration point: chain -> flow -> report ->
// cache/broadcast/clickhouse.
type FlowService struct {
	log          logger.Logger
	fetcher      Fetcher
	aggregator   *flow.Aggregator
	writer       ReportWriter
	reverseIndex map[string]string

	tokenAddress string
	blocksBack   map[domain.Period]uint64

	// optional sinks, nil when disabled
	cache         ReportCache
	broadcaster   pubsub.Broadcaster
	rawSink       RawSink
	subjectPrefix string
}

type Deps struct {
	Log          logger.Logger
	Fetcher      Fetcher
	Aggregator   *flow.Aggregator
	Writer       ReportWriter
	ReverseIndex map[string]string

	TokenAddress string
	Blocks24h    uint64
	Blocks7d     uint64

	Cache         ReportCache
	Broadcaster   pubsub.Broadcaster
	RawSink       RawSink
	SubjectPrefix string
}

func NewFlowService(d Deps) *FlowService {
	if d.SubjectPrefix == "" {
		d.SubjectPrefix = "flows"
	}
	return &FlowService{
		log:          d.Log,
		fetcher:      d.Fetcher,
		aggregator:   d.Aggregator,
		writer:       d.Writer,
		reverseIndex: d.ReverseIndex,
		tokenAddress: d.TokenAddress,
		blocksBack: map[domain.Period]uint64{
			domain.Period24h: d.Blocks24h,
			domain.Period7d:  d.Blocks7d,
		},
		cache:         d.Cache,
		broadcaster:   d.Broadcaster,
		rawSink:       d.RawSink,
		subjectPrefix: d.SubjectPrefix,
	}
}

type periodRun struct {
	report *domain.FlowReport
	events []domain.TransferEvent
}

// Run executes one full aggregation pass. The two periods fetch
// concurrently; nothing is written unless both succeed, so a half-failed
// run never leaves one fresh and one stale artifact behind.
func (s *FlowService) Run(ctx context.Context) error {
	periods := []domain.Period{domain.Period24h, domain.Period7d}
	runs := make([]periodRun, len(periods))

	g, gctx := errgroup.WithContext(ctx)
	for i, period := range periods {
		g.Go(func() error {
			run, err := s.runPeriod(gctx, period)
			if err != nil {
				return fmt.Errorf("period %s: %w", period, err)
			}
			runs[i] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, run := range runs {
		if err := s.writer.Write(run.report); err != nil {
			return err
		}
		metrics.ReportsGenerated.WithLabelValues(string(run.report.Period)).Inc()
	}

	// sinks are best-effort: a cold cache or a missed broadcast heals on
	// the next run, and the files on disk are already correct
	for _, run := range runs {
		s.feedSinks(ctx, run)
	}

	return nil
}

func (s *FlowService) runPeriod(ctx context.Context, period domain.Period) (periodRun, error) {
	start := time.Now()

	events, err := s.fetcher.FetchTransferEvents(ctx, s.tokenAddress, s.blocksBack[period])
	if err != nil {
		return periodRun{}, err
	}
	metrics.EventsFetched.WithLabelValues(string(period)).Add(float64(len(events)))

	report := s.aggregator.Aggregate(events, s.reverseIndex, period)
	metrics.RunDuration.WithLabelValues(string(period)).Observe(time.Since(start).Seconds())

	s.log.Infof("Aggregated %s: %d events, %d flows, total=%.6f", period, len(events), len(report.Flows), report.TotalVolume)
	return periodRun{report: report, events: events}, nil
}

func (s *FlowService) feedSinks(ctx context.Context, run periodRun) {
	period := run.report.Period

	if s.cache != nil {
		if err := s.cache.Set(ctx, run.report); err != nil {
			s.log.Errorf("Failed to cache %s report: %v", period, err)
		}
	}

	if s.broadcaster != nil {
		subject := fmt.Sprintf("%s.%s", s.subjectPrefix, period)
		if err := s.broadcaster.Publish(ctx, subject, run.report); err != nil {
			s.log.Errorf("Failed to broadcast %s report: %v", period, err)
		}
	}

	if s.rawSink != nil {
		fetchedAt := time.Now().UTC()
		for _, ev := range run.events {
			row := clickhouse.Row(ev, period, s.reverseIndex[ev.From], s.reverseIndex[ev.To], fetchedAt)
			if err := s.rawSink.Enqueue(row); err != nil {
				s.log.Errorf("Failed to enqueue transfer rows for %s: %v", period, err)
				break
			}
		}
	}
}

// GetReport serves the latest artifact for a period: cache first, disk
// fallback. ErrReportNotReady when neither has anything yet.
func (s *FlowService) GetReport(ctx context.Context, period domain.Period) (*domain.FlowReport, error) {
	if s.cache != nil {
		report, err := s.cache.Get(ctx, period)
		if err == nil {
			return report, nil
		}
	}

	report, err := s.writer.Read(period)
	if err != nil {
		return nil, ErrReportNotReady
	}
	return report, nil
}

// CheckDependency reports the health of whichever sinks are wired; used
// by the readiness endpoint.
func (s *FlowService) CheckDependency(ctx context.Context) error {
	var errs []error

	if s.cache != nil {
		if err := s.cache.Health(ctx); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if s.broadcaster != nil {
		if err := s.broadcaster.Health(ctx); err != nil {
			errs = append(errs, fmt.Errorf("nats: %w", err))
		}
	}
	if s.rawSink != nil {
		if err := s.rawSink.Health(ctx); err != nil {
			errs = append(errs, fmt.Errorf("clickhouse: %w", err))
		}
	}

	return errors.Join(errs...)
}
