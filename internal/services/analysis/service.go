package analysis

import (
	"context"
	"time"

	"delphi/internal/domain/marketdata"
	"delphi/internal/metrics"
	"delphi/internal/ta/breakout"
	"delphi/internal/ta/candles"
	"delphi/internal/ta/divergence"
	"delphi/internal/ta/indicators"
	"delphi/internal/ta/levels"
	"delphi/internal/ta/phase"
	"delphi/internal/ta/swings"
	"delphi/pkg/errors"
	"delphi/pkg/logger"
)

// PhaseClassifier predicts the market cycle phase from a series.
// Implemented by the ONNX model wrapper; the rules in the phase package
// remain the fallback.
type PhaseClassifier interface {
	Classify(ctx context.Context, s *marketdata.Series) (*phase.Result, error)
}

// Service produces full technical reports. Sections that cannot run on
// the available history are skipped rather than failing the report;
// only a missing series fails the call.
type Service struct {
	provider   marketdata.Provider
	cache      *ReportCache
	phaseModel PhaseClassifier
	params     Params
	log        *logger.Logger
}

// NewService constructs the analysis service. cache and phaseModel may
// be nil to disable caching and model-based phase classification.
func NewService(
	provider marketdata.Provider,
	cache *ReportCache,
	phaseModel PhaseClassifier,
	params Params,
) *Service {
	if params.Lookback <= 0 {
		params = DefaultParams()
	}
	return &Service{
		provider:   provider,
		cache:      cache,
		phaseModel: phaseModel,
		params:     params,
		log:        logger.Get().With("component", "analysis_service"),
	}
}

// Analyze loads the series for a symbol and assembles the full report,
// consulting the cache first when one is configured.
func (s *Service) Analyze(ctx context.Context, symbol, interval string) (*Report, error) {
	start := time.Now()

	series, err := s.provider.GetSeries(ctx, symbol, interval, s.params.Lookback)
	if err != nil {
		metrics.RecordScan(interval, time.Since(start), err)
		return nil, errors.Wrapf(err, "load series for %s %s", symbol, interval)
	}

	price := 0.0
	if b, ok := series.Last(); ok {
		price = b.Close
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, symbol, interval, s.params.Lookback, price)
		if err != nil {
			s.log.Warnw("Report cache lookup failed",
				"symbol", symbol,
				"interval", interval,
				"error", err,
			)
		} else if cached != nil {
			metrics.RecordScan(interval, time.Since(start), nil)
			return cached, nil
		}
	}

	report := s.AnalyzeSeries(ctx, series)
	report.DurationMs = time.Since(start).Milliseconds()

	if s.cache != nil {
		if err := s.cache.Set(ctx, s.params.Lookback, report); err != nil {
			s.log.Warnw("Report cache store failed",
				"symbol", symbol,
				"interval", interval,
				"error", err,
			)
		}
	}

	metrics.RecordScan(interval, time.Since(start), nil)
	s.log.Debugw("Report assembled",
		"symbol", symbol,
		"interval", interval,
		"bars", report.BarCount,
		"signal", report.OverallSignal(),
		"skipped", len(report.Skipped),
		"duration_ms", report.DurationMs,
	)
	return report, nil
}

// AnalyzeSeries runs every section on an already loaded series. Callers
// holding their own bars can reuse the assembly without the provider.
func (s *Service) AnalyzeSeries(ctx context.Context, series *marketdata.Series) *Report {
	report := &Report{
		Symbol:      series.Symbol,
		Interval:    series.Interval,
		BarCount:    series.Len(),
		GeneratedAt: time.Now().UTC(),
	}
	if b, ok := series.Last(); ok {
		report.Price = b.Close
	}

	if snap, err := indicators.ComputeSnapshot(series, s.params.Snapshot); err != nil {
		s.skip(report, "snapshot", err)
	} else {
		report.Snapshot = snap
	}

	if res, err := candles.Detect(series, s.params.Candles); err != nil {
		s.skip(report, "candles", err)
	} else {
		report.Candles = res
	}

	if res, err := swings.Detect(series, s.params.Swings); err != nil {
		s.skip(report, "swings", err)
	} else {
		report.Swings = &res
	}

	if res, err := swings.Structure(series, s.params.Swings); err != nil {
		s.skip(report, "structure", err)
	} else {
		report.Structure = &res
	}

	if res, err := swings.Context(series, s.params.Trend); err != nil {
		s.skip(report, "trend", err)
	} else {
		report.Trend = &res
	}

	if res, err := divergence.Analyze(series, s.params.Divergence); err != nil {
		s.skip(report, "divergence", err)
	} else {
		report.Divergence = res
	}

	if res, err := levels.Fibonacci(series, s.params.Fibonacci); err != nil {
		s.skip(report, "fibonacci", err)
	} else {
		report.Fibonacci = res
	}

	if res, err := levels.PivotPoints(series, s.params.Pivots); err != nil {
		s.skip(report, "pivot_points", err)
	} else {
		report.Pivots = res
	}

	if res, err := breakout.Detect(series, s.params.Breakout); err != nil {
		s.skip(report, "breakout", err)
	} else {
		report.Breakout = res
	}

	s.classifyPhase(ctx, series, report)

	if res, err := indicators.Crossovers(series, s.params.Crossover); err != nil {
		s.skip(report, "crossovers", err)
	} else {
		report.Crossovers = &res
	}

	if res, err := indicators.Volume(series, s.params.Volume); err != nil {
		s.skip(report, "volume", err)
	} else {
		report.Volume = &res
	}

	if res, err := indicators.Volatility(series, nil, s.params.Volatility); err != nil {
		s.skip(report, "volatility", err)
	} else {
		report.Volatility = &res
	}

	return report
}

// classifyPhase prefers the model when one is wired and reports which
// path produced the result. Model failures fall back to the rules.
func (s *Service) classifyPhase(ctx context.Context, series *marketdata.Series, report *Report) {
	if s.phaseModel != nil {
		res, err := s.phaseModel.Classify(ctx, series)
		if err == nil {
			report.Phase = res
			report.PhaseSource = PhaseSourceModel
			return
		}
		s.log.Warnw("Model phase classification failed, falling back to rules",
			"symbol", series.Symbol,
			"error", err,
		)
	}

	res, err := phase.Analyze(series, s.params.Phase)
	if err != nil {
		s.skip(report, "phase", err)
		return
	}
	report.Phase = res
	report.PhaseSource = PhaseSourceRules
}

// skip records a section that could not run. Short history is expected
// and logged quietly, anything else gets a warning.
func (s *Service) skip(report *Report, section string, err error) {
	if errors.Is(err, errors.ErrInsufficientData) {
		s.log.Debugw("Section skipped, series too short",
			"symbol", report.Symbol,
			"section", section,
			"bars", report.BarCount,
		)
	} else {
		s.log.Warnw("Section failed",
			"symbol", report.Symbol,
			"section", section,
			"error", err,
		)
	}
	report.Skipped = append(report.Skipped, section)
}
