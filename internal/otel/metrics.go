package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

var (
	initMetricsOnce     sync.Once
	battlesCounter      metric.Int64Counter
	roundsCounter       metric.Int64Counter
	roundDuration       metric.Float64Histogram
	turnsCounter        metric.Int64Counter
	liveBattlesGauge    metric.Int64ObservableGauge
	streamEventsCounter metric.Int64Counter
	streamConnGauge     metric.Int64ObservableGauge
	streamConns         int64
	streamConnsMu       sync.Mutex
)

// LiveBattleCountFunc returns the number of battles currently in progress.
type LiveBattleCountFunc func() int64

// InitMetrics creates the meter instruments. Safe to call multiple times; only
// runs once. Call after InitMeterProvider. If liveCount is nil the live
// battles gauge is not reported.
func InitMetrics(ctx context.Context, liveCount LiveBattleCountFunc) error {
	var err error
	initMetricsOnce.Do(func() {
		m := Meter()
		battlesCounter, err = m.Int64Counter("brock_battles_total", metric.WithDescription("Total battles run, by outcome"))
		if err != nil {
			return
		}
		roundsCounter, err = m.Int64Counter("brock_rounds_total", metric.WithDescription("Total battle rounds simulated"))
		if err != nil {
			return
		}
		roundDuration, err = m.Float64Histogram("brock_round_duration_seconds", metric.WithDescription("Round duration in seconds, turn gathering included"))
		if err != nil {
			return
		}
		turnsCounter, err = m.Int64Counter("brock_turns_total", metric.WithDescription("Total turns gathered from agents"))
		if err != nil {
			return
		}
		streamEventsCounter, err = m.Int64Counter("brock_stream_events_total", metric.WithDescription("Total events published to stream subscribers"))
		if err != nil {
			return
		}
		streamConnGauge, err = m.Int64ObservableGauge("brock_stream_connections", metric.WithDescription("Current stream subscriber count"))
		if err != nil {
			return
		}
		_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
			streamConnsMu.Lock()
			n := streamConns
			streamConnsMu.Unlock()
			o.ObserveInt64(streamConnGauge, n)
			return nil
		}, streamConnGauge)
		if err != nil {
			return
		}
		if liveCount == nil {
			return
		}
		liveBattlesGauge, err = m.Int64ObservableGauge("brock_battles_live", metric.WithDescription("Battles currently in progress"))
		if err != nil {
			return
		}
		_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(liveBattlesGauge, liveCount())
			return nil
		}, liveBattlesGauge)
	})
	return err
}

// RecordBattle records one finished battle with its outcome ("completed" or
// "failed").
func RecordBattle(ctx context.Context, outcome string) {
	if battlesCounter == nil {
		return
	}
	battlesCounter.Add(ctx, 1, metric.WithAttributes(AttrOutcome.String(outcome)))
}

// RecordRound records one simulated round and its duration.
func RecordRound(ctx context.Context, duration time.Duration) {
	if roundsCounter != nil {
		roundsCounter.Add(ctx, 1)
	}
	if roundDuration != nil {
		roundDuration.Record(ctx, duration.Seconds())
	}
}

// RecordTurn records one turn gathered from the named agent.
func RecordTurn(ctx context.Context, agent string) {
	if turnsCounter == nil {
		return
	}
	turnsCounter.Add(ctx, 1, metric.WithAttributes(AttrAgent.String(agent)))
}

// RecordStreamEvent records one event published to stream subscribers.
func RecordStreamEvent(ctx context.Context) {
	if streamEventsCounter != nil {
		streamEventsCounter.Add(ctx, 1)
	}
}

// AddStreamConnection adds 1 to the stream connection gauge (call on subscribe).
func AddStreamConnection() {
	streamConnsMu.Lock()
	streamConns++
	streamConnsMu.Unlock()
}

// RemoveStreamConnection subtracts 1 from the stream connection gauge (call on unsubscribe).
func RemoveStreamConnection() {
	streamConnsMu.Lock()
	streamConns--
	if streamConns < 0 {
		streamConns = 0
	}
	streamConnsMu.Unlock()
}
