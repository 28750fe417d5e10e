package session

import (
	"context"
	"log/slog"

	"github.com/loqalabs/loqa-translate/internal/audio"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/loqalabs/loqa-translate/session"

type metrics struct {
	translations  metric.Int64Counter
	syntheses     metric.Int64Counter
	captureEvents metric.Int64Counter
}

// newMetrics registers the session counters and the live clip gauge of store
// on the global meter provider. Registration failures fall back to no-op
// instruments.
func newMetrics(logger *slog.Logger, store *audio.Store) *metrics {
	meter := otel.Meter(meterName)
	fallback := noop.NewMeterProvider().Meter(meterName)

	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Warn("failed to register counter", slog.String("name", name), slogError(err))
			c, _ = fallback.Int64Counter(name)
		}
		return c
	}

	_, err := meter.Int64ObservableGauge("loqa_translate_audio_clips",
		metric.WithDescription("Synthesized clips held in memory"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(store.Len()))
			return nil
		}),
	)
	if err != nil {
		logger.Warn("failed to register gauge", slog.String("name", "loqa_translate_audio_clips"), slogError(err))
	}

	return &metrics{
		translations:  counter("loqa_translate_translations", "Translations by outcome"),
		syntheses:     counter("loqa_translate_syntheses", "Speech syntheses by outcome"),
		captureEvents: counter("loqa_translate_capture_events", "Speech capture events by kind"),
	}
}

func (m *metrics) translation(outcome string) {
	m.translations.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *metrics) synthesis(outcome string) {
	m.syntheses.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *metrics) captureEvent(kind string) {
	m.captureEvents.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind)))
}
