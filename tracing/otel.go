package tracing

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// ConfigureTraceProvider installs the global tracer provider for service.
// Without a jaeger endpoint spans are created but not exported.
func ConfigureTraceProvider(service, jaegerEndpoint string) (*tracesdk.TracerProvider, error) {
	options := []tracesdk.TracerProviderOption{
		tracesdk.WithResource(
			resource.NewWithAttributes(
				semconv.SchemaURL,
				semconv.ServiceName(service),
			)),
	}

	if jaegerEndpoint != "" {
		exp, err := jaeger.New(
			jaeger.WithCollectorEndpoint(
				jaeger.WithEndpoint(jaegerEndpoint),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("could not create jaeger exporter: %w", err)
		}
		options = append(options, tracesdk.WithBatcher(exp))
	}

	tp := tracesdk.NewTracerProvider(options...)

	otel.SetTracerProvider(tp)

	// without it the trace is not propagated via messages
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp, nil
}

type PublisherDecorator struct {
	message.Publisher
}

func (d PublisherDecorator) Publish(topic string, messages ...*message.Message) error {
	for i := range messages {
		otel.GetTextMapPropagator().Inject(messages[i].Context(), propagation.MapCarrier(messages[i].Metadata))
	}
	return d.Publisher.Publish(topic, messages...)
}
