package telemetry

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Handler serves the collected metrics in Prometheus text exposition format.
func (p *Provider) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := p.Render(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(body))
	})
}

// Render collects every instrument once and formats the result.
// Sums, gauges and histograms are supported; other aggregations are skipped.
func (p *Provider) Render(ctx context.Context) (string, error) {
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			writeMetric(&b, m)
		}
	}
	return b.String(), nil
}

func writeMetric(b *strings.Builder, m metricdata.Metrics) {
	name := sanitize(m.Name)
	switch data := m.Data.(type) {
	case metricdata.Sum[int64]:
		writeSum(b, name, m.Description, data)
	case metricdata.Sum[float64]:
		writeSum(b, name, m.Description, data)
	case metricdata.Gauge[int64]:
		writeGauge(b, name, m.Description, data)
	case metricdata.Gauge[float64]:
		writeGauge(b, name, m.Description, data)
	case metricdata.Histogram[int64]:
		writeHistogram(b, name, m.Description, data)
	case metricdata.Histogram[float64]:
		writeHistogram(b, name, m.Description, data)
	}
}

func writeSum[N int64 | float64](b *strings.Builder, name, help string, data metricdata.Sum[N]) {
	kind := "counter"
	if !data.IsMonotonic {
		kind = "gauge"
	}
	writeHeader(b, name, help, kind)
	for _, dp := range data.DataPoints {
		writeSample(b, name, dp.Attributes, formatNumber(dp.Value))
	}
}

func writeGauge[N int64 | float64](b *strings.Builder, name, help string, data metricdata.Gauge[N]) {
	writeHeader(b, name, help, "gauge")
	for _, dp := range data.DataPoints {
		writeSample(b, name, dp.Attributes, formatNumber(dp.Value))
	}
}

func writeHistogram[N int64 | float64](b *strings.Builder, name, help string, data metricdata.Histogram[N]) {
	writeHeader(b, name, help, "histogram")
	for _, dp := range data.DataPoints {
		var cumulative uint64
		for i, bound := range dp.Bounds {
			cumulative += dp.BucketCounts[i]
			writeSample(b, name+"_bucket", dp.Attributes, strconv.FormatUint(cumulative, 10),
				attribute.String("le", strconv.FormatFloat(bound, 'g', -1, 64)))
		}
		writeSample(b, name+"_bucket", dp.Attributes, strconv.FormatUint(dp.Count, 10), attribute.String("le", "+Inf"))
		writeSample(b, name+"_sum", dp.Attributes, formatNumber(dp.Sum))
		writeSample(b, name+"_count", dp.Attributes, strconv.FormatUint(dp.Count, 10))
	}
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	if help != "" {
		b.WriteString("# HELP ")
		b.WriteString(name)
		b.WriteByte(' ')
		b.WriteString(escapeHelp(help))
		b.WriteByte('\n')
	}
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte('\n')
}

func writeSample(b *strings.Builder, name string, attrs attribute.Set, value string, extra ...attribute.KeyValue) {
	b.WriteString(name)

	labels := append(attrs.ToSlice(), extra...)
	if len(labels) > 0 {
		b.WriteByte('{')
		for i, kv := range labels {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(sanitize(string(kv.Key)))
			b.WriteString(`="`)
			b.WriteString(escapeLabel(kv.Value.Emit()))
			b.WriteByte('"')
		}
		b.WriteByte('}')
	}

	b.WriteByte(' ')
	b.WriteString(value)
	b.WriteByte('\n')
}

func formatNumber[N int64 | float64](v N) string {
	switch x := any(v).(type) {
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
	return ""
}

// sanitize maps an OpenTelemetry name such as http.server.request.duration
// onto the Prometheus charset.
func sanitize(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_' || r == ':' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, `\`, `\\`)
	return strings.ReplaceAll(help, "\n", `\n`)
}

func escapeLabel(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return strings.ReplaceAll(v, "\n", `\n`)
}
