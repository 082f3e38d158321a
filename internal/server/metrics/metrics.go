// Package metrics records token issuance and renewal counters with
// OpenTelemetry instruments.
package metrics

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var ErrNilMeter = errors.New("nil meter")

const (
	TokensIssuedName = "bookauth_tokens_issued_total"
	RenewalsName     = "bookauth_renewals_total"
	SignInsName      = "bookauth_signins_total"
)

// Recorder wraps the counters. A nil *Recorder records nothing.
type Recorder struct {
	issued   metric.Int64Counter
	renewals metric.Int64Counter
	signIns  metric.Int64Counter
}

func New(meter metric.Meter) (*Recorder, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}

	issued, err := meter.Int64Counter(TokensIssuedName, metric.WithDescription("Token pairs issued."))
	if err != nil {
		return nil, fmt.Errorf("create counter %s: %w", TokensIssuedName, err)
	}
	renewals, err := meter.Int64Counter(RenewalsName, metric.WithDescription("Renewal attempts by outcome."))
	if err != nil {
		return nil, fmt.Errorf("create counter %s: %w", RenewalsName, err)
	}
	signIns, err := meter.Int64Counter(SignInsName, metric.WithDescription("Sign-in attempts by result."))
	if err != nil {
		return nil, fmt.Errorf("create counter %s: %w", SignInsName, err)
	}

	return &Recorder{issued: issued, renewals: renewals, signIns: signIns}, nil
}

func (r *Recorder) TokenIssued(ctx context.Context) {
	if r == nil {
		return
	}
	r.issued.Add(ctx, 1)
}

// Renewal counts one renewal attempt labelled with its outcome.
func (r *Recorder) Renewal(ctx context.Context, outcome string) {
	if r == nil {
		return
	}
	r.renewals.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (r *Recorder) SignIn(ctx context.Context, success bool) {
	if r == nil {
		return
	}
	r.signIns.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}
