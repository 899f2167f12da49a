package collect

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("jobcollect/collect")

// Strategy is one acquisition method. Collect persists through st, never
// more than want records, and returns how many it saved. A returned error
// is logged by the orchestrator; the count is still honoured.
type Strategy interface {
	Name() string
	Collect(ctx context.Context, st *State, want int) (int, error)
}

// Orchestrator runs strategies strictly in order until the quota is met.
type Orchestrator struct {
	strategies []Strategy
	log        *logrus.Entry
}

func NewOrchestrator(log *logrus.Entry, strategies ...Strategy) *Orchestrator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Orchestrator{strategies: strategies, log: log.WithField("component", "collect")}
}

// Run executes the strategies against st. It never fails: a strategy error
// is recorded in the report and the next strategy still runs. Zero saved
// records is a valid result.
func (o *Orchestrator) Run(ctx context.Context, st *State) Report {
	ctx, span := tracer.Start(ctx, "collect:run")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", st.RunID()), attribute.Int("wanted", st.Quota()))

	log := o.log.WithField("run_id", st.RunID())
	rep := Report{RunID: st.RunID(), Wanted: st.Quota()}
	start := time.Now()

	for _, s := range o.strategies {
		sr := StrategyReport{Name: s.Name()}

		want := st.Remaining()
		switch {
		case want == 0:
			sr.Skipped = true
			log.WithField("strategy", s.Name()).Debug("quota met, skipping strategy")
		case ctx.Err() != nil:
			sr.Skipped = true
			sr.Err = ctx.Err()
		default:
			sr = o.runOne(ctx, log, s, st, want)
		}

		rep.Saved += sr.Saved
		rep.Strategies = append(rep.Strategies, sr)
	}

	rep.Duration = time.Since(start)
	span.SetAttributes(attribute.Int("saved", rep.Saved))
	log.WithFields(logrus.Fields{
		"saved":    rep.Saved,
		"wanted":   rep.Wanted,
		"duration": rep.Duration.Round(time.Millisecond),
	}).Info("collection finished")
	return rep
}

func (o *Orchestrator) runOne(ctx context.Context, log *logrus.Entry, s Strategy, st *State, want int) StrategyReport {
	ctx, span := tracer.Start(ctx, "strategy:"+s.Name())
	defer span.End()

	log = log.WithField("strategy", s.Name())
	log.WithField("want", want).Info("running strategy")

	start := time.Now()
	n, err := s.Collect(ctx, st, want)
	sr := StrategyReport{Name: s.Name(), Saved: n, Duration: time.Since(start), Err: err}

	span.SetAttributes(attribute.Int("saved", n))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "strategy failed")
		// best-effort: the next strategy still runs
		log.WithError(err).WithField("saved", n).Warn("strategy failed")
		return sr
	}
	log.WithFields(logrus.Fields{"saved": n, "duration": sr.Duration.Round(time.Millisecond)}).Info("strategy done")
	return sr
}
