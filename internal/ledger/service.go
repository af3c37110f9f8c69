package ledger

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("pos-backend/ledger")

// Service is the daybook engine: day lifecycle, posting and summaries over a
// Store. It is safe for concurrent use.
type Service struct {
	store Store
	log   *logrus.Logger
	cache SummaryCache
	gate  CloseGate
	now   func() time.Time
	loc   *time.Location
}

type Option func(*Service)

func WithLogger(l *logrus.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithCache sets the cache used for summaries of closed days.
func WithCache(c SummaryCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithGate(g CloseGate) Option {
	return func(s *Service) { s.gate = g }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets where calendar days are cut. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		log:   logrus.StandardLogger(),
		cache: NopCache{},
		gate:  NopGate{},
		now:   time.Now,
		loc:   time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TodayDate is the current calendar date in the service location.
func (s *Service) TodayDate() civil.Date {
	return s.DateOf(s.now())
}

// DateOf is the calendar date of t in the service location.
func (s *Service) DateOf(t time.Time) civil.Date {
	return civil.DateOf(t.In(s.loc))
}

func (s *Service) logger(op string) *logrus.Entry {
	return s.log.WithFields(logrus.Fields{"module": "ledger", "funcName": op})
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// dateValue is how a calendar date is stored in a date column.
func dateValue(d civil.Date) time.Time {
	return d.In(time.UTC)
}
