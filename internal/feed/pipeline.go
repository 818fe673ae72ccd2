package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/chrissnell/flightkml/internal/aircraft"
	"github.com/chrissnell/flightkml/internal/kml"
	"github.com/chrissnell/flightkml/internal/kmz"
	"github.com/chrissnell/flightkml/internal/observability"
	"github.com/chrissnell/flightkml/internal/providers"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// Pipeline renders the configured feeds. Feeds are fixed at construction, so
// a Pipeline is safe for concurrent use.
type Pipeline struct {
	feeds   map[string]*Feed
	order   []string
	metrics *observability.FeedCollector
	tracer  trace.Tracer
	logger  *zap.SugaredLogger
}

// NewPipeline validates feeds and fills in their defaults. metrics may be nil.
func NewPipeline(feeds []*Feed, metrics *observability.FeedCollector, logger *zap.SugaredLogger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	p := &Pipeline{
		feeds:   make(map[string]*Feed, len(feeds)),
		metrics: metrics,
		tracer:  otel.Tracer(observability.TracerName),
		logger:  logger,
	}
	for _, f := range feeds {
		if err := f.validate(); err != nil {
			return nil, err
		}
		if _, dup := p.feeds[f.Name]; dup {
			return nil, fmt.Errorf("duplicate feed name %q", f.Name)
		}
		p.feeds[f.Name] = f
		p.order = append(p.order, f.Name)
	}
	return p, nil
}

// Feeds returns the feeds in configuration order.
func (p *Pipeline) Feeds() []*Feed {
	out := make([]*Feed, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, p.feeds[name])
	}
	return out
}

// Feed looks a feed up by name.
func (p *Pipeline) Feed(name string) (*Feed, error) {
	f, ok := p.feeds[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeed, name)
	}
	return f, nil
}

// Render fetches a fresh snapshot and returns it as KML markup.
func (p *Pipeline) Render(ctx context.Context, name string) (*Result, error) {
	f, err := p.Feed(name)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := p.render(ctx, f)
	p.observe(f, FormatKML, start, err)
	if err != nil {
		return nil, err
	}
	res.Summary.Elapsed = time.Since(start)
	return res, nil
}

// RenderArchive renders the feed and packs the markup into a KMZ archive.
func (p *Pipeline) RenderArchive(ctx context.Context, name string) (*Result, error) {
	f, err := p.Feed(name)
	if err != nil {
		return nil, err
	}
	if !f.Archive {
		return nil, fmt.Errorf("%w: %s", ErrArchiveDisabled, name)
	}

	start := time.Now()
	res, err := p.render(ctx, f)
	if err == nil {
		res, err = p.pack(ctx, f, res)
	}
	p.observe(f, FormatKMZ, start, err)
	if err != nil {
		return nil, err
	}
	res.Summary.Elapsed = time.Since(start)
	return res, nil
}

// LiveLink returns a NetworkLink document that points viewers at the feed
// under baseURL and reloads it every RefreshInterval.
func (p *Pipeline) LiveLink(name, baseURL string) ([]byte, error) {
	f, err := p.Feed(name)
	if err != nil {
		return nil, err
	}
	ext := FormatKML
	if f.Archive {
		ext = FormatKMZ
	}
	title := f.Build.Title
	if title == "" {
		title = f.Name
	}
	return kml.SerializeNetworkLink(kml.NetworkLink{
		Name:            title,
		Href:            fmt.Sprintf("%s/%s.%s", strings.TrimSuffix(baseURL, "/"), f.Name, ext),
		RefreshInterval: f.RefreshInterval,
	}, f.Pretty)
}

func (p *Pipeline) render(ctx context.Context, f *Feed) (*Result, error) {
	ctx, span := p.tracer.Start(ctx, "feed.render", trace.WithAttributes(
		attribute.String("feed", f.Name),
		attribute.String("provider", f.Fetcher.Name()),
	))
	defer span.End()

	snap, err := p.fetch(ctx, f)
	if err != nil {
		return nil, spanError(span, err)
	}

	fixes, summary := p.normalize(ctx, f, snap)

	_, serSpan := p.tracer.Start(ctx, "feed.serialize")
	doc := kml.Build(f.Build, fixes)
	markup, err := kml.Serialize(doc, f.Pretty)
	if err != nil {
		spanError(serSpan, err)
		serSpan.End()
		return nil, spanError(span, err)
	}
	serSpan.SetAttributes(attribute.Int("bytes", len(markup)))
	serSpan.End()

	summary.Format = FormatKML
	summary.Placemarks = len(doc.Placemarks)
	p.metrics.SetPlacemarks(f.Name, summary.Placemarks)
	span.SetAttributes(
		attribute.Int("placemarks", summary.Placemarks),
		attribute.Int("skipped", summary.SkippedTotal()),
	)

	p.logger.Debugw("rendered feed",
		"feed", f.Name,
		"records", summary.Records,
		"placemarks", summary.Placemarks,
		"skipped", summary.SkippedTotal(),
	)

	return &Result{Body: markup, ContentType: ContentTypeKML, Summary: summary}, nil
}

func (p *Pipeline) fetch(ctx context.Context, f *Feed) (*aircraft.Snapshot, error) {
	ctx, span := p.tracer.Start(ctx, "feed.fetch")
	defer span.End()

	snap, err := f.Fetcher.Fetch(ctx, f.Bounds)
	if err != nil {
		var fe *providers.FetchError
		if errors.As(err, &fe) {
			p.metrics.RecordFetchError(f.Name, f.Fetcher.Name())
		}
		return nil, spanError(span, err)
	}
	if snap == nil {
		snap = &aircraft.Snapshot{}
	}
	if snap.Schema == "" {
		snap.Schema = f.Fetcher.Schema()
	}
	span.SetAttributes(attribute.Int("records", len(snap.Records)))
	return snap, nil
}

func (p *Pipeline) normalize(ctx context.Context, f *Feed, snap *aircraft.Snapshot) ([]aircraft.Fix, Summary) {
	_, span := p.tracer.Start(ctx, "feed.normalize")
	defer span.End()

	fixes, errs := aircraft.NormalizeSnapshot(snap, f.Normalize)

	summary := Summary{
		Feed:         f.Name,
		Provider:     f.Fetcher.Name(),
		SnapshotTime: snap.Time,
		Records:      len(snap.Records),
		Skipped:      map[aircraft.Reason]int{},
	}
	for _, err := range errs {
		reason := aircraft.SkipReason(err)
		summary.Skipped[reason]++
		p.metrics.RecordSkipped(f.Name, string(reason))
		p.logger.Debugw("skipping record", "feed", f.Name, "error", err)
	}

	altitudes := make([]float64, 0, len(fixes))
	for _, fix := range fixes {
		if fix.Altitude != nil {
			altitudes = append(altitudes, *fix.Altitude)
		}
	}
	if len(altitudes) > 0 {
		sort.Float64s(altitudes)
		summary.AltitudeSamples = len(altitudes)
		summary.MeanAltitude = stat.Mean(altitudes, nil)
		summary.MedianAltitude = stat.Quantile(0.5, stat.Empirical, altitudes, nil)
	}

	span.SetAttributes(attribute.Int("fixes", len(fixes)), attribute.Int("skipped", len(errs)))
	return fixes, summary
}

func (p *Pipeline) pack(ctx context.Context, f *Feed, res *Result) (*Result, error) {
	ctx, span := p.tracer.Start(ctx, "feed.archive")
	defer span.End()

	archive, err := kmz.Pack(ctx, res.Body, f.EntryName)
	if err != nil {
		return nil, spanError(span, err)
	}
	span.SetAttributes(attribute.Int("bytes", len(archive)))

	summary := res.Summary
	summary.Format = FormatKMZ
	return &Result{Body: archive, ContentType: ContentTypeKMZ, Summary: summary}, nil
}

func (p *Pipeline) observe(f *Feed, format Format, start time.Time, err error) {
	outcome := observability.OutcomeOK
	if err != nil {
		outcome = observability.OutcomeError
		var fe *providers.FetchError
		if errors.As(err, &fe) {
			outcome = observability.OutcomeFetchError
		}
	}
	p.metrics.ObserveRender(f.Name, string(format), outcome, time.Since(start))
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
