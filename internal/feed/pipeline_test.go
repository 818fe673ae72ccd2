package feed

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/chrissnell/flightkml/internal/aircraft"
	"github.com/chrissnell/flightkml/internal/kml"
	"github.com/chrissnell/flightkml/internal/kmz"
	"github.com/chrissnell/flightkml/internal/observability"
	"github.com/chrissnell/flightkml/internal/providers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeFetcher struct {
	name   string
	schema aircraft.Schema
	snap   *aircraft.Snapshot
	err    error
	bounds providers.Bounds
	calls  int
}

func (f *fakeFetcher) Fetch(ctx context.Context, b providers.Bounds) (*aircraft.Snapshot, error) {
	f.calls++
	f.bounds = b
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

func (f *fakeFetcher) Name() string            { return f.name }
func (f *fakeFetcher) Schema() aircraft.Schema { return f.schema }

func statesSnapshot() *aircraft.Snapshot {
	return &aircraft.Snapshot{
		Schema: aircraft.SchemaStates,
		Time:   time.Unix(1700000000, 0).UTC(),
		Records: []aircraft.RawRecord{
			{Key: "0", Fields: []any{"abc123", "TAM3456 ", "Brazil", 0.0, 0.0, -46.5, -23.5, 1000.0, false, 250.5, 90.0, 0.0, nil, 1050.0, "1200", false, 0.0, "A3"}},
			{Key: "1", Fields: []any{"def456", "GLO1 ", "Brazil", 0.0, 0.0, nil, nil, 3000.0, false, 200.0, 10.0, 0.0, nil, 3050.0, "2000", false, 0.0, 0.0}},
			{Key: "2", Fields: []any{"aaa111", "AZU2 ", "Brazil", 0.0, 0.0, -43.2, -22.9, 5000.0, false, 180.0, 270.0, 0.0, nil, 5050.0, "3000", false, 0.0, 0.0}},
			{Key: "3", Fields: []any{"bbb222", "LAN3 ", "Chile", 0.0, 0.0, -70.6, 95.0, 9000.0, false, 220.0, 0.0, 0.0, nil, 9050.0, "5000", false, 0.0, 0.0}},
			{Key: "4", Fields: []any{"ccc333", "TAM9 ", "Brazil", 0.0, 0.0, -47.9, -15.8, 12000.0, false, 230.0, 180.0, 0.0, nil, 12050.0, "4000", false, 0.0, 0.0}},
		},
	}
}

func newPipeline(t *testing.T, feeds ...*Feed) (*Pipeline, *observability.FeedCollector) {
	t.Helper()
	metrics, err := observability.NewFeedCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewFeedCollector: %v", err)
	}
	p, err := NewPipeline(feeds, metrics, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p, metrics
}

type placemark struct {
	Name        string `xml:"name"`
	Description string `xml:"description"`
	Coordinates string `xml:"Point>coordinates"`
}

func placemarks(t *testing.T, markup []byte) []placemark {
	t.Helper()
	var doc struct {
		Placemarks []placemark `xml:"Document>Folder>Placemark"`
	}
	if err := xml.Unmarshal(markup, &doc); err != nil {
		t.Fatalf("xml.Unmarshal: %v", err)
	}
	return doc.Placemarks
}

func TestRenderEndToEnd(t *testing.T) {
	fetcher := &fakeFetcher{name: "opensky", schema: aircraft.SchemaStates, snap: statesSnapshot()}
	p, metrics := newPipeline(t, &Feed{
		Name:    "brasil",
		Fetcher: fetcher,
		Build:   kml.BuildOptions{Title: "Tráfego Aéreo", FolderTitle: "Aeronaves", StyleMode: kml.StyleNone},
	})

	res, err := p.Render(context.Background(), "brasil")
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if res.ContentType != ContentTypeKML {
		t.Errorf("ContentType = %q", res.ContentType)
	}
	if fetcher.bounds != providers.DefaultBounds {
		t.Errorf("fetch bounds = %+v, want default", fetcher.bounds)
	}

	pms := placemarks(t, res.Body)
	if len(pms) != 3 {
		t.Fatalf("got %d placemarks, want 3", len(pms))
	}
	first := pms[0]
	if first.Name != "TAM3456" {
		t.Errorf("name = %q, want TAM3456", first.Name)
	}
	if first.Coordinates != "-46.5,-23.5,1000" {
		t.Errorf("coordinates = %q", first.Coordinates)
	}
	for _, want := range []string{"Altitude: 1000 m", "Velocidade: 250.5 m/s"} {
		if !strings.Contains(first.Description, want) {
			t.Errorf("description %q missing %q", first.Description, want)
		}
	}
	if pms[1].Name != "AZU2" || pms[2].Name != "TAM9" {
		t.Errorf("placemark order = %q, %q", pms[1].Name, pms[2].Name)
	}

	s := res.Summary
	if s.Records != 5 || s.Placemarks != 3 || s.SkippedTotal() != 2 {
		t.Errorf("summary records/placemarks/skipped = %d/%d/%d", s.Records, s.Placemarks, s.SkippedTotal())
	}
	if s.Skipped[aircraft.ReasonMissingCoordinates] != 1 || s.Skipped[aircraft.ReasonOutOfRange] != 1 {
		t.Errorf("skipped by reason = %v", s.Skipped)
	}
	if s.AltitudeSamples != 3 || s.MeanAltitude != 6000 || s.MedianAltitude != 5000 {
		t.Errorf("altitude stats n=%d mean=%v median=%v", s.AltitudeSamples, s.MeanAltitude, s.MedianAltitude)
	}
	if !s.SnapshotTime.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("SnapshotTime = %v", s.SnapshotTime)
	}

	if got := testutil.ToFloat64(metrics.SkippedRecords.WithLabelValues("brasil", "out_of_range")); got != 1 {
		t.Errorf("skipped out_of_range metric = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.Requests.WithLabelValues("brasil", "kml", observability.OutcomeOK)); got != 1 {
		t.Errorf("requests ok metric = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.Placemarks.WithLabelValues("brasil")); got != 3 {
		t.Errorf("placemarks metric = %v, want 3", got)
	}
}

func TestRenderFetchesEveryTime(t *testing.T) {
	fetcher := &fakeFetcher{name: "opensky", schema: aircraft.SchemaStates, snap: statesSnapshot()}
	p, _ := newPipeline(t, &Feed{Name: "brasil", Fetcher: fetcher})

	for i := 0; i < 3; i++ {
		if _, err := p.Render(context.Background(), "brasil"); err != nil {
			t.Fatalf("Render() error: %v", err)
		}
	}
	if fetcher.calls != 3 {
		t.Errorf("fetcher called %d times, want 3", fetcher.calls)
	}
}

func TestRenderArchiveIntegrity(t *testing.T) {
	fetcher := &fakeFetcher{name: "opensky", schema: aircraft.SchemaStates, snap: statesSnapshot()}
	p, _ := newPipeline(t, &Feed{Name: "brasil", Fetcher: fetcher, Archive: true, Pretty: true})

	markup, err := p.Render(context.Background(), "brasil")
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	archive, err := p.RenderArchive(context.Background(), "brasil")
	if err != nil {
		t.Fatalf("RenderArchive() error: %v", err)
	}
	if archive.ContentType != ContentTypeKMZ || archive.Summary.Format != FormatKMZ {
		t.Errorf("ContentType/Format = %q/%q", archive.ContentType, archive.Summary.Format)
	}

	zr, err := zip.NewReader(bytes.NewReader(archive.Body), int64(len(archive.Body)))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != kmz.DefaultEntryName {
		t.Fatalf("archive entries = %d, first %q", len(zr.File), zr.File[0].Name)
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatalf("open entry: %v", err)
	}
	defer rc.Close()
	content, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read entry: %v", err)
	}
	if !bytes.Equal(content, markup.Body) {
		t.Error("archived markup differs from rendered markup")
	}
}

func TestRenderErrors(t *testing.T) {
	fetchErr := &providers.FetchError{Provider: "opensky", StatusCode: 503, Err: errors.New("unavailable")}
	p, metrics := newPipeline(t,
		&Feed{Name: "down", Fetcher: &fakeFetcher{name: "opensky", err: fetchErr}, Archive: true},
		&Feed{Name: "markup-only", Fetcher: &fakeFetcher{name: "opensky", schema: aircraft.SchemaStates, snap: statesSnapshot()}},
	)

	tests := []struct {
		name    string
		render  func() (*Result, error)
		wantErr error
		wantAs  bool
	}{
		{"unknown feed", func() (*Result, error) { return p.Render(context.Background(), "nope") }, ErrUnknownFeed, false},
		{"unknown archive feed", func() (*Result, error) { return p.RenderArchive(context.Background(), "nope") }, ErrUnknownFeed, false},
		{"archive disabled", func() (*Result, error) { return p.RenderArchive(context.Background(), "markup-only") }, ErrArchiveDisabled, false},
		{"fetch failure", func() (*Result, error) { return p.Render(context.Background(), "down") }, nil, true},
		{"fetch failure archive", func() (*Result, error) { return p.RenderArchive(context.Background(), "down") }, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.render()
			if res != nil {
				t.Errorf("got a result alongside error %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantAs {
				var fe *providers.FetchError
				if !errors.As(err, &fe) || fe.StatusCode != 503 {
					t.Errorf("error = %v, want *providers.FetchError with status 503", err)
				}
			}
		})
	}

	if got := testutil.ToFloat64(metrics.FetchErrors.WithLabelValues("down", "opensky")); got != 2 {
		t.Errorf("fetch errors metric = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.Requests.WithLabelValues("down", "kmz", observability.OutcomeFetchError)); got != 1 {
		t.Errorf("kmz fetch_error metric = %v, want 1", got)
	}
}

func TestRenderArchiveCancelled(t *testing.T) {
	fetcher := &fakeFetcher{name: "opensky", schema: aircraft.SchemaStates, snap: statesSnapshot()}
	p, _ := newPipeline(t, &Feed{Name: "brasil", Fetcher: fetcher, Archive: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := p.RenderArchive(ctx, "brasil")
	if res != nil {
		t.Error("cancelled archive returned a result")
	}
	var te *kmz.TruncatedArchiveError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *kmz.TruncatedArchiveError", err)
	}
}

func TestEmptySnapshot(t *testing.T) {
	fetcher := &fakeFetcher{name: "opensky", schema: aircraft.SchemaStates, snap: &aircraft.Snapshot{}}
	p, _ := newPipeline(t, &Feed{Name: "brasil", Fetcher: fetcher})

	res, err := p.Render(context.Background(), "brasil")
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if len(placemarks(t, res.Body)) != 0 {
		t.Error("expected no placemarks")
	}
	if res.Summary.AltitudeSamples != 0 || res.Summary.MeanAltitude != 0 {
		t.Errorf("altitude stats for empty snapshot = %+v", res.Summary)
	}
}

func TestNewPipelineValidation(t *testing.T) {
	ok := &fakeFetcher{name: "x", schema: aircraft.SchemaStates}
	tests := []struct {
		name  string
		feeds []*Feed
	}{
		{"missing name", []*Feed{{Fetcher: ok}}},
		{"missing fetcher", []*Feed{{Name: "a"}}},
		{"duplicate", []*Feed{{Name: "a", Fetcher: ok}, {Name: "a", Fetcher: ok}}},
		{"bad bounds", []*Feed{{Name: "a", Fetcher: ok, Bounds: providers.Bounds{LatMin: 10, LatMax: 0, LonMin: 0, LonMax: 1}}}},
		{"bad style", []*Feed{{Name: "a", Fetcher: ok, Build: kml.BuildOptions{StyleMode: "sparkly"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPipeline(tt.feeds, nil, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFeedsKeepOrder(t *testing.T) {
	ok := &fakeFetcher{name: "x", schema: aircraft.SchemaStates}
	p, _ := newPipeline(t, &Feed{Name: "c", Fetcher: ok}, &Feed{Name: "a", Fetcher: ok}, &Feed{Name: "b", Fetcher: ok})
	var names []string
	for _, f := range p.Feeds() {
		names = append(names, f.Name)
	}
	if strings.Join(names, ",") != "c,a,b" {
		t.Errorf("Feeds() order = %v", names)
	}
}

func TestLiveLink(t *testing.T) {
	ok := &fakeFetcher{name: "x", schema: aircraft.SchemaStates}
	p, _ := newPipeline(t,
		&Feed{Name: "brasil", Fetcher: ok, Build: kml.BuildOptions{Title: "Voos"}},
		&Feed{Name: "arquivo", Fetcher: ok, Archive: true, RefreshInterval: time.Minute},
	)

	tests := []struct {
		feed        string
		wantHref    string
		wantRefresh string
		wantName    string
	}{
		{"brasil", "http://example.test/brasil.kml", "30", "Voos"},
		{"arquivo", "http://example.test/arquivo.kmz", "60", "arquivo"},
	}
	for _, tt := range tests {
		t.Run(tt.feed, func(t *testing.T) {
			out, err := p.LiveLink(tt.feed, "http://example.test/")
			if err != nil {
				t.Fatalf("LiveLink() error: %v", err)
			}
			var doc struct {
				Name    string `xml:"NetworkLink>name"`
				Href    string `xml:"NetworkLink>Link>href"`
				Refresh string `xml:"NetworkLink>Link>refreshInterval"`
			}
			if err := xml.Unmarshal(out, &doc); err != nil {
				t.Fatalf("xml.Unmarshal: %v", err)
			}
			if doc.Href != tt.wantHref || doc.Refresh != tt.wantRefresh || doc.Name != tt.wantName {
				t.Errorf("link = %+v", doc)
			}
		})
	}

	if _, err := p.LiveLink("nope", "http://example.test"); !errors.Is(err, ErrUnknownFeed) {
		t.Errorf("LiveLink(unknown) error = %v", err)
	}
}
