package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcellink/internal/config"
	"parcellink/internal/ingest"
)

const searchPage = `<html><body>
<table><tr><td><a href="/other">Other</a></td></tr>
<tr><td><a href="details.asp?pid=%s">12 OAK SQ</a></td></tr></table>
</body></html>`

const detailsPage = `<html><body>
<p>Assessment as of January 1, 2024, statutory lien date.</p>
<table>
  <tr><td>Parcel ID:</td><td>2100004000</td></tr>
  <tr><td>Address:</td><td>12  OAK SQ  BRIGHTON MA 02135</td></tr>
  <tr><td>Property Type:</td><td>Residential Two Family</td></tr>
  <tr><td>Classification Code:</td><td>0104</td></tr>
  <tr><td>Year Built:</td><td>1925</td></tr>
  <tr><td>Owner on Jan 1, 2025:</td><td>SMITH JOHN</td></tr>
  <tr><td>FY2025 Building value:</td><td>$612,300</td></tr>
  <tr><td>FY2025 Land Value:</td><td>$240,100</td></tr>
  <tr><td>FY2025 Total Assessed Value:</td><td>$852,400</td></tr>
</table>
<table>
  <tr><th>Current Owner/s</th><th></th></tr>
  <tr><td>1</td><td>SMITH JOHN</td></tr>
  <tr><td>2</td><td>SMITH JANE</td></tr>
</table>
<table>
  <tr><th>Fiscal Year</th><th>Property Type</th><th>Assessed Value *</th></tr>
  <tr><td>2025</td><td>Two Family</td><td>$852,400</td></tr>
  <tr><td>2024</td><td>Two Family</td><td>$801,000</td></tr>
  <tr><td>n/a</td><td>Two Family</td><td>$1</td></tr>
</table>
</body></html>`

func newTestScraper(t *testing.T, srv *httptest.Server, retries int) *Scraper {
	t.Helper()
	log, _ := test.NewNullLogger()
	s, err := New(config.ScrapeConfig{
		BaseURL:    srv.URL + "/assessing/search/",
		Timeout:    5 * time.Second,
		MaxRetries: retries,
		UserAgent:  "parcellink-test",
	}, log)
	require.NoError(t, err)
	s.backoff = time.Millisecond
	return s
}

func assessingSite(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "parcellink-test", r.Header.Get("User-Agent"))
		if !strings.HasPrefix(r.URL.Path, "/assessing/search/") {
			http.NotFound(w, r)
			return
		}
		if pid := r.URL.Query().Get("pid"); pid != "" {
			fmt.Fprint(w, detailsPage)
			return
		}
		parcel := r.URL.Query().Get("parcel")
		if parcel == "0000000000" {
			fmt.Fprint(w, `<html><body>No results</body></html>`)
			return
		}
		fmt.Fprintf(w, searchPage, parcel)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchParsesDetails(t *testing.T) {
	s := newTestScraper(t, assessingSite(t), 0)

	d, err := s.Fetch(context.Background(), "2100004000")
	require.NoError(t, err)

	assert.Equal(t, "12 OAK SQ BRIGHTON MA 02135", d.Fields["Address"])
	assert.Equal(t, []string{"SMITH JOHN", "SMITH JANE"}, d.Owners)
	assert.Equal(t, "January 1", d.AssessmentDate)
	require.Len(t, d.History, 2)
	assert.Equal(t, 2025, d.History[0].FiscalYear)
	assert.Equal(t, 801000.0, *d.History[1].AssessedValue)

	a := d.Assessment("2100004000")
	assert.Equal(t, 2025, a.FiscalYear)
	assert.Equal(t, 612300.0, *a.BuildingValue)
	assert.Equal(t, 240100.0, *a.LandValue)
	assert.Equal(t, 852400.0, *a.TotalValue)
	assert.Equal(t, "0104", a.UseCode)
	assert.Equal(t, 1925, *a.YearBuilt)
	assert.Equal(t, []string{"SMITH JOHN", "SMITH JANE"}, a.OwnerNames)
}

func TestAssessmentUsesNewestFiscalYear(t *testing.T) {
	d := &Details{Fields: map[string]string{
		"FY2026 Building Value":       "$500,000",
		"FY2026 Land Value":           "$400,000",
		"FY2026 Total Assessed Value": "$900,000",
		"FY2025 Building Value":       "$450,000",
		"FY2025 Land Value":           "$350,000",
		"FY2025 Total Assessed Value": "$800,000",
	}}

	for i := 0; i < 50; i++ {
		a := d.Assessment("2100004000")
		require.Equal(t, 2026, a.FiscalYear)
		require.Equal(t, 500000.0, *a.BuildingValue)
		require.Equal(t, 400000.0, *a.LandValue)
		require.Equal(t, 900000.0, *a.TotalValue)
	}
}

func TestFetchNoDetailsLink(t *testing.T) {
	s := newTestScraper(t, assessingSite(t), 0)
	_, err := s.Fetch(context.Background(), "0000000000")
	assert.ErrorIs(t, err, ErrNoDetailsLink)
}

func TestFetchRetries(t *testing.T) {
	tests := []struct {
		name      string
		failures  int32
		status    int
		retries   int
		wantCalls int32
		wantErr   bool
	}{
		{"recovers from 503", 2, http.StatusServiceUnavailable, 3, 3, false},
		{"recovers from 429", 1, http.StatusTooManyRequests, 1, 2, false},
		{"gives up after max retries", 100, http.StatusInternalServerError, 2, 3, true},
		{"does not retry 404", 100, http.StatusNotFound, 3, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if atomic.AddInt32(&calls, 1) <= tt.failures {
					w.WriteHeader(tt.status)
					return
				}
				fmt.Fprintf(w, searchPage, "x")
			}))
			defer srv.Close()

			s := newTestScraper(t, srv, tt.retries)
			_, err := s.get(context.Background(), srv.URL)

			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
			if tt.wantErr {
				var se *StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, tt.status, se.Code)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

type fakeFetcher struct {
	calls []string
	fail  map[string]bool
}

func (f *fakeFetcher) Fetch(_ context.Context, id string) (*Details, error) {
	f.calls = append(f.calls, id)
	if f.fail[id] {
		return nil, errors.New("upstream timeout")
	}
	return &Details{Fields: map[string]string{"Parcel ID": id}}, nil
}

func TestBatchContinuesAndResumes(t *testing.T) {
	log, _ := test.NewNullLogger()
	path := filepath.Join(t.TempDir(), "scrape.db")

	cp, err := OpenCheckpoint(path)
	require.NoError(t, err)

	first := &fakeFetcher{fail: map[string]bool{"B": true}}
	outcomes, err := (&Batch{Fetcher: first, Checkpoint: cp, Every: 2, Log: log}).Run(context.Background(), []string{"A", "B", "C", "A"})
	require.NoError(t, err)
	require.NoError(t, cp.Close())

	assert.Equal(t, []string{"A", "B", "C"}, first.calls)
	require.Len(t, outcomes, 3)
	assert.True(t, outcomes[0].Success)
	assert.False(t, outcomes[1].Success)
	assert.Equal(t, "upstream timeout", outcomes[1].Reason)
	assert.True(t, outcomes[2].Success)

	cp, err = OpenCheckpoint(path)
	require.NoError(t, err)
	defer cp.Close()

	second := &fakeFetcher{}
	outcomes, err = (&Batch{Fetcher: second, Checkpoint: cp, Every: 50, Log: log}).Run(context.Background(), []string{"A", "B", "C", "D"})
	require.NoError(t, err)

	assert.Equal(t, []string{"B", "D"}, second.calls)
	require.Len(t, outcomes, 4)
	for _, o := range outcomes {
		assert.True(t, o.Success, o.ParcelID)
	}
	assert.Equal(t, "A", outcomes[0].Details.Fields["Parcel ID"])
}

type cancellingFetcher struct {
	cancel context.CancelFunc
	calls  int
}

func (f *cancellingFetcher) Fetch(ctx context.Context, id string) (*Details, error) {
	f.calls++
	if f.calls == 2 {
		f.cancel()
		return nil, ctx.Err()
	}
	return &Details{Fields: map[string]string{}}, nil
}

func TestBatchCheckpointsOnCancel(t *testing.T) {
	log, _ := test.NewNullLogger()
	cp, err := OpenCheckpoint(filepath.Join(t.TempDir(), "scrape.db"))
	require.NoError(t, err)
	defer cp.Close()

	ctx, cancel := context.WithCancel(context.Background())
	f := &cancellingFetcher{cancel: cancel}
	outcomes, err := (&Batch{Fetcher: f, Checkpoint: cp, Every: 100, Log: log}).Run(ctx, []string{"A", "B", "C"})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, outcomes, 1)

	saved, err := cp.Load()
	require.NoError(t, err)
	assert.Len(t, saved, 1)
	assert.True(t, saved["A"].Success)
}

func TestWriteResultsReadsBackAsAssessments(t *testing.T) {
	s := newTestScraper(t, assessingSite(t), 0)
	d, err := s.Fetch(context.Background(), "2100004000")
	require.NoError(t, err)

	outcomes := []Outcome{
		{ParcelID: "2100004000", Success: true, Details: d, ScrapedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{ParcelID: "2200001000", Reason: "no details link found"},
	}

	path := filepath.Join(t.TempDir(), "scraped.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, WriteResults(f, outcomes))
	require.NoError(t, f.Close())

	log, _ := test.NewNullLogger()
	records, err := ingest.NewLoader(config.ResolveConfig{}, log).LoadAssessments(path)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, 2025, records[0].FiscalYear)
	assert.Equal(t, 852400.0, *records[0].TotalValue)
	assert.Equal(t, 612300.0, *records[0].BuildingValue)
	assert.Equal(t, 2024, records[1].FiscalYear)
	assert.Nil(t, records[1].BuildingValue)
	assert.Equal(t, 801000.0, *records[1].TotalValue)
	assert.Equal(t, []string{"SMITH JOHN", "SMITH JANE"}, records[1].OwnerNames)

	var sb strings.Builder
	require.NoError(t, WriteFailures(&sb, outcomes))
	assert.Contains(t, sb.String(), "2200001000,no details link found")
}
