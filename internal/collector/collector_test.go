package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketTrigger/internal/model"
)

func TestBuildURL_SingleDataset(t *testing.T) {
	u, err := BuildURL("http://www.quandl.com/api/v1/", []string{"WIKI/AAPL"}, QuandlQuery{})
	require.NoError(t, err)
	assert.Equal(t,
		"http://www.quandl.com/api/v1/datasets/WIKI/AAPL.csv?request_source=go&request_version=2&sort_order=asc", u)
}

func TestBuildURL_Multiset(t *testing.T) {
	u, err := BuildURL("http://www.quandl.com/api/v1", []string{"WIKI/AAPL.4", "WIKI/MSFT.4"}, QuandlQuery{
		AuthToken: "tok",
		TrimStart: time.Date(2014, 1, 2, 0, 0, 0, 0, time.UTC),
		TrimEnd:   time.Date(2014, 2, 3, 0, 0, 0, 0, time.UTC),
		Collapse:  "weekly",
		Rows:      5,
		SortOrder: "desc",
		Extra:     map[string]string{"exclude_headers": "true"},
	})
	require.NoError(t, err)
	assert.Equal(t, "http://www.quandl.com/api/v1/multisets.csv?columns=WIKI.AAPL.4,WIKI.MSFT.4&"+
		"request_source=go&request_version=2&"+
		"auth_token=tok&collapse=weekly&exclude_headers=true&rows=5&sort_order=desc&trim_end=2014-02-03&trim_start=2014-01-02", u)
}

func TestBuildURL_Errors(t *testing.T) {
	_, err := BuildURL("", nil, QuandlQuery{})
	assert.ErrorIs(t, err, ErrNoCodes)

	u, err := BuildURL("", []string{"X/Y"}, QuandlQuery{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, DefaultQuandlURL))
}

func TestParseCloses_MultisetDescending(t *testing.T) {
	csv := "Date,A - Close,B - Close\n" +
		"2014-01-03,11,21\n" +
		"2014-01-02,10,\n"
	out, err := parseCloses(strings.NewReader(csv), []string{"A", "B"})
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11}, out["A"].Closes)
	assert.Equal(t, []float64{21}, out["B"].Closes)
	assert.Equal(t, "2014-01-02", out["A"].Dates[0].Format("2006-01-02"))
}

func TestParseCloses_SingleDatasetUsesClose(t *testing.T) {
	csv := "Date,Open,High,Low,Close,Volume\n2014-01-02,1,2,0.5,1.5,100\n"
	out, err := parseCloses(strings.NewReader(csv), []string{"WIKI/SPY"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5}, out["WIKI/SPY"].Closes)
}

func TestParseCloses_ColumnMismatch(t *testing.T) {
	_, err := parseCloses(strings.NewReader("Date,A\n2014-01-02,1\n"), []string{"A", "B", "C"})
	assert.Error(t, err)
}

func TestQuandlFetcher_FetchCloses(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		w.Write([]byte("Date,A,B\n2014-01-03,2,4\n2014-01-02,1,2\n"))
	}))
	defer srv.Close()

	f := NewQuandlFetcher(srv.URL+"/api/v1/", "tok", "")
	out, err := f.FetchCloses(context.Background(), []string{"X/A", "X/B"}, 2)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/multisets.csv", gotPath)
	assert.Contains(t, gotQuery, "rows=2")
	assert.Contains(t, gotQuery, "sort_order=desc")
	assert.Equal(t, []float64{1, 2}, out["X/A"].Closes)
	assert.Equal(t, []float64{2, 4}, out["X/B"].Closes)
}

func TestQuandlFetcher_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "limit", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewQuandlFetcher(srv.URL, "", "").FetchCloses(context.Background(), []string{"A"}, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func days(ds ...int) []time.Time {
	out := make([]time.Time, len(ds))
	for i, d := range ds {
		out[i] = time.Date(2014, 1, d, 0, 0, 0, 0, time.UTC)
	}
	return out
}

func TestCollector_Collect(t *testing.T) {
	f := &MockFetcher{
		Price: 50,
		Series: map[string]model.PriceSeries{
			"Q/AAA": {Dates: days(3, 6, 7), Closes: []float64{100, 110, 121}},
			"BBB":   {Dates: days(2, 3, 6, 7), Closes: []float64{9, 10, 10, 11}},
		},
	}
	c := NewCollector(f, map[string]string{"AAA": "Q/AAA"}, 4, zerolog.Nop())

	data, err := c.Collect(context.Background(), []string{"AAA", "BBB"}, []string{"CCC", "AAA"})
	require.NoError(t, err)

	// shared dates 3, 6, 7: AAA [.1 .1], BBB [0 .1]
	require.Len(t, data.Returns, 2)
	assert.InDelta(t, 0.05, data.Returns[0], 1e-9)
	assert.InDelta(t, 0.1, data.Returns[1], 1e-9)
	assert.Equal(t, map[string]float64{"AAA": 121, "BBB": 11, "CCC": 50}, data.Prices)
}

func TestCollector_AlignsBullsByDate(t *testing.T) {
	// A has no close on 01-03, so its only return spans 01-02 to 01-06.
	csv := "Date,A,B\n" +
		"2014-01-06,110,100\n" +
		"2014-01-03,,200\n" +
		"2014-01-02,100,100\n"
	series, err := parseCloses(strings.NewReader(csv), []string{"A", "B"})
	require.NoError(t, err)

	c := NewCollector(&MockFetcher{Series: series}, nil, 3, zerolog.Nop())
	data, err := c.Collect(context.Background(), []string{"A", "B"}, nil)
	require.NoError(t, err)

	require.Len(t, data.Returns, 1)
	assert.InDelta(t, 0.05, data.Returns[0], 1e-9)
	assert.Equal(t, map[string]float64{"A": 110, "B": 100}, data.Prices)
}

func TestCollector_TooFewSharedDates(t *testing.T) {
	c := NewCollector(&MockFetcher{Series: map[string]model.PriceSeries{
		"A": {Dates: days(2, 3), Closes: []float64{1, 2}},
		"B": {Dates: days(6, 7), Closes: []float64{1, 2}},
	}}, nil, 2, zerolog.Nop())
	_, err := c.Collect(context.Background(), []string{"A", "B"}, nil)
	assert.ErrorContains(t, err, "shared")
}

func TestCollector_FetchError(t *testing.T) {
	boom := errors.New("down")
	c := NewCollector(&MockFetcher{Err: boom}, nil, 10, zerolog.Nop())
	_, err := c.Collect(context.Background(), []string{"A"}, nil)
	assert.ErrorIs(t, err, boom)
}
