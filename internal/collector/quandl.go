package collector

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"MarketTrigger/internal/model"
)

// DefaultQuandlURL is the v1 API root.
const DefaultQuandlURL = "https://www.quandl.com/api/v1/"

// ErrNoCodes is returned when a request names no dataset.
var ErrNoCodes = errors.New("quandl: no dataset codes given")

// QuandlQuery holds the optional query fields of a dataset request.
// Zero values are left out of the URL.
type QuandlQuery struct {
	AuthToken      string
	TrimStart      time.Time
	TrimEnd        time.Time
	Collapse       string // daily, weekly, monthly, quarterly, annual
	Transformation string // diff, rdiff, cumul, normalize
	Rows           int
	SortOrder      string // asc (default) or desc
	Extra          map[string]string
}

func (q QuandlQuery) fields() map[string]string {
	f := make(map[string]string, len(q.Extra)+7)
	for k, v := range q.Extra {
		f[k] = v
	}
	f["auth_token"] = q.AuthToken
	if !q.TrimStart.IsZero() {
		f["trim_start"] = q.TrimStart.Format("2006-01-02")
	}
	if !q.TrimEnd.IsZero() {
		f["trim_end"] = q.TrimEnd.Format("2006-01-02")
	}
	f["collapse"] = q.Collapse
	f["transformation"] = q.Transformation
	if q.Rows > 0 {
		f["rows"] = strconv.Itoa(q.Rows)
	}
	f["sort_order"] = q.SortOrder
	if f["sort_order"] == "" {
		f["sort_order"] = "asc"
	}
	return f
}

// BuildURL builds the CSV request for one dataset or a multiset of columns.
// Codes in a multiset have '/' replaced by '.'.
func BuildURL(base string, codes []string, q QuandlQuery) (string, error) {
	if len(codes) == 0 {
		return "", ErrNoCodes
	}
	if base == "" {
		base = DefaultQuandlURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	var b strings.Builder
	b.WriteString(base)
	if len(codes) == 1 {
		fmt.Fprintf(&b, "datasets/%s.csv?", codes[0])
	} else {
		cols := make([]string, len(codes))
		for i, c := range codes {
			cols[i] = strings.ReplaceAll(c, "/", ".")
		}
		fmt.Fprintf(&b, "multisets.csv?columns=%s&", strings.Join(cols, ","))
	}
	b.WriteString("request_source=go&request_version=2&")

	fields := q.fields()
	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + url.QueryEscape(fields[k])
	}
	b.WriteString(strings.Join(parts, "&"))
	return b.String(), nil
}

// QuandlFetcher implements Fetcher using the Quandl CSV API.
type QuandlFetcher struct {
	BaseURL   string
	AuthToken string
	Client    *http.Client
}

// NewQuandlFetcher creates a new fetcher with optional proxy support.
func NewQuandlFetcher(baseURL, authToken, proxyURL string) *QuandlFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &QuandlFetcher{
		BaseURL:   baseURL,
		AuthToken: authToken,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (f *QuandlFetcher) Name() string { return "quandl" }

// FetchCloses requests the newest days rows of every code and returns them
// oldest first.
func (f *QuandlFetcher) FetchCloses(ctx context.Context, codes []string, days int) (map[string]model.PriceSeries, error) {
	u, err := BuildURL(f.BaseURL, codes, QuandlQuery{
		AuthToken: f.AuthToken,
		Rows:      days,
		SortOrder: "desc",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quandl fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("quandl: status %d, body: %s", resp.StatusCode, string(body))
	}
	return parseCloses(resp.Body, codes)
}

// parseCloses reads a Date-first CSV. A multiset carries one column per code;
// a single dataset carries full bars and its Close column is used.
func parseCloses(r io.Reader, codes []string) (map[string]model.PriceSeries, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("quandl decode: %w", err)
	}
	if len(rows) < 2 {
		return nil, errors.New("quandl: no data returned")
	}

	header := rows[0]
	columns := make(map[string]int, len(codes))
	switch {
	case len(header)-1 == len(codes):
		for i, c := range codes {
			columns[c] = i + 1
		}
	case len(codes) == 1:
		idx := slices.IndexFunc(header, func(h string) bool {
			return strings.EqualFold(strings.TrimSpace(h), "close")
		})
		if idx <= 0 {
			return nil, fmt.Errorf("quandl: no Close column in %v", header)
		}
		columns[codes[0]] = idx
	default:
		return nil, fmt.Errorf("quandl: %d columns for %d codes", len(header)-1, len(codes))
	}

	out := make(map[string]model.PriceSeries, len(codes))
	for _, c := range codes {
		out[c] = model.PriceSeries{Symbol: c}
	}
	for _, row := range rows[1:] {
		date, err := time.Parse("2006-01-02", row[0])
		if err != nil {
			return nil, fmt.Errorf("quandl: bad date %q: %w", row[0], err)
		}
		for code, idx := range columns {
			if idx >= len(row) || strings.TrimSpace(row[idx]) == "" {
				continue // missing observation
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(row[idx]), 64)
			if err != nil {
				return nil, fmt.Errorf("quandl: bad value %q for %s: %w", row[idx], code, err)
			}
			s := out[code]
			s.Dates = append(s.Dates, date)
			s.Closes = append(s.Closes, v)
			out[code] = s
		}
	}

	for code, s := range out {
		sortByDate(&s)
		out[code] = s
	}
	return out, nil
}

func sortByDate(s *model.PriceSeries) {
	idx := make([]int, len(s.Dates))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return s.Dates[idx[a]].Before(s.Dates[idx[b]]) })
	dates := make([]time.Time, len(idx))
	closes := make([]float64, len(idx))
	for i, j := range idx {
		dates[i] = s.Dates[j]
		closes[i] = s.Closes[j]
	}
	s.Dates, s.Closes = dates, closes
}
