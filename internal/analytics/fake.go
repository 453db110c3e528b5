package analytics

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FakeService is a deterministic in-memory analytics backend. The REPL's
// offline mode and the test suite run against it; identical requests
// always produce identical rows.
type FakeService struct {
	mu       sync.Mutex
	calls    []ReportRequest
	fixtures map[string]*ReportResponse
	failOn   map[string]error
	metadata *Metadata
}

var _ Service = (*FakeService)(nil)

// NewFakeService builds a fake with a GA4-shaped default metadata set.
func NewFakeService() *FakeService {
	return &FakeService{
		fixtures: make(map[string]*ReportResponse),
		failOn:   make(map[string]error),
		metadata: &Metadata{
			Metrics: []string{
				"activeUsers", "newUsers", "totalUsers", "sessions", "engagedSessions",
				"averageSessionDuration", "bounceRate", "engagementRate", "eventCount",
				"conversions", "screenPageViews", "purchaseRevenue", "totalRevenue",
				"transactions", "addToCarts", "checkouts", "itemRevenue",
				"itemsPurchased", "itemsViewed", "itemsAddedToCart", "totalPurchasers",
				"firstTimePurchasers", "adSpend", "adClicks", "adImpressions",
			},
			Dimensions: []string{
				"date", "yearMonth", "week", "dayOfWeek", "hour", "eventName",
				"sessionDefaultChannelGroup", "sessionSource", "sessionMedium",
				"sessionCampaignName", "deviceCategory", "operatingSystem", "browser",
				"country", "city", "region", "pagePath", "pageTitle", "landingPage",
				"newVsReturning", "userAgeBracket", "userGender", "itemName",
				"itemCategory", "itemBrand", "itemId",
				"customEvent:donation_name", "customEvent:donation_type",
				"customEvent:is_regular_donation", "customEvent:button_name",
			},
		},
	}
}

// SetFixture pins an exact response for a (metrics, dimensions) pair,
// overriding the generated table.
func (f *FakeService) SetFixture(metrics, dimensions []string, resp *ReportResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fixtures[fixtureKey(metrics, dimensions)] = resp
}

// FailOn makes any report containing the given metric fail with err.
func (f *FakeService) FailOn(metric string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[metric] = err
}

// Calls returns every report request received, in call order.
func (f *FakeService) Calls() []ReportRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ReportRequest(nil), f.calls...)
}

// GetMetadata returns the fixture metadata.
func (f *FakeService) GetMetadata(ctx context.Context, propertyID string) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	meta := *f.metadata
	return &meta, nil
}

// RunReport synthesizes a deterministic table for the request.
func (f *FakeService) RunReport(ctx context.Context, req ReportRequest) (*ReportResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls = append(f.calls, req)
	for _, m := range req.Metrics {
		if err, ok := f.failOn[m]; ok {
			f.mu.Unlock()
			return nil, err
		}
	}
	fixture := f.fixtures[fixtureKey(req.Metrics, req.Dimensions)]
	f.mu.Unlock()

	if fixture != nil {
		return fixture, nil
	}

	rows := f.generateRows(req)
	rows = applyOrderBys(rows, req)
	if req.Limit > 0 && int64(len(rows)) > req.Limit {
		rows = rows[:req.Limit]
	}

	return &ReportResponse{
		DimensionHeaders: append([]string(nil), req.Dimensions...),
		MetricHeaders:    append([]string(nil), req.Metrics...),
		Rows:             rows,
	}, nil
}

func (f *FakeService) generateRows(req ReportRequest) []ReportRow {
	if len(req.Dimensions) == 0 {
		row := ReportRow{}
		for _, m := range req.Metrics {
			row.MetricValues = append(row.MetricValues, metricValue(req.PropertyID, m, "total"))
		}
		return []ReportRow{row}
	}

	combos := [][]string{{}}
	for _, dim := range req.Dimensions {
		values := dimensionValues(dim, req)
		var next [][]string
		for _, combo := range combos {
			for _, v := range values {
				grown := append(append([]string(nil), combo...), v)
				next = append(next, grown)
			}
		}
		combos = next
		if len(combos) > 512 {
			combos = combos[:512]
		}
	}

	rows := make([]ReportRow, 0, len(combos))
	for _, combo := range combos {
		row := ReportRow{DimensionValues: combo}
		label := strings.Join(combo, "|")
		for _, m := range req.Metrics {
			row.MetricValues = append(row.MetricValues, metricValue(req.PropertyID, m, label))
		}
		rows = append(rows, row)
	}
	return rows
}

// dimensionValues returns the member values of a dimension, honoring the
// request's window for time dimensions and its filter for eventName.
func dimensionValues(dim string, req ReportRequest) []string {
	if req.DimensionFilter != nil && req.DimensionFilter.Field == dim {
		return append([]string(nil), req.DimensionFilter.Values...)
	}

	switch dim {
	case "date":
		return dateSpan(req.DateRanges, 14)
	case "yearMonth":
		return monthSpan(req.DateRanges)
	case "week":
		return []string{"01", "02", "03", "04"}
	case "dayOfWeek":
		return []string{"0", "1", "2", "3", "4", "5", "6"}
	case "hour":
		return []string{"09", "12", "15", "18", "21"}
	case "eventName":
		return []string{"page_view", "session_start", "donation_click", "scroll", "purchase"}
	case "sessionDefaultChannelGroup":
		return []string{"Organic Search", "Direct", "Referral", "Paid Search", "Organic Social"}
	case "sessionSource":
		return []string{"google", "naver", "(direct)", "instagram"}
	case "sessionMedium":
		return []string{"organic", "(none)", "referral", "cpc"}
	case "deviceCategory":
		return []string{"mobile", "desktop", "tablet"}
	case "country":
		return []string{"South Korea", "United States", "Japan", "(not set)"}
	case "city":
		return []string{"Seoul", "Busan", "Incheon", "(not set)"}
	case "itemName":
		return []string{"정기후원", "일시후원", "굿즈 세트", "기념 배지"}
	case "itemCategory":
		return []string{"후원", "굿즈", "(not set)"}
	case "newVsReturning":
		return []string{"new", "returning"}
	case "customEvent:donation_name":
		return []string{"어린이 결연", "해외 아동 후원", "국내 아동 후원", "(not set)"}
	case "customEvent:donation_type":
		return []string{"정기후원", "일시후원", "(not set)"}
	case "customEvent:is_regular_donation":
		return []string{"true", "false"}
	default:
		return []string{dim + "_a", dim + "_b", dim + "_c"}
	}
}

func dateSpan(ranges []DateRange, cap int) []string {
	start, end := windowOf(ranges)
	var days []string
	for d := start; !d.After(end) && len(days) < cap; d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format("20060102"))
	}
	if len(days) == 0 {
		days = []string{start.Format("20060102")}
	}
	return days
}

func monthSpan(ranges []DateRange) []string {
	start, end := windowOf(ranges)
	var months []string
	for d := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC); !d.After(end) && len(months) < 12; d = d.AddDate(0, 1, 0) {
		months = append(months, d.Format("200601"))
	}
	if len(months) == 0 {
		months = []string{start.Format("200601")}
	}
	return months
}

func windowOf(ranges []DateRange) (time.Time, time.Time) {
	start := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 6)
	if len(ranges) > 0 {
		if t, err := time.Parse("2006-01-02", ranges[0].Start); err == nil {
			start = t
		}
		if t, err := time.Parse("2006-01-02", ranges[0].End); err == nil {
			end = t
		}
	}
	if end.Before(start) {
		end = start
	}
	return start, end
}

// metricValue derives a stable pseudo-value from the metric and row label.
func metricValue(propertyID, metric, label string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(propertyID + "|" + metric + "|" + label))
	seed := h.Sum32()

	lower := strings.ToLower(metric)
	switch {
	case strings.Contains(lower, "rate") || strings.Contains(lower, "ratio"):
		return fmt.Sprintf("%.4f", float64(seed%8000+1000)/10000)
	case strings.Contains(lower, "revenue") || strings.Contains(lower, "spend"):
		return strconv.Itoa(int(seed%90000+10000) * 100)
	case strings.Contains(lower, "duration"):
		return fmt.Sprintf("%.1f", float64(seed%600+30))
	default:
		return strconv.Itoa(int(seed%9000 + 100))
	}
}

func applyOrderBys(rows []ReportRow, req ReportRequest) []ReportRow {
	if len(req.OrderBys) == 0 {
		return rows
	}
	ordered := append([]ReportRow(nil), rows...)
	ob := req.OrderBys[0]

	switch {
	case ob.Metric != "":
		idx := indexOf(req.Metrics, ob.Metric)
		if idx < 0 {
			return ordered
		}
		sort.SliceStable(ordered, func(i, j int) bool {
			a, _ := strconv.ParseFloat(ordered[i].MetricValues[idx], 64)
			b, _ := strconv.ParseFloat(ordered[j].MetricValues[idx], 64)
			if ob.Desc {
				return a > b
			}
			return a < b
		})
	case ob.Dimension != "":
		idx := indexOf(req.Dimensions, ob.Dimension)
		if idx < 0 {
			return ordered
		}
		sort.SliceStable(ordered, func(i, j int) bool {
			if ob.Desc {
				return ordered[i].DimensionValues[idx] > ordered[j].DimensionValues[idx]
			}
			return ordered[i].DimensionValues[idx] < ordered[j].DimensionValues[idx]
		})
	}
	return ordered
}

func indexOf(items []string, target string) int {
	for i, item := range items {
		if item == target {
			return i
		}
	}
	return -1
}

func fixtureKey(metrics, dimensions []string) string {
	return strings.Join(metrics, ",") + "#" + strings.Join(dimensions, ",")
}
