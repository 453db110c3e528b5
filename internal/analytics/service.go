// Package analytics defines the logical port to the hosted analytics
// backend. Only the request/response shape is modeled here; transport,
// auth and retries live behind the Service implementations.
package analytics

import "context"

// DateRange is one closed reporting window, ISO YYYY-MM-DD on both ends.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DimensionFilter keeps rows whose field value is in Values. A single
// value behaves as string equality.
type DimensionFilter struct {
	Field  string   `json:"field"`
	Values []string `json:"values"`
}

// OrderBy sorts the report by one metric or one dimension. Exactly one of
// Metric/Dimension is set.
type OrderBy struct {
	Metric    string `json:"metric,omitempty"`
	Dimension string `json:"dimension,omitempty"`
	Desc      bool   `json:"desc,omitempty"`
}

// ReportRequest is one analytics query: the translation target of a plan
// block.
type ReportRequest struct {
	PropertyID      string           `json:"property_id"`
	Dimensions      []string         `json:"dimensions,omitempty"`
	Metrics         []string         `json:"metrics"`
	DateRanges      []DateRange      `json:"date_ranges"`
	DimensionFilter *DimensionFilter `json:"dimension_filter,omitempty"`
	OrderBys        []OrderBy        `json:"order_bys,omitempty"`
	Limit           int64            `json:"limit,omitempty"`
}

// ReportRow pairs ordered dimension values with ordered metric values.
// Metric values arrive as strings; numeric coercion is the executor's job.
type ReportRow struct {
	DimensionValues []string `json:"dimension_values"`
	MetricValues    []string `json:"metric_values"`
}

// ReportResponse is the normalized logical response of one report.
type ReportResponse struct {
	DimensionHeaders []string    `json:"dimension_headers"`
	MetricHeaders    []string    `json:"metric_headers"`
	Rows             []ReportRow `json:"rows"`
}

// Metadata lists the live api_names of a property. Custom parameters show
// up here with their customEvent:/customUser:/customItem: prefix.
type Metadata struct {
	Dimensions []string `json:"dimensions"`
	Metrics    []string `json:"metrics"`
}

// Service is the analytics port. Implementations must honor ctx deadlines;
// the executor treats any error as "drop this block".
type Service interface {
	RunReport(ctx context.Context, req ReportRequest) (*ReportResponse, error)
	GetMetadata(ctx context.Context, propertyID string) (*Metadata, error)
}
