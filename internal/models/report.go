package models

type DateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// ReportOrderBy orders by exactly one of Metric or Dimension.
type ReportOrderBy struct {
	Metric    string `json:"metric,omitempty"`
	Dimension string `json:"dimension,omitempty"`
	Desc      bool   `json:"desc"`
}

// ReportRequest is a report-style fetch scoped to one analytics property.
type ReportRequest struct {
	PropertyID string          `json:"propertyId"`
	DateRanges []DateRange     `json:"dateRanges"`
	Dimensions []string        `json:"dimensions"`
	Metrics    []string        `json:"metrics"`
	Limit      int             `json:"limit"`
	OrderBys   []ReportOrderBy `json:"orderBys,omitempty"`
}

// ReportResponse holds report rows keyed by dimension then metric name.
type ReportResponse struct {
	DimensionHeaders []string `json:"dimensionHeaders"`
	MetricHeaders    []string `json:"metricHeaders"`
	Rows             []Row    `json:"rows"`
	RowCount         int      `json:"rowCount"`
}
