package google

import (
	"context"
	"fmt"
	"strconv"

	"insight-agents/internal/models"

	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
	"google.golang.org/api/option"
)

// AnalyticsScope is the read-only scope needed for RunReport.
const AnalyticsScope = analyticsdata.AnalyticsReadonlyScope

// AnalyticsClient runs GA4 reports through the Analytics Data API.
type AnalyticsClient struct {
	svc *analyticsdata.Service
}

func NewAnalyticsClient(ctx context.Context, opts ...option.ClientOption) (*AnalyticsClient, error) {
	svc, err := analyticsdata.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create analytics data service: %w", err)
	}
	return &AnalyticsClient{svc: svc}, nil
}

func (c *AnalyticsClient) RunReport(ctx context.Context, req models.ReportRequest) (*models.ReportResponse, error) {
	apiReq := &analyticsdata.RunReportRequest{
		Limit: int64(req.Limit),
	}
	for _, dr := range req.DateRanges {
		apiReq.DateRanges = append(apiReq.DateRanges, &analyticsdata.DateRange{
			StartDate: dr.StartDate,
			EndDate:   dr.EndDate,
		})
	}
	for _, d := range req.Dimensions {
		apiReq.Dimensions = append(apiReq.Dimensions, &analyticsdata.Dimension{Name: d})
	}
	for _, m := range req.Metrics {
		apiReq.Metrics = append(apiReq.Metrics, &analyticsdata.Metric{Name: m})
	}
	for _, ob := range req.OrderBys {
		o := &analyticsdata.OrderBy{Desc: ob.Desc}
		if ob.Metric != "" {
			o.Metric = &analyticsdata.MetricOrderBy{MetricName: ob.Metric}
		} else {
			o.Dimension = &analyticsdata.DimensionOrderBy{DimensionName: ob.Dimension}
		}
		apiReq.OrderBys = append(apiReq.OrderBys, o)
	}

	resp, err := c.svc.Properties.RunReport("properties/"+req.PropertyID, apiReq).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("run report for property %s: %w", req.PropertyID, err)
	}
	return convertReport(resp), nil
}

func convertReport(resp *analyticsdata.RunReportResponse) *models.ReportResponse {
	out := &models.ReportResponse{
		Rows:     make([]models.Row, 0, len(resp.Rows)),
		RowCount: int(resp.RowCount),
	}
	for _, h := range resp.DimensionHeaders {
		out.DimensionHeaders = append(out.DimensionHeaders, h.Name)
	}
	for _, h := range resp.MetricHeaders {
		out.MetricHeaders = append(out.MetricHeaders, h.Name)
	}

	for _, r := range resp.Rows {
		var row models.Row
		for i, dv := range r.DimensionValues {
			if i < len(out.DimensionHeaders) {
				row.Set(out.DimensionHeaders[i], models.String(dv.Value))
			}
		}
		for i, mv := range r.MetricValues {
			if i >= len(out.MetricHeaders) {
				continue
			}
			if f, err := strconv.ParseFloat(mv.Value, 64); err == nil {
				row.Set(out.MetricHeaders[i], models.Number(f))
			} else {
				row.Set(out.MetricHeaders[i], models.String(mv.Value))
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}
