// Package dashboard renders the landing page from /api/dashboard.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/crmdesk/crmdesk/internal/apiclient"
)

// Count accepts counts encoded as JSON numbers or numeric strings, which is
// what SQL COUNT(*) tends to produce through some drivers.
type Count int64

// UnmarshalJSON implements json.Unmarshaler.
func (c *Count) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}
	if len(data) > 1 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	if len(data) == 0 {
		*c = 0
		return nil
	}
	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("dashboard: invalid count %q", data)
	}
	*c = Count(n)
	return nil
}

// StageCount is one bar of the deals-by-stage chart.
type StageCount struct {
	Stage string `json:"stage"`
	Count Count  `json:"count"`
}

// StatusCount is one slice of the invoices-by-status chart.
type StatusCount struct {
	Status string `json:"status"`
	Count  Count  `json:"count"`
}

// RecentTask is a task listed on the dashboard.
type RecentTask struct {
	TaskID   json.Number `json:"task_id"`
	TaskName string      `json:"task_name"`
	Status   string      `json:"status"`
	DueDate  string      `json:"due_date"`
}

// Summary mirrors GET /api/dashboard.
type Summary struct {
	CustomersCount   Count         `json:"customersCount"`
	DealsCount       Count         `json:"dealsCount"`
	EmployeesCount   Count         `json:"employeesCount"`
	LowStockCount    Count         `json:"lowStockCount"`
	DealsByStage     []StageCount  `json:"dealsByStage"`
	InvoicesByStatus []StatusCount `json:"invoicesByStatus"`
	RecentTasks      []RecentTask  `json:"recentTasks"`
}

// API is the subset of the CRM API client used here.
type API interface {
	Get(ctx context.Context, creds apiclient.Credentials, path string, out any) error
}

// Service fetches dashboard aggregates.
type Service struct {
	api API
}

// NewService constructs a Service.
func NewService(api API) *Service {
	return &Service{api: api}
}

// Summary loads the aggregates for the signed-in user.
func (s *Service) Summary(ctx context.Context, creds apiclient.Credentials) (*Summary, error) {
	var out Summary
	if err := s.api.Get(ctx, creds, "/api/dashboard", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
