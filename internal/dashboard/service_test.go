package dashboard

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountAcceptsStringsAndNumbers(t *testing.T) {
	var s Summary
	err := json.Unmarshal([]byte(`{
		"customersCount": "12",
		"dealsCount": 4,
		"employeesCount": null,
		"lowStockCount": "",
		"dealsByStage": [{"stage": "Proposal", "count": "3"}],
		"invoicesByStatus": [{"status": "Paid", "count": 2}]
	}`), &s)
	require.NoError(t, err)
	assert.Equal(t, Count(12), s.CustomersCount)
	assert.Equal(t, Count(4), s.DealsCount)
	assert.Equal(t, Count(0), s.EmployeesCount)
	assert.Equal(t, Count(0), s.LowStockCount)
	assert.Equal(t, Count(3), s.DealsByStage[0].Count)
	assert.Equal(t, Count(2), s.InvoicesByStatus[0].Count)
}

func TestCountRejectsGarbage(t *testing.T) {
	var c Count
	assert.Error(t, json.Unmarshal([]byte(`"many"`), &c))
}
