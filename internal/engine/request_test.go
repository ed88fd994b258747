package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapmetrics/pkg/core"
)

func TestRequestParams_Request(t *testing.T) {
	req, err := RequestParams{
		Metrics:    []string{" revenue", "total_orders "},
		Dimensions: []string{"order_date"},
		Grain:      "Months",
		Filters:    []string{"country = 'US'"},
		Start:      "2024-01-01",
		End:        "2024-03-31",
		Limit:      10,
		OrderBy:    []string{"-revenue", "", "order_date"},
	}.Request()
	require.NoError(t, err)

	assert.Equal(t, []string{"revenue", "total_orders"}, req.Metrics)
	assert.Equal(t, core.GrainMonth, req.Grain)
	assert.Equal(t, []string{"country = 'US'"}, req.Filters)
	require.NotNil(t, req.TimeRange)
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), req.TimeRange.End)
	assert.Equal(t, []core.OrderBy{{Name: "revenue", Desc: true}, {Name: "order_date"}}, req.OrderBy)
	assert.Equal(t, 10, req.Limit)
}

func TestRequestParams_OpenEndedRange(t *testing.T) {
	req, err := RequestParams{Metrics: []string{"m"}, Start: "2024-01-01"}.Request()
	require.NoError(t, err)
	require.NotNil(t, req.TimeRange)
	assert.True(t, req.TimeRange.HasStart())
	assert.False(t, req.TimeRange.HasEnd())

	req, err = RequestParams{Metrics: []string{"m"}, End: "2024-01-31"}.Request()
	require.NoError(t, err)
	require.NotNil(t, req.TimeRange)
	assert.False(t, req.TimeRange.HasStart())
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), req.TimeRange.End)

	req, err = RequestParams{Metrics: []string{"m"}}.Request()
	require.NoError(t, err)
	assert.Nil(t, req.TimeRange)
}

func TestRequestParams_Errors(t *testing.T) {
	tests := []struct {
		name   string
		params RequestParams
		field  string
	}{
		{"bad grain", RequestParams{Metrics: []string{"m"}, Grain: "hour"}, "grain"},
		{"bad end", RequestParams{Metrics: []string{"m"}, End: "March"}, "end"},
		{"bad start", RequestParams{Metrics: []string{"m"}, Start: "01/01/2024", End: "2024-01-02"}, "start"},
		{"end before start", RequestParams{Metrics: []string{"m"}, Start: "2024-02-01", End: "2024-01-01"}, "end"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.params.Request()
			var reqErr *core.InvalidRequestError
			require.True(t, errors.As(err, &reqErr), "got %v", err)
			assert.Equal(t, tt.field, reqErr.Field)
		})
	}
}
