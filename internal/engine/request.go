package engine

import (
	"strings"

	"github.com/leapstack-labs/leapmetrics/pkg/core"
)

// RequestParams is the string form of a query request, as it arrives from
// command-line flags or a JSON body.
type RequestParams struct {
	Metrics    []string `json:"metrics"`
	Dimensions []string `json:"dimensions,omitempty"`
	Grain      string   `json:"grain,omitempty"`
	Filters    []string `json:"filters,omitempty"`
	Start      string   `json:"start,omitempty"`
	End        string   `json:"end,omitempty"`
	Limit      int      `json:"limit,omitempty"`
	// OrderBy entries are "name" or "-name" for descending.
	OrderBy []string `json:"order_by,omitempty"`
}

// Request parses p into a core.QueryRequest. Parse failures are returned
// as *core.InvalidRequestError.
func (p RequestParams) Request() (core.QueryRequest, error) {
	req := core.QueryRequest{
		Metrics:    trimAll(p.Metrics),
		Dimensions: trimAll(p.Dimensions),
		Filters:    p.Filters,
		Limit:      p.Limit,
	}

	if p.Grain != "" {
		g, err := core.ParseGrain(p.Grain)
		if err != nil {
			return core.QueryRequest{}, &core.InvalidRequestError{Field: "grain", Message: err.Error()}
		}
		req.Grain = g
	}

	tr, err := core.ParseTimeRange(p.Start, p.End)
	if err != nil {
		return core.QueryRequest{}, err
	}
	req.TimeRange = tr

	for _, o := range p.OrderBy {
		if strings.TrimSpace(o) == "" {
			continue
		}
		req.OrderBy = append(req.OrderBy, core.ParseOrderBy(o))
	}
	return req, nil
}

func trimAll(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, strings.TrimSpace(n))
	}
	return out
}
