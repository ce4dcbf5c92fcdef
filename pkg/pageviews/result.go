package pageviews

import (
	"time"
)

// DataPoint is the view count for a single time bucket.
type DataPoint struct {
	// Timestamp is the start of the time bucket.
	Timestamp time.Time

	// Views is the view count for the bucket.
	Views int64
}

// EntityResult is the per-entity outcome of a batch query. Exactly one of
// three states holds:
//
//   - success: Err is nil, NotFound is false, Views holds the total
//     (zero is a real count)
//   - no data: NotFound is true, the API has never recorded views for
//     this entity in the requested range
//   - failure: Err is non-nil, the request for this entity failed and
//     Views is meaningless
type EntityResult struct {
	// Views is the total view count over the requested range.
	Views int64

	// NotFound is true when the API reported no data for the entity.
	NotFound bool

	// Err is the failure that prevented fetching this entity, if any.
	// Other entities in the same batch are unaffected.
	Err error

	// Timeseries is the per-bucket breakdown, ordered by timestamp as
	// returned by the API. Empty when NotFound or Err is set.
	Timeseries []DataPoint
}

// OK returns true if the entity was fetched successfully and has data.
func (r EntityResult) OK() bool {
	return r.Err == nil && !r.NotFound
}

// RankedArticle is one entry of a top-articles ranking.
type RankedArticle struct {
	// Article is the article title as returned by the API.
	Article string `json:"article"`

	// Views is the article's view count for the requested day.
	Views int64 `json:"views"`

	// Rank is the upstream-assigned rank, starting at 1.
	Rank int `json:"rank"`
}
