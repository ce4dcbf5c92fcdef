package pageviews

import (
	"fmt"
	"time"
)

// Access filters pageviews by access method.
type Access string

const (
	// AccessAll counts views from all access methods.
	AccessAll Access = "all-access"

	// AccessDesktop counts desktop site views only.
	AccessDesktop Access = "desktop"

	// AccessMobileWeb counts mobile web views only.
	AccessMobileWeb Access = "mobile-web"

	// AccessMobileApp counts mobile app views only.
	AccessMobileApp Access = "mobile-app"
)

// Agent filters pageviews by user agent type.
type Agent string

const (
	// AgentAll counts views from all agent types.
	AgentAll Agent = "all-agents"

	// AgentUser counts human traffic only.
	AgentUser Agent = "user"

	// AgentSpider counts crawler traffic only.
	AgentSpider Agent = "spider"

	// AgentBot counts known-bot traffic only.
	AgentBot Agent = "bot"
)

// Granularity is the time-bucket size of the returned timeseries.
type Granularity string

const (
	// GranularityHourly buckets views by hour (aggregate endpoint only).
	GranularityHourly Granularity = "hourly"

	// GranularityDaily buckets views by day.
	GranularityDaily Granularity = "daily"

	// GranularityMonthly buckets views by month.
	GranularityMonthly Granularity = "monthly"
)

// timestampFormat is the wire format the API uses for range boundaries and
// item timestamps: YYYYMMDDHH.
const timestampFormat = "2006010215"

// defaultLookback is the range used when Start is not given: 30 days before End.
const defaultLookback = 30 * 24 * time.Hour

// Options configures an ArticleViews or ProjectViews query.
// The zero value is valid: all access methods, all agents, daily granularity,
// the 30 days up to today.
type Options struct {
	// Access filters by access method (default: AccessAll).
	Access Access

	// Agent filters by agent type (default: AgentAll).
	Agent Agent

	// Granularity of the timeseries (default: GranularityDaily).
	// GranularityHourly is only supported by the per-project endpoint.
	Granularity Granularity

	// Start of the date range, inclusive (default: End minus 30 days).
	Start time.Time

	// End of the date range, inclusive (default: today).
	End time.Time
}

// withDefaults fills zero-valued fields with the documented defaults.
func (o Options) withDefaults() Options {
	if o.Access == "" {
		o.Access = AccessAll
	}
	if o.Agent == "" {
		o.Agent = AgentAll
	}
	if o.Granularity == "" {
		o.Granularity = GranularityDaily
	}
	if o.End.IsZero() {
		now := time.Now().UTC()
		o.End = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	if o.Start.IsZero() {
		o.Start = o.End.Add(-defaultLookback)
	}
	return o
}

// validate checks option consistency. perArticle enables the per-article
// endpoint's restrictions.
func (o Options) validate(perArticle bool) error {
	switch o.Access {
	case AccessAll, AccessDesktop, AccessMobileWeb, AccessMobileApp:
	default:
		return fmt.Errorf("invalid access method %q", o.Access)
	}

	switch o.Agent {
	case AgentAll, AgentUser, AgentSpider, AgentBot:
	default:
		return fmt.Errorf("invalid agent type %q", o.Agent)
	}

	switch o.Granularity {
	case GranularityDaily, GranularityMonthly:
	case GranularityHourly:
		if perArticle {
			return fmt.Errorf("hourly granularity is not supported for per-article queries")
		}
	default:
		return fmt.Errorf("invalid granularity %q", o.Granularity)
	}

	if o.End.Before(o.Start) {
		return fmt.Errorf("end date %s is before start date %s",
			o.End.Format(timestampFormat), o.Start.Format(timestampFormat))
	}

	return nil
}

// TopOptions configures a TopArticles query.
// The zero value asks for today's top 1000 articles across all access methods.
type TopOptions struct {
	// Access filters by access method (default: AccessAll).
	Access Access

	// Year, Month, Day select the date (default: today, UTC).
	Year  int
	Month int
	Day   int

	// Limit caps the number of returned articles (default: 1000).
	Limit int
}

// withDefaults fills zero-valued fields with the documented defaults.
func (o TopOptions) withDefaults() TopOptions {
	if o.Access == "" {
		o.Access = AccessAll
	}
	now := time.Now().UTC()
	if o.Year == 0 {
		o.Year = now.Year()
	}
	if o.Month == 0 {
		o.Month = int(now.Month())
	}
	if o.Day == 0 {
		o.Day = now.Day()
	}
	if o.Limit == 0 {
		o.Limit = 1000
	}
	return o
}

// validate checks option consistency.
func (o TopOptions) validate() error {
	switch o.Access {
	case AccessAll, AccessDesktop, AccessMobileWeb, AccessMobileApp:
	default:
		return fmt.Errorf("invalid access method %q", o.Access)
	}

	if o.Limit <= 0 {
		return fmt.Errorf("limit must be positive (got %d)", o.Limit)
	}

	if o.Month < 1 || o.Month > 12 {
		return fmt.Errorf("invalid month %d", o.Month)
	}

	if o.Day < 1 || o.Day > 31 {
		return fmt.Errorf("invalid day %d", o.Day)
	}

	return nil
}
