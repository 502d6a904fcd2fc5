package config

import (
	"slices"
	"strings"
	"time"

	"github.com/markusmobius/go-dateparser"
	"github.com/urfave/cli/v2"

	"github.com/focushive/sessiond/internal/timeutil"
)

// FilterConfig narrows history and stats queries by start time, end
// time, and assigned tags.
type FilterConfig struct {
	StartTime time.Time
	EndTime   time.Time
	Tags      []string
}

// getTimeRange returns the start and end time according to the
// specified time period.
func getTimeRange(period timeutil.Period) (start, end time.Time) {
	now := time.Now()

	start = timeutil.RoundToStart(now)

	end = timeutil.RoundToEnd(now)

	//nolint:exhaustive // other cases covered by default
	switch period {
	case timeutil.PeriodToday:
		return
	case timeutil.PeriodYesterday:
		start = now.AddDate(0, 0, timeutil.Range[period])
		start = timeutil.RoundToStart(start)
		end = timeutil.RoundToEnd(start)

		return
	case timeutil.PeriodAllTime:
		start = time.Time{}
		return
	default:
		start = now.AddDate(0, 0, timeutil.Range[period])
		start = timeutil.RoundToStart(start)
	}

	return
}

// Filter builds a FilterConfig from command-line arguments. A --period
// takes precedence; otherwise free-form --start/--end values are parsed.
func Filter(ctx *cli.Context) (*FilterConfig, error) {
	filterCfg := &FilterConfig{}

	if ctx.String("tag") != "" {
		filterCfg.Tags = strings.Split(ctx.String("tag"), ",")
	}

	period := timeutil.Period(strings.TrimSpace(ctx.String("period")))

	if period != "" && !slices.Contains(timeutil.PeriodCollection, period) {
		return nil, errInvalidPeriod
	}

	if period != "" {
		filterCfg.StartTime, filterCfg.EndTime = getTimeRange(period)

		return filterCfg, nil
	}

	start := ctx.String("start")
	if start != "" {
		dt, err := dateparser.Parse(nil, start)
		if err != nil {
			return nil, err
		}

		filterCfg.StartTime = dt.Time
	}

	filterCfg.EndTime = time.Now()

	end := ctx.String("end")
	if end != "" {
		dt, err := dateparser.Parse(nil, end)
		if err != nil {
			return nil, err
		}

		filterCfg.EndTime = dt.Time
	}

	if filterCfg.StartTime.IsZero() {
		return nil, errInvalidStartDate
	}

	if filterCfg.EndTime.Before(filterCfg.StartTime) {
		return nil, errInvalidDateRange
	}

	return filterCfg, nil
}
