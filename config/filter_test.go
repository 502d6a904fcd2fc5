package config

import (
	"flag"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/focushive/sessiond/internal/timeutil"
)

type FilterTest struct {
	Name    string
	Flags   map[string]string
	WantErr bool
}

var filterTestCases = []FilterTest{
	{
		Name: "valid period",
		Flags: map[string]string{
			"period": "7days",
		},
	},
	{
		Name: "period with tags",
		Flags: map[string]string{
			"period": "today",
			"tag":    "writing,research",
		},
	},
	{
		Name: "all time",
		Flags: map[string]string{
			"period": "all-time",
		},
	},
	{
		Name: "invalid period",
		Flags: map[string]string{
			"period": "fortnight",
		},
		WantErr: true,
	},
	{
		Name:    "no period and no start date",
		Flags:   map[string]string{},
		WantErr: true,
	},
}

func newFilterContext(t *testing.T, flags map[string]string) *cli.Context {
	t.Helper()

	f := flag.NewFlagSet("list", flag.PanicOnError)

	for k, v := range flags {
		_ = f.String(k, "", "")

		if err := f.Set(k, v); err != nil {
			t.Log(err)
		}
	}

	return cli.NewContext(&cli.App{}, f, nil)
}

func TestFilter(t *testing.T) {
	for _, tc := range filterTestCases {
		t.Run(tc.Name, func(t *testing.T) {
			cfg, err := Filter(newFilterContext(t, tc.Flags))

			if tc.WantErr {
				if err == nil {
					t.Fatal("expected an error, got none")
				}

				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var expectedTags []string

			if _, ok := tc.Flags["tag"]; ok {
				expectedTags = strings.Split(tc.Flags["tag"], ",")
			}

			if !slices.Equal(cfg.Tags, expectedTags) {
				t.Errorf(
					"expected tags to be: %v, but got: %v",
					expectedTags,
					cfg.Tags,
				)
			}

			if cfg.EndTime.Before(cfg.StartTime) {
				t.Errorf(
					"end time %v precedes start time %v",
					cfg.EndTime,
					cfg.StartTime,
				)
			}
		})
	}
}

func TestGetTimeRange(t *testing.T) {
	now := time.Now()

	cases := []struct {
		period    timeutil.Period
		wantStart time.Time
	}{
		{
			period:    timeutil.PeriodToday,
			wantStart: timeutil.RoundToStart(now),
		},
		{
			period:    timeutil.PeriodYesterday,
			wantStart: timeutil.RoundToStart(now.AddDate(0, 0, -1)),
		},
		{
			period:    timeutil.Period7Days,
			wantStart: timeutil.RoundToStart(now.AddDate(0, 0, -6)),
		},
		{
			period:    timeutil.Period30Days,
			wantStart: timeutil.RoundToStart(now.AddDate(0, 0, -29)),
		},
		{
			period:    timeutil.PeriodAllTime,
			wantStart: time.Time{},
		},
	}

	for _, tc := range cases {
		t.Run(string(tc.period), func(t *testing.T) {
			start, end := getTimeRange(tc.period)

			if !start.Equal(tc.wantStart) {
				t.Errorf("start = %v, want %v", start, tc.wantStart)
			}

			if tc.period != timeutil.PeriodYesterday && end.Before(start) {
				t.Errorf("end %v precedes start %v", end, start)
			}
		})
	}
}
