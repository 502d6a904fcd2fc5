package config

import "errors"

var (
	errInvalidDateRange = errors.New(
		"the start time must be earlier than the end time",
	)

	errInvalidPeriod = errors.New(
		"please provide a valid time period",
	)

	errInvalidStartDate = errors.New(
		"please provide a valid start date",
	)
)
