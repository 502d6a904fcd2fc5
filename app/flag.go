package app

import "github.com/urfave/cli/v2"

var (
	userFlag = &cli.StringFlag{
		Name:    "user",
		Aliases: []string{"u"},
		Usage:   "The user the session belongs to. Defaults to $USER",
		EnvVars: []string{"SESSIOND_USER", "USER"},
	}

	durationFlag = &cli.IntFlag{
		Name:    "duration",
		Aliases: []string{"d"},
		Usage:   "Planned session length in minutes (1-240)",
	}

	typeFlag = &cli.StringFlag{
		Name:  "type",
		Usage: "Session type: FOCUS, WORK, STUDY, or BREAK",
		Value: "FOCUS",
	}

	hiveFlag = &cli.StringFlag{
		Name:  "hive",
		Usage: "Share session updates with the specified hive",
	}

	deviceFlag = &cli.StringFlag{
		Name:  "device",
		Usage: "Identifier for the device starting the session",
	}

	templateFlag = &cli.StringFlag{
		Name:  "template",
		Usage: "Start from a saved template, inheriting its duration and tags",
	}

	addTagFlag = &cli.StringFlag{
		Name:    "tag",
		Aliases: []string{"t"},
		Usage:   "Add comma-delimited tags to a session",
	}

	reminderFlag = &cli.IntFlag{
		Name:  "remind",
		Usage: "Send a reminder the given number of minutes before the planned end",
	}

	reasonFlag = &cli.StringFlag{
		Name:  "reason",
		Usage: "Why the session is being cancelled",
		Value: "No reason given",
	}

	scoreFlag = &cli.IntFlag{
		Name:  "score",
		Usage: "Record the given productivity score instead of the computed one",
		Value: -1,
	}

	periodFlag = &cli.StringFlag{
		Name:    "period",
		Aliases: []string{"p"},
		Usage: "Specify a time period for the reporting. Valid values are: today, yesterday, 7days, 14days, 30days, 90days, 180days, 365days, all-time",
		Value: "7days",
	}

	startFlag = &cli.StringFlag{
		Name:    "start",
		Aliases: []string{"s"},
		Usage:   "Specify a start date in the format: YYYY-MM-DD [HH:MM:SS PM]",
	}

	endFlag = &cli.StringFlag{
		Name:    "end",
		Aliases: []string{"e"},
		Usage:   "Specify an end date in the format: YYYY-MM-DD [HH:MM:SS PM]",
	}

	jsonFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "Output in JSON format",
	}

	noColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable coloured output",
	}

	verboseFlag = &cli.BoolFlag{
		Name:  "verbose",
		Usage: "Enable debug-level logging",
	}

	tabSwitchesFlag = &cli.IntFlag{
		Name:  "tab-switches",
		Usage: "Number of tab switches to add",
	}

	distractionsFlag = &cli.IntFlag{
		Name:  "distraction-minutes",
		Usage: "Number of distracted minutes to add",
	}

	focusBreaksFlag = &cli.IntFlag{
		Name:  "focus-breaks",
		Usage: "Number of focus breaks to add",
	}
)
