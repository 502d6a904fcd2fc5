// Package app assembles the sessiond command-line interface.
package app

import (
	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"
)

// disableStyling disables all styling provided by pterm.
func disableStyling() {
	pterm.DisableColor()
	pterm.DisableStyling()
	pterm.Debug.Prefix.Text = ""
	pterm.Info.Prefix.Text = ""
	pterm.Success.Prefix.Text = ""
	pterm.Warning.Prefix.Text = ""
	pterm.Error.Prefix.Text = ""
	pterm.Fatal.Prefix.Text = ""
}

// Get retrieves the sessiond app instance.
func Get() *cli.App {
	sessiondApp := &cli.App{
		Name: "sessiond",
		Usage: `
		Sessiond manages timed focus sessions from the command line: start a
		session, pause and resume it, track distractions, and let the daemon
		expire whatever goes stale.`,
		UsageText:            "[COMMAND] [OPTIONS]",
		Version:              "v1.0.0",
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			{
				Name:      "start",
				Usage:     "Start a new session. Prompts for the details when no flags are given",
				UsageText: "sessiond start [OPTIONS]",
				Action:    startAction,
				Flags: []cli.Flag{
					userFlag,
					durationFlag,
					typeFlag,
					hiveFlag,
					deviceFlag,
					templateFlag,
					addTagFlag,
					reminderFlag,
				},
			},
			{
				Name:   "pause",
				Usage:  "Pause the active session",
				Action: pauseAction,
				Flags:  []cli.Flag{userFlag},
			},
			{
				Name:   "resume",
				Usage:  "Resume a paused session",
				Action: resumeAction,
				Flags:  []cli.Flag{userFlag},
			},
			{
				Name:   "complete",
				Usage:  "Complete the live session and record its productivity score",
				Action: completeAction,
				Flags:  []cli.Flag{userFlag, scoreFlag},
			},
			{
				Name:   "cancel",
				Usage:  "Cancel the live session",
				Action: cancelAction,
				Flags:  []cli.Flag{userFlag, reasonFlag},
			},
			{
				Name:      "note",
				Usage:     "Attach a note to the live session",
				UsageText: "sessiond note [OPTIONS] <text>",
				Action:    noteAction,
				Flags:     []cli.Flag{userFlag},
			},
			{
				Name:      "task",
				Usage:     "Record a completed task against the live session",
				UsageText: "sessiond task [OPTIONS] <task>",
				Action:    taskAction,
				Flags:     []cli.Flag{userFlag},
			},
			{
				Name:   "metrics",
				Usage:  "Add distraction metrics to the live session",
				Action: metricsAction,
				Flags: []cli.Flag{
					userFlag,
					tabSwitchesFlag,
					distractionsFlag,
					focusBreaksFlag,
				},
			},
			{
				Name:   "status",
				Usage:  "Print the status of the active session",
				Action: statusAction,
				Flags:  []cli.Flag{userFlag, jsonFlag},
			},
			{
				Name:   "watch",
				Usage:  "Follow the active session with a live countdown",
				Action: watchAction,
				Flags:  []cli.Flag{userFlag},
			},
			{
				Name: "list",
				Usage: `
				Print a table of sessions started within a time period. Defaults to a
				reporting period of 7 days`,
				Action: listAction,
				Flags: []cli.Flag{
					userFlag,
					periodFlag,
					startFlag,
					endFlag,
					addTagFlag,
					jsonFlag,
				},
			},
			{
				Name: "stats",
				Usage: `
				Track your progress with detailed statistics reporting. Defaults to a
				reporting period of 7 days`,
				Action: statsAction,
				Flags: []cli.Flag{
					userFlag,
					periodFlag,
					startFlag,
					endFlag,
					addTagFlag,
					jsonFlag,
				},
			},
			{
				Name:  "template",
				Usage: "Manage session templates",
				Subcommands: []*cli.Command{
					{
						Name:      "create",
						Usage:     "Save a new template",
						UsageText: "sessiond template create [OPTIONS] <name>",
						Action:    templateCreateAction,
						Flags: []cli.Flag{
							userFlag,
							durationFlag,
							typeFlag,
							addTagFlag,
							reminderFlag,
						},
					},
					{
						Name:   "list",
						Usage:  "List saved templates",
						Action: templateListAction,
						Flags:  []cli.Flag{userFlag},
					},
				},
			},
			{
				Name:  "sync",
				Usage: "Hand the active session over to another device",
				Subcommands: []*cli.Command{
					{
						Name:   "token",
						Usage:  "Issue a handoff token for the active session",
						Action: syncTokenAction,
						Flags:  []cli.Flag{userFlag},
					},
					{
						Name:      "refresh",
						Usage:     "Rotate a handoff token, invalidating the old one",
						UsageText: "sessiond sync refresh <token>",
						Action:    syncRefreshAction,
					},
					{
						Name:      "claim",
						Usage:     "Redeem a handoff token and take over the session",
						UsageText: "sessiond sync claim [OPTIONS] <token>",
						Action:    syncClaimAction,
						Flags:     []cli.Flag{deviceFlag},
					},
				},
			},
			{
				Name:   "stop-all",
				Usage:  "Immediately cancel the user's live session",
				Action: stopAllAction,
				Flags:  []cli.Flag{userFlag},
			},
			{
				Name: "run",
				Usage: `
				Run the background daemon: expire stale sessions, send reminders,
				and surface desktop notifications`,
				Action: runAction,
				Flags:  []cli.Flag{userFlag},
			},
		},
		Flags: []cli.Flag{
			noColorFlag,
			verboseFlag,
		},
		Before: beforeAction,
	}

	return sessiondApp
}
