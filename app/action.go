package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/focushive/sessiond/broadcast"
	"github.com/focushive/sessiond/config"
	"github.com/focushive/sessiond/internal/logutil"
	"github.com/focushive/sessiond/internal/models"
	"github.com/focushive/sessiond/internal/timeutil"
	"github.com/focushive/sessiond/internal/ui"
	"github.com/focushive/sessiond/notify"
	"github.com/focushive/sessiond/stats"
	"github.com/focushive/sessiond/store"
	"github.com/focushive/sessiond/sweep"
	"github.com/focushive/sessiond/synctoken"
	"github.com/focushive/sessiond/timer"
)

const (
	envNoColor         = "NO_COLOR"
	envSessiondNoColor = "SESSIOND_NO_COLOR"
)

var (
	errNoUser = errors.New(
		"no user specified: set --user or the USER environment variable",
	)

	errNoActiveSession = errors.New("you have no active session")
)

// appEnv holds the wired components every command operates on.
type appEnv struct {
	cfg      *config.Config
	db       store.DB
	hub      *broadcast.Hub
	engine   *timer.Engine
	stats    *stats.Stats
	registry *synctoken.Registry
}

func (a *appEnv) Close() {
	if err := a.db.Close(); err != nil {
		pterm.Error.Printfln("Failed to close the session database: %s", err)
	}
}

// setup loads configuration, initialises logging, and wires the store,
// broadcast hub, timer engine, stats reader and sync token registry.
func setup(ctx *cli.Context) (*appEnv, error) {
	configPath, dbPath, logPath, err := config.DefaultPaths()
	if err != nil {
		return nil, err
	}

	cfg, err := config.New(config.WithViperConfig(configPath, logPath))
	if err != nil {
		return nil, err
	}

	cfg.System.ConfigPath = configPath
	cfg.System.DBPath = dbPath

	logutil.Init(
		cfg.Log.Path,
		cfg.Log.MaxSizeMB,
		cfg.Log.MaxBackups,
		ctx.Bool("verbose"),
	)

	db, err := store.NewClient(dbPath)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	hub := broadcast.NewHub()
	engine := timer.New(db, broadcast.NewPublisher(hub))

	return &appEnv{
		cfg:    cfg,
		db:     db,
		hub:    hub,
		engine: engine,
		stats: stats.New(
			db,
			stats.WithLocation(loc),
			stats.WithLookbackDays(cfg.Stats.LookbackDays),
		),
		registry: synctoken.NewRegistry(
			synctoken.WithTTL(cfg.Sync.TokenTTL),
		),
	}, nil
}

func currentUser(ctx *cli.Context) (string, error) {
	user := strings.TrimSpace(ctx.String("user"))
	if user == "" {
		return "", errNoUser
	}

	return user, nil
}

// activeSession returns the user's live session or errNoActiveSession.
func activeSession(
	ctx *cli.Context,
	env *appEnv,
	userID string,
) (*models.Session, error) {
	sess, err := env.engine.GetActive(ctx.Context, userID)
	if err != nil {
		return nil, err
	}

	if sess == nil {
		return nil, errNoActiveSession
	}

	return sess, nil
}

func splitTags(ctx *cli.Context) []string {
	if ctx.String("tag") == "" {
		return nil
	}

	return strings.Split(ctx.String("tag"), ",")
}

// startAction handles the start command. Missing details are collected
// interactively.
func startAction(ctx *cli.Context) error {
	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	sessType := models.Type(strings.ToUpper(ctx.String("type")))
	duration := ctx.Int("duration")
	tags := splitTags(ctx)

	if duration == 0 && ctx.String("template") == "" {
		sessType, duration, tags, err = promptSessionDetails(sessType)
		if err != nil {
			return err
		}
	}

	opts := timer.StartOptions{
		HiveID:     ctx.String("hive"),
		DeviceID:   ctx.String("device"),
		Tags:       tags,
		TemplateID: ctx.String("template"),
	}

	if ctx.Int("remind") > 0 {
		opts.ReminderEnabled = true
		opts.ReminderMinutesBefore = ctx.Int("remind")
	}

	sess, err := env.engine.Start(ctx.Context, user, sessType, duration, opts)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateLiveSession) {
			return fmt.Errorf(
				"%w: complete or cancel the current one first", err,
			)
		}

		return err
	}

	pterm.Success.Printfln(
		"Started a %d-minute %s session (ends at %s)",
		sess.DurationMinutes,
		sess.Type,
		sess.PlannedEnd().Local().Format("15:04"),
	)

	return nil
}

// pauseAction handles the pause command.
func pauseAction(ctx *cli.Context) error {
	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	sess, err := activeSession(ctx, env, user)
	if err != nil {
		return err
	}

	if _, err := env.engine.Pause(ctx.Context, sess.ID, user); err != nil {
		return err
	}

	pterm.Success.Println("Session paused")

	return nil
}

// resumeAction handles the resume command.
func resumeAction(ctx *cli.Context) error {
	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	sess, err := activeSession(ctx, env, user)
	if err != nil {
		return err
	}

	sess, err = env.engine.Resume(ctx.Context, sess.ID, user)
	if err != nil {
		return err
	}

	pterm.Success.Printfln(
		"Session resumed (%s paused in total)",
		sess.TotalPausedDuration.Round(time.Second),
	)

	return nil
}

// completeAction handles the complete command.
func completeAction(ctx *cli.Context) error {
	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	sess, err := activeSession(ctx, env, user)
	if err != nil {
		return err
	}

	var override *int

	if score := ctx.Int("score"); score >= 0 {
		override = &score
	}

	sess, err = env.engine.Complete(ctx.Context, sess.ID, user, override)
	if err != nil {
		return err
	}

	score := 0
	if sess.ProductivityScore != nil {
		score = *sess.ProductivityScore
	}

	pterm.Success.Printfln(
		"Session completed with a productivity score of %d/100",
		score,
	)

	return nil
}

// cancelAction handles the cancel command.
func cancelAction(ctx *cli.Context) error {
	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	sess, err := activeSession(ctx, env, user)
	if err != nil {
		return err
	}

	_, err = env.engine.Cancel(ctx.Context, sess.ID, user, ctx.String("reason"))
	if err != nil {
		return err
	}

	pterm.Success.Println("Session cancelled")

	return nil
}

// noteAction handles the note command.
func noteAction(ctx *cli.Context) error {
	text := strings.TrimSpace(strings.Join(ctx.Args().Slice(), " "))
	if text == "" {
		return errors.New("a note requires some text")
	}

	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	sess, err := activeSession(ctx, env, user)
	if err != nil {
		return err
	}

	if _, err := env.engine.AddNote(ctx.Context, sess.ID, user, text); err != nil {
		return err
	}

	pterm.Success.Println("Note added")

	return nil
}

// taskAction handles the task command.
func taskAction(ctx *cli.Context) error {
	taskRef := strings.TrimSpace(strings.Join(ctx.Args().Slice(), " "))
	if taskRef == "" {
		return errors.New("specify the task that was completed")
	}

	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	sess, err := activeSession(ctx, env, user)
	if err != nil {
		return err
	}

	sess, err = env.engine.MarkTaskCompleted(ctx.Context, sess.ID, user, taskRef)
	if err != nil {
		return err
	}

	pterm.Success.Printfln("Task recorded (%d completed)", sess.TasksCompleted)

	return nil
}

// metricsAction handles the metrics command.
func metricsAction(ctx *cli.Context) error {
	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	sess, err := activeSession(ctx, env, user)
	if err != nil {
		return err
	}

	sess, err = env.engine.UpdateMetrics(ctx.Context, sess.ID, user, timer.MetricsDelta{
		TabSwitches:        ctx.Int("tab-switches"),
		DistractionMinutes: ctx.Int("distraction-minutes"),
		FocusBreaks:        ctx.Int("focus-breaks"),
	})
	if err != nil {
		return err
	}

	score := 0
	if sess.ProductivityScore != nil {
		score = *sess.ProductivityScore
	}

	pterm.Success.Printfln("Metrics recorded (score is now %d/100)", score)

	return nil
}

// statusAction handles the status command and prints the state of the
// active session.
func statusAction(ctx *cli.Context) error {
	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	sess, err := env.engine.GetActive(ctx.Context, user)
	if err != nil {
		return err
	}

	if ctx.Bool("json") {
		b, err := json.Marshal(sess)
		if err != nil {
			return err
		}

		pterm.Println(string(b))

		return nil
	}

	if sess == nil {
		pterm.Info.Println("No active session")
		return nil
	}

	now := time.Now()
	remaining := time.Until(sess.PlannedEnd())

	pterm.Info.Printfln(
		"%s session [%s]: %s active, %s remaining",
		sess.Type,
		sess.Status,
		sess.ActiveDuration(now).Round(time.Second),
		remaining.Round(time.Second),
	)

	return nil
}

// listAction handles the list command and prints a table of all the
// sessions started within a time period.
func listAction(ctx *cli.Context) error {
	filterCfg, err := config.Filter(ctx)
	if err != nil {
		return err
	}

	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	sessions, err := env.engine.GetHistory(
		ctx.Context,
		user,
		filterCfg.StartTime,
		filterCfg.EndTime,
		filterCfg.Tags,
	)
	if err != nil {
		return err
	}

	if ctx.Bool("json") {
		b, err := json.Marshal(sessions)
		if err != nil {
			return err
		}

		pterm.Println(string(b))

		return nil
	}

	printSessionTable(sessions)

	return nil
}

func printSessionTable(sessions []*models.Session) {
	header := []string{
		"#", "START DATE", "TYPE", "STATUS", "DURATION", "ACTIVE", "SCORE", "TAGS",
	}

	rows := make([][]string, len(sessions))

	for i, sess := range sessions {
		score := "-"
		if sess.ProductivityScore != nil {
			score = fmt.Sprintf("%d", *sess.ProductivityScore)
		}

		rows[i] = []string{
			fmt.Sprintf("%d", i+1),
			sess.StartedAt.Local().Format("Jan 02, 2006 03:04 PM"),
			string(sess.Type),
			string(sess.Status),
			fmt.Sprintf("%d mins", sess.DurationMinutes),
			sess.ActiveDuration(time.Now()).Round(time.Second).String(),
			score,
			strings.Join(sess.Tags, ", "),
		}
	}

	ui.PrintTable(os.Stdout, header, rows)
}

// statsAction computes the stats for the specified time period.
func statsAction(ctx *cli.Context) error {
	filterCfg, err := config.Filter(ctx)
	if err != nil {
		return err
	}

	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	summary, err := env.stats.Summarize(
		ctx.Context,
		user,
		filterCfg.StartTime,
		filterCfg.EndTime,
	)
	if err != nil {
		return err
	}

	if ctx.Bool("json") {
		b, err := json.Marshal(summary)
		if err != nil {
			return err
		}

		pterm.Println(string(b))

		return nil
	}

	printSummary(summary)

	return nil
}

func printSummary(summary *stats.Summary) {
	rows := [][]string{
		{"Total sessions", fmt.Sprintf("%d", summary.TotalSessions)},
		{"Completed", fmt.Sprintf("%d", summary.Completed)},
		{"Cancelled", fmt.Sprintf("%d", summary.Cancelled)},
		{"Expired", fmt.Sprintf("%d", summary.Expired)},
		{"Total focus time", fmt.Sprintf("%d mins", summary.TotalFocusMinutes)},
		{"Completion rate", fmt.Sprintf("%.1f%%", summary.CompletionRate)},
		{"Avg productivity", fmt.Sprintf("%.1f/100", summary.AvgProductivity)},
		{"Current streak", fmt.Sprintf("%d days", summary.CurrentStreak)},
	}

	ui.PrintTable(os.Stdout, []string{"METRIC", "VALUE"}, rows)

	if len(summary.Tags) == 0 {
		return
	}

	tagRows := make([][]string, len(summary.Tags))

	for i, tag := range summary.Tags {
		tagRows[i] = []string{
			tag.Tag,
			tag.Duration.Round(time.Minute).String(),
		}
	}

	ui.PrintTable(os.Stdout, []string{"TAG", "TIME"}, tagRows)
}

// templateCreateAction handles the template create command.
func templateCreateAction(ctx *cli.Context) error {
	name := strings.TrimSpace(strings.Join(ctx.Args().Slice(), " "))
	if name == "" {
		return errors.New("a template requires a name")
	}

	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	tpl := &models.Template{
		ID:              uuid.NewString(),
		UserID:          user,
		Name:            name,
		Type:            models.Type(strings.ToUpper(ctx.String("type"))),
		DurationMinutes: ctx.Int("duration"),
		Tags:            splitTags(ctx),
		CreatedAt:       time.Now(),
	}

	if ctx.Int("remind") > 0 {
		tpl.ReminderEnabled = true
		tpl.ReminderMinutesBefore = ctx.Int("remind")
	}

	if err := env.db.CreateTemplate(ctx.Context, tpl); err != nil {
		return err
	}

	pterm.Success.Printfln("Template %q saved (id: %s)", tpl.Name, tpl.ID)

	return nil
}

// templateListAction handles the template list command.
func templateListAction(ctx *cli.Context) error {
	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	templates, err := env.db.TemplatesByUser(ctx.Context, user)
	if err != nil {
		return err
	}

	header := []string{"ID", "NAME", "TYPE", "DURATION", "TAGS", "USED"}

	rows := make([][]string, len(templates))

	for i, tpl := range templates {
		rows[i] = []string{
			tpl.ID,
			tpl.Name,
			string(tpl.Type),
			fmt.Sprintf("%d mins", tpl.DurationMinutes),
			strings.Join(tpl.Tags, ", "),
			fmt.Sprintf("%d", tpl.UsageCount),
		}
	}

	ui.PrintTable(os.Stdout, header, rows)

	return nil
}

// syncTokenAction issues a handoff token for the active session. Tokens
// live in the daemon process; this command is only useful against a
// registry that outlives it, so it prints the token with its expiry.
func syncTokenAction(ctx *cli.Context) error {
	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	sess, err := activeSession(ctx, env, user)
	if err != nil {
		return err
	}

	token := env.registry.Generate(sess.ID)

	pterm.Success.Printfln(
		"Handoff token (valid for %s): %s",
		env.cfg.Sync.TokenTTL,
		token,
	)

	return nil
}

// syncRefreshAction rotates a handoff token.
func syncRefreshAction(ctx *cli.Context) error {
	oldToken := ctx.Args().First()
	if oldToken == "" {
		return errors.New("specify the token to refresh")
	}

	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	token, err := env.registry.Refresh(oldToken)
	if err != nil {
		return err
	}

	pterm.Success.Printfln("New handoff token: %s", token)

	return nil
}

// syncClaimAction redeems a handoff token and moves the session to this
// device.
func syncClaimAction(ctx *cli.Context) error {
	token := ctx.Args().First()
	if token == "" {
		return errors.New("specify the handoff token")
	}

	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	sessionID, err := env.registry.Resolve(token)
	if err != nil {
		return err
	}

	deviceID := ctx.String("device")
	if deviceID == "" {
		hostname, _ := os.Hostname()
		deviceID = hostname
	}

	sess, err := env.engine.Sync(ctx.Context, sessionID, deviceID)
	if err != nil {
		return err
	}

	pterm.Success.Printfln(
		"Session %s now follows device %s",
		sess.ID,
		sess.DeviceID,
	)

	return nil
}

// stopAllAction handles the stop-all command.
func stopAllAction(ctx *cli.Context) error {
	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	env.engine.EmergencyStopAll(ctx.Context, user)

	pterm.Success.Println("Live sessions stopped")

	return nil
}

// runAction starts the background daemon and blocks until interrupted.
func runAction(ctx *cli.Context) error {
	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(
		ctx.Context,
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	sweeper := sweep.New(env.db, env.engine, timeutil.SystemClock{}, sweep.Config{
		StalenessThreshold: env.cfg.Sweep.StalenessThreshold,
		StaleInterval:      env.cfg.Sweep.StaleInterval,
		ReminderInterval:   env.cfg.Sweep.ReminderInterval,
	})
	sweeper.Start(runCtx)

	env.registry.StartJanitor(runCtx, env.cfg.Sync.JanitorInterval)

	listener := notify.NewListener(
		env.hub,
		env.cfg.Notify.Enabled,
		env.cfg.Notify.Cmd,
	)
	go listener.Listen(runCtx, user)

	pterm.Info.Println("sessiond is running. Press Ctrl+C to stop")

	<-runCtx.Done()

	pterm.Info.Println("shutting down")

	return nil
}

// watchAction follows the active session in a live TUI.
func watchAction(ctx *cli.Context) error {
	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	if _, err := activeSession(ctx, env, user); err != nil {
		return err
	}

	p := tea.NewProgram(newWatchModel(env.engine, user))

	_, err = p.Run()

	return err
}

func beforeAction(ctx *cli.Context) error {
	pterm.Error.MessageStyle = pterm.NewStyle(pterm.FgRed)
	pterm.Error.Prefix = pterm.Prefix{
		Text:  "ERROR",
		Style: pterm.NewStyle(pterm.BgRed, pterm.FgBlack),
	}

	// Disable colour output if NO_COLOR is set
	if _, exists := os.LookupEnv(envNoColor); exists {
		disableStyling()
	}

	if _, exists := os.LookupEnv(envSessiondNoColor); exists {
		disableStyling()
	}

	if ctx.Bool("no-color") {
		disableStyling()
	}

	return nil
}
