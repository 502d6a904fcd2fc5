package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/focushive/sessiond/internal/models"
)

// promptSessionDetails collects the session type, duration, and tags
// interactively when the start command is run without flags.
func promptSessionDetails(
	defaultType models.Type,
) (models.Type, int, []string, error) {
	sessType := defaultType
	if sessType == "" {
		sessType = models.Focus
	}

	duration := 25

	var tags string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[models.Type]().
				Title("What kind of session is this?").
				Options(
					huh.NewOption("Focus", models.Focus).
						Selected(sessType == models.Focus),
					huh.NewOption("Work", models.Work).
						Selected(sessType == models.Work),
					huh.NewOption("Study", models.Study).
						Selected(sessType == models.Study),
					huh.NewOption("Break", models.Break).
						Selected(sessType == models.Break),
				).
				Value(&sessType),
		),
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Session length").
				Options(
					huh.NewOption("25 minutes", 25).Selected(true),
					huh.NewOption("35 minutes", 35),
					huh.NewOption("50 minutes", 50),
					huh.NewOption("60 minutes", 60),
					huh.NewOption("90 minutes", 90),
				).
				Value(&duration),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Tags (comma-delimited, optional)").
				Value(&tags),
		),
	)

	if err := form.Run(); err != nil {
		return "", 0, nil, fmt.Errorf("form interaction failed: %w", err)
	}

	var tagList []string

	if strings.TrimSpace(tags) != "" {
		for _, tag := range strings.Split(tags, ",") {
			tagList = append(tagList, strings.TrimSpace(tag))
		}
	}

	return sessType, duration, tagList, nil
}
