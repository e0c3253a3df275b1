package tui

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/lotusstage/stagesync/internal/sheetsync"
)

// ErrAborted is returned when the operator quits the review.
var ErrAborted = errors.New("review aborted")

// ReviewOptions configures Review.
type ReviewOptions struct {
	In  io.Reader
	Out io.Writer
	// Accessible switches to line-based prompts, for terminals that cannot
	// run the full-screen form.
	Accessible bool
	// Location is the zone stored start times are shown in.
	Location *time.Location
}

// Review asks the operator for an action on every conflict and returns the
// resulting resolutions in conflict order.
func Review(conflicts []sheetsync.Conflict, opts ReviewOptions) ([]sheetsync.Resolution, error) {
	if len(conflicts) == 0 {
		return []sheetsync.Resolution{}, nil
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	choices := DefaultChoices(conflicts)
	form := reviewForm(conflicts, choices, loc).WithAccessible(opts.Accessible)
	if opts.In != nil {
		form = form.WithInput(opts.In)
	}
	if opts.Out != nil {
		form = form.WithOutput(opts.Out)
	}

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, ErrAborted
		}
		return nil, fmt.Errorf("failed to run review form: %w", err)
	}

	out := make([]sheetsync.Resolution, len(conflicts))
	for i, c := range conflicts {
		out[i] = c.Resolve(choices[i])
	}
	return out, nil
}

// DefaultChoices preselects useSheet for every conflict.
func DefaultChoices(conflicts []sheetsync.Conflict) []sheetsync.Action {
	choices := make([]sheetsync.Action, len(conflicts))
	for i := range choices {
		choices[i] = sheetsync.ActionUseSheet
	}
	return choices
}

func reviewForm(conflicts []sheetsync.Conflict, choices []sheetsync.Action, loc *time.Location) *huh.Form {
	groups := make([]*huh.Group, 0, len(conflicts))
	for i, c := range conflicts {
		groups = append(groups, huh.NewGroup(
			huh.NewNote().
				Title(fmt.Sprintf("Row %d (%s) %d/%d", c.SheetRowNumber, c.ConflictType, i+1, len(conflicts))).
				Description(Describe(c, loc)),
			huh.NewSelect[sheetsync.Action]().
				Title("Resolution").
				Options(ActionOptions(c)...).
				Value(&choices[i]),
		))
	}
	return huh.NewForm(groups...)
}

// ActionOptions lists the choices offered for c. Keeping the stored event
// is only offered when there is one.
func ActionOptions(c sheetsync.Conflict) []huh.Option[sheetsync.Action] {
	if c.DBData == nil {
		return []huh.Option[sheetsync.Action]{
			huh.NewOption("Create event from sheet", sheetsync.ActionUseSheet),
			huh.NewOption("Skip this row", sheetsync.ActionSkip),
		}
	}
	return []huh.Option[sheetsync.Action]{
		huh.NewOption("Update event from sheet", sheetsync.ActionUseSheet),
		huh.NewOption("Keep stored event", sheetsync.ActionKeepDB),
		huh.NewOption("Skip this row", sheetsync.ActionSkip),
	}
}

// Describe summarizes the sheet and stored sides of c.
func Describe(c sheetsync.Conflict, loc *time.Location) string {
	sheetSide := c.SheetData.Date
	if c.SheetData.DayOfWeek != nil {
		sheetSide += " (" + *c.SheetData.DayOfWeek + ")"
	}
	if c.SheetData.Time != nil {
		sheetSide += " " + *c.SheetData.Time
	}
	if c.SheetData.Location != nil {
		sheetSide += " @ " + *c.SheetData.Location
	}
	return fmt.Sprintf("Sheet:  %s\nStored: %s", sheetSide, StoredSummary(c.DBData, loc))
}
