package ui

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/vanderheijden86/polycheck/pkg/model"
	"github.com/vanderheijden86/polycheck/pkg/polycount"
)

// isTerminal checks if stdin is connected to a terminal
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// newForm creates a form with appropriate settings based on TTY detection
func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !isTerminal() {
		form = form.WithAccessible(true)
	}
	return form
}

// LimitValues holds the text of the four limit inputs in metric order.
type LimitValues [model.NumMetrics]string

// CurrentLimits returns ctrl's limits as form text.
func CurrentLimits(ctrl *polycount.Controller) LimitValues {
	var v LimitValues
	for _, mk := range model.AllMetrics() {
		v[mk] = itoa(ctrl.Threshold(mk))
	}
	return v
}

// newLimitsForm builds the form editing values in place. Every input is
// validated like the TUI limit fields.
func newLimitsForm(values *LimitValues) *huh.Form {
	inputs := make([]huh.Field, 0, model.NumMetrics)
	for _, mk := range model.AllMetrics() {
		inputs = append(inputs, huh.NewInput().
			Title(mk.Label()+" limit").
			Description(fmt.Sprintf("Objects with this many %s or more are invalid", strings.ToLower(mk.Header()))).
			Value(&values[mk]).
			Validate(func(s string) error {
				_, err := polycount.ParseLimit(mk, s)
				return err
			}))
	}
	return newForm(huh.NewGroup(inputs...).
		Title("Poly count limits").
		Description("A count equal to its limit is already over it."))
}

// ApplyLimits sets every value that differs from ctrl's current limit. It
// returns the metrics that changed. Rejected values are skipped and
// returned joined; a failed save still counts as changed.
func ApplyLimits(ctrl *polycount.Controller, values LimitValues) ([]model.MetricKind, error) {
	var changed []model.MetricKind
	var errs []error
	for _, mk := range model.AllMetrics() {
		if strings.TrimSpace(values[mk]) == itoa(ctrl.Threshold(mk)) {
			continue
		}
		err := ctrl.SetLimitString(mk, values[mk])
		var prefErr *polycount.PreferenceWriteError
		switch {
		case err == nil:
			changed = append(changed, mk)
		case errors.As(err, &prefErr):
			changed = append(changed, mk)
			errs = append(errs, err)
		default:
			errs = append(errs, err)
		}
	}
	return changed, errors.Join(errs...)
}

// EditLimits runs the limits form on the terminal and applies the result.
func EditLimits(ctrl *polycount.Controller) ([]model.MetricKind, error) {
	values := CurrentLimits(ctrl)
	if err := newLimitsForm(&values).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, nil
		}
		return nil, fmt.Errorf("limits form: %w", err)
	}
	return ApplyLimits(ctrl, values)
}
