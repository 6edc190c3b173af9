package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/commissionsync/internal/client/models"
)

var errNoProjectSelected = errors.New("no project selected, run: fixtures <project>")

func (a *App) selectedProject() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.currentProject == "" {
		return "", errNoProjectSelected
	}
	return a.currentProject, nil
}

func (a *App) resolveFixture(ctx context.Context, ref string) (*models.Fixture, error) {
	pid, err := a.selectedProject()
	if err != nil {
		return nil, err
	}
	list, err := a.local.Fixtures(ctx, pid)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(list))
	for i, f := range list {
		ids[i] = f.ID
	}

	a.mu.Lock()
	listed := a.lastFixtures
	a.mu.Unlock()

	id, err := resolveRef(ref, listed, ids)
	if err != nil {
		return nil, fmt.Errorf("fixture %w", err)
	}
	for _, f := range list {
		if f.ID == id {
			return f, nil
		}
	}
	return nil, fmt.Errorf("fixture %q not found", ref)
}

// ListFixtures prints the fixtures of a project and selects it for the
// other fixture commands. Without args the selected project is listed again.
func (a *App) ListFixtures(ctx context.Context, args []string) error {
	var pid string
	switch len(args) {
	case 0:
		var err error
		if pid, err = a.selectedProject(); err != nil {
			return err
		}
	case 1:
		p, err := a.resolveProject(ctx, args[0])
		if err != nil {
			return err
		}
		pid = p.ID
	default:
		return usage("fixtures [project]")
	}

	list, err := a.local.Fixtures(ctx, pid)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	ids := make([]string, 0, len(list))
	for _, f := range list {
		ids = append(ids, f.ID)
		serial := f.Serial
		if serial == "" {
			serial = "-"
		}
		fmt.Fprintf(w, "%d\tA%d\t%s\t%s\t%s\t%s\n", len(ids), f.ShortAddress, f.Label, serial, f.DTType, f.Room)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(a.out, "No fixtures")
	}

	a.mu.Lock()
	a.currentProject = pid
	a.lastFixtures = ids
	a.mu.Unlock()
	return nil
}

// saveFixture stages f through autosave and pushes it in the background
// when someone is signed in.
func (a *App) saveFixture(ctx context.Context, f *models.Fixture) error {
	if err := a.autosave.TouchFixture(ctx, f); err != nil {
		return err
	}
	if a.isLoggedIn() {
		a.fixtures.PushInBackground(f)
	}
	return nil
}

func (a *App) AddFixture(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usage("addfixture <address> [label]")
	}
	pid, err := a.selectedProject()
	if err != nil {
		return err
	}

	addr, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("short address %q is not a number", args[0])
	}
	if err := models.ValidateShortAddress(addr); err != nil {
		return err
	}

	label := strings.Join(args[1:], " ")
	if label == "" {
		label = fmt.Sprintf("Fixture A%d", addr)
	}

	f := models.NewFixture(pid, label, addr)
	if err := a.saveFixture(ctx, f); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Added", label)
	return nil
}

func (a *App) SetSerial(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("setserial <fixture> <serial>")
	}
	f, err := a.resolveFixture(ctx, args[0])
	if err != nil {
		return err
	}
	f.Serial = args[1]
	if err := a.saveFixture(ctx, f); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Serial set")
	return nil
}

func (a *App) DeleteFixture(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("delfixture <fixture>")
	}
	f, err := a.resolveFixture(ctx, args[0])
	if err != nil {
		return err
	}

	// a queued push of the same fixture would recreate its document
	a.fixtures.Wait()

	err = a.fixtures.Delete(ctx, f)
	return a.remoteOutcome(err, "Deleted")
}
