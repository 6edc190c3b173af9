package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/commissionsync/internal/client/models"
)

var errUsage = errors.New("usage")

func usage(format string) error {
	return fmt.Errorf("%w: %s", errUsage, format)
}

// resolveRef finds an id by full id, by 1-based position in the last
// listing or by unique prefix.
func resolveRef(ref string, listed []string, all []string) (string, error) {
	for _, id := range all {
		if id == ref {
			return id, nil
		}
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(listed) {
			return "", fmt.Errorf("no entry %d in the last listing", n)
		}
		return listed[n-1], nil
	}

	var match string
	for _, id := range all {
		if strings.HasPrefix(id, ref) {
			if match != "" {
				return "", fmt.Errorf("%q is ambiguous", ref)
			}
			match = id
		}
	}
	if match == "" {
		return "", fmt.Errorf("%q not found", ref)
	}
	return match, nil
}

func (a *App) resolveProject(ctx context.Context, ref string) (*models.Project, error) {
	list, err := a.local.Projects(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(list))
	for i, p := range list {
		ids[i] = p.ID
	}

	a.mu.Lock()
	listed := a.lastProjects
	a.mu.Unlock()

	id, err := resolveRef(ref, listed, ids)
	if err != nil {
		return nil, fmt.Errorf("project %w", err)
	}
	return a.local.Project(ctx, id)
}

func (a *App) listProjects(ctx context.Context, archived bool) error {
	list, err := a.local.Projects(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	var ids []string
	for _, p := range list {
		if p.IsArchived() != archived {
			continue
		}
		ids = append(ids, p.ID)
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", len(ids), shortID(p.ID), p.Title, formatTime(p.UpdatedAt))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(a.out, "No projects")
	}

	a.mu.Lock()
	a.lastProjects = ids
	a.mu.Unlock()
	return nil
}

func (a *App) ListProjects(ctx context.Context) error {
	return a.listProjects(ctx, false)
}

func (a *App) ListArchived(ctx context.Context) error {
	return a.listProjects(ctx, true)
}

// saveProject stages p through autosave and pushes it in the background
// when someone is signed in.
func (a *App) saveProject(ctx context.Context, p *models.Project) error {
	if err := a.autosave.TouchProject(ctx, p); err != nil {
		return err
	}
	if a.isLoggedIn() {
		a.projects.PushInBackground(p)
	}
	return nil
}

func (a *App) NewProject(ctx context.Context, args []string) error {
	title := strings.TrimSpace(strings.Join(args, " "))
	if title == "" {
		return usage("newproject <title>")
	}

	p := models.NewProject(title, time.Now().UTC())
	if err := a.saveProject(ctx, p); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Created project", shortID(p.ID))
	return nil
}

func (a *App) RenameProject(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usage("rename <project> <title>")
	}
	p, err := a.resolveProject(ctx, args[0])
	if err != nil {
		return err
	}
	p.Title = strings.Join(args[1:], " ")
	if err := a.saveProject(ctx, p); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Renamed")
	return nil
}

func (a *App) setArchived(ctx context.Context, args []string, archived bool) error {
	verb := "restore"
	if archived {
		verb = "archive"
	}
	if len(args) != 1 {
		return usage(verb + " <project>")
	}
	p, err := a.resolveProject(ctx, args[0])
	if err != nil {
		return err
	}

	if archived {
		_, err = a.projects.Archive(ctx, p.ID)
		return a.remoteOutcome(err, "Archived")
	}
	_, err = a.projects.Restore(ctx, p.ID)
	return a.remoteOutcome(err, "Restored")
}

func (a *App) ArchiveProject(ctx context.Context, args []string) error {
	return a.setArchived(ctx, args, true)
}

func (a *App) RestoreProject(ctx context.Context, args []string) error {
	return a.setArchived(ctx, args, false)
}

func (a *App) PurgeProject(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("purge <project>")
	}
	p, err := a.resolveProject(ctx, args[0])
	if err != nil {
		return err
	}

	ok, err := confirm(a.reader, fmt.Sprintf("Delete %q and all its fixtures everywhere?", p.Title), a.out)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(a.out, "Cancelled")
		return nil
	}

	a.projects.Wait()
	a.fixtures.Wait()

	err = a.projects.Purge(ctx, p.ID)
	if err != nil && !isOfflineError(err) {
		return err
	}

	a.mu.Lock()
	if a.currentProject == p.ID {
		a.currentProject = ""
		a.lastFixtures = nil
	}
	a.mu.Unlock()

	return a.remoteOutcome(err, "Purged")
}

// Pull fetches projects, then fixtures, for the signed in user.
func (a *App) Pull(ctx context.Context) error {
	if err := a.autosave.Flush(ctx); err != nil {
		return err
	}
	ps, err := a.projects.PullAllForCurrentUser(ctx)
	if err != nil {
		return err
	}
	fs, err := a.fixtures.PullAllForCurrentUser(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Projects: %d fetched, %d created, %d updated\n", ps.Fetched, ps.Created, ps.Updated)
	fmt.Fprintf(a.out, "Fixtures: %d fetched, %d created, %d updated, %d removed\n", fs.Fetched, fs.Created, fs.Updated, fs.Removed)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
