package cli

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/commissionsync/internal/common"
	"github.com/dmitrijs2005/commissionsync/internal/docid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRef(t *testing.T) {
	all := []string{"abc123", "abd456", "ffff"}
	listed := []string{"ffff", "abc123"}

	tests := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{ref: "abd456", want: "abd456"},
		{ref: "1", want: "ffff"},
		{ref: "2", want: "abc123"},
		{ref: "3", wantErr: true},
		{ref: "0", wantErr: true},
		{ref: "abc", want: "abc123"},
		{ref: "ab", wantErr: true},
		{ref: "zzz", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.ref, func(t *testing.T) {
			got, err := resolveRef(tc.ref, listed, all)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestProjects_OfflineLifecycle(t *testing.T) {
	a := newTestApp(t, "")
	ctx := context.Background()

	require.ErrorIs(t, a.NewProject(ctx, nil), errUsage)
	require.NoError(t, a.NewProject(ctx, []string{"Hotel", "Lobby"}))

	a.out.Reset()
	require.NoError(t, a.ListProjects(ctx))
	assert.Contains(t, a.out.String(), "Hotel Lobby")

	require.NoError(t, a.RenameProject(ctx, []string{"1", "Hotel", "Foyer"}))
	list, err := a.local.Projects(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Hotel Foyer", list[0].Title)
	assert.Empty(t, list[0].UpdatedBy, "offline edits carry no editor")

	a.out.Reset()
	require.NoError(t, a.ArchiveProject(ctx, []string{"1"}))
	assert.Equal(t, "Archived (saved locally)\n", a.out.String())

	a.out.Reset()
	require.NoError(t, a.ListProjects(ctx))
	assert.Contains(t, a.out.String(), "No projects")

	a.out.Reset()
	require.NoError(t, a.ListArchived(ctx))
	assert.Contains(t, a.out.String(), "Hotel Foyer")

	require.NoError(t, a.RestoreProject(ctx, []string{"1"}))
	p, err := a.local.Project(ctx, list[0].ID)
	require.NoError(t, err)
	assert.False(t, p.IsArchived())

	assert.Empty(t, a.rs.IDs(common.CollectionProjects), "nothing leaves the device while signed out")
}

func TestProjects_PushedWhenSignedIn(t *testing.T) {
	a := newTestApp(t, "")
	ctx := context.Background()
	a.login(t, "u1")

	require.NoError(t, a.NewProject(ctx, []string{"Warehouse"}))
	a.wait()

	list, err := a.local.Projects(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	pid := list[0].ID

	doc, err := a.rs.Get(ctx, common.CollectionProjects, docid.ProjectDocID(pid))
	require.NoError(t, err)
	assert.Equal(t, "Warehouse", doc.Data["title"])
	assert.Equal(t, "u1", doc.Data[common.OwnerField])

	require.NoError(t, a.ArchiveProject(ctx, []string{pid[:6]}))
	doc, err = a.rs.Get(ctx, common.CollectionProjects, docid.ProjectDocID(pid))
	require.NoError(t, err)
	assert.Contains(t, doc.Data, "archivedAt")
}

func TestFixtures_Commands(t *testing.T) {
	a := newTestApp(t, "")
	ctx := context.Background()
	a.login(t, "u1")

	require.ErrorIs(t, a.AddFixture(ctx, []string{"1"}), errNoProjectSelected)

	require.NoError(t, a.NewProject(ctx, []string{"Office"}))
	require.NoError(t, a.ListProjects(ctx))
	require.NoError(t, a.ListFixtures(ctx, []string{"1"}))
	assert.Contains(t, a.out.String(), "No fixtures")

	assert.Error(t, a.AddFixture(ctx, []string{"64"}))
	assert.Error(t, a.AddFixture(ctx, []string{"x"}))
	require.NoError(t, a.AddFixture(ctx, []string{"5", "Desk", "lamp"}))
	a.wait()

	pid, err := a.selectedProject()
	require.NoError(t, err)
	assert.Equal(t, []string{docid.AddressDocID(pid, 5)}, a.rs.IDs(common.CollectionFixtures))

	a.out.Reset()
	require.NoError(t, a.ListFixtures(ctx, nil))
	assert.Contains(t, a.out.String(), "Desk lamp")

	require.NoError(t, a.SetSerial(ctx, []string{"1", "SN-0042"}))
	a.wait()
	assert.Equal(t, []string{docid.SerialDocID(pid, "SN-0042")}, a.rs.IDs(common.CollectionFixtures),
		"address document is replaced by the serial document")

	a.out.Reset()
	require.NoError(t, a.DeleteFixture(ctx, []string{"1"}))
	assert.Equal(t, "Deleted\n", a.out.String())
	assert.Empty(t, a.rs.IDs(common.CollectionFixtures))

	list, err := a.local.Fixtures(ctx, pid)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPurge_AsksForConfirmation(t *testing.T) {
	a := newTestApp(t, "no\nyes\n")
	ctx := context.Background()
	a.login(t, "u1")

	require.NoError(t, a.NewProject(ctx, []string{"Depot"}))
	require.NoError(t, a.ListProjects(ctx))
	require.NoError(t, a.ListFixtures(ctx, []string{"1"}))
	require.NoError(t, a.AddFixture(ctx, []string{"3"}))
	a.wait()
	require.Len(t, a.rs.IDs(common.CollectionFixtures), 1)

	require.NoError(t, a.PurgeProject(ctx, []string{"1"}))
	assert.Contains(t, a.out.String(), "Cancelled")
	assert.Len(t, a.rs.IDs(common.CollectionProjects), 1)

	require.NoError(t, a.PurgeProject(ctx, []string{"1"}))
	assert.Empty(t, a.rs.IDs(common.CollectionProjects))
	assert.Empty(t, a.rs.IDs(common.CollectionFixtures))

	list, err := a.local.Projects(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = a.selectedProject()
	assert.ErrorIs(t, err, errNoProjectSelected)
}

func TestPull(t *testing.T) {
	a := newTestApp(t, "")
	ctx := context.Background()

	require.ErrorIs(t, a.Pull(ctx), common.ErrAuthRequired)

	a.login(t, "u1")
	const remoteID = "6f1c2a3e-0000-4000-8000-000000000001"
	require.NoError(t, a.rs.SetFields(ctx, common.CollectionProjects, remoteID, map[string]any{
		"id":              remoteID,
		"title":           "From elsewhere",
		common.OwnerField: "u1",
	}, true))

	a.out.Reset()
	require.NoError(t, a.Pull(ctx))
	assert.Contains(t, a.out.String(), "Projects: 1 fetched, 1 created")

	p, err := a.local.Project(ctx, remoteID)
	require.NoError(t, err)
	assert.Equal(t, "From elsewhere", p.Title)
}
