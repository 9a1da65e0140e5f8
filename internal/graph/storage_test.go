package graph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Storage:
// - Save then Load round-trips records, references, and statistics
// - Load with no file fails with ErrGraphNotBuilt
// - Corrupt JSON fails with ErrGraphNotBuilt
// - A foreign schema version fails with ErrSchemaVersion
// - Save goes through the temp directory and leaves no partial file behind

func TestStorage_SaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	st, err := NewStorage(dir)
	require.NoError(t, err)

	f := newGraphFixture()
	repo := f.fn("src/repo.ts", "findUser", 5, reads("users", 6, "email"))
	service := f.fn("src/service.ts", "loadUser", 5)
	f.call(service, repo, 8)
	f.cg.Stats.TotalFunctions = 2
	finalizeGraph(f.cg)

	require.NoError(t, st.Save(f.cg))
	assert.True(t, st.Exists())

	loaded, err := st.Load()
	require.NoError(t, err)

	assert.Equal(t, SchemaVersion, loaded.Schema)
	assert.Equal(t, "fixture", loaded.BuildID)
	require.Len(t, loaded.Functions, 2)

	gotRepo := loaded.Functions[repo.ID]
	require.NotNil(t, gotRepo)
	require.Len(t, gotRepo.DataAccess, 1)
	assert.Equal(t, "users", gotRepo.DataAccess[0].Table)
	assert.Equal(t, []string{service.ID}, gotRepo.CalledBy)

	gotService := loaded.Functions[service.ID]
	require.Len(t, gotService.Calls, 1)
	assert.Equal(t, repo.ID, gotService.Calls[0].CalleeID)
	assert.InDelta(t, 0.95, gotService.Calls[0].Confidence, 0.001)

	assert.Equal(t, 2, loaded.Stats.TotalFunctions)
	assert.Equal(t, []string{repo.ID}, loaded.DataAccessors)
}

func TestStorage_LoadMissing(t *testing.T) {
	t.Parallel()

	st, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	assert.False(t, st.Exists())
	_, err = st.Load()
	assert.ErrorIs(t, err, ErrGraphNotBuilt)
}

func TestStorage_LoadCorrupt(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	st, err := NewStorage(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, GraphFileName), []byte("{not json"), 0644))

	_, err = st.Load()
	assert.ErrorIs(t, err, ErrGraphNotBuilt, "corrupt files read as not built")
}

func TestStorage_LoadSchemaMismatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	st, err := NewStorage(dir)
	require.NoError(t, err)

	doc := `{"schema": "0.9", "build_id": "old", "functions": {}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, GraphFileName), []byte(doc), 0644))

	_, err = st.Load()
	assert.ErrorIs(t, err, ErrSchemaVersion)
	assert.NotErrorIs(t, err, ErrGraphNotBuilt)
}

func TestStorage_AtomicWrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	st, err := NewStorage(dir)
	require.NoError(t, err)

	f := newGraphFixture()
	f.fn("src/a.ts", "run", 1)
	require.NoError(t, st.Save(f.cg))

	// The temp staging file must be gone after a successful save.
	_, err = os.Stat(filepath.Join(dir, ".tmp", GraphFileName))
	assert.True(t, os.IsNotExist(err))

	// Overwriting an existing graph also succeeds.
	f.cg.BuildID = "second"
	require.NoError(t, st.Save(f.cg))
	loaded, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, "second", loaded.BuildID)
}
