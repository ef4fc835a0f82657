package search

import (
	"testing"

	"github.com/gamdit/gamebox/internal/models"
	"github.com/stretchr/testify/require"
)

func TestGameIndex(t *testing.T) {
	idx, err := NewGameIndex()
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	require.NoError(t, idx.Index(
		models.Game{IGDBID: 1, Name: "The Legend of Zelda: Breath of the Wild", Aliases: []string{"BOTW"}},
		models.Game{IGDBID: 2, Name: "Hollow Knight"},
		models.Game{IGDBID: 3, Name: "Hades"},
	))

	n, err := idx.Count()
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	ids, err := idx.Search("zelda", 10)
	require.NoError(t, err)
	require.Equal(t, []int64{1}, ids)

	ids, err = idx.Search("botw", 10)
	require.NoError(t, err)
	require.Equal(t, []int64{1}, ids)

	ids, err = idx.Search("hol", 10)
	require.NoError(t, err)
	require.Equal(t, []int64{2}, ids)

	// re-indexing replaces the document
	require.NoError(t, idx.Index(models.Game{IGDBID: 3, Name: "Hades II"}))
	n, err = idx.Count()
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	require.NoError(t, idx.Delete(2))
	ids, err = idx.Search("hollow", 10)
	require.NoError(t, err)
	require.Empty(t, ids)

	ids, err = idx.Search("   ", 10)
	require.NoError(t, err)
	require.Empty(t, ids)
}
