package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	key := objectKey(&UploadObject{Prefix: "avatars", FileName: `..\..\evil/256-me.png`})
	require.True(t, strings.HasPrefix(key, "avatars/"))
	require.True(t, strings.HasSuffix(key, "-256-me.png"))
	require.NotContains(t, key, "..")
}

func TestMemory(t *testing.T) {
	m := NewMemory("https://cdn.test")
	resps, err := m.BulkUpload(context.Background(), []*UploadObject{
		{Prefix: "media", FileName: "a.png", Data: []byte("a")},
		{Prefix: "media", FileName: "b.png", Data: []byte("b")},
	})
	require.NoError(t, err)
	require.Len(t, resps, 2)
	require.Equal(t, 2, m.Len())

	obj, ok := m.Get(resps[1].Key)
	require.True(t, ok)
	require.Equal(t, []byte("b"), obj.Data)
	require.Equal(t, "https://cdn.test/"+resps[0].Key, resps[0].URL)
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.Upload(context.Background(), &UploadObject{})
	require.ErrorIs(t, err, ErrDisabled)
}
