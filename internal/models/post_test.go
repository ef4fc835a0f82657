package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMediaKindOf(t *testing.T) {
	require.Equal(t, MediaNone, MediaKindOf(nil))
	require.Equal(t, MediaImage, MediaKindOf([]string{"https://cdn/x.png", "https://cdn/y.JPG"}))
	require.Equal(t, MediaVideo, MediaKindOf([]string{"https://cdn/x.png", "https://cdn/clip.MP4?sig=abc"}))
	require.Equal(t, MediaImage, MediaKindOf([]string{"https://cdn/no-extension"}))
}

func TestReviewStars(t *testing.T) {
	r := Review{Rating: 90}
	require.InDelta(t, 4.5, r.Stars(), 0.0001)
}

func TestLibraryStatusValid(t *testing.T) {
	require.True(t, LibraryPlaying.Valid())
	require.False(t, LibraryStatus("wishlist").Valid())
}
