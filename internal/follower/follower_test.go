package follower

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const mediaPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:0
#EXTINF:6.000,
seg1.ts
#EXTINF:6.000,
seg2.ts
#EXTINF:6.000,
seg3.ts
`

func TestPollDirectMediaPlaylist(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(mediaPlaylist))
	}))
	defer srv.Close()

	f := New(Config{UpstreamURL: srv.URL + "/chunklist.m3u8", TargetBufferSecs: 60, MaxTargetBufferSecs: 120})

	res, err := f.Poll(t.Context())
	require.NoError(t, err)
	require.Len(t, res.Playlist.Segments, 3)
	require.True(t, res.SegmentSet["/seg1.ts"])
	require.True(t, res.SegmentSet["/seg2.ts"])
	require.True(t, res.SegmentSet["/seg3.ts"])
	require.Equal(t, 6*time.Second, res.SleepFor)
}

func TestPollSelectsHighestBandwidthVariant(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/master.m3u8", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=500000\nlow.m3u8\n#EXT-X-STREAM-INF:BANDWIDTH=2000000\nhigh.m3u8\n"))
	})
	mux.HandleFunc("/high.m3u8", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(mediaPlaylist))
	})
	mux.HandleFunc("/low.m3u8", func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("low-bandwidth variant should not be fetched")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New(Config{UpstreamURL: srv.URL + "/master.m3u8"})
	res, err := f.Poll(t.Context())
	require.NoError(t, err)
	require.Len(t, res.Playlist.Segments, 3)
}

func TestPollFetchFailureIsReturnedNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(Config{UpstreamURL: srv.URL + "/chunklist.m3u8"})
	_, err := f.Poll(t.Context())
	require.Error(t, err)

	// The failure surfaces as an error return for the caller to log and
	// retry on the next tick.
}

func TestPollAbsoluteSegmentURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(mediaPlaylist))
	}))
	defer srv.Close()

	f := New(Config{UpstreamURL: srv.URL + "/live/chunklist.m3u8"})
	res, err := f.Poll(t.Context())
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/live/seg1.ts", res.SegmentURLs["/seg1.ts"])
}
