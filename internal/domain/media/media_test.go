package media

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMediaInfo(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		mediaName  string
		streamType string
		mediaType  MediaType
		length     float64
		wantErr    bool
		errMsg     string
	}{
		{
			name:       "valid video",
			id:         "videoId",
			mediaName:  "video",
			streamType: StreamTypeVOD,
			mediaType:  MediaTypeVideo,
			length:     30.0,
		},
		{
			name:       "valid audio with zero length",
			id:         "audioId",
			mediaName:  "audio",
			streamType: StreamTypeLive,
			mediaType:  MediaTypeAudio,
			length:     0,
		},
		{
			name:       "missing id",
			mediaName:  "video",
			streamType: StreamTypeVOD,
			mediaType:  MediaTypeVideo,
			length:     30.0,
			wantErr:    true,
			errMsg:     "ID",
		},
		{
			name:       "negative length",
			id:         "videoId",
			mediaName:  "video",
			streamType: StreamTypeVOD,
			mediaType:  MediaTypeVideo,
			length:     -1,
			wantErr:    true,
			errMsg:     "Length",
		},
		{
			name:       "unknown media type",
			id:         "videoId",
			mediaName:  "video",
			streamType: StreamTypeVOD,
			mediaType:  "podcast",
			length:     30.0,
			wantErr:    true,
			errMsg:     "MediaType",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := NewMediaInfo(tt.id, tt.mediaName, tt.streamType, tt.mediaType, tt.length)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, info.ID)
			assert.Equal(t, tt.mediaName, info.Name)
			assert.Equal(t, tt.length, info.Length)
			assert.Equal(t, int64(250), info.PrerollWaitingTime)
		})
	}
}

func TestNewStateInfo(t *testing.T) {
	tests := []struct {
		name    string
		state   string
		wantErr bool
	}{
		{name: "standard name", state: StateClosedCaptioning},
		{name: "dots and underscores", state: "bitrate.tier_2"},
		{name: "max length", state: strings.Repeat("a", 64)},
		{name: "empty", state: "", wantErr: true},
		{name: "too long", state: strings.Repeat("a", 65), wantErr: true},
		{name: "space", state: "closed captions", wantErr: true},
		{name: "dash", state: "picture-in-picture", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := NewStateInfo(tt.state)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.state, info.Name)
		})
	}
}

func TestNewAdAndChapterInfo(t *testing.T) {
	_, err := NewAdBreakInfo("preroll", 1, 0)
	assert.NoError(t, err)
	_, err = NewAdBreakInfo("preroll", 0, 0)
	assert.Error(t, err, "position starts at 1")

	_, err = NewAdInfo("ad1", "first ad", 1, 15)
	assert.NoError(t, err)
	_, err = NewAdInfo("", "first ad", 1, 15)
	assert.Error(t, err)

	_, err = NewChapterInfo("intro", 1, 0, 30)
	assert.NoError(t, err)
	_, err = NewChapterInfo("intro", 1, -5, 30)
	assert.Error(t, err)
}

func TestNewQoEInfo(t *testing.T) {
	qoe, err := NewQoEInfo(1000, 2, 14, 6)
	require.NoError(t, err)
	assert.Equal(t, QoEInfo{Bitrate: 1000, StartupTime: 2, FPS: 14, DroppedFrames: 6}, qoe)

	_, err = NewQoEInfo(-1, 0, 0, 0)
	assert.Error(t, err)
}
