package capture

import (
	"testing"

	"github.com/nvr-ai/go-camerax/images"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProbeOutput(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    VideoInfo
		wantErr bool
	}{
		{
			name:   "landscape video",
			output: `{"streams":[{"codec_type":"video","width":1920,"height":1080}]}`,
			want:   VideoInfo{Width: 1920, Height: 1080, AspectRatio: images.AspectRatio169},
		},
		{
			name:   "portrait video",
			output: `{"streams":[{"codec_type":"video","width":608,"height":1080}]}`,
			want:   VideoInfo{Width: 608, Height: 1080, AspectRatio: images.AspectRatio169},
		},
		{
			name:   "audio stream first",
			output: `{"streams":[{"codec_type":"audio"},{"codec_type":"video","width":640,"height":480}]}`,
			want:   VideoInfo{Width: 640, Height: 480, AspectRatio: images.AspectRatio43},
		},
		{
			name:   "missing codec type",
			output: `{"streams":[{"width":1400,"height":900}]}`,
			want:   VideoInfo{Width: 1400, Height: 900, AspectRatio: images.AspectRatio43},
		},
		{name: "no streams", output: `{"streams":[]}`, wantErr: true},
		{name: "audio only", output: `{"streams":[{"codec_type":"audio"}]}`, wantErr: true},
		{name: "malformed", output: `{"streams":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseProbeOutput([]byte(tt.output))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseProbeOutput_NotInvalidDimension(t *testing.T) {
	_, err := parseProbeOutput([]byte(`{"streams":[{"codec_type":"video","width":0,"height":0}]}`))
	require.Error(t, err)
	assert.False(t, errors.Is(err, images.ErrInvalidDimension))
}
