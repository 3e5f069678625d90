package mediastore

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, params)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Sink_Save(t *testing.T) {
	testCases := []struct {
		name string
		body io.Reader
	}{
		{name: "seekable", body: bytes.NewReader([]byte("photo"))},
		{name: "stream", body: io.MultiReader(strings.NewReader("pho"), strings.NewReader("to"))},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := &fakeS3{}
			sink := NewS3SinkWithClient(client, "captures", "eu-west-1")

			entry, err := sink.Save(context.Background(), Request{
				DisplayName:  "2024-03-01-10-20-30-123",
				MIMEType:     "image/jpeg",
				RelativePath: ImageCollection,
			}, tc.body)
			require.NoError(t, err)
			require.Len(t, client.inputs, 1)

			in := client.inputs[0]
			assert.Equal(t, "captures", aws.ToString(in.Bucket))
			assert.Equal(t, "Pictures/CameraX-Image/2024-03-01-10-20-30-123.jpg", aws.ToString(in.Key))
			assert.Equal(t, "image/jpeg", aws.ToString(in.ContentType))
			assert.Equal(t, int64(5), aws.ToInt64(in.ContentLength))
			assert.Equal(t, "photo", string(client.bodies[0]))

			assert.Equal(t, "https://captures.s3.eu-west-1.amazonaws.com/Pictures/CameraX-Image/2024-03-01-10-20-30-123.jpg", entry.URI)
			assert.Equal(t, int64(5), entry.Size)
		})
	}
}

func TestS3Sink_Errors(t *testing.T) {
	client := &fakeS3{err: errors.New("access denied")}
	sink := NewS3SinkWithClient(client, "captures", "eu-west-1")

	_, err := sink.Save(context.Background(), Request{DisplayName: "x", MIMEType: "image/jpeg"}, strings.NewReader("x"))
	assert.ErrorContains(t, err, "access denied")

	_, err = sink.Save(context.Background(), Request{DisplayName: "x", MIMEType: "text/plain"}, strings.NewReader("x"))
	assert.True(t, errors.Is(err, ErrUnsupportedMIME))
}
