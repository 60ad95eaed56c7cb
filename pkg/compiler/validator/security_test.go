package validator

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chicogong/ffmpeg-chain/pkg/graph"
	"github.com/chicogong/ffmpeg-chain/pkg/schemas"
)

type staticResolver map[string]string

func (r staticResolver) LookupIPAddr(_ context.Context, host string) ([]net.IPAddr, error) {
	ip, ok := r[host]
	if !ok {
		return nil, errors.New("no such host")
	}
	return []net.IPAddr{{IP: net.ParseIP(ip)}}, nil
}

func TestIsBlockedIP(t *testing.T) {
	tests := []struct {
		ip      string
		blocked bool
	}{
		// Localhost
		{"127.0.0.1", true},
		{"127.0.0.2", true},
		{"::1", true},
		// Private networks
		{"10.0.0.1", true},
		{"10.255.255.255", true},
		{"172.16.0.1", true},
		{"172.31.255.255", true},
		{"192.168.1.1", true},
		{"192.168.255.255", true},
		{"fd12::1", true},
		// Link-local (AWS metadata)
		{"169.254.169.254", true},
		// Public IPs (not blocked)
		{"8.8.8.8", false},
		{"1.1.1.1", false},
		{"93.184.216.34", false},
		{"2606:4700::1111", false},
		{"not-an-ip", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			assert.Equal(t, tt.blocked, IsBlockedIP(tt.ip))
		})
	}
}

func TestSourcePolicy_CheckURI(t *testing.T) {
	policy := &SourcePolicy{Resolver: staticResolver{
		"cdn.example.com": "93.184.216.34",
		"intranet.local":  "10.0.0.1",
		"metadata":        "169.254.169.254",
		"loopback":        "127.0.0.1",
	}}
	ctx := context.Background()

	tests := []struct {
		uri     string
		read    bool
		wantErr string
	}{
		{"https://cdn.example.com/video.mp4", true, ""},
		{"s3://bucket/out.mp4", false, ""},
		{"https://cdn.example.com/out.mp4", false, "cannot write"},
		{"http://intranet.local/internal.mp4", true, "private network"},
		{"http://metadata/latest", true, "link-local"},
		{"https://loopback/video.mp4", true, "localhost"},
		{"https://unknown.invalid/video.mp4", true, "resolve"},
		{"ftp://files.example.com/a.mp4", true, "not allowed"},
		{"/tmp/in.mp4", true, "local files"},
		{"file:///tmp/in.mp4", true, "local files"},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			err := policy.CheckURI(ctx, tt.uri, tt.read)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	local := &SourcePolicy{AllowLocalFiles: true}
	assert.NoError(t, local.CheckURI(ctx, "/tmp/in.mp4", true))
}

func TestSourcePolicy_Check(t *testing.T) {
	g := graph.New(nil)
	src, err := g.AddSource("http://intranet.local/a.mp4")
	require.NoError(t, err)
	sink, err := g.AddSink("s3://bucket/out.mp4")
	require.NoError(t, err)
	_, err = g.Connect(src, 0, sink, 0, schemas.MediaVideo)
	require.NoError(t, err)

	policy := &SourcePolicy{Resolver: staticResolver{"intranet.local": "192.168.1.20"}}
	err = policy.Check(context.Background(), g)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node 0")
	assert.Contains(t, err.Error(), "private network")
}
