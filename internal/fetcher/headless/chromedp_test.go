package headless

import (
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"
)

func TestNewChromedpDefaultsNavTimeout(t *testing.T) {
	t.Parallel()

	fetcher, err := NewChromedp(Config{})
	require.NoError(t, err)
	defer fetcher.Close()
	require.Equal(t, 45*time.Second, fetcher.cfg.NavigationTimeout)
}

func TestResponseMetaCapturesDocumentResponse(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.capture(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			Status:  200,
			URL:     "https://example.com/themes/city",
			Headers: network.Headers{"Content-Type": "text/html"},
		},
	})

	status, headers := meta.snapshot()
	require.Equal(t, 200, status)
	require.Equal(t, "text/html", headers.Get("Content-Type"))
}

func TestResponseMetaIgnoresSubresources(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.capture(&network.EventResponseReceived{
		Type:     network.ResourceTypeImage,
		Response: &network.Response{Status: 404},
	})

	status, _ := meta.snapshot()
	require.Zero(t, status, "only document responses count")
}

func TestResponseMetaLastDocumentWins(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.capture(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 302, URL: "https://example.com/age-gate"},
	})
	meta.capture(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 200, URL: "https://example.com/themes/city"},
	})

	status, _ := meta.snapshot()
	require.Equal(t, 200, status)
}
