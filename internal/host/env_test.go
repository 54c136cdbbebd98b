package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEnv(t *testing.T) {
	tests := []struct {
		name    string
		pageURL string
		want    Env
	}{
		{"", "", EnvProcess},
		{"auto", "http://localhost:9500/", EnvBrowser},
		{"Browser", "", EnvBrowser},
		{"webworker", "", EnvWorker},
		{"node", "", EnvProcess},
	}

	for _, tt := range tests {
		got, err := ResolveEnv(tt.name, tt.pageURL)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.name)
	}

	_, err := ResolveEnv("toaster", "")
	assert.Error(t, err)
}

func TestUAProduct(t *testing.T) {
	const (
		chrome  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
		safari  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15"
		firefox = "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0"
		ie      = "Mozilla/5.0 (Windows NT 10.0; Trident/7.0; rv:11.0) like Gecko"
	)

	assert.Equal(t, "chrome", UAProduct(EnvProcess, ""))
	assert.Equal(t, "chrome", UAProduct(EnvBrowser, chrome))
	assert.Equal(t, "safari", UAProduct(EnvBrowser, safari))
	assert.Equal(t, "firefox", UAProduct(EnvWorker, firefox))
	assert.Equal(t, "ie", UAProduct(EnvBrowser, ie))
	assert.Equal(t, "", UAProduct(EnvBrowser, "curl/8.0"))
}

func TestPrinterSkipsUnimplementedReceivers(t *testing.T) {
	p := NewPrinter([]string{ReceiverConsole, ReceiverREPL})
	var got [][]string
	p.Register(ReceiverConsole, func(_ Stream, args []string) { got = append(got, args) })
	p.Register("disabled", func(_ Stream, _ []string) { t.Fatal("disabled receiver called") })

	p.Print(StreamOut, "a", "b")

	assert.Equal(t, [][]string{{"a", "b"}}, got)
	assert.True(t, p.Enabled(ReceiverREPL))
	assert.False(t, p.Enabled("disabled"))
}
