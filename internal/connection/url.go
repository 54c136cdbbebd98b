package connection

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/GriffinCanCode/devbridge/internal/host"
	"github.com/GriffinCanCode/devbridge/internal/session"
	"github.com/GriffinCanCode/devbridge/internal/shared/id"
)

// URL template tokens and query parameters understood by the dev server.
const (
	TokenHostname = "[[client-hostname]]"
	TokenPort     = "[[client-port]]"

	ParamSessionID   = "fwsid"
	ParamSessionName = "fwsname"
	ParamInit        = "fwinit"
)

// FillTemplate replaces the hostname and port tokens with the page location
// of a browser host. Other hosts leave the template untouched.
func FillTemplate(connectURL string, env host.Env, pageURL string) (string, error) {
	if env != host.EnvBrowser {
		return connectURL, nil
	}

	page, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page url %q: %w", pageURL, err)
	}
	filled := strings.ReplaceAll(connectURL, TokenHostname, page.Hostname())
	return strings.ReplaceAll(filled, TokenPort, page.Port()), nil
}

// MakeURL builds the connect URL for sess: the filled template plus fwsid
// (a fresh random UUID when no id is stored) and fwsname when a name is set.
func MakeURL(connectURL string, env host.Env, pageURL string, sess session.Session) (string, error) {
	filled, err := FillTemplate(connectURL, env, pageURL)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(filled)
	if err != nil {
		return "", fmt.Errorf("invalid connect url %q: %w", filled, err)
	}

	q := u.Query()
	sid := sess.ID
	if sid == "" {
		sid = id.NewSessionID().String()
	}
	q.Add(ParamSessionID, sid)
	if sess.Name != "" {
		q.Add(ParamSessionName, sess.Name)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// withInit marks a URL as the HTTP handshake.
func withInit(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set(ParamInit, "true")
	u.RawQuery = q.Encode()
	return u.String()
}

// toHTTP rewrites a ws/wss URL to http/https.
func toHTTP(rawURL string) string {
	switch {
	case strings.HasPrefix(rawURL, "wss"):
		return "https" + strings.TrimPrefix(rawURL, "wss")
	case strings.HasPrefix(rawURL, "ws"):
		return "http" + strings.TrimPrefix(rawURL, "ws")
	default:
		return rawURL
	}
}
