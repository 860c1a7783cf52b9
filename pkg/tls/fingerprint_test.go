package tls

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	utls "github.com/refraction-networking/utls"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProfileByName(t *testing.T) {
	p, err := GetProfileByName("Chrome")
	require.NoError(t, err)
	assert.Equal(t, "chrome", p.Name)
	assert.NotNil(t, p.ClientHello)

	p, err = GetProfileByName("golang")
	require.NoError(t, err)
	assert.Nil(t, p.ClientHello)

	_, err = GetProfileByName("netscape")
	assert.ErrorContains(t, err, "available")
}

func TestListProfiles(t *testing.T) {
	names := ListProfiles()
	assert.Contains(t, names, "chrome")
	assert.Contains(t, names, "golang")
	assert.IsIncreasing(t, names)
}

func TestPinHTTP11(t *testing.T) {
	spec, err := utls.UTLSIdToSpec(utls.HelloChrome_120)
	require.NoError(t, err)
	pinHTTP11(&spec)

	found := false
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			found = true
			assert.Equal(t, []string{"http/1.1"}, alpn.AlpnProtocols)
		}
	}
	assert.True(t, found, "chrome spec carries an ALPN extension")
}

func TestDialer_Handshake(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	for _, name := range []string{"golang", "chrome", "firefox"} {
		t.Run(name, func(t *testing.T) {
			p, err := GetProfileByName(name)
			require.NoError(t, err)

			var d net.Dialer
			dialer := &Dialer{Profile: p, Dial: d.DialContext, SkipVerify: true}
			client := &http.Client{Transport: &http.Transport{DialTLSContext: dialer.DialTLSContext}}

			resp, err := client.Get(srv.URL)
			require.NoError(t, err)
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			assert.Equal(t, "ok", string(body))
			assert.Equal(t, 1, resp.ProtoMajor)
		})
	}
}

func TestDialer_DialError(t *testing.T) {
	dialer := &Dialer{Dial: func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, io.ErrUnexpectedEOF
	}}
	_, err := dialer.DialTLSContext(context.Background(), "tcp", "example.invalid:443")
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
