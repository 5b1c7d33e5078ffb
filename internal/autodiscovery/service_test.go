package autodiscovery

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailsetup/internal/model"
)

type fakeResolver struct {
	mu      sync.Mutex
	records map[string][]*dns.SRV
	err     error
	queries []string
}

func (r *fakeResolver) LookupSRV(_ context.Context, name string) ([]*dns.SRV, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, name)
	if r.err != nil {
		return nil, r.err
	}
	records, ok := r.records[name]
	if !ok {
		return nil, errNoSettings
	}
	return records, nil
}

// docServer serves autoconfig documents keyed by request path.
func docServer(t *testing.T, docs map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		doc, ok := docs[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if doc == "500" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(doc))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestService_Demo(t *testing.T) {
	svc := New(Config{DemoDomain: "example.com"})

	result := svc.Execute(context.Background(), "someone@Example.com")

	settings, ok := result.(Settings)
	require.True(t, ok, "got %T", result)
	assert.Equal(t, model.DemoServerSettings{}, settings.IncomingServerSettings)
	assert.True(t, settings.IsTrusted)
}

func TestService_NoDomain(t *testing.T) {
	svc := New(Config{})

	_, ok := svc.Execute(context.Background(), "nobody").(UnexpectedException)
	assert.True(t, ok)
}

func TestService_ProviderAutoconfigWins(t *testing.T) {
	srv := docServer(t, map[string]string{
		"/provider/educa.madrid.org": educaAutoconfig,
		"/ispdb/educa.madrid.org": `<clientConfig><emailProvider><incomingServer type="imap">
			<hostname>ispdb.example.org</hostname><socketType>SSL</socketType>
			<authentication>password-cleartext</authentication>
		</incomingServer></emailProvider></clientConfig>`,
	})
	resolver := &fakeResolver{records: map[string][]*dns.SRV{
		"_imaps._tcp.educa.madrid.org": {{Target: "srv.example.org.", Port: 993}},
	}}

	svc := New(Config{
		AutoconfigURLs: []string{srv.URL + "/provider/{domain}"},
		ISPDBURL:       srv.URL + "/ispdb",
		Resolver:       resolver,
	})

	result := svc.Execute(context.Background(), "ana@educa.madrid.org")

	settings, ok := result.(Settings)
	require.True(t, ok, "got %T", result)
	imap := settings.IncomingServerSettings.(model.ImapServerSettings)
	assert.Equal(t, "imap.educa.madrid.org", imap.Hostname)
	assert.Equal(t, "autoconfig#1", settings.Source)
	// Plain HTTP is never trusted.
	assert.False(t, settings.IsTrusted)
}

func TestService_FallsBackToSRV(t *testing.T) {
	srv := docServer(t, map[string]string{})
	resolver := &fakeResolver{records: map[string][]*dns.SRV{
		"_imap._tcp.educa.madrid.org": {
			{Target: "backup.educa.madrid.org.", Port: 143, Priority: 20},
			{Target: "imap.educa.madrid.org.", Port: 143, Priority: 10, Weight: 1},
		},
	}}

	svc := New(Config{
		AutoconfigURLs: []string{srv.URL + "/{domain}"},
		ISPDBURL:       srv.URL + "/ispdb",
		Resolver:       resolver,
	})

	result := svc.Execute(context.Background(), "ana@educa.madrid.org")

	settings, ok := result.(Settings)
	require.True(t, ok, "got %T", result)
	imap := settings.IncomingServerSettings.(model.ImapServerSettings)
	assert.Equal(t, "imap.educa.madrid.org", imap.Hostname)
	assert.Equal(t, 143, imap.Port)
	assert.Equal(t, model.SecurityStartTLS, imap.ConnectionSecurity)
	assert.Equal(t, "ana@educa.madrid.org", imap.Username)
	assert.False(t, settings.IsTrusted)
	assert.Equal(t, "dns-srv", settings.Source)
	assert.Contains(t, resolver.queries, "_imaps._tcp.educa.madrid.org")
}

func TestService_NoUsableSettings(t *testing.T) {
	srv := docServer(t, map[string]string{})

	svc := New(Config{
		AutoconfigURLs: []string{srv.URL + "/{domain}"},
		ISPDBURL:       srv.URL,
		Resolver:       &fakeResolver{},
	})

	_, ok := svc.Execute(context.Background(), "ana@educa.madrid.org").(NoUsableSettingsFound)
	assert.True(t, ok)
}

func TestService_SRVExplicitlyUnavailable(t *testing.T) {
	resolver := &fakeResolver{records: map[string][]*dns.SRV{
		"_imaps._tcp.example.org": {{Target: ".", Port: 0}},
		"_imap._tcp.example.org":  {{Target: ".", Port: 0}},
	}}

	svc := New(Config{Resolver: resolver})

	_, ok := svc.Execute(context.Background(), "a@example.org").(NoUsableSettingsFound)
	assert.True(t, ok)
}

func TestService_AllSourcesUnreachable(t *testing.T) {
	// Reserve a port and close it so connections are refused.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	svc := New(Config{
		AutoconfigURLs: []string{"http://" + addr + "/{domain}"},
		ISPDBURL:       "http://" + addr,
		Resolver:       &fakeResolver{err: &net.OpError{Op: "read", Net: "udp", Err: errors.New("timeout")}},
	})

	result := svc.Execute(context.Background(), "ana@educa.madrid.org")

	_, ok := result.(NetworkError)
	assert.True(t, ok, "got %T", result)
}

func TestService_UnexpectedResponse(t *testing.T) {
	srv := docServer(t, map[string]string{
		"/educa.madrid.org": "500",
	})

	svc := New(Config{AutoconfigURLs: []string{srv.URL + "/{domain}"}})

	result := svc.Execute(context.Background(), "ana@educa.madrid.org")

	_, ok := result.(UnexpectedException)
	assert.True(t, ok, "got %T", result)
}

func TestService_MalformedDocumentWithOtherNotFound(t *testing.T) {
	srv := docServer(t, map[string]string{
		"/a/educa.madrid.org": "<html>catch-all page</html>",
	})

	svc := New(Config{AutoconfigURLs: []string{
		srv.URL + "/a/{domain}",
		srv.URL + "/b/{domain}",
	}})

	_, ok := svc.Execute(context.Background(), "ana@educa.madrid.org").(NoUsableSettingsFound)
	assert.True(t, ok)
}

func TestService_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	svc := New(Config{
		Timeout:        50 * time.Millisecond,
		AutoconfigURLs: []string{srv.URL + "/{domain}"},
	})

	start := time.Now()
	result := svc.Execute(context.Background(), "ana@educa.madrid.org")

	_, ok := result.(NetworkError)
	assert.True(t, ok, "got %T", result)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestAutoconfigURL(t *testing.T) {
	got := autoconfigURL("https://autoconfig.{domain}/mail/config-v1.1.xml", "example.org", "a+b@example.org")
	assert.Equal(t, "https://autoconfig.example.org/mail/config-v1.1.xml?emailaddress=a%2Bb%40example.org", got)

	got = autoconfigURL("https://x/{domain}?v=1", "example.org", "a@example.org")
	assert.True(t, strings.HasSuffix(got, "?v=1&emailaddress=a%40example.org"))
}

func TestBestSRVTarget(t *testing.T) {
	records := []*dns.SRV{
		{Target: "b.example.org.", Port: 993, Priority: 10, Weight: 5},
		{Target: "a.example.org.", Port: 993, Priority: 10, Weight: 50},
		{Target: "c.example.org.", Port: 993, Priority: 0, Weight: 0},
	}
	assert.Equal(t, "c.example.org.", bestSRVTarget(records).Target)
	assert.Nil(t, bestSRVTarget(nil))
}

// redirectServers returns a TLS server that serves educaAutoconfig at
// /final, redirects /direct straight to it and redirects /downgrade through
// a plain HTTP server.
func redirectServers(t *testing.T) *httptest.Server {
	t.Helper()

	var secure *httptest.Server
	plain := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, secure.URL+"/final", http.StatusFound)
	}))
	t.Cleanup(plain.Close)

	secure = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/final":
			w.Header().Set("Content-Type", "text/xml")
			_, _ = w.Write([]byte(educaAutoconfig))
		case "/direct":
			http.Redirect(w, r, "/final", http.StatusFound)
		case "/downgrade":
			http.Redirect(w, r, plain.URL+"/bounce", http.StatusFound)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(secure.Close)
	return secure
}

func TestService_RedirectTrust(t *testing.T) {
	secure := redirectServers(t)

	tests := []struct {
		name    string
		path    string
		trusted bool
	}{
		{"https only", "/direct", true},
		{"through plain http", "/downgrade", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(Config{
				AutoconfigURLs: []string{secure.URL + tt.path},
				HTTPClient:     secure.Client(),
			})

			result := svc.Execute(context.Background(), "ana@educa.madrid.org")

			settings, ok := result.(Settings)
			require.True(t, ok, "got %T", result)
			assert.Equal(t, "imap.educa.madrid.org", settings.IncomingServerSettings.(model.ImapServerSettings).Hostname)
			assert.Equal(t, tt.trusted, settings.IsTrusted)
		})
	}
}

func TestService_KeepsCallerRedirectPolicy(t *testing.T) {
	secure := redirectServers(t)
	client := secure.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	svc := New(Config{
		AutoconfigURLs: []string{secure.URL + "/direct"},
		HTTPClient:     client,
	})

	// The 302 is returned as-is and is not a usable document.
	_, ok := svc.Execute(context.Background(), "ana@educa.madrid.org").(UnexpectedException)
	assert.True(t, ok)
}

func TestNew_DoesNotModifyCallerClient(t *testing.T) {
	client := &http.Client{}

	New(Config{HTTPClient: client})

	assert.Nil(t, client.CheckRedirect)
}
