package autodiscovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/mailsetup/internal/logging"
	"github.com/nhle/mailsetup/internal/model"
)

// errNoSettings marks a source that answered without a usable
// configuration (HTTP 404, NXDOMAIN, no IMAP server in the document).
var errNoSettings = errors.New("no usable settings")

// maxDocumentSize bounds an autoconfig response body.
const maxDocumentSize = 1 << 20

// Config configures a Service.
type Config struct {
	// Timeout bounds the whole lookup. Zero means 20 seconds.
	Timeout time.Duration

	// AutoconfigURLs are provider autoconfig URL templates containing
	// "{domain}".
	AutoconfigURLs []string

	// ISPDBURL is the ISP database base URL. Empty disables it.
	ISPDBURL string

	// DemoDomain routes matching addresses to the demo provider.
	DemoDomain string

	// HTTPClient is used for document fetches. Nil uses a client with
	// the lookup timeout.
	HTTPClient *http.Client

	// Resolver answers SRV queries. Nil disables the SRV source.
	Resolver SRVResolver
}

// NewConfig converts application configuration into a Service Config.
func NewConfig(cfg model.DiscoveryConfig) Config {
	return Config{
		Timeout:        time.Duration(cfg.TimeoutSec) * time.Second,
		AutoconfigURLs: cfg.AutoconfigURLs,
		ISPDBURL:       cfg.ISPDBURL,
		DemoDomain:     cfg.DemoDomain,
		Resolver:       NewDNSResolver(cfg.DNSServer),
	}
}

// Service is the network-backed GetAutoDiscovery implementation.
type Service struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New creates a discovery Service.
func New(cfg Config) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	client := &http.Client{Timeout: cfg.Timeout}
	if cfg.HTTPClient != nil {
		copied := *cfg.HTTPClient
		client = &copied
	}
	client.CheckRedirect = trackRedirects(client.CheckRedirect)

	return &Service{
		cfg:    cfg,
		client: client,
		logger: logging.Named("autodiscovery"),
	}
}

// lookup is one discovery source. Sources are listed in descending order of
// authority.
type lookup struct {
	name string
	run  func(ctx context.Context) (*model.ImapServerSettings, bool, error)
}

type outcome struct {
	settings *model.ImapServerSettings
	trusted  bool
	err      error
}

// Execute runs all sources concurrently and returns the most authoritative
// usable settings.
func (s *Service) Execute(ctx context.Context, emailAddress string) Result {
	_, domain := splitAddress(strings.TrimSpace(emailAddress))
	if domain == "" {
		return UnexpectedException{Err: fmt.Errorf("address %q has no domain", emailAddress)}
	}

	if s.cfg.DemoDomain != "" && strings.EqualFold(domain, s.cfg.DemoDomain) {
		return Settings{
			IncomingServerSettings: model.DemoServerSettings{},
			IsTrusted:              true,
			Source:                 "demo",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	lookups := s.lookups(emailAddress, domain)
	if len(lookups) == 0 {
		return NoUsableSettingsFound{}
	}

	outcomes := make([]outcome, len(lookups))

	g, gctx := errgroup.WithContext(ctx)
	for i, l := range lookups {
		g.Go(func() error {
			settings, trusted, err := l.run(gctx)
			outcomes[i] = outcome{settings: settings, trusted: trusted, err: err}
			if err != nil && !errors.Is(err, errNoSettings) {
				s.logger.Debug("discovery source failed",
					zap.String("source", l.name),
					zap.String("domain", domain),
					zap.Error(err),
				)
			}
			// Source failures are classified below; never abort siblings.
			return nil
		})
	}
	_ = g.Wait()

	for i, o := range outcomes {
		if o.settings != nil {
			s.logger.Info("discovered settings",
				zap.String("source", lookups[i].name),
				zap.String("hostname", o.settings.Hostname),
				zap.Bool("trusted", o.trusted),
			)
			return Settings{
				IncomingServerSettings: *o.settings,
				IsTrusted:              o.trusted,
				Source:                 lookups[i].name,
			}
		}
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		return NetworkError{Err: ctx.Err()}
	}

	return classify(outcomes)
}

// classify maps failed outcomes to a result: all-network failures look like
// being offline, anything unparseable without a clean "not found" is
// unexpected, and the rest means no settings exist.
func classify(outcomes []outcome) Result {
	var networkErrs, unexpectedErrs []error
	notFound := 0

	for _, o := range outcomes {
		switch {
		case o.err == nil, errors.Is(o.err, errNoSettings):
			notFound++
		case isNetworkError(o.err):
			networkErrs = append(networkErrs, o.err)
		default:
			unexpectedErrs = append(unexpectedErrs, o.err)
		}
	}

	switch {
	case len(networkErrs) == len(outcomes):
		return NetworkError{Err: errors.Join(networkErrs...)}
	case len(unexpectedErrs) > 0 && notFound == 0:
		return UnexpectedException{Err: errors.Join(unexpectedErrs...)}
	default:
		return NoUsableSettingsFound{}
	}
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func (s *Service) lookups(emailAddress, domain string) []lookup {
	var lookups []lookup

	for i, tmpl := range s.cfg.AutoconfigURLs {
		target := autoconfigURL(tmpl, domain, emailAddress)
		lookups = append(lookups, lookup{
			name: fmt.Sprintf("autoconfig#%d", i+1),
			run: func(ctx context.Context) (*model.ImapServerSettings, bool, error) {
				return s.fetchDocument(ctx, target, emailAddress)
			},
		})
	}

	if s.cfg.ISPDBURL != "" {
		target := strings.TrimSuffix(s.cfg.ISPDBURL, "/") + "/" + url.PathEscape(domain)
		lookups = append(lookups, lookup{
			name: "ispdb",
			run: func(ctx context.Context) (*model.ImapServerSettings, bool, error) {
				return s.fetchDocument(ctx, target, emailAddress)
			},
		})
	}

	if s.cfg.Resolver != nil {
		lookups = append(lookups, lookup{
			name: "dns-srv",
			run: func(ctx context.Context) (*model.ImapServerSettings, bool, error) {
				settings, err := lookupSRVSettings(ctx, s.cfg.Resolver, emailAddress, domain)
				// DNS answers are unauthenticated.
				return settings, false, err
			},
		})
	}

	return lookups
}

func autoconfigURL(tmpl, domain, emailAddress string) string {
	target := strings.ReplaceAll(tmpl, "{domain}", domain)
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + "emailaddress=" + url.QueryEscape(emailAddress)
}

// fetchDocument downloads and parses an autoconfig document. Settings are
// trusted only when every hop was HTTPS.
func (s *Service) fetchDocument(
	ctx context.Context,
	target, emailAddress string,
) (*model.ImapServerSettings, bool, error) {
	hops := &redirectHops{}
	ctx = context.WithValue(ctx, redirectHopsKey{}, hops)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, false, fmt.Errorf("building request for %s: %w", target, err)
	}
	req.Header.Set("Accept", "application/xml, text/xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("fetching %s: %w", target, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return nil, false, errNoSettings
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("fetching %s: unexpected status %d", target, resp.StatusCode)
	}

	settings, err := parseAutoconfig(io.LimitReader(resp.Body, maxDocumentSize), emailAddress)
	if err != nil {
		return nil, false, err
	}

	trusted := req.URL.Scheme == "https" && !hops.insecure.Load()
	return settings, trusted, nil
}

type redirectHopsKey struct{}

// redirectHops records whether a request was redirected through a
// non-HTTPS URL.
type redirectHops struct {
	insecure atomic.Bool
}

const maxRedirects = 10

// trackRedirects wraps a CheckRedirect policy so that every hop of a
// fetchDocument request is checked for HTTPS. A nil next applies the
// net/http default limit.
func trackRedirects(next func(*http.Request, []*http.Request) error) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if hops, ok := req.Context().Value(redirectHopsKey{}).(*redirectHops); ok && req.URL.Scheme != "https" {
			hops.insecure.Store(true)
		}
		if next != nil {
			return next(req, via)
		}
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}
}
