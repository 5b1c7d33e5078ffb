package autodiscovery

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/nhle/mailsetup/internal/model"
)

const resolvConfPath = "/etc/resolv.conf"

// SRVResolver looks up DNS SRV records.
type SRVResolver interface {
	LookupSRV(ctx context.Context, name string) ([]*dns.SRV, error)
}

// DNSResolver queries a single DNS server directly with miekg/dns.
type DNSResolver struct {
	server string
	client *dns.Client
}

// NewDNSResolver creates a resolver for server (host:port). An empty server
// uses the first nameserver from /etc/resolv.conf.
func NewDNSResolver(server string) *DNSResolver {
	if server == "" {
		server = systemNameserver()
	}
	return &DNSResolver{
		server: server,
		client: &dns.Client{Timeout: 5 * time.Second},
	}
}

func systemNameserver() string {
	conf, err := dns.ClientConfigFromFile(resolvConfPath)
	if err != nil || len(conf.Servers) == 0 {
		return "127.0.0.1:53"
	}
	return net.JoinHostPort(conf.Servers[0], conf.Port)
}

// LookupSRV returns the SRV records for name. A nonexistent name yields
// errNoSettings.
func (r *DNSResolver) LookupSRV(ctx context.Context, name string) ([]*dns.SRV, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeSRV)
	msg.RecursionDesired = true

	resp, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return nil, fmt.Errorf("querying %s via %s: %w", name, r.server, err)
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, errNoSettings
	default:
		return nil, fmt.Errorf("querying %s: %s", name, dns.RcodeToString[resp.Rcode])
	}

	var records []*dns.SRV
	for _, rr := range resp.Answer {
		if srv, ok := rr.(*dns.SRV); ok {
			records = append(records, srv)
		}
	}
	return records, nil
}

// srvService describes one RFC 6186 service label.
type srvService struct {
	label    string
	security model.ConnectionSecurity
}

var imapSRVServices = []srvService{
	{label: "_imaps._tcp.", security: model.SecurityTLS},
	{label: "_imap._tcp.", security: model.SecurityStartTLS},
}

// lookupSRVSettings tries implicit-TLS IMAP first, then STARTTLS.
func lookupSRVSettings(
	ctx context.Context,
	resolver SRVResolver,
	emailAddress, domain string,
) (*model.ImapServerSettings, error) {
	var lastErr error = errNoSettings

	for _, svc := range imapSRVServices {
		records, err := resolver.LookupSRV(ctx, svc.label+domain)
		if err != nil {
			lastErr = err
			continue
		}

		target := bestSRVTarget(records)
		if target == nil {
			continue
		}

		return &model.ImapServerSettings{
			Hostname:            strings.TrimSuffix(target.Target, "."),
			Port:                int(target.Port),
			ConnectionSecurity:  svc.security,
			AuthenticationTypes: []model.AuthenticationType{model.AuthPasswordCleartext},
			Username:            emailAddress,
		}, nil
	}

	return nil, lastErr
}

// bestSRVTarget picks the lowest priority, highest weight record. A target
// of "." means the service is explicitly unavailable.
func bestSRVTarget(records []*dns.SRV) *dns.SRV {
	usable := make([]*dns.SRV, 0, len(records))
	for _, r := range records {
		if r.Target != "." && r.Target != "" && r.Port != 0 {
			usable = append(usable, r)
		}
	}
	if len(usable) == 0 {
		return nil
	}

	sort.SliceStable(usable, func(i, j int) bool {
		if usable[i].Priority != usable[j].Priority {
			return usable[i].Priority < usable[j].Priority
		}
		return usable[i].Weight > usable[j].Weight
	})
	return usable[0]
}
