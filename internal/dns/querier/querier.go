// Package querier sends single queries to servers under test and classifies
// the outcome.
package querier

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/poyrazK/dnsdiff/internal/core/domain"
	"github.com/poyrazK/dnsdiff/internal/infrastructure/metrics"
)

// DefaultTimeout bounds every exchange.
const DefaultTimeout = 3 * time.Second

// Querier exchanges one UDP query at a time with a server on host:port.
type Querier struct {
	host   string
	client *dns.Client
	logger *slog.Logger
}

// New creates a Querier for servers reachable on host.
func New(host string, timeout time.Duration, logger *slog.Logger) *Querier {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Querier{
		host:   host,
		client: &dns.Client{Net: "udp", Timeout: timeout},
		logger: logger,
	}
}

// Dispatch sends q to the server of implementation impl listening on port.
// It never fails: a timeout yields the "no response" sentinel and any other
// fault a transport error sentinel carrying its description.
func (q *Querier) Dispatch(ctx context.Context, impl string, port int, query domain.Query) domain.ObservedResponse {
	qtype, ok := dns.StringToType[strings.ToUpper(query.Type)]
	if !ok {
		metrics.QueriesTotal.WithLabelValues(impl, metrics.OutcomeError).Inc()
		return domain.TransportError("unknown query type " + query.Type)
	}

	req := new(dns.Msg)
	req.SetQuestion(dns.Fqdn(query.Name), qtype)
	// Servers under test are authoritative only.
	req.RecursionDesired = false

	addr := net.JoinHostPort(q.host, strconv.Itoa(port))
	start := time.Now()
	resp, _, err := q.client.ExchangeContext(ctx, req, addr)
	metrics.QueryDuration.WithLabelValues(impl).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.QueriesTotal.WithLabelValues(impl, metrics.OutcomeResponse).Inc()
		return domain.MessageResponse(resp)
	case isTimeout(err):
		metrics.QueriesTotal.WithLabelValues(impl, metrics.OutcomeTimeout).Inc()
		q.logger.Debug("query timed out", "implementation", impl, "addr", addr, "query", query.Key())
		return domain.NoResponse()
	default:
		metrics.QueriesTotal.WithLabelValues(impl, metrics.OutcomeError).Inc()
		q.logger.Debug("query failed", "implementation", impl, "addr", addr, "query", query.Key(), "error", err)
		return domain.TransportError(err.Error())
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
