// Package equivalence decides whether two observed DNS responses are
// behaviorally identical and partitions observations into agreement groups.
package equivalence

import (
	"github.com/miekg/dns"
	"github.com/poyrazK/dnsdiff/internal/core/domain"
)

// Equal reports whether a and b are the same response. Sentinels compare by
// value and never equal a message. Messages must agree on rcode, on header
// flags other than RA, and on the question, answer and additional sections as
// sets. The authority section only counts when an answer section is empty.
func Equal(a, b domain.ObservedResponse) bool {
	if a.IsMessage() != b.IsMessage() {
		return false
	}
	if !a.IsMessage() {
		return a.Kind == b.Kind && a.Err == b.Err
	}
	return equalMsg(a.Msg, b.Msg)
}

func equalMsg(a, b *dns.Msg) bool {
	if a.Rcode != b.Rcode {
		return false
	}
	if flags(a) != flags(b) {
		return false
	}
	if !sameQuestions(a.Question, b.Question) {
		return false
	}
	if !sameRecords(a.Answer, b.Answer) {
		return false
	}
	if !sameRecords(withoutMeta(a.Extra), withoutMeta(b.Extra)) {
		return false
	}
	if len(a.Answer) == 0 || len(b.Answer) == 0 {
		return sameRecords(a.Ns, b.Ns)
	}
	return true
}

type headerFlags struct {
	qr, aa, tc, rd, ad, cd bool
}

// flags returns the header bits that take part in comparison. RA is left
// out since resolvers and proxies set it inconsistently.
func flags(m *dns.Msg) headerFlags {
	return headerFlags{
		qr: m.Response,
		aa: m.Authoritative,
		tc: m.Truncated,
		rd: m.RecursionDesired,
		ad: m.AuthenticatedData,
		cd: m.CheckingDisabled,
	}
}

// withoutMeta drops OPT and TSIG pseudo records, which are transport
// metadata rather than additional data.
func withoutMeta(rrs []dns.RR) []dns.RR {
	out := make([]dns.RR, 0, len(rrs))
	for _, rr := range rrs {
		switch rr.Header().Rrtype {
		case dns.TypeOPT, dns.TypeTSIG:
			continue
		}
		out = append(out, rr)
	}
	return out
}

func sameQuestions(a, b []dns.Question) bool {
	return questionsIn(a, b) && questionsIn(b, a)
}

func questionsIn(sub, super []dns.Question) bool {
	for _, q := range sub {
		found := false
		for _, p := range super {
			if q.Qtype == p.Qtype && q.Qclass == p.Qclass && dns.CanonicalName(q.Name) == dns.CanonicalName(p.Name) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// sameRecords compares sections as sets of records. TTLs and owner name case
// are ignored.
func sameRecords(a, b []dns.RR) bool {
	return recordsIn(a, b) && recordsIn(b, a)
}

func recordsIn(sub, super []dns.RR) bool {
	for _, r := range sub {
		found := false
		for _, s := range super {
			if dns.IsDuplicate(r, s) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Group partitions observations by single linkage against each group's first
// member, in input order.
func Group(observations []domain.Observation) []domain.EquivalenceGroup {
	var groups []domain.EquivalenceGroup
	for _, o := range observations {
		placed := false
		for i := range groups {
			if Equal(groups[i][0].Response, o.Response) {
				groups[i] = append(groups[i], o)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, domain.EquivalenceGroup{o})
		}
	}
	return groups
}
