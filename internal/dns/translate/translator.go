// Package translate turns generator test cases with integer-coded labels into
// concrete zone files, queries and expected-response metadata.
package translate

import (
	"fmt"

	"github.com/poyrazK/dnsdiff/internal/core/domain"
)

// Translate renders tc with a fresh Context. It fails with an
// *domain.EmptyZoneError when the zone has no usable records.
func Translate(tc *domain.TestCase, opts ...Option) (*domain.Translation, error) {
	c := NewContext(opts...)

	zone, err := c.Zone(tc.Zone.Records)
	if err != nil {
		return nil, err
	}
	if len(zone.Lines) == 0 {
		return nil, &domain.EmptyZoneError{TestID: tc.ID}
	}

	query, err := c.Query(tc.Query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	expected, err := c.expected(tc)
	if err != nil {
		return nil, fmt.Errorf("response: %w", err)
	}

	relevant := make([]domain.TranslatedRecord, 0, len(tc.Relevant))
	for _, rec := range tc.Relevant {
		tr, err := c.record(rec)
		if err != nil {
			return nil, fmt.Errorf("relevant: %w", err)
		}
		relevant = append(relevant, tr)
	}

	return &domain.Translation{
		TestID:   tc.ID,
		Zone:     zone,
		Query:    query,
		Expected: expected,
		Relevant: relevant,
	}, nil
}

// Zone translates the abstract records. Empty non-terminal placeholders are
// dropped, one synthesized SOA is emitted first for every SOA occurrence and
// a placeholder NS is added at the origin when the zone has none, since
// several servers refuse to load a zone without an apex NS.
func (c *Context) Zone(records []domain.AbstractRecord) (domain.TranslatedZone, error) {
	var zone domain.TranslatedZone
	ipv4 := newRoundRobin(ipv4Samples)
	ipv6 := newRoundRobin(ipv6Samples)
	txts := newRoundRobin(txtSamples)

	var body []domain.ZoneLine
	var nsOwners []string
	soaCount := 0
	for _, rec := range records {
		if rec.RType == domain.TypeEmptyNonTerminal {
			continue
		}
		owner, err := c.Name(rec.RName.Value)
		if err != nil {
			return zone, fmt.Errorf("owner of %s record: %w", rec.RType, err)
		}

		var rdata string
		switch rec.RType {
		case domain.TypeSOA:
			zone.Origin = owner
			soaCount++
			continue
		case domain.TypeTXT:
			rdata = txts.take()
		case domain.TypeA:
			rdata = ipv4.take()
		case domain.TypeAAAA:
			rdata = ipv6.take()
		default:
			rdata, err = c.Name(rec.RData.Value)
			if err != nil {
				return zone, fmt.Errorf("rdata of %s record: %w", rec.RType, err)
			}
		}
		if rec.RType == domain.TypeNS {
			nsOwners = append(nsOwners, owner)
		}
		body = append(body, domain.ZoneLine{Name: owner, Type: rec.RType.String(), RData: rdata})
	}

	if zone.Origin != "" && !contains(nsOwners, zone.Origin) {
		body = append(body, domain.ZoneLine{Name: zone.Origin, Type: "NS", RData: placeholderNS})
	}

	zone.Lines = make([]domain.ZoneLine, 0, soaCount+len(body))
	for i := 0; i < soaCount; i++ {
		zone.Lines = append(zone.Lines, domain.ZoneLine{
			Name:  zone.Origin,
			TTL:   soaTTL,
			Type:  "SOA",
			RData: soaRData,
		})
	}
	zone.Lines = append(zone.Lines, body...)
	return zone, nil
}

// Query translates the abstract query in the context of the zone.
func (c *Context) Query(q domain.AbstractQuery) (domain.Query, error) {
	if !q.QType.Valid() || q.QType == domain.TypeEmptyNonTerminal {
		return domain.Query{}, fmt.Errorf("%w: %d", domain.ErrUnknownType, int(q.QType))
	}
	name, err := c.Name(q.QName.Value)
	if err != nil {
		return domain.Query{}, err
	}
	return domain.Query{Name: name, Type: q.QType.String()}, nil
}

func (c *Context) expected(tc *domain.TestCase) (domain.ExpectedShape, error) {
	resp := tc.Response
	shape := domain.ExpectedShape{
		Tag:     resp.ResTag.String(),
		Records: make([]domain.TranslatedRecord, 0, len(resp.ResRecords)),
	}
	rewrite := resp.ResTag.DNAMERewrite()

	for _, rec := range resp.ResRecords {
		if rewrite && rec.RType == domain.TypeCNAME {
			owner, err := c.Name(rec.RName.Value)
			if err != nil {
				return shape, err
			}
			target, err := c.RewrittenName(rec.RData.Value, tc.Relevant)
			if err != nil {
				return shape, err
			}
			shape.Records = append(shape.Records, domain.TranslatedRecord{Type: rec.RType.String(), Name: owner, Rdata: target})
			continue
		}
		tr, err := c.record(rec)
		if err != nil {
			return shape, err
		}
		shape.Records = append(shape.Records, tr)
	}

	rq := resp.RewrittenQuery
	shape.RewrittenQuery.HasValue = rq.HasValue
	if rq.HasValue {
		var name string
		var err error
		if rewrite {
			name, err = c.RewrittenName(rq.Value.QName.Value, tc.Relevant)
		} else {
			name, err = c.Name(rq.Value.QName.Value)
		}
		if err != nil {
			return shape, fmt.Errorf("rewritten query: %w", err)
		}
		shape.RewrittenQuery.Name = name
		shape.RewrittenQuery.Type = rq.Value.QType.String()
	}
	return shape, nil
}

// record translates owner and, when present, name-valued rdata.
func (c *Context) record(rec domain.AbstractRecord) (domain.TranslatedRecord, error) {
	owner, err := c.Name(rec.RName.Value)
	if err != nil {
		return domain.TranslatedRecord{}, err
	}
	tr := domain.TranslatedRecord{Type: rec.RType.String(), Name: owner}
	if len(rec.RData.Value) > 0 {
		if tr.Rdata, err = c.Name(rec.RData.Value); err != nil {
			return domain.TranslatedRecord{}, err
		}
	}
	return tr, nil
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
