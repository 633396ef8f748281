package domain

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/miekg/dns"
	"github.com/poyrazK/dnsdiff/internal/dns/msgtext"
)

// ResponseKind discriminates ObservedResponse.
type ResponseKind int

const (
	// KindMessage is a decoded DNS message.
	KindMessage ResponseKind = iota
	// KindNoResponse means the query timed out.
	KindNoResponse
	// KindTransportError means the exchange failed for another reason.
	KindTransportError
)

// NoResponseText is the rendering of the timeout sentinel.
const NoResponseText = "No response"

// ObservedResponse is what one source answered to one query.
type ObservedResponse struct {
	Kind ResponseKind
	Msg  *dns.Msg
	Err  string
}

// MessageResponse wraps a decoded message.
func MessageResponse(m *dns.Msg) ObservedResponse {
	return ObservedResponse{Kind: KindMessage, Msg: m}
}

// NoResponse is the timeout sentinel.
func NoResponse() ObservedResponse {
	return ObservedResponse{Kind: KindNoResponse}
}

// TransportError is the fault sentinel carrying the fault description.
func TransportError(description string) ObservedResponse {
	return ObservedResponse{Kind: KindTransportError, Err: description}
}

// IsMessage reports whether r holds a decoded message.
func (r ObservedResponse) IsMessage() bool {
	return r.Kind == KindMessage && r.Msg != nil
}

// Text renders a sentinel. Messages render as their presentation format.
func (r ObservedResponse) Text() string {
	switch r.Kind {
	case KindNoResponse:
		return NoResponseText
	case KindTransportError:
		return "Unexpected error " + r.Err
	}
	if r.Msg == nil {
		return ""
	}
	return r.Msg.String()
}

// Observation pairs a source identifier with its response. The source is an
// implementation name or the label of an expected response.
type Observation struct {
	Source   string
	Response ObservedResponse
}

// EquivalenceGroup is a non-empty set of observations considered identical.
// The first member is the representative.
type EquivalenceGroup []Observation

// Sources returns the member source identifiers in group order.
func (g EquivalenceGroup) Sources() []string {
	out := make([]string, 0, len(g))
	for _, o := range g {
		out = append(out, o.Source)
	}
	return out
}

// Difference is a query whose observations split into several groups.
type Difference struct {
	Query  Query
	Groups []EquivalenceGroup
}

// ResponseBody is either the lines of a message or a literal sentinel string.
type ResponseBody struct {
	Lines   []string
	Literal string
}

// MarshalJSON renders lines as a JSON list and sentinels as a JSON string.
func (b ResponseBody) MarshalJSON() ([]byte, error) {
	if b.Lines == nil {
		return json.Marshal(b.Literal)
	}
	return json.Marshal(b.Lines)
}

// UnmarshalJSON accepts both renderings.
func (b *ResponseBody) UnmarshalJSON(data []byte) error {
	var literal string
	if err := json.Unmarshal(data, &literal); err == nil {
		b.Literal = literal
		b.Lines = nil
		return nil
	}
	return json.Unmarshal(data, &b.Lines)
}

// GroupReport is the persisted form of an equivalence group.
type GroupReport struct {
	Servers  string       `json:"Server/s"`
	Response ResponseBody `json:"Response"`
}

// Members splits the space-joined server list.
func (g GroupReport) Members() []string {
	return strings.Fields(g.Servers)
}

// DifferenceReport is the persisted form of a Difference.
type DifferenceReport struct {
	QueryName string        `json:"Query Name"`
	QueryType string        `json:"Query Type"`
	Groups    []GroupReport `json:"Groups"`
}

// Query returns the reported query.
func (d DifferenceReport) Query() Query {
	return Query{Name: d.QueryName, Type: d.QueryType}
}

// Report converts a difference to its persisted form.
func (d Difference) Report() DifferenceReport {
	rep := DifferenceReport{QueryName: d.Query.Name, QueryType: d.Query.Type}
	for _, g := range d.Groups {
		var servers strings.Builder
		for _, o := range g {
			servers.WriteString(o.Source)
			servers.WriteByte(' ')
		}
		gr := GroupReport{Servers: servers.String()}
		head := g[0].Response
		if head.IsMessage() {
			gr.Response.Lines = msgtext.Lines(head.Msg)
		} else {
			gr.Response.Literal = head.Text()
		}
		rep.Groups = append(rep.Groups, gr)
	}
	return rep
}

// TestDifferences groups the persisted differences of one test.
type TestDifferences struct {
	TestID      string
	Differences []DifferenceReport
}

// Occurrence identifies one query of one test.
type Occurrence struct {
	Test  string `json:"Test"`
	Query string `json:"Query"`
}

// ModelTags maps occurrences to the model-predicted response tag.
type ModelTags map[Occurrence]string

// Lookup returns the tag of an occurrence.
func (m ModelTags) Lookup(testID, queryKey string) (string, bool) {
	tag, ok := m[Occurrence{Test: testID, Query: queryKey}]
	return tag, ok && tag != ""
}

// UnknownTag is the fingerprint tag of differences without a model tag.
const UnknownTag = "unknown"

// Fingerprint is a clustering key: the behavior tag and the partition of
// sources into agreement groups. Groups are sorted largest first.
type Fingerprint struct {
	Tag    string
	Groups [][]string
}

// Key is a canonical string for the partition, independent of group order.
func (f Fingerprint) Key() string {
	parts := make([]string, 0, len(f.Groups))
	for _, g := range f.Groups {
		members := append([]string(nil), g...)
		sort.Strings(members)
		parts = append(parts, "{"+strings.Join(members, ",")+"}")
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

// ClusterEntry is one fingerprint in the structured report.
type ClusterEntry struct {
	Groups [][]string   `json:"Groups"`
	Count  int          `json:"Count"`
	Tests  []Occurrence `json:"Tests"`
}

// ClusterReport is the fingerprint report of a corpus.
type ClusterReport struct {
	Summary []string                  `json:"Summary"`
	Details map[string][]ClusterEntry `json:"Details"`
}
