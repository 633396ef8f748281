// Package domain contains the core entities of the dnsdiff oracle: abstract
// test cases as produced by the model-based generator, their translated
// concrete form, and the observations, differences and fingerprints derived
// from running them against live servers.
package domain

import (
	"fmt"
	"strings"
)

// MaxDepth is the maximum number of labels in a generated domain name.
const MaxDepth = 10

// WildcardLabel is the integer the generator uses for the "*" label.
const WildcardLabel = 1

// RecordType indexes the generator's closed record type enumeration.
type RecordType int

const (
	// TypeSOA represents a start of authority record.
	TypeSOA RecordType = iota
	// TypeNS represents a name server record.
	TypeNS
	// TypeA represents an IPv4 address record.
	TypeA
	// TypeCNAME represents a canonical name record.
	TypeCNAME
	// TypeDNAME represents a delegation name record.
	TypeDNAME
	// TypeAAAA represents an IPv6 address record.
	TypeAAAA
	// TypeTXT represents a text record.
	TypeTXT
	// TypeEmptyNonTerminal is a placeholder the generator emits for empty
	// non-terminals. It never reaches a zone file.
	TypeEmptyNonTerminal
)

// BogusType is the presentation of a record type outside the enumeration.
const BogusType = "B"

var recordTypeNames = [...]string{"SOA", "NS", "A", "CNAME", "DNAME", "AAAA", "TXT", "N"}

// Valid reports whether t is inside the generator enumeration.
func (t RecordType) Valid() bool {
	return t >= 0 && int(t) < len(recordTypeNames)
}

func (t RecordType) String() string {
	if !t.Valid() {
		return BogusType
	}
	return recordTypeNames[t]
}

// ResponseTag is the generator's classification of the expected behavior.
type ResponseTag int

const (
	TagE1 ResponseTag = iota // exact match, authoritative answer
	TagE2                    // exact match, query rewrite
	TagE3                    // exact match, empty answer
	TagE4                    // exact match, referral
	TagW1                    // wildcard synthesized answer
	TagW2                    // wildcard query rewrite
	TagW3                    // wildcard empty answer
	TagD1                    // DNAME query rewrite
	TagR1                    // prefix referral
	TagR2                    // prefix non-existent
	TagRefused
	TagServfail
)

var responseTagNames = [...]string{"E1", "E2", "E3", "E4", "W1", "W2", "W3", "D1", "R1", "R2", "REFUSED", "SERVFAIL"}

// Valid reports whether tag is inside the generator enumeration.
func (tag ResponseTag) Valid() bool {
	return tag >= 0 && int(tag) < len(responseTagNames)
}

func (tag ResponseTag) String() string {
	if !tag.Valid() {
		return fmt.Sprintf("TAG%d", int(tag))
	}
	return responseTagNames[tag]
}

// DNAMERewrite reports whether the tag marks a DNAME-triggered rewrite.
func (tag ResponseTag) DNAMERewrite() bool {
	return tag == TagD1
}

// AbstractName is a generator domain name: one integer per label, indexed by
// depth from the zone root (the reverse of presentation order).
type AbstractName struct {
	Value []int `json:"Value"`
}

// AbstractRecord is a generator resource record.
type AbstractRecord struct {
	RType RecordType   `json:"RType"`
	RName AbstractName `json:"RName"`
	RData AbstractName `json:"RData"`
}

// AbstractZone is the generator zone.
type AbstractZone struct {
	Records []AbstractRecord `json:"Records"`
}

// AbstractQuery is the generator query.
type AbstractQuery struct {
	QName AbstractName `json:"QName"`
	QType RecordType   `json:"QType"`
}

// OptionalQuery carries the rewritten query of a response when present.
type OptionalQuery struct {
	HasValue bool          `json:"HasValue"`
	Value    AbstractQuery `json:"Value"`
}

// AbstractResponse is the response the model predicts.
type AbstractResponse struct {
	ResTag         ResponseTag      `json:"ResTag"`
	ResRecords     []AbstractRecord `json:"ResRecords"`
	RewrittenQuery OptionalQuery    `json:"RewrittenQuery"`
}

// TestCase is one abstract, generator-produced test.
type TestCase struct {
	ID       string           `json:"-"`
	Zone     AbstractZone     `json:"Zone"`
	Query    AbstractQuery    `json:"Query"`
	Response AbstractResponse `json:"Response"`
	Relevant []AbstractRecord `json:"Relevant"`
}

// ZoneLine is one concrete resource record of a translated zone.
type ZoneLine struct {
	Name  string
	TTL   int // zero means no explicit TTL
	Type  string
	RData string
}

func (l ZoneLine) String() string {
	if l.TTL > 0 {
		return fmt.Sprintf("%s\t%d\t%s\t%s", l.Name, l.TTL, l.Type, l.RData)
	}
	return l.Name + "\t" + l.Type + "\t" + l.RData
}

// TranslatedZone is the concrete zone derived from an abstract one.
type TranslatedZone struct {
	Origin string
	Lines  []ZoneLine
}

// Text renders the zone file: one record per line and a trailing blank line,
// which NSD needs to accept the file.
func (z TranslatedZone) Text() string {
	var b strings.Builder
	for _, l := range z.Lines {
		b.WriteString(l.String())
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.String()
}

// Strings returns the zone lines as text.
func (z TranslatedZone) Strings() []string {
	out := make([]string, 0, len(z.Lines))
	for _, l := range z.Lines {
		out = append(out, l.String())
	}
	return out
}

// Query is a concrete (name, type) question.
type Query struct {
	Name string `json:"Name"`
	Type string `json:"Type"`
}

// Key identifies the query inside one test.
func (q Query) Key() string {
	return q.Name + " " + q.Type
}

// TranslatedRecord is a record of the expected response or of the relevant set.
type TranslatedRecord struct {
	Type  string `json:"Type"`
	Name  string `json:"Name"`
	Rdata string `json:"Rdata,omitempty"`
}

// RewrittenName is the concrete rewritten query of an expected response.
type RewrittenName struct {
	HasValue bool   `json:"HasValue"`
	Name     string `json:"Name,omitempty"`
	Type     string `json:"Type,omitempty"`
}

// ExpectedShape is the model-predicted behavior of a query.
type ExpectedShape struct {
	Tag            string             `json:"Tag"`
	Records        []TranslatedRecord `json:"Records"`
	RewrittenQuery RewrittenName      `json:"RewrittenQuery"`
}

// TestInfo is the full translated test document.
type TestInfo struct {
	Zone     []string           `json:"Zone"`
	Query    Query              `json:"Query"`
	Response ExpectedShape      `json:"Response"`
	Relevant []TranslatedRecord `json:"Relevant"`
}

// ExpectedResponse is a reference response stored for single-implementation
// runs. Response holds the message in presentation format.
type ExpectedResponse struct {
	Servers  string   `json:"Server/s"`
	Response []string `json:"Response"`
}

// QueryEntry is one element of a query document.
type QueryEntry struct {
	Query             Query              `json:"Query"`
	ZenResponseTag    string             `json:"ZenResponseTag,omitempty"`
	ExpectedResponses []ExpectedResponse `json:"Expected Response,omitempty"`
}

// Translation is everything the label translator produces for one test.
type Translation struct {
	TestID   string
	Zone     TranslatedZone
	Query    Query
	Expected ExpectedShape
	Relevant []TranslatedRecord
}

// QueryDocument returns the query document for the translation.
func (t *Translation) QueryDocument() []QueryEntry {
	return []QueryEntry{{Query: t.Query, ZenResponseTag: t.Expected.Tag}}
}

// Info returns the full test information document.
func (t *Translation) Info() TestInfo {
	return TestInfo{
		Zone:     t.Zone.Strings(),
		Query:    t.Query,
		Response: t.Expected,
		Relevant: t.Relevant,
	}
}
