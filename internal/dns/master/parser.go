// Package master reads master zone files (RFC 1035) such as the translated
// zones handed to the servers under test.
package master

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/poyrazK/dnsdiff/internal/core/domain"
)

// Parser implements a parser for DNS master zone files.
type Parser struct {
	Origin     string
	DefaultTTL int
}

// NewParser creates a Parser. Records without a TTL keep TTL zero.
func NewParser() *Parser {
	return &Parser{}
}

// ZoneData holds the parsed records and metadata from a zone file.
type ZoneData struct {
	Origin   string // owner of the first SOA record
	Records  []domain.ZoneLine
	HasDNAME bool
}

// Parse reads a master zone file from the provided reader.
func (p *Parser) Parse(r io.Reader) (*ZoneData, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 1024*1024)
	scanner.Buffer(buf, 1024*1024)
	data := &ZoneData{}

	var lastName string
	var inParen bool
	var parenLines []string
	var firstLineLeadingWS bool

	for scanner.Scan() {
		line := scanner.Text()

		if idx := strings.IndexByte(line, ';'); idx >= 0 {
			line = line[:idx]
		}

		if !inParen {
			if strings.TrimSpace(line) == "" {
				continue
			}
			firstLineLeadingWS = line[0] == ' ' || line[0] == '\t'

			if strings.Contains(line, "(") {
				inParen = true
				parenLines = append(parenLines, strings.Replace(line, "(", " ", 1))
				if !strings.Contains(line, ")") {
					continue
				}
				inParen = false
			}
		} else {
			parenLines = append(parenLines, line)
			if !strings.Contains(line, ")") {
				continue
			}
			inParen = false
		}

		fullLine := line
		if len(parenLines) > 0 {
			fullLine = strings.ReplaceAll(strings.Join(parenLines, " "), ")", " ")
			parenLines = nil
		}

		trimmed := strings.TrimSpace(fullLine)
		if strings.HasPrefix(trimmed, "$") {
			parts := strings.Fields(trimmed)
			if len(parts) < 2 {
				continue
			}
			switch strings.ToUpper(parts[0]) {
			case "$ORIGIN":
				p.Origin = parts[1]
				if !strings.HasSuffix(p.Origin, ".") {
					p.Origin += "."
				}
			case "$TTL":
				ttl, err := strconv.Atoi(parts[1])
				if err != nil {
					return nil, fmt.Errorf("bad $TTL %q: %w", parts[1], err)
				}
				p.DefaultTTL = ttl
			}
			continue
		}

		fields := strings.Fields(trimmed)
		if len(fields) == 0 {
			continue
		}

		var name string
		if firstLineLeadingWS {
			name = lastName
		} else {
			name = fields[0]
			fields = fields[1:]
			if name == "@" {
				name = p.Origin
			} else if !strings.HasSuffix(name, ".") && p.Origin != "" {
				name = name + "." + p.Origin
			}
			lastName = name
		}

		rec := domain.ZoneLine{Name: name, TTL: p.DefaultTTL}
		for i, f := range fields {
			if ttl, err := strconv.Atoi(f); err == nil {
				rec.TTL = ttl
				continue
			}
			switch strings.ToUpper(f) {
			case "IN", "CS", "CH", "HS":
				continue
			}
			rec.Type = strings.ToUpper(f)
			rec.RData = strings.Join(fields[i+1:], " ")
			break
		}
		if rec.Type == "" || name == "" {
			continue
		}

		switch rec.Type {
		case "SOA":
			if data.Origin == "" {
				data.Origin = name
			}
		case "DNAME":
			data.HasDNAME = true
		}
		data.Records = append(data.Records, rec)
	}

	return data, scanner.Err()
}

// Inspect parses a zone and fails with domain.ErrMissingSOA when it has no
// SOA record.
func Inspect(r io.Reader) (*ZoneData, error) {
	data, err := NewParser().Parse(r)
	if err != nil {
		return nil, err
	}
	if data.Origin == "" {
		return nil, domain.ErrMissingSOA
	}
	return data, nil
}

// InspectFile is Inspect over a file on disk.
func InspectFile(path string) (*ZoneData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Inspect(f)
}
