// Package msgtext converts DNS messages to and from the line-oriented
// presentation format stored in difference reports and expected responses.
// Both the miekg/dns rendering and the dnspython to_text rendering are read.
package msgtext

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/miekg/dns"
)

// Lines renders m in presentation format, one element per line.
func Lines(m *dns.Msg) []string {
	return strings.Split(m.String(), "\n")
}

type section int

const (
	sectionHeader section = iota
	sectionQuestion
	sectionAnswer
	sectionAuthority
	sectionAdditional
	sectionOpt
)

var sectionMarkers = map[string]section{
	";QUESTION":              sectionQuestion,
	";ANSWER":                sectionAnswer,
	";AUTHORITY":             sectionAuthority,
	";ADDITIONAL":            sectionAdditional,
	";; QUESTION SECTION:":   sectionQuestion,
	";; ANSWER SECTION:":     sectionAnswer,
	";; AUTHORITY SECTION:":  sectionAuthority,
	";; ADDITIONAL SECTION:": sectionAdditional,
	";; OPT PSEUDOSECTION:":  sectionOpt,
}

// Parse builds a message from its presentation lines.
func Parse(lines []string) (*dns.Msg, error) {
	m := new(dns.Msg)
	sec := sectionHeader
	for n, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if s, ok := sectionMarkers[line]; ok {
			sec = s
			continue
		}
		if err := parseLine(m, sec, line); err != nil {
			return nil, fmt.Errorf("line %d %q: %w", n+1, line, err)
		}
	}
	return m, nil
}

func parseLine(m *dns.Msg, sec section, line string) error {
	switch sec {
	case sectionHeader:
		return parseHeader(m, line)
	case sectionOpt:
		return parseOpt(m, line)
	case sectionQuestion:
		return parseQuestion(m, line)
	}

	rr, err := dns.NewRR(line)
	if err != nil {
		return err
	}
	if rr == nil {
		return nil
	}
	switch sec {
	case sectionAnswer:
		m.Answer = append(m.Answer, rr)
	case sectionAuthority:
		m.Ns = append(m.Ns, rr)
	case sectionAdditional:
		m.Extra = append(m.Extra, rr)
	}
	return nil
}

func parseHeader(m *dns.Msg, line string) error {
	if strings.HasPrefix(line, ";;") {
		return parseMiekgHeader(m, strings.TrimSpace(strings.TrimPrefix(line, ";;")))
	}
	if strings.HasPrefix(line, ";") {
		return nil
	}

	key, value, _ := strings.Cut(line, " ")
	value = strings.TrimSpace(value)
	switch key {
	case "id":
		id, err := strconv.ParseUint(value, 10, 16)
		if err != nil {
			return err
		}
		m.Id = uint16(id)
	case "opcode":
		op, ok := dns.StringToOpcode[strings.ToUpper(value)]
		if !ok {
			return fmt.Errorf("unknown opcode %q", value)
		}
		m.Opcode = op
	case "rcode":
		return setRcode(m, value)
	case "flags":
		for _, f := range strings.Fields(value) {
			setFlag(m, f)
		}
	case "edns":
		edns0(m)
	case "payload":
		size, err := strconv.ParseUint(value, 10, 16)
		if err != nil {
			return err
		}
		edns0(m).SetUDPSize(uint16(size))
	case "eflags":
		for _, f := range strings.Fields(value) {
			if strings.EqualFold(f, "DO") {
				edns0(m).SetDo()
			}
		}
	}
	return nil
}

// parseMiekgHeader handles the two ";;" header lines of miekg/dns output:
// "opcode: QUERY, status: NOERROR, id: 1" and "flags: qr aa; QUERY: 1, ...".
func parseMiekgHeader(m *dns.Msg, line string) error {
	if rest, ok := strings.CutPrefix(line, "flags:"); ok {
		flags, _, _ := strings.Cut(rest, ";")
		for _, f := range strings.Fields(flags) {
			setFlag(m, f)
		}
		return nil
	}
	for _, part := range strings.Split(line, ",") {
		key, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "opcode":
			op, ok := dns.StringToOpcode[strings.ToUpper(value)]
			if !ok {
				return fmt.Errorf("unknown opcode %q", value)
			}
			m.Opcode = op
		case "status":
			if err := setRcode(m, value); err != nil {
				return err
			}
		case "id":
			id, err := strconv.ParseUint(value, 10, 16)
			if err != nil {
				return err
			}
			m.Id = uint16(id)
		}
	}
	return nil
}

// parseOpt reads "; EDNS: version 0; flags: do; udp: 1232".
func parseOpt(m *dns.Msg, line string) error {
	line = strings.TrimSpace(strings.TrimLeft(line, ";"))
	if !strings.HasPrefix(line, "EDNS:") {
		return nil
	}
	opt := edns0(m)
	for _, part := range strings.Split(strings.TrimPrefix(line, "EDNS:"), ";") {
		key, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "udp":
			size, err := strconv.ParseUint(value, 10, 16)
			if err != nil {
				return err
			}
			opt.SetUDPSize(uint16(size))
		case "flags":
			for _, f := range strings.Fields(value) {
				if f == "do" {
					opt.SetDo()
				}
			}
		}
	}
	return nil
}

// parseQuestion reads "name IN A" and miekg's ";name\tIN\t A".
func parseQuestion(m *dns.Msg, line string) error {
	fields := strings.Fields(strings.TrimPrefix(line, ";"))
	if len(fields) != 3 {
		return errors.New("malformed question")
	}
	class, ok := dns.StringToClass[strings.ToUpper(fields[1])]
	if !ok {
		return fmt.Errorf("unknown class %q", fields[1])
	}
	qtype, ok := dns.StringToType[strings.ToUpper(fields[2])]
	if !ok {
		return fmt.Errorf("unknown type %q", fields[2])
	}
	m.Question = append(m.Question, dns.Question{Name: dns.Fqdn(fields[0]), Qtype: qtype, Qclass: class})
	return nil
}

func setRcode(m *dns.Msg, value string) error {
	rc, ok := dns.StringToRcode[strings.ToUpper(value)]
	if !ok {
		return fmt.Errorf("unknown rcode %q", value)
	}
	m.Rcode = rc
	return nil
}

func setFlag(m *dns.Msg, f string) {
	switch strings.ToLower(f) {
	case "qr":
		m.Response = true
	case "aa":
		m.Authoritative = true
	case "tc":
		m.Truncated = true
	case "rd":
		m.RecursionDesired = true
	case "ra":
		m.RecursionAvailable = true
	case "z":
		m.Zero = true
	case "ad":
		m.AuthenticatedData = true
	case "cd":
		m.CheckingDisabled = true
	}
}

func edns0(m *dns.Msg) *dns.OPT {
	if opt := m.IsEdns0(); opt != nil {
		return opt
	}
	m.SetEdns0(dns.MinMsgSize, false)
	return m.IsEdns0()
}
