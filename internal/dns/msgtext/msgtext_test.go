package msgtext

import (
	"strings"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T) *dns.Msg {
	t.Helper()
	m := new(dns.Msg)
	m.SetQuestion("www.campus.edu.", dns.TypeA)
	m.Id = 4242
	m.Response = true
	m.Authoritative = true
	m.RecursionDesired = false
	rr, err := dns.NewRR("www.campus.edu. 300 IN A 1.1.1.1")
	require.NoError(t, err)
	m.Answer = append(m.Answer, rr)
	soa, err := dns.NewRR("campus.edu. 500 IN SOA ns1.outside.edu. root.campus.edu. 3 6048 86400 2419200 6048")
	require.NoError(t, err)
	m.Ns = append(m.Ns, soa)
	return m
}

func TestParseOwnRendering(t *testing.T) {
	m := sample(t)
	m.SetEdns0(1232, true)

	got, err := Parse(Lines(m))
	require.NoError(t, err)

	assert.Equal(t, m.Id, got.Id)
	assert.True(t, got.Response)
	assert.True(t, got.Authoritative)
	assert.False(t, got.RecursionDesired)
	require.Len(t, got.Question, 1)
	assert.Equal(t, m.Question[0], got.Question[0])
	require.Len(t, got.Answer, 1)
	assert.True(t, dns.IsDuplicate(m.Answer[0], got.Answer[0]))
	require.Len(t, got.Ns, 1)
	assert.Equal(t, uint32(500), got.Ns[0].Header().Ttl)

	opt := got.IsEdns0()
	require.NotNil(t, opt)
	assert.Equal(t, uint16(1232), opt.UDPSize())
	assert.True(t, opt.Do())
}

func TestParseDnspythonRendering(t *testing.T) {
	text := `id 21581
opcode QUERY
rcode NXDOMAIN
flags QR AA
;QUESTION
nope.campus.edu. IN AAAA
;ANSWER
;AUTHORITY
campus.edu. 500 IN SOA ns1.outside.edu. root.campus.edu. 3 6048 86400 2419200 6048
;ADDITIONAL`

	got, err := parseText(text)
	require.NoError(t, err)
	assert.Equal(t, uint16(21581), got.Id)
	assert.Equal(t, dns.RcodeNameError, got.Rcode)
	assert.True(t, got.Response)
	assert.True(t, got.Authoritative)
	require.Len(t, got.Question, 1)
	assert.Equal(t, dns.TypeAAAA, got.Question[0].Qtype)
	assert.Equal(t, "nope.campus.edu.", got.Question[0].Name)
	assert.Empty(t, got.Answer)
	require.Len(t, got.Ns, 1)
	assert.Equal(t, dns.TypeSOA, got.Ns[0].Header().Rrtype)
	assert.Nil(t, got.IsEdns0())
}

func TestParseDnspythonEDNS(t *testing.T) {
	text := "id 1\nopcode QUERY\nrcode NOERROR\nflags QR\nedns 0\neflags DO\npayload 4096\n;QUESTION\ncampus.edu. IN SOA"
	got, err := parseText(text)
	require.NoError(t, err)
	opt := got.IsEdns0()
	require.NotNil(t, opt)
	assert.Equal(t, uint16(4096), opt.UDPSize())
	assert.True(t, opt.Do())
}

func TestParseErrors(t *testing.T) {
	_, err := parseText("rcode WHATEVER")
	assert.Error(t, err)

	_, err = parseText(";QUESTION\ncampus.edu. IN")
	assert.Error(t, err)

	_, err = parseText(";ANSWER\ncampus.edu. 300 IN A not-an-ip")
	assert.Error(t, err)
}

func parseText(text string) (*dns.Msg, error) {
	return Parse(strings.Split(text, "\n"))
}
