package translate

// The generator leaves address and text rdata empty. Translation fills them
// from these pools; values only need to be syntactically valid.
var (
	ipv4Samples = []string{"1.1.1.1", "2.2.2.2", "3.3.3.3", "4.4.4.4", "5.5.5.5"}

	ipv6Samples = []string{
		"2400:cb00:2049:1::a29f:1804",
		"2001:0db8:85a3:0000:0000:8a2e:0370:7334",
		"0:0:0:0:0:ffff:192.1.56.10",
		"FE80:CD00:0000:0CDE:1257:0000:211E:729C",
		"2001:0db8:0000:0000:0000:8a2e:0370:7334",
	}

	txtSamples = []string{
		"This_is_a_sample_text",
		"This_is_a_sample_text_too",
		"An_example_data_for_txt_record",
		"Simple_txt_record",
		"TXT",
	}

	// DefaultLabels are the human-readable labels integer labels map to.
	DefaultLabels = []string{
		"foo", "bar", "campus", "example", "com", "bankcard",
		"mybankcard", "fnni", "net", "bank", "email", "www", "uni",
	}
)

const (
	placeholderNS = "ns1.outside.edu."
	soaTTL        = 500
	soaRData      = "ns1.outside.edu. root.campus.edu. 3 6048 86400 2419200 6048"
)

// roundRobin cycles through a fixed sample array.
type roundRobin struct {
	samples []string
	next    int
}

func newRoundRobin(samples []string) *roundRobin {
	return &roundRobin{samples: samples}
}

func (r *roundRobin) take() string {
	s := r.samples[r.next]
	r.next = (r.next + 1) % len(r.samples)
	return s
}
