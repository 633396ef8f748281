package translate

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/poyrazK/dnsdiff/internal/core/domain"
)

// labelSupply hands out labels for one position. It walks the pool in a
// shuffled order and reshuffles each time the pool is exhausted.
type labelSupply struct {
	pool  []string
	order []string
	next  int
	rng   *rand.Rand
}

func (s *labelSupply) take() string {
	if s.next == len(s.order) {
		s.order = append(s.order[:0], s.pool...)
		if s.rng != nil {
			s.rng.Shuffle(len(s.order), func(i, j int) {
				s.order[i], s.order[j] = s.order[j], s.order[i]
			})
		}
		s.next = 0
	}
	l := s.order[s.next]
	s.next++
	return l
}

// Context maps integer labels to strings for one test case. Every position
// owns its own supply and mapping table, so the same integer at different
// depths may render differently while the same (position, integer) pair
// always renders the same. A Context must not be shared between test cases.
type Context struct {
	supplies [domain.MaxDepth]*labelSupply
	assigned [domain.MaxDepth]map[int]string
}

// Option configures a Context.
type Option func(*options)

type options struct {
	rng    *rand.Rand
	labels []string
}

// WithRand shuffles every label supply with r. Without it labels are handed
// out in pool order.
func WithRand(r *rand.Rand) Option {
	return func(o *options) { o.rng = r }
}

// WithLabels replaces the default label pool.
func WithLabels(pool []string) Option {
	return func(o *options) { o.labels = pool }
}

// NewContext returns a fresh translation context.
func NewContext(opts ...Option) *Context {
	o := options{labels: DefaultLabels}
	for _, opt := range opts {
		opt(&o)
	}
	c := &Context{}
	for i := range c.supplies {
		c.supplies[i] = &labelSupply{pool: o.labels, rng: o.rng}
		c.assigned[i] = make(map[int]string)
	}
	return c
}

// label returns the string for integer id at position pos.
func (c *Context) label(pos, id int) (string, error) {
	if id == domain.WildcardLabel {
		return "*", nil
	}
	if pos < 0 || pos >= domain.MaxDepth {
		return "", fmt.Errorf("%w: position %d", domain.ErrNameTooDeep, pos)
	}
	l, ok := c.assigned[pos][id]
	if !ok {
		l = c.supplies[pos].take()
		c.assigned[pos][id] = l
	}
	return l, nil
}

// Name renders an abstract name as a fully qualified domain name.
func (c *Context) Name(name []int) (string, error) {
	labels := make([]string, len(name))
	for i, id := range name {
		l, err := c.label(i, id)
		if err != nil {
			return "", err
		}
		labels[i] = l
	}
	return join(labels), nil
}

// RewrittenName renders a name produced by DNAME substitution. The first
// DNAME among relevant drives the split: labels inside the DNAME target keep
// their positions, the substituted prefix is shifted back by the length
// difference between target and owner so that it maps to the same strings as
// in the name before rewriting.
func (c *Context) RewrittenName(name []int, relevant []domain.AbstractRecord) (string, error) {
	var dname *domain.AbstractRecord
	for i := range relevant {
		if relevant[i].RType == domain.TypeDNAME {
			dname = &relevant[i]
			break
		}
	}
	if dname == nil {
		return "", domain.ErrNoDNAME
	}
	targetLen := len(dname.RData.Value)
	shift := targetLen - len(dname.RName.Value)

	labels := make([]string, len(name))
	for i, id := range name {
		pos := i
		if i >= targetLen {
			pos = i - shift
		}
		l, err := c.label(pos, id)
		if err != nil {
			return "", err
		}
		labels[i] = l
	}
	return join(labels), nil
}

// join reverses root-first labels into presentation order.
func join(labels []string) string {
	var b strings.Builder
	for i := len(labels) - 1; i >= 0; i-- {
		b.WriteString(labels[i])
		b.WriteByte('.')
	}
	if b.Len() == 0 {
		return "."
	}
	return b.String()
}
