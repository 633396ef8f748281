package services

import (
	"sort"
	"strconv"
	"strings"

	"github.com/poyrazK/dnsdiff/internal/core/domain"
)

type cluster struct {
	tag         string
	key         string
	groups      [][]string
	occurrences []domain.Occurrence
}

// Cluster aggregates the differences of a corpus by fingerprint: the model
// tag of the query, or "unknown" when no tag is known, together with the
// partition of sources into agreement groups. Differences with fewer than two
// non-empty groups are ignored. Either every remaining difference has a model
// tag or none has; a mixed corpus fails with *domain.MixedTagsError.
func Cluster(corpus []domain.TestDifferences, tags domain.ModelTags) (domain.ClusterReport, error) {
	report := domain.ClusterReport{Summary: []string{}, Details: map[string][]domain.ClusterEntry{}}

	type item struct {
		occ    domain.Occurrence
		groups [][]string
	}
	var items []item
	tagged, untagged := 0, 0
	for _, td := range corpus {
		for _, d := range td.Differences {
			groups := partition(d)
			if len(groups) < 2 {
				continue
			}
			occ := domain.Occurrence{Test: td.TestID, Query: d.Query().Key()}
			if _, ok := tags.Lookup(occ.Test, occ.Query); ok {
				tagged++
			} else {
				untagged++
			}
			items = append(items, item{occ: occ, groups: groups})
		}
	}
	if tagged > 0 && untagged > 0 {
		return report, &domain.MixedTagsError{Tagged: tagged, Untagged: untagged}
	}

	clusters := map[string]*cluster{}
	for _, it := range items {
		tag, ok := tags.Lookup(it.occ.Test, it.occ.Query)
		if !ok {
			tag = domain.UnknownTag
		}
		fp := domain.Fingerprint{Tag: tag, Groups: it.groups}
		id := tag + "|" + fp.Key()
		c, ok := clusters[id]
		if !ok {
			c = &cluster{tag: tag, key: fp.Key(), groups: it.groups}
			clusters[id] = c
		}
		c.occurrences = append(c.occurrences, it.occ)
	}

	ordered := make([]*cluster, 0, len(clusters))
	for _, c := range clusters {
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].tag != ordered[j].tag {
			return ordered[i].tag < ordered[j].tag
		}
		return ordered[i].key < ordered[j].key
	})

	for _, c := range ordered {
		report.Summary = append(report.Summary, summaryLine(c))
		report.Details[c.tag] = append(report.Details[c.tag], domain.ClusterEntry{
			Groups: c.groups,
			Count:  len(c.occurrences),
			Tests:  c.occurrences,
		})
	}
	return report, nil
}

// partition returns the sorted member sets of the non-empty groups, largest
// first.
func partition(d domain.DifferenceReport) [][]string {
	var groups [][]string
	for _, g := range d.Groups {
		members := g.Members()
		if len(members) == 0 {
			continue
		}
		sort.Strings(members)
		groups = append(groups, members)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if len(groups[i]) != len(groups[j]) {
			return len(groups[i]) > len(groups[j])
		}
		return strings.Join(groups[i], ",") < strings.Join(groups[j], ",")
	})
	return groups
}

func summaryLine(c *cluster) string {
	parts := []string{c.tag, strconv.Itoa(len(c.occurrences))}
	for _, g := range c.groups {
		parts = append(parts, "{"+strings.Join(g, ",")+"}")
	}
	return strings.Join(parts, " ")
}
