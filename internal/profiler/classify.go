package profiler

import (
	"sort"
	"strings"

	"github.com/pathsight/pathsight/pkg/types"
)

// classExamples caps the sample names kept per class.
const classExamples = 5

// classBuckets orders the keyword classes; the first matching bucket wins,
// so "select_payment" classifies as selection, not transaction.
var classBuckets = []struct {
	name     string
	keywords []string
}{
	{"authentication", []string{"_auth_", "login", "otp"}},
	{"search", []string{"search", "filter"}},
	{"selection", []string{"select", "choose", "pick"}},
	{"transaction", []string{"payment", "book", "ticket"}},
	{"navigation", []string{"pageview", "click", "back"}},
	{"onboarding", []string{"onboarding"}},
}

// classifyEvents buckets event names by intent keywords. Names starting with
// an underscore that match no keyword are raw api calls; everything else
// falls into "other". Only populated classes are returned.
func classifyEvents(names map[string]int64) map[string]types.EventClass {
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	classes := make(map[string]types.EventClass)
	for _, name := range sorted {
		bucket := classify(name)
		cls := classes[bucket]
		cls.EventCount += names[name]
		cls.UniqueEvents++
		if len(cls.Examples) < classExamples {
			cls.Examples = append(cls.Examples, name)
		}
		classes[bucket] = cls
	}
	return classes
}

func classify(name string) string {
	lower := strings.ToLower(name)
	for _, b := range classBuckets {
		for _, k := range b.keywords {
			if strings.Contains(lower, k) {
				return b.name
			}
		}
	}
	if strings.HasPrefix(name, "_") {
		return "api_calls"
	}
	return "other"
}
