package memory

import (
	"context"
	"slices"
	"strings"
	"unicode"

	"github.com/smallnest/agentgraph/schema"
)

// GraphBased models older turns as a graph linked by shared topics. Each
// call keeps the Recent newest turns and adds up to TopK older turns found
// by a breadth-first walk that starts at the turns sharing a topic with the
// latest human message.
type GraphBased struct {
	// TopK limits the older turns recalled. Default 5.
	TopK int
	// Recent is the number of newest turns always kept. Default 2.
	Recent int
	// Topics extracts the topics of a message. Defaults to DefaultTopics.
	Topics func(msg schema.Message) []string
}

func (g GraphBased) Select(_ context.Context, msgs []schema.Message) ([]schema.Message, error) {
	topK := cmpOr(g.TopK, 5)
	recent := cmpOr(g.Recent, 2)
	topics := g.Topics
	if topics == nil {
		topics = DefaultTopics
	}

	system, groups := split(msgs)
	if len(groups) <= recent {
		return append(system, flatten(groups)...), nil
	}
	older, newer := groups[:len(groups)-recent], groups[len(groups)-recent:]

	// topic -> indexes of older groups mentioning it
	index := make(map[string][]int)
	groupTopics := make([][]string, len(older))
	for i, grp := range older {
		for _, m := range grp {
			groupTopics[i] = append(groupTopics[i], topics(m)...)
		}
		slices.Sort(groupTopics[i])
		groupTopics[i] = slices.Compact(groupTopics[i])
		for _, t := range groupTopics[i] {
			index[t] = append(index[t], i)
		}
	}

	var queue []int
	if human, ok := lastHuman(msgs); ok {
		for _, t := range topics(human) {
			queue = append(queue, index[t]...)
		}
	}
	// newest seeds first
	slices.SortFunc(queue, func(a, b int) int { return b - a })

	picked := make(map[int]bool)
	for len(queue) > 0 && len(picked) < topK {
		i := queue[0]
		queue = queue[1:]
		if picked[i] {
			continue
		}
		picked[i] = true
		for _, t := range groupTopics[i] {
			for _, j := range index[t] {
				if !picked[j] {
					queue = append(queue, j)
				}
			}
		}
	}

	var recalled [][]schema.Message
	for i, grp := range older {
		if picked[i] && grp[0].Role != schema.RoleTool {
			recalled = append(recalled, grp)
		}
	}
	out := append(system, flatten(recalled)...)
	return append(out, flatten(dropOrphans(newer))...), nil
}

func lastHuman(msgs []schema.Message) (schema.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == schema.RoleHuman {
			return msgs[i], true
		}
	}
	return schema.Message{}, false
}

var stopWords = map[string]bool{
	"about": true, "after": true, "again": true, "also": true, "because": true,
	"been": true, "before": true, "could": true, "does": true, "from": true,
	"have": true, "into": true, "just": true, "more": true, "please": true,
	"should": true, "some": true, "than": true, "that": true, "them": true,
	"then": true, "there": true, "these": true, "they": true, "this": true,
	"what": true, "when": true, "where": true, "which": true, "while": true,
	"will": true, "with": true, "would": true, "your": true,
}

// DefaultTopics uses the lower-cased words of four or more letters of the
// message text, minus common stop words.
func DefaultTopics(msg schema.Message) []string {
	words := strings.FieldsFunc(strings.ToLower(msg.Text()), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var out []string
	for _, w := range words {
		if len([]rune(w)) >= 4 && !stopWords[w] {
			out = append(out, w)
		}
	}
	return out
}

func cmpOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
