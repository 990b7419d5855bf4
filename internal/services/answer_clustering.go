package services

import (
	"strings"
	"unicode/utf8"

	"github.com/moldovancsaba/amanoba-sub004/internal/models"
	"github.com/moldovancsaba/amanoba-sub004/internal/similarity"
)

const (
	// options this short ("Yes", "No", "42") collide everywhere and are never clustered
	minOptionRunes = 3
	// a cluster is only reported once it spans this many distinct questions
	minAnswerGroupQuestions = 3
)

type optionRef struct {
	questionID string
	lessonID   string
	text       similarity.Tokenized
}

// collectOptions flattens the answer options of window in order, skipping short ones
func collectOptions(window []auditedQuestion) []optionRef {
	refs := make([]optionRef, 0, len(window)*4)
	for _, aq := range window {
		for _, opt := range aq.options {
			refs = append(refs, optionRef{
				questionID: aq.question.ID,
				lessonID:   aq.question.LessonID,
				text:       opt,
			})
		}
	}
	return refs
}

// tokenizeOptions drops options shorter than minOptionRunes once surrounding
// whitespace is trimmed. Kept options carry their stored text unchanged.
func tokenizeOptions(options []string) []similarity.Tokenized {
	out := make([]similarity.Tokenized, 0, len(options))
	for _, opt := range options {
		if utf8.RuneCountInString(strings.TrimSpace(opt)) < minOptionRunes {
			continue
		}
		out = append(out, similarity.Tokenize(opt))
	}
	return out
}

// clusterOptions groups option indexes. Every cluster is in ascending index
// order and clusters are ordered by their first member.
func clusterOptions(refs []optionRef, threshold float64, strategy models.ClusteringStrategy) [][]int {
	if strategy == models.ClusteringUnionFind {
		return unionFindClusters(refs, threshold)
	}
	return greedyClusters(refs, threshold)
}

func greedyClusters(refs []optionRef, threshold float64) [][]int {
	clustered := make([]bool, len(refs))
	var clusters [][]int
	for i := range refs {
		if clustered[i] {
			continue
		}
		clustered[i] = true
		cluster := []int{i}
		for j := i + 1; j < len(refs); j++ {
			if clustered[j] {
				continue
			}
			if similarity.Compare(refs[i].text, refs[j].text) >= threshold {
				clustered[j] = true
				cluster = append(cluster, j)
			}
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}

type disjointSet struct {
	parent []int
}

func newDisjointSet(n int) *disjointSet {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &disjointSet{parent: parent}
}

func (d *disjointSet) find(x int) int {
	for d.parent[x] != x {
		d.parent[x] = d.parent[d.parent[x]]
		x = d.parent[x]
	}
	return x
}

// union keeps the smaller index as root so roots are cluster minimums
func (d *disjointSet) union(a, b int) {
	ra, rb := d.find(a), d.find(b)
	switch {
	case ra == rb:
	case ra < rb:
		d.parent[rb] = ra
	default:
		d.parent[ra] = rb
	}
}

func unionFindClusters(refs []optionRef, threshold float64) [][]int {
	set := newDisjointSet(len(refs))
	for i := range refs {
		for j := i + 1; j < len(refs); j++ {
			if similarity.Compare(refs[i].text, refs[j].text) >= threshold {
				set.union(i, j)
			}
		}
	}

	byRoot := make(map[int]int)
	var clusters [][]int
	for i := range refs {
		root := set.find(i)
		idx, ok := byRoot[root]
		if !ok {
			idx = len(clusters)
			byRoot[root] = idx
			clusters = append(clusters, nil)
		}
		clusters[idx] = append(clusters[idx], i)
	}
	return clusters
}

// buildAnswerGroups keeps one entry per question in each cluster and reports
// clusters that reach minAnswerGroupQuestions distinct questions
func buildAnswerGroups(refs []optionRef, clusters [][]int) []models.SimilarAnswerGroup {
	groups := []models.SimilarAnswerGroup{}
	for _, cluster := range clusters {
		if len(cluster) < minAnswerGroupQuestions {
			continue
		}
		seen := make(map[string]struct{}, len(cluster))
		group := models.SimilarAnswerGroup{
			Option: refs[cluster[0]].text.Text,
			Action: models.ActionRewriteAnswers,
		}
		for _, idx := range cluster {
			ref := refs[idx]
			if _, dup := seen[ref.questionID]; dup {
				continue
			}
			seen[ref.questionID] = struct{}{}
			group.QuestionIDs = append(group.QuestionIDs, ref.questionID)
			group.LessonIDs = append(group.LessonIDs, ref.lessonID)
		}
		group.Count = len(group.QuestionIDs)
		if group.Count >= minAnswerGroupQuestions {
			groups = append(groups, group)
		}
	}
	return groups
}
