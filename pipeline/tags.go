package pipeline

import (
	"strings"
	"unicode"

	"github.com/Luismorlan/insighthub/utils"
)

const MaxContentTags = 15

const (
	LabelKorean  = "korean"
	LabelEnglish = "english"
)

var topicKeywords = []struct {
	label    string
	keywords []string
}{
	{"ai", []string{"ai", "artificial", "intelligence", "llm", "gpt", "인공지능"}},
	{"technology", []string{"tech", "technology", "software", "기술"}},
	{"cryptocurrency", []string{"crypto", "bitcoin", "blockchain", "비트코인", "블록체인"}},
}

// LanguageLabel maps a content language code onto its label.
func LanguageLabel(lang string) string {
	if lang == "ko" {
		return LabelKorean
	}
	return LabelEnglish
}

// TopicLabels returns the topic labels whose keywords appear as words in
// title.
func TopicLabels(title string) []string {
	words := map[string]bool{}
	for _, w := range strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = true
	}

	labels := []string{}
	for _, topic := range topicKeywords {
		for _, k := range topic.keywords {
			if words[k] {
				labels = append(labels, topic.label)
				break
			}
		}
	}
	return labels
}

// DescriptiveLabels are the labels a content item carries regardless of its
// processing state.
func DescriptiveLabels(lang string, title string) []string {
	return utils.DedupStrings(append([]string{LanguageLabel(lang)}, TopicLabels(title)...), 0)
}

// MergeTags combines AI produced tags with the content labels, AI tags
// first, without duplicates and capped at MaxContentTags.
func MergeTags(aiTags []string, labels []string) []string {
	lowered := make([]string, 0, len(aiTags)+len(labels))
	for _, t := range append(append([]string{}, aiTags...), labels...) {
		lowered = append(lowered, strings.ToLower(t))
	}
	return utils.DedupStrings(lowered, MaxContentTags)
}
