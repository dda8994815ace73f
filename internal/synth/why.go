package synth

import (
	"strings"

	"golang.org/x/text/cases"
)

type whyRule struct {
	name     string
	keywords []string
	text     string
}

// scienceRules are checked in order against the folded topic title; the first
// rule with a matching keyword wins.
var scienceRules = []whyRule{
	{
		name:     "life-science",
		keywords: []string{"life science", "living thing", "organism", "ecosystem"},
		text:     "Understanding how living things interact with each other and their environment helps you make sense of health, food and the natural world around you.",
	},
	{
		name:     "cell",
		keywords: []string{"cell"},
		text:     "Cells are the building blocks of every living thing, so knowing how they work explains everything from growth to disease.",
	},
	{
		name:     "genetics",
		keywords: []string{"genetic", "genes", "dna", "heredity", "inherit"},
		text:     "Genetics explains why you share traits with your family and underpins modern medicine, agriculture and biotechnology.",
	},
	{
		name:     "evolution",
		keywords: []string{"evolution", "natural selection", "adaptation"},
		text:     "Evolution ties all of biology together and explains how the diversity of life on Earth came to be.",
	},
	{
		name:     "chemistry",
		keywords: []string{"chemi", "atom", "molecule", "reaction", "acid", "element"},
		text:     "Chemistry describes what everything is made of and how substances change, from cooking a meal to making new medicines.",
	},
	{
		name:     "physics",
		keywords: []string{"physics", "force", "motion", "energy", "wave", "electric"},
		text:     "Physics explains how things move and interact, from everyday objects to the technology you use every day.",
	},
}

var categoryWhy = map[string]string{
	"math":        "Mathematics sharpens logical thinking and gives you tools to model and solve real problems in science, finance and everyday life.",
	"science":     "Science teaches you to ask questions, test ideas with evidence and understand how the world works.",
	"programming": "Programming lets you turn ideas into working tools and is a core skill across nearly every modern career.",
	"language":    "Learning a language opens doors to new people, cultures and opportunities, and strengthens how you think about your own language.",
	"history":     "History helps you understand how the present was shaped and gives you the context to think critically about current events.",
	"arts":        "The arts build creativity and expression and help you see and communicate ideas in new ways.",
}

const genericWhy = "This topic builds knowledge and skills that support your learning in this course and beyond."

// WhyItMatters returns the "why it matters" line for a topic. Science topics
// are refined by keyword; other categories get one sentence each, and an
// unknown category falls back to a generic sentence.
func WhyItMatters(topic, category string) string {
	if category == "science" {
		title := cases.Fold().String(strings.TrimSpace(topic))
		for _, r := range scienceRules {
			if containsAny(title, r.keywords) {
				return r.text
			}
		}
	}
	if text, ok := categoryWhy[category]; ok {
		return text
	}
	return genericWhy
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
