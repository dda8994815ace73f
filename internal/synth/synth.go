// Package synth fills in the parts of a topic record that a complete lesson
// needs: a summary of reasonable length, an assignment, a short quiz and a
// "why it matters" line. Every step is a threshold or presence check, so
// running EnsureComplete on its own output changes nothing.
package synth

import (
	"fmt"
	"strings"

	"github.com/p-n-ai/pai-curator/internal/curriculum"
)

const (
	MinSummaryWords = 200
	MinQuizItems    = 3
	MaxQuizItems    = 5
)

// genericOptions are the answer choices of a synthesized question. The first
// option is always the correct one.
var genericOptions = []string{
	"It builds on the core idea of the topic",
	"It has no connection to the topic",
	"It only applies outside the course",
	"None of the above",
}

// fillers rotate in order while the summary is short. %[1]s is the topic,
// %[2]s the category label and %[3]s the level.
var fillers = []string{
	"This %[3]s lesson on %[1]s is part of the %[2]s track and introduces the vocabulary, notation and reasoning that later lessons rely on.",
	"Learners first meet %[1]s through worked examples, then practise recognising when and how to apply it on their own.",
	"Each idea in %[1]s is connected back to earlier %[2]s material so that new knowledge is anchored to something already familiar.",
	"Common mistakes are discussed explicitly, with short checks that help learners notice misconceptions about %[1]s before they take root.",
	"By the end of the lesson learners should be able to explain %[1]s in their own words and use it to solve %[3]s level problems.",
	"The lesson closes with guided practice and a short quiz so progress in %[1]s can be measured and revisited later in the course.",
}

// EnsureComplete returns a completed copy of rec. rec itself is not modified.
func EnsureComplete(rec *curriculum.TopicRecord, category, level string) *curriculum.TopicRecord {
	out := rec.Clone()
	topic := topicName(out.Topic)

	out.Summary = completeSummary(out.Summary, topic, CategoryLabel(category), levelName(level))
	out.Assignments = completeAssignments(out.Assignments, topic)
	out.Quizzes = completeQuiz(sourceQuestions(out), topic)
	if strings.TrimSpace(out.WhyItMatters) == "" {
		out.WhyItMatters = WhyItMatters(out.Topic, category)
	}
	return out
}

// Assignments returns the default assignment set for topic.
func Assignments(topic string) []curriculum.Assignment {
	topic = topicName(topic)
	return []curriculum.Assignment{{
		Title:       "Practice: " + topic,
		Description: fmt.Sprintf("Work through the core ideas of %s and check your understanding.", topic),
		Tasks:       checklist(topic),
	}}
}

// Quiz pads items to MinQuizItems with generic multiple-choice questions and
// keeps at most MaxQuizItems, in their original order.
func Quiz(items []curriculum.QuizItem, topic string) []curriculum.QuizItem {
	return completeQuiz(items, topicName(topic))
}

// CategoryLabel is the human-readable name of a content category.
func CategoryLabel(category string) string {
	switch category {
	case "math":
		return "mathematics"
	case "science":
		return "science"
	case "programming":
		return "programming"
	case "language":
		return "language"
	case "history":
		return "history"
	case "arts":
		return "arts"
	default:
		return "general"
	}
}

func completeSummary(summary, topic, category, level string) string {
	words := len(strings.Fields(summary))
	if words >= MinSummaryWords {
		return summary
	}
	summary = strings.TrimRight(summary, " \n\t")
	for i := 0; words < MinSummaryWords; i++ {
		s := fmt.Sprintf(fillers[i%len(fillers)], topic, category, level)
		if summary == "" {
			summary = s
		} else {
			summary += " " + s
		}
		words += len(strings.Fields(s))
	}
	return summary
}

func completeAssignments(existing []curriculum.Assignment, topic string) []curriculum.Assignment {
	if len(existing) == 0 {
		return Assignments(topic)
	}
	for i := range existing {
		if len(existing[i].Tasks) == 0 {
			existing[i].Tasks = checklist(topic)
		}
		if existing[i].Title == "" {
			existing[i].Title = "Practice: " + topic
		}
	}
	return existing
}

func checklist(topic string) []string {
	return []string{
		fmt.Sprintf("Read the summary of %s and note the key terms", topic),
		fmt.Sprintf("Watch the linked videos on %s and write down one question", topic),
		fmt.Sprintf("Solve three practice problems that use %s", topic),
		fmt.Sprintf("Explain %s to a classmate or in a short paragraph", topic),
	}
}

// sourceQuestions prefers the flat quizzes list and falls back to the
// authored quiz.questions shape.
func sourceQuestions(rec *curriculum.TopicRecord) []curriculum.QuizItem {
	if len(rec.Quizzes) > 0 {
		return rec.Quizzes
	}
	if rec.Quiz != nil && len(rec.Quiz.Questions) > 0 {
		return append([]curriculum.QuizItem(nil), rec.Quiz.Questions...)
	}
	return nil
}

func completeQuiz(items []curriculum.QuizItem, topic string) []curriculum.QuizItem {
	out := append([]curriculum.QuizItem(nil), items...)
	for len(out) < MinQuizItems {
		out = append(out, curriculum.QuizItem{
			Question: fmt.Sprintf("Question %d: which statement best describes %s?", len(out)+1, topic),
			Type:     curriculum.QuestionMultipleChoice,
			Options:  append([]string(nil), genericOptions...),
			Answer:   0,
		})
	}
	if len(out) > MaxQuizItems {
		out = out[:MaxQuizItems]
	}
	return out
}

func topicName(topic string) string {
	if t := strings.TrimSpace(topic); t != "" {
		return t
	}
	return "this topic"
}

func levelName(level string) string {
	if l := strings.TrimSpace(level); l != "" {
		return l
	}
	return "introductory"
}
