package curriculum

import "encoding/json"

// Quiz question types.
const (
	QuestionMultipleChoice = "multiple-choice"
	QuestionTrueFalse      = "true-false"
	QuestionFillInTheBlank = "fill-in-the-blank"
)

// TopicRecord is one lesson as stored in a topic_*.json file.
// Keys the pipeline does not know about are kept and written back unchanged.
type TopicRecord struct {
	Topic           string       `json:"topic" jsonschema:"required"`
	Summary         string       `json:"summary,omitempty"`
	DetailedSummary string       `json:"detailedSummary,omitempty"`
	Materials       Materials    `json:"materials"`
	VideoURL        string       `json:"videoUrl,omitempty"`
	Assignments     []Assignment `json:"assignments,omitempty"`
	Quiz            *Quiz        `json:"quiz,omitempty"`
	Quizzes         []QuizItem   `json:"quizzes,omitempty"`
	WhyItMatters    string       `json:"why_it_matters,omitempty"`
	Images          *Images      `json:"images,omitempty"`

	extra map[string]json.RawMessage
}

// Materials groups the media references attached to a topic.
type Materials struct {
	Videos    []MediaRef `json:"videos"`
	Textbooks []MediaRef `json:"textbooks"`
	Labs      []MediaRef `json:"labs"`
}

// MediaRef points at one piece of reference media.
type MediaRef struct {
	Title string `json:"title" yaml:"title"`
	URL   string `json:"url" yaml:"url" jsonschema:"required"`
}

// Assignment is a practice task list for a topic.
type Assignment struct {
	Title       string   `json:"title" jsonschema:"required"`
	Description string   `json:"description"`
	Tasks       []string `json:"tasks" jsonschema:"required,minItems=1"`
}

// Quiz is the authored quiz shape found in source records.
type Quiz struct {
	Questions []QuizItem `json:"questions,omitempty"`
}

// QuizItem is a single quiz question. Answer holds a string, number or boolean.
type QuizItem struct {
	Question    string   `json:"question" jsonschema:"required"`
	Type        string   `json:"type,omitempty" jsonschema:"enum=multiple-choice,enum=true-false,enum=fill-in-the-blank"`
	Options     []string `json:"options,omitempty"`
	Answer      any      `json:"answer,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
}

// Images holds the pooled images attached during enrichment.
type Images struct {
	Main       string   `json:"main" jsonschema:"required"`
	Additional []string `json:"additional"`
}

// WeeklyUnit is one topic re-expressed as one week of a course schedule.
type WeeklyUnit struct {
	Course       string       `json:"course" jsonschema:"required"`
	Level        string       `json:"level" jsonschema:"required"`
	Week         int          `json:"week" jsonschema:"required,minimum=1"`
	Topic        string       `json:"topic" jsonschema:"required"`
	Summary      string       `json:"summary"`
	WhyItMatters string       `json:"why_it_matters"`
	Materials    Materials    `json:"materials"`
	Assignments  []Assignment `json:"assignments" jsonschema:"required,minItems=1"`
	Quizzes      []QuizItem   `json:"quizzes" jsonschema:"required,minItems=3,maxItems=5"`
}

// Clone returns a deep copy of the record's slices and pointers.
// Answer values and unknown keys are shared; the pipeline never mutates them.
func (r *TopicRecord) Clone() *TopicRecord {
	c := *r
	c.Materials = Materials{
		Videos:    append([]MediaRef(nil), r.Materials.Videos...),
		Textbooks: append([]MediaRef(nil), r.Materials.Textbooks...),
		Labs:      append([]MediaRef(nil), r.Materials.Labs...),
	}
	if r.Assignments != nil {
		c.Assignments = make([]Assignment, len(r.Assignments))
		for i, a := range r.Assignments {
			a.Tasks = append([]string(nil), a.Tasks...)
			c.Assignments[i] = a
		}
	}
	if r.Quiz != nil {
		q := Quiz{Questions: cloneItems(r.Quiz.Questions)}
		c.Quiz = &q
	}
	c.Quizzes = cloneItems(r.Quizzes)
	if r.Images != nil {
		img := Images{Main: r.Images.Main, Additional: append([]string(nil), r.Images.Additional...)}
		c.Images = &img
	}
	c.normalize()
	return &c
}

// normalize replaces nil media lists with empty ones so they encode as [].
func (r *TopicRecord) normalize() {
	if r.Materials.Videos == nil {
		r.Materials.Videos = []MediaRef{}
	}
	if r.Materials.Textbooks == nil {
		r.Materials.Textbooks = []MediaRef{}
	}
	if r.Materials.Labs == nil {
		r.Materials.Labs = []MediaRef{}
	}
	if r.Images != nil && r.Images.Additional == nil {
		r.Images.Additional = []string{}
	}
}

func cloneItems(items []QuizItem) []QuizItem {
	if items == nil {
		return nil
	}
	out := make([]QuizItem, len(items))
	for i, it := range items {
		it.Options = append([]string(nil), it.Options...)
		if len(it.Options) == 0 {
			it.Options = nil
		}
		out[i] = it
	}
	return out
}
