package prompts

import "slices"

// Feature is a named LLM use-case that selects a template and a placeholder whitelist.
type Feature string

const (
	FeatureChatIntent       Feature = "chat_intent"
	FeatureExamPrepTutor    Feature = "exam_prep_tutor"
	FeatureSectionQuiz      Feature = "section_quiz"
	FeatureFinalExamPool    Feature = "final_exam_pool"
	FeatureMemorySummarizer Feature = "memory_summarizer"
	FeatureJSONRepair       Feature = "json_repair"
)

type featureSpec struct {
	placeholders []string
	// payload receives the caller's free-form contents
	payload string
}

func (s featureSpec) accepts(name string) bool {
	return slices.Contains(s.placeholders, name)
}

var featureSpecs = map[Feature]featureSpec{
	FeatureChatIntent: {
		placeholders: []string{"summary", "history", "context", "user_turn", "activation_step"},
		payload:      "user_turn",
	},
	FeatureExamPrepTutor: {
		placeholders: []string{"summary", "history", "context", "user_turn"},
		payload:      "user_turn",
	},
	FeatureSectionQuiz: {
		placeholders: []string{"count", "section_content"},
		payload:      "section_content",
	},
	FeatureFinalExamPool: {
		placeholders: []string{"pool_size", "combined_content"},
		payload:      "combined_content",
	},
	FeatureMemorySummarizer: {
		placeholders: []string{"previous_summary", "messages"},
		payload:      "messages",
	},
	FeatureJSONRepair: {
		placeholders: []string{"schema_hint", "raw_text", "feature"},
		payload:      "raw_text",
	},
}

// PayloadPlaceholder returns the placeholder that receives free-form contents for a feature.
func PayloadPlaceholder(feature Feature) (string, bool) {
	spec, ok := featureSpecs[feature]
	if !ok {
		return "", false
	}
	return spec.payload, true
}

// Whitelist returns the placeholder names a feature accepts.
func Whitelist(feature Feature) []string {
	return slices.Clone(featureSpecs[feature].placeholders)
}
