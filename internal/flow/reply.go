package flow

import (
	"fmt"
	"math"
	"strings"

	"github.com/samber/lo"

	"github.com/aiamooz/amooz-tutor/internal/models"
)

// llmReply is the JSON shape the tutor prompts ask for. It is used for
// schema hints; decoding goes through parseReply to tolerate loose types.
type llmReply struct {
	Content        string         `json:"content,omitempty" jsonschema:"description=plain text answer"`
	WidgetType     string         `json:"widget_type,omitempty" jsonschema:"description=set only for interactive widgets"`
	Data           map[string]any `json:"data,omitempty"`
	Text           string         `json:"text,omitempty" jsonschema:"description=intro sentence shown with a widget"`
	Suggestions    []string       `json:"suggestions,omitempty" jsonschema:"maxItems=4"`
	ActivationStep *int           `json:"activation_step,omitempty" jsonschema:"minimum=0"`
}

// parseReply converts a coerced LLM object into a reply. The second return
// value is the activation step the model asked for, if any.
func parseReply(obj map[string]any) (models.Reply, *int, error) {
	reply := models.Reply{Suggestions: cleanSuggestions(obj["suggestions"])}

	if wt := stringField(obj, "widget_type"); wt != "" {
		reply.Type = models.ReplyTypeWidget
		reply.WidgetType = wt
		if data, ok := obj["data"].(map[string]any); ok {
			reply.Data = data
		}
		reply.Text = lo.CoalesceOrEmpty(stringField(obj, "text"), stringField(obj, "content"))
	} else {
		reply.Type = models.ReplyTypeText
		reply.Content = lo.CoalesceOrEmpty(stringField(obj, "content"), stringField(obj, "text"), stringField(obj, "answer"))
	}

	if err := reply.Validate(); err != nil {
		return models.Reply{}, nil, fmt.Errorf("%w: keys %v", err, lo.Keys(obj))
	}
	return reply, activationStep(obj["activation_step"]), nil
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

// cleanSuggestions keeps non-blank distinct strings, at most models.MaxSuggestions.
func cleanSuggestions(v any) []string {
	raw, _ := v.([]any)
	out := lo.Uniq(lo.FilterMap(raw, func(item any, _ int) (string, bool) {
		s, ok := item.(string)
		s = strings.TrimSpace(s)
		return s, ok && s != ""
	}))
	if len(out) > models.MaxSuggestions {
		out = out[:models.MaxSuggestions]
	}
	return out
}

func activationStep(v any) *int {
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case int:
		n = float64(t)
	default:
		return nil
	}
	if n < 0 || n != math.Trunc(n) || n > math.MaxInt32 {
		return nil
	}
	step := int(n)
	return &step
}
