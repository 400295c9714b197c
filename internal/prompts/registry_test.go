package prompts

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"
)

func allVars(feature Feature) map[string]string {
	vars := make(map[string]string)
	for _, name := range Whitelist(feature) {
		vars[name] = "<" + name + "-value>"
	}
	return vars
}

func TestEmbeddedTemplatesLoad(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	for feature := range featureSpecs {
		if _, err := r.Template(feature, ""); err != nil {
			t.Errorf("feature %s has no default template: %v", feature, err)
		}
	}
	if _, err := r.Template(FeatureChatIntent, "image"); err != nil {
		t.Errorf("expected chat_intent.image variant: %v", err)
	}
}

func TestRender_ReplacesEveryWhitelistedPlaceholder(t *testing.T) {
	r := MustRegistry()
	for _, name := range r.Features() {
		feature, variant, _ := strings.Cut(name, ".")
		out, err := r.Render(Feature(feature), variant, allVars(Feature(feature)))
		if err != nil {
			t.Fatalf("%s: render failed: %v", name, err)
		}
		for _, ph := range Whitelist(Feature(feature)) {
			if strings.Contains(out, "{"+ph+"}") {
				t.Errorf("%s: placeholder {%s} left unreplaced", name, ph)
			}
		}
	}
}

func TestRender_KeepsLiteralJSONBraces(t *testing.T) {
	r := MustRegistry()
	out, err := r.Render(FeatureChatIntent, "", allVars(FeatureChatIntent))
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(out, `{"content": "your answer"`) {
		t.Errorf("JSON example braces were altered:\n%s", out)
	}
}

func TestRender_MissingPlaceholder(t *testing.T) {
	r := MustRegistry()
	vars := allVars(FeatureSectionQuiz)
	delete(vars, "count")
	_, err := r.Render(FeatureSectionQuiz, "", vars)
	if !errors.Is(err, ErrMissingPlaceholder) {
		t.Fatalf("expected ErrMissingPlaceholder, got %v", err)
	}
	if !strings.Contains(err.Error(), "count") {
		t.Errorf("error should name the missing placeholder: %v", err)
	}
}

func TestRender_UnknownPlaceholder(t *testing.T) {
	r := MustRegistry()
	vars := allVars(FeatureJSONRepair)
	vars["summary"] = "not allowed here"
	if _, err := r.Render(FeatureJSONRepair, "", vars); !errors.Is(err, ErrUnknownPlaceholder) {
		t.Fatalf("expected ErrUnknownPlaceholder, got %v", err)
	}
}

func TestRender_DoesNotRescanValues(t *testing.T) {
	r := MustRegistry()
	vars := allVars(FeatureJSONRepair)
	vars["raw_text"] = "literal {feature} from the model"
	vars["feature"] = "chat_intent"
	out, err := r.Render(FeatureJSONRepair, "", vars)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(out, "literal {feature} from the model") {
		t.Errorf("substituted value was rescanned:\n%s", out)
	}
	if !strings.Contains(out, "Feature: chat_intent") {
		t.Errorf("feature line missing:\n%s", out)
	}
}

func TestTemplate_UnknownFeatureAndVariant(t *testing.T) {
	r := MustRegistry()
	if _, err := r.Template("nope", ""); !errors.Is(err, ErrUnknownFeature) {
		t.Errorf("expected ErrUnknownFeature, got %v", err)
	}
	if _, err := r.Template(FeatureSectionQuiz, "missing"); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestNewRegistryFromFS_RejectsUnlistedPlaceholder(t *testing.T) {
	fsys := fstest.MapFS{
		"section_quiz.default.txt": {Data: []byte("Write {count} questions about {section_content} for {grade}")},
	}
	if _, err := NewRegistryFromFS(fsys); !errors.Is(err, ErrUnknownPlaceholder) {
		t.Fatalf("expected ErrUnknownPlaceholder, got %v", err)
	}
}

func TestNewRegistryFromFS_RequiresPayloadPlaceholder(t *testing.T) {
	fsys := fstest.MapFS{
		"section_quiz.default.txt": {Data: []byte("Write {count} questions")},
	}
	if _, err := NewRegistryFromFS(fsys); err == nil {
		t.Fatal("expected error for template without payload placeholder")
	}
}

func TestPayloadPlaceholder(t *testing.T) {
	if p, ok := PayloadPlaceholder(FeatureJSONRepair); !ok || p != "raw_text" {
		t.Errorf("unexpected payload for json_repair: %q %v", p, ok)
	}
	if _, ok := PayloadPlaceholder("unknown"); ok {
		t.Error("unknown feature should have no payload")
	}
}
