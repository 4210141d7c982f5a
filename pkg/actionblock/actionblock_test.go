package actionblock

import (
	"strings"
	"testing"
)

func TestExtractWellFormedAndMalformed(t *testing.T) {
	text := "Sure, let me plant that.\n" +
		"```action\n{\"action\":\"plant\",\"flower\":\"pink\",\"position\":\"near the fence\"}\n```\n" +
		"```action\n{not json at all\n```\n" +
		"Done!"

	clean, calls := Extract(text)

	if len(calls) != 1 {
		t.Fatalf("expected 1 recovered call, got %d", len(calls))
	}
	call := calls[0]
	if call.Name != "plant" {
		t.Errorf("name = %q", call.Name)
	}
	if call.Arguments["varietyKey"] != "粉花" {
		t.Errorf("varietyKey = %v", call.Arguments["varietyKey"])
	}
	if call.Arguments["count"] != float64(1) {
		t.Errorf("count default = %v", call.Arguments["count"])
	}
	if _, ok := call.Arguments["position"]; ok {
		t.Error("position should be dropped")
	}
	if strings.Contains(clean, "```") {
		t.Errorf("fences not stripped: %q", clean)
	}
	if !strings.Contains(clean, "Sure, let me plant that.") || !strings.Contains(clean, "Done!") {
		t.Errorf("surrounding remarks lost: %q", clean)
	}
}

func TestExtractNoBlocks(t *testing.T) {
	clean, calls := Extract("just a chat reply")
	if clean != "just a chat reply" || calls != nil {
		t.Errorf("unexpected rewrite: %q %v", clean, calls)
	}
}

func TestExtractTypeFieldAsName(t *testing.T) {
	text := "```action\n{\"type\":\"harvest\",\"message\":\"it told a joke\",\"target\":\"flower-3\"}\n```"
	_, calls := Extract(text)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	call := calls[0]
	if call.Name != "harvest" {
		t.Errorf("name = %q", call.Name)
	}
	if call.Arguments["reason"] != "it told a joke" {
		t.Errorf("reason promotion failed: %v", call.Arguments["reason"])
	}
	if _, ok := call.Arguments["target"]; ok {
		t.Error("target should be dropped")
	}
	if _, ok := call.Arguments["message"]; ok {
		t.Error("message should be dropped after promotion")
	}
}

func TestNormalizeHarvestDefaultReason(t *testing.T) {
	args := map[string]any{}
	Normalize("harvest", args)
	if args["reason"] != "the condition has been met" {
		t.Errorf("default reason = %v", args["reason"])
	}
}

func TestNormalizePlantVarietySources(t *testing.T) {
	cases := []struct {
		name string
		args map[string]any
		want string
	}{
		{"item field", map[string]any{"item": "sunflower"}, "向日葵"},
		{"color field", map[string]any{"color": "blue"}, "蓝花"},
		{"flowerType field", map[string]any{"flowerType": "yellow flower"}, "黄花"},
		{"unknown passes through", map[string]any{"variety": "moonflower"}, "moonflower"},
		{"canonical untouched", map[string]any{"varietyKey": "粉花"}, "粉花"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			Normalize("plant", tc.args)
			if tc.args["varietyKey"] != tc.want {
				t.Errorf("varietyKey = %v, want %v", tc.args["varietyKey"], tc.want)
			}
		})
	}
}

func TestNormalizeCountPreserved(t *testing.T) {
	args := map[string]any{"varietyKey": "粉花", "count": float64(3)}
	Normalize("plant", args)
	if args["count"] != float64(3) {
		t.Errorf("explicit count overwritten: %v", args["count"])
	}
}
