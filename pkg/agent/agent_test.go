package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/verdantlabs/verdant/pkg/conversation"
	"github.com/verdantlabs/verdant/pkg/errors"
	"github.com/verdantlabs/verdant/pkg/llm"
	"github.com/verdantlabs/verdant/pkg/skill"
	"github.com/verdantlabs/verdant/pkg/world"
)

func newTestAgent(t *testing.T, backend llm.Adapter, opts ...Option) (*Agent, *world.Garden) {
	t.Helper()
	garden := world.NewGarden(3, 100)
	reg := skill.NewRegistry(
		skill.NewGardenSkill(garden, garden),
		skill.NewHarvestSkill(garden, garden, garden, garden),
	)
	base := []Option{
		WithBackend(backend),
		WithRegistry(reg),
		WithWorld(garden, garden),
	}
	a, err := New("verdant-test", append(base, opts...)...)
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	return a, garden
}

func TestTextOnlyTurn(t *testing.T) {
	mock := llm.NewScriptedMock(`{"content":[{"type":"text","text":"Lovely day in the garden!"}]}`)
	a, _ := newTestAgent(t, mock)

	out, err := a.Process(context.Background(), Input{Type: InputText, Content: "hello"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.Text != "Lovely day in the garden!" {
		t.Errorf("text = %q", out.Text)
	}
	if len(out.ToolExecutions) != 0 {
		t.Errorf("executions = %d", len(out.ToolExecutions))
	}
	if !out.ShouldContinue {
		t.Error("pure-text turn should continue")
	}
	if mock.CallCount != 1 {
		t.Errorf("call count = %d", mock.CallCount)
	}

	messages := a.Conversation().Messages()
	last := messages[len(messages)-1]
	if last.Role != llm.RoleAssistant || last.Content != out.Text {
		t.Errorf("last message = %+v", last)
	}
}

func TestFollowUpAfterSilentToolCall(t *testing.T) {
	mock := llm.NewScriptedMock(
		`[{"type":"tool_use","name":"plant","input":{"varietyKey":"粉花","count":2}}]`,
		`[{"type":"text","text":"Two pink blooms, planted with care!"}]`,
	)
	a, garden := newTestAgent(t, mock)

	out, err := a.Process(context.Background(), Input{Type: InputText, Content: "plant two pink flowers"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if mock.CallCount != 2 {
		t.Fatalf("expected a follow-up call, got %d calls", mock.CallCount)
	}
	if len(mock.Requests[1].Tools) != 0 {
		t.Error("follow-up call must offer no tools")
	}
	if out.Text != "Two pink blooms, planted with care!" {
		t.Errorf("text = %q", out.Text)
	}
	if out.ShouldContinue {
		t.Error("turn with tool executions must not continue")
	}
	if got := len(garden.Snapshot().ItemsByCell); got != 2 {
		t.Errorf("planted cells = %d", got)
	}
}

func TestToolAndTextSkipsFollowUp(t *testing.T) {
	mock := llm.NewScriptedMock(
		`[{"type":"text","text":"Planting one now!"},{"type":"tool_use","name":"plant","input":{"varietyKey":"粉花"}}]`,
	)
	a, _ := newTestAgent(t, mock)

	out, err := a.Process(context.Background(), Input{Type: InputText, Content: "plant a pink flower"})
	if err != nil {
		t.Fatal(err)
	}
	if mock.CallCount != 1 {
		t.Errorf("call count = %d, follow-up not needed when text came along", mock.CallCount)
	}
	if out.Text != "Planting one now!" {
		t.Errorf("text = %q", out.Text)
	}
	if len(out.ToolExecutions) != 1 {
		t.Errorf("executions = %d", len(out.ToolExecutions))
	}
}

func TestHarvestReasonUsesLiteralUtterance(t *testing.T) {
	mock := llm.NewScriptedMock(
		`[{"type":"tool_use","name":"harvest","input":{"reason":"the flower seems happy"}}]`,
		`[{"type":"text","text":"Harvested!"}]`,
	)

	garden := world.NewGarden(3, 100)
	planted, _ := garden.Plant("向日葵", 1)
	garden.MarkHarvestable(planted[0].ID, true)
	entity, _ := garden.Resolve(planted[0].ID)

	conv := conversation.New()
	conv.SetFocusedEntity(&conversation.FocusedEntity{
		ID: entity.ID, Type: entity.Type, Name: entity.Name,
		Description: entity.Description, State: entity.State, CustomData: entity.CustomData,
	})

	reg := skill.NewRegistry(
		skill.NewGardenSkill(garden, garden),
		skill.NewHarvestSkill(garden, garden, garden, garden),
	)
	a, err := New("verdant-test",
		WithBackend(mock),
		WithRegistry(reg),
		WithWorld(garden, garden),
		WithConversation(conv),
	)
	if err != nil {
		t.Fatal(err)
	}

	utterance := "it told me a joke, you can pick it"
	out, err := a.Process(context.Background(), Input{Type: InputText, Content: utterance})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.ToolExecutions) != 1 {
		t.Fatalf("executions = %d", len(out.ToolExecutions))
	}
	exec := out.ToolExecutions[0]
	if !exec.Result.Success {
		t.Fatalf("harvest failed: %s", exec.Result.Message)
	}
	if exec.Arguments["reason"] != utterance {
		t.Errorf("reason = %v, want the literal utterance", exec.Arguments["reason"])
	}
	if exec.Result.Data["reason"] != utterance {
		t.Errorf("recorded reason = %v", exec.Result.Data["reason"])
	}
}

func TestBackendFailureYieldsApology(t *testing.T) {
	mock := llm.NewScriptedMock()
	mock.Err = errors.New(errors.CodeLLMError, "connection refused", nil)
	a, _ := newTestAgent(t, mock)

	out, err := a.Process(context.Background(), Input{Type: InputText, Content: "hello?"})
	if err != nil {
		t.Fatalf("transport failure must not surface as an error: %v", err)
	}
	if out.Text != ApologyText {
		t.Errorf("text = %q", out.Text)
	}
	if len(out.ToolExecutions) != 0 {
		t.Error("no tools may run on a failed call")
	}
	if !out.ShouldContinue {
		t.Error("apology turn should invite a retry")
	}

	messages := a.Conversation().Messages()
	last := messages[len(messages)-1]
	if last.Role != llm.RoleAssistant || last.Content != ApologyText {
		t.Errorf("apology not recorded: %+v", last)
	}
}

func TestUnknownVarietyFailureStillNarrates(t *testing.T) {
	mock := llm.NewScriptedMock(
		`[{"type":"tool_use","name":"plant","input":{"varietyKey":"moonflower","count":1}}]`,
		`[{"type":"text","text":"Hmm, I do not know moonflower. How about a sunflower?"}]`,
	)
	a, _ := newTestAgent(t, mock)

	out, err := a.Process(context.Background(), Input{Type: InputText, Content: "plant a moonflower"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.ToolExecutions) != 1 || out.ToolExecutions[0].Result.Success {
		t.Fatalf("expected one failed execution: %+v", out.ToolExecutions)
	}
	if out.ShouldContinue {
		t.Error("a dispatched tool ends the turn even when it fails")
	}
	if !strings.Contains(out.Text, "moonflower") {
		t.Errorf("text = %q", out.Text)
	}
}

func TestFallbackToToolResultMessage(t *testing.T) {
	mock := llm.NewScriptedMock(
		`[{"type":"tool_use","name":"query_garden","input":{}}]`,
		`{"content":[]}`,
	)
	a, garden := newTestAgent(t, mock)
	garden.Plant("粉花", 1)

	out, err := a.Process(context.Background(), Input{Type: InputText, Content: "how is the garden?"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Text == "" {
		t.Fatal("expected fallback to the tool result message")
	}
	if out.Text != out.ToolExecutions[0].Result.Message {
		t.Errorf("text = %q, want tool message %q", out.Text, out.ToolExecutions[0].Result.Message)
	}
}

func TestActionBlockRecoveryDrivesDispatch(t *testing.T) {
	mock := llm.NewScriptedMock(
		"{\"text\":\"Let me plant that for you.\\n```action\\n{\\\"action\\\":\\\"plant\\\",\\\"color\\\":\\\"pink\\\"}\\n```\"}",
	)
	a, garden := newTestAgent(t, mock)

	out, err := a.Process(context.Background(), Input{Type: InputText, Content: "a pink one please"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.ToolExecutions) != 1 {
		t.Fatalf("executions = %d", len(out.ToolExecutions))
	}
	exec := out.ToolExecutions[0]
	if exec.ToolName != "plant" || exec.Arguments["varietyKey"] != "粉花" {
		t.Errorf("recovered call = %+v", exec)
	}
	if !exec.Result.Success {
		t.Errorf("plant failed: %s", exec.Result.Message)
	}
	if out.Text != "Let me plant that for you." {
		t.Errorf("text = %q, fence should be stripped", out.Text)
	}
	if got := len(garden.Snapshot().ItemsByCell); got != 1 {
		t.Errorf("planted cells = %d", got)
	}
}

func TestInteractionInputSetsFocus(t *testing.T) {
	mock := llm.NewScriptedMock(`{"content":[{"type":"text","text":"Oh, that one is my favorite!"}]}`)
	a, garden := newTestAgent(t, mock)
	planted, _ := garden.Plant("粉花", 1)

	out, err := a.Process(context.Background(), Input{
		Type: InputInteraction,
		Event: &InteractionEvent{
			Type:        "click",
			TargetID:    planted[0].ID,
			Description: "The player tapped a pink flower.",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Text == "" {
		t.Error("expected a reply")
	}
	focused := a.Conversation().FocusedEntity()
	if focused == nil || focused.ID != planted[0].ID {
		t.Fatalf("focused = %+v", focused)
	}
	if got := a.Conversation().LastUserUtterance(); got != "The player tapped a pink flower." {
		t.Errorf("utterance = %q", got)
	}
}

func TestUnresolvableInteractionIsNotRouted(t *testing.T) {
	mock := llm.NewScriptedMock(`"never called"`)
	a, _ := newTestAgent(t, mock)

	_, err := a.Process(context.Background(), Input{
		Type:  InputInteraction,
		Event: &InteractionEvent{Type: "click", TargetID: "ghost-id"},
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.CodeOf(err) != errors.CodeNotFound {
		t.Errorf("code = %v", errors.CodeOf(err))
	}
	if mock.CallCount != 0 {
		t.Error("backend must not be called for an unroutable event")
	}
}

func TestToolDiscoveryReflectsWorldState(t *testing.T) {
	mock := llm.NewScriptedMock(
		`{"content":[{"type":"text","text":"ok"}]}`,
		`{"content":[{"type":"text","text":"ok"}]}`,
	)
	a, garden := newTestAgent(t, mock)

	if _, err := a.Process(context.Background(), Input{Type: InputText, Content: "hi"}); err != nil {
		t.Fatal(err)
	}
	for _, tool := range mock.Requests[0].Tools {
		if tool.Name == "harvest" {
			t.Fatal("harvest offered with nothing harvestable")
		}
	}

	planted, _ := garden.Plant("粉花", 1)
	garden.MarkHarvestable(planted[0].ID, true)

	if _, err := a.Process(context.Background(), Input{Type: InputText, Content: "anything ripe?"}); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, tool := range mock.Requests[1].Tools {
		if tool.Name == "harvest" {
			found = true
		}
	}
	if !found {
		t.Error("harvest missing with a harvestable flower present")
	}
}

func TestSystemPromptCarriesWorldAndTools(t *testing.T) {
	mock := llm.NewScriptedMock(`{"content":[{"type":"text","text":"ok"}]}`)
	a, garden := newTestAgent(t, mock)
	garden.Plant("粉花", 1)

	if _, err := a.Process(context.Background(), Input{Type: InputText, Content: "hi"}); err != nil {
		t.Fatal(err)
	}
	prompt := mock.Requests[0].System
	if !strings.Contains(prompt, "plant") {
		t.Error("prompt should list the plant tool")
	}
	if !strings.Contains(prompt, "World state:") {
		t.Error("prompt should carry the world overlay")
	}
}

func TestGreeting(t *testing.T) {
	mock := llm.NewScriptedMock()
	a, _ := newTestAgent(t, mock)

	if got := a.Greeting(); !strings.Contains(got, "garden") {
		t.Errorf("default greeting = %q", got)
	}

	a.Conversation().SetFocusedEntity(&conversation.FocusedEntity{
		ID:         "flower-1",
		Name:       "Sunny",
		CustomData: map[string]any{"greeting": "Well hello, sunshine!"},
	})
	if got := a.Greeting(); got != "Well hello, sunshine!" {
		t.Errorf("custom greeting = %q", got)
	}
}

type pushingMock struct {
	*llm.ScriptedMockAdapter
	pushed []string
}

func (p *pushingMock) PushState(_ context.Context, state string) error {
	p.pushed = append(p.pushed, state)
	return nil
}

func TestStatePushedToBridgeBackends(t *testing.T) {
	mock := &pushingMock{
		ScriptedMockAdapter: llm.NewScriptedMock(`{"text":"hello from the bridge"}`),
	}
	a, _ := newTestAgent(t, mock)

	if _, err := a.Process(context.Background(), Input{Type: InputText, Content: "hi"}); err != nil {
		t.Fatal(err)
	}
	if len(mock.pushed) != 1 {
		t.Fatalf("pushes = %d", len(mock.pushed))
	}
	if !strings.Contains(mock.pushed[0], "gold") {
		t.Errorf("pushed state = %q", mock.pushed[0])
	}
}

func TestUnroutableInteractionCausesNoBridgeTraffic(t *testing.T) {
	mock := &pushingMock{
		ScriptedMockAdapter: llm.NewScriptedMock(`"never called"`),
	}
	a, _ := newTestAgent(t, mock)

	_, err := a.Process(context.Background(), Input{
		Type:  InputInteraction,
		Event: &InteractionEvent{Type: "click", TargetID: "ghost-id"},
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(mock.pushed) != 0 {
		t.Errorf("pushes = %d, no state may be pushed for an unroutable event", len(mock.pushed))
	}
	if mock.CallCount != 0 {
		t.Error("backend must not be called for an unroutable event")
	}
}

func TestUpdateStateMergesOverlay(t *testing.T) {
	mock := llm.NewScriptedMock()
	a, _ := newTestAgent(t, mock)

	a.UpdateState(map[string]any{"weather": "rainy"})
	if a.Conversation().WorldOverlay()["weather"] != "rainy" {
		t.Error("overlay not updated")
	}
}
