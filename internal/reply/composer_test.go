package reply

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/Pranay-a-1/telegram-persona-bot/internal/domain"
	"github.com/Pranay-a-1/telegram-persona-bot/internal/store"
)

type fakeStore struct {
	persona string
	turns   []domain.Turn
	failed  bool
}

func (f *fakeStore) GetSetting(_ context.Context, _ int64, key store.SettingKey) (string, bool, error) {
	if key == store.SettingPersona && f.persona != "" {
		return f.persona, true, nil
	}
	return "", false, nil
}

func (f *fakeStore) LastTurns(_ context.Context, _ int64, _ int) ([]domain.Turn, error) {
	if f.failed {
		return nil, errors.New("db closed")
	}
	return f.turns, nil
}

type fakeEngine struct {
	text    string
	err     error
	system  string
	prompt  string
	history int
}

func (f *fakeEngine) Complete(_ context.Context, system string, history []domain.Turn, prompt string) (string, error) {
	f.system, f.prompt, f.history = system, prompt, len(history)
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func TestPing_EngineFailureFallsBackToExactTemplate(t *testing.T) {
	st := &fakeStore{persona: "motivational"}
	eng := &fakeEngine{err: errors.New("timeout")}
	c := NewComposer(st, eng, zap.NewNop())

	got := c.Ping(context.Background(), 1)
	want := domain.LookupPersona("motivational").PingTemplate
	if got != want {
		t.Fatalf("want exact template %q, got %q", want, got)
	}
}

func TestPing_UnknownPersonaUsesDefaultTemplate(t *testing.T) {
	st := &fakeStore{persona: "philosopher"}
	c := NewComposer(st, nil, zap.NewNop())

	got := c.Ping(context.Background(), 1)
	want := domain.LookupPersona(domain.DefaultPersona).PingTemplate
	if got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}

func TestPing_EngineSuccessUsesPersonaInstruction(t *testing.T) {
	st := &fakeStore{
		persona: "concise",
		turns: []domain.Turn{
			{Role: domain.RoleUser, Content: "working on the report"},
			{Role: domain.RoleBot, Content: "Task noted."},
		},
	}
	eng := &fakeEngine{text: "Report status?"}
	c := NewComposer(st, eng, zap.NewNop())

	got := c.Ping(context.Background(), 1)
	if got != "Report status?" {
		t.Fatalf("want engine text, got %q", got)
	}
	if eng.system != domain.LookupPersona("concise").Instruction {
		t.Fatalf("system prompt is not the persona instruction: %q", eng.system)
	}
	if eng.history != 2 {
		t.Fatalf("want 2 history turns passed to engine, got %d", eng.history)
	}
	if eng.prompt != pingInstruction {
		t.Fatalf("ping prompt mismatch: %q", eng.prompt)
	}
}

func TestPing_HistoryReadFailureStillComposes(t *testing.T) {
	st := &fakeStore{persona: "accountability", failed: true}
	eng := &fakeEngine{text: "How is the goal going?"}
	c := NewComposer(st, eng, zap.NewNop())

	if got := c.Ping(context.Background(), 1); got != "How is the goal going?" {
		t.Fatalf("want engine text despite history failure, got %q", got)
	}
	if eng.history != 0 {
		t.Fatalf("want empty history, got %d turns", eng.history)
	}
}

func TestReply_NoEngineReturnsNotice(t *testing.T) {
	c := NewComposer(&fakeStore{}, nil, zap.NewNop())
	if got := c.Reply(context.Background(), 1, "hi"); got != engineUnavailableNotice {
		t.Fatalf("want unavailable notice, got %q", got)
	}
}

func TestReply_EngineFailureReturnsNotice(t *testing.T) {
	eng := &fakeEngine{err: errors.New("429")}
	c := NewComposer(&fakeStore{persona: "concise"}, eng, zap.NewNop())
	if got := c.Reply(context.Background(), 1, "hi"); got != engineUnavailableNotice {
		t.Fatalf("want unavailable notice, got %q", got)
	}
}

func TestReply_PassesUserMessageAsPrompt(t *testing.T) {
	eng := &fakeEngine{text: "Done."}
	c := NewComposer(&fakeStore{persona: "concise"}, eng, zap.NewNop())
	got := c.Reply(context.Background(), 1, "mark the task complete")
	if got != "Done." {
		t.Fatalf("want engine text, got %q", got)
	}
	if eng.prompt != "mark the task complete" {
		t.Fatalf("prompt mismatch: %q", eng.prompt)
	}
}
