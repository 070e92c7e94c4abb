package chat

import (
	"strings"
	"testing"

	"songbook/internal/archive"
	"songbook/internal/lyrics"
	"songbook/pkg/models"
)

type fakeClient struct {
	reply string
	err   error
	calls int
}

func (f *fakeClient) Send(messages []models.ChatMessage) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func TestConversationSay(t *testing.T) {
	client := &fakeClient{reply: "try a minor chord"}
	conv := NewConversation(client, "You help write songs.")

	reply, err := conv.Say("what next?")
	if err != nil {
		t.Fatalf("say: %v", err)
	}
	if reply != "try a minor chord" {
		t.Errorf("reply: got %q", reply)
	}

	msgs := conv.Messages()
	if len(msgs) != 3 { // system, user, assistant
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[1].Role() != "user" || msgs[2].Role() != "assistant" {
		t.Errorf("unexpected roles: %s, %s", msgs[1].Role(), msgs[2].Role())
	}
}

func TestSayRollsBackOnError(t *testing.T) {
	client := &fakeClient{err: ErrNetwork}
	conv := NewConversation(client, "")

	if _, err := conv.Say("hello?"); err == nil {
		t.Fatal("expected error")
	}
	if len(conv.Messages()) != 0 {
		t.Errorf("failed send must not leave the user message behind, got %d", len(conv.Messages()))
	}
}

func TestFinishArchivesTranscript(t *testing.T) {
	root := t.TempDir()
	lyricsMgr := lyrics.NewManager(root)
	mgr := archive.NewManager(root, lyricsMgr, nil)
	p := models.NewProject("Session")

	client := &fakeClient{reply: "rhyme it with shiver"}
	conv := NewConversation(client, "system prompt")
	if _, err := conv.Say("rhyme river"); err != nil {
		t.Fatalf("say: %v", err)
	}

	if err := conv.Finish(mgr, p); err != nil {
		t.Fatalf("finish: %v", err)
	}
	entries := p.Archive.OfKind(models.KindConversation)
	if len(entries) != 1 {
		t.Fatalf("expected one conversation entry, got %d", len(entries))
	}
	if !strings.HasSuffix(entries[0].FilePath, ".txt") {
		t.Errorf("transcript must be text, got %s", entries[0].FilePath)
	}
}

func TestFinishSkipsEmptyConversation(t *testing.T) {
	root := t.TempDir()
	lyricsMgr := lyrics.NewManager(root)
	mgr := archive.NewManager(root, lyricsMgr, nil)
	p := models.NewProject("Silence")

	conv := NewConversation(&fakeClient{}, "")
	if err := conv.Finish(mgr, p); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if p.Archive.Len() != 0 {
		t.Errorf("empty conversation must not archive, got %d", p.Archive.Len())
	}
}
