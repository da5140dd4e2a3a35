package store

import (
	"testing"
)

// newTestStore creates an in-memory store with one user and one project.
func newTestStore(t *testing.T) (*LocalStore, int64, *Project) {
	t.Helper()

	store, err := NewLocalStore(":memory:")
	if err != nil {
		t.Fatalf("Failed to create local store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	userID, err := store.CreateUser("test@example.com", "Test User", "")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	project, err := store.CreateProject(userID, "Test Project", "desc", "You are terse.", "test-model")
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	return store, userID, project
}

func TestProjectDefaults(t *testing.T) {
	store, userID, _ := newTestStore(t)

	project, err := store.CreateProject(userID, "Bare", "", "", "")
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	if project.SystemPrompt != "You are a helpful assistant." {
		t.Errorf("Expected default system prompt, got %q", project.SystemPrompt)
	}
	if project.Model != "openai/gpt-3.5-turbo" {
		t.Errorf("Expected default model, got %q", project.Model)
	}
}

func TestProjectOwnerScoping(t *testing.T) {
	store, userID, project := newTestStore(t)

	otherID, err := store.CreateUser("other@example.com", "Other", "")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if _, err := store.GetProject(userID, project.ID); err != nil {
		t.Fatalf("Owner lookup failed: %v", err)
	}

	if _, err := store.GetProject(otherID, project.ID); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound for foreign owner, got %v", err)
	}
	if err := store.DeleteProject(otherID, project.ID); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound deleting foreign project, got %v", err)
	}
}

func TestUpdateProjectKeepsUnsetFields(t *testing.T) {
	store, userID, project := newTestStore(t)

	updated, err := store.UpdateProject(userID, project.ID, "Renamed", "", "", "")
	if err != nil {
		t.Fatalf("UpdateProject failed: %v", err)
	}

	if updated.Name != "Renamed" {
		t.Errorf("Expected renamed project, got %q", updated.Name)
	}
	if updated.SystemPrompt != "You are terse." {
		t.Errorf("Expected system prompt preserved, got %q", updated.SystemPrompt)
	}
	if updated.Model != "test-model" {
		t.Errorf("Expected model preserved, got %q", updated.Model)
	}
}

func TestMessageOrderingAndScope(t *testing.T) {
	store, _, project := newTestStore(t)

	conv, err := store.CreateConversation(project.ID, "Thread")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	// Default thread.
	for _, content := range []string{"d1", "d2"} {
		if _, err := store.CreateMessage(project.ID, nil, "user", content); err != nil {
			t.Fatalf("CreateMessage failed: %v", err)
		}
	}
	// Named conversation.
	for _, content := range []string{"c1", "c2", "c3"} {
		if _, err := store.CreateMessage(project.ID, &conv.ID, "user", content); err != nil {
			t.Fatalf("CreateMessage failed: %v", err)
		}
	}

	defaults, err := store.ListMessages(project.ID, nil, 10, 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(defaults) != 2 || defaults[0].Content != "d1" || defaults[1].Content != "d2" {
		t.Errorf("Unexpected default thread messages: %+v", defaults)
	}

	scoped, err := store.ListMessages(project.ID, &conv.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(scoped) != 3 || scoped[0].Content != "c1" || scoped[2].Content != "c3" {
		t.Errorf("Unexpected conversation messages: %+v", scoped)
	}

	count, err := store.CountMessages(project.ID, &conv.ID)
	if err != nil {
		t.Fatalf("CountMessages failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 messages in conversation, got %d", count)
	}
}

func TestRecentMessagesExcludesAndReverses(t *testing.T) {
	store, _, project := newTestStore(t)

	var ids []int64
	for _, content := range []string{"m1", "m2", "m3", "m4"} {
		id, err := store.CreateMessage(project.ID, nil, "user", content)
		if err != nil {
			t.Fatalf("CreateMessage failed: %v", err)
		}
		ids = append(ids, id)
	}

	// Exclude the newest message, as the turn protocol does with the
	// just-persisted user turn.
	recent, err := store.RecentMessages(project.ID, nil, ids[3], 2)
	if err != nil {
		t.Fatalf("RecentMessages failed: %v", err)
	}

	if len(recent) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(recent))
	}
	// Most recent first.
	if recent[0].Content != "m3" || recent[1].Content != "m2" {
		t.Errorf("Unexpected recent order: %q, %q", recent[0].Content, recent[1].Content)
	}
}

func TestDeleteMessagesScope(t *testing.T) {
	store, _, project := newTestStore(t)

	conv, _ := store.CreateConversation(project.ID, "Thread")
	store.CreateMessage(project.ID, nil, "user", "keep")
	store.CreateMessage(project.ID, &conv.ID, "user", "clear")

	if err := store.DeleteMessages(project.ID, &conv.ID); err != nil {
		t.Fatalf("DeleteMessages failed: %v", err)
	}

	count, _ := store.CountMessages(project.ID, &conv.ID)
	if count != 0 {
		t.Errorf("Expected conversation cleared, got %d messages", count)
	}
	count, _ = store.CountMessages(project.ID, nil)
	if count != 1 {
		t.Errorf("Expected default thread untouched, got %d messages", count)
	}
}

func TestDeleteConversationCascades(t *testing.T) {
	store, userID, project := newTestStore(t)

	conv, _ := store.CreateConversation(project.ID, "Thread")
	store.CreateMessage(project.ID, &conv.ID, "user", "gone")

	if err := store.DeleteConversation(conv.ID); err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}

	count, _ := store.CountMessages(project.ID, &conv.ID)
	if count != 0 {
		t.Errorf("Expected cascade delete of messages, got %d", count)
	}

	if _, err := store.GetConversationForUser(userID, conv.ID); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestConversationListMetadata(t *testing.T) {
	store, _, project := newTestStore(t)

	conv, _ := store.CreateConversation(project.ID, "")
	if conv.Title != "New Chat" {
		t.Errorf("Expected default title 'New Chat', got %q", conv.Title)
	}

	store.CreateMessage(project.ID, &conv.ID, "user", "question")
	store.CreateMessage(project.ID, &conv.ID, "assistant", "answer")

	list, err := store.ListConversations(project.ID)
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("Expected 1 conversation, got %d", len(list))
	}
	if list[0].MessageCount != 2 {
		t.Errorf("Expected message_count 2, got %d", list[0].MessageCount)
	}
	if list[0].LastMessage != "answer" {
		t.Errorf("Expected last message 'answer', got %q", list[0].LastMessage)
	}
}

func TestPromptCRUD(t *testing.T) {
	store, userID, project := newTestStore(t)

	prompt, err := store.CreatePrompt(project.ID, "Summarize", "Summarize the input.")
	if err != nil {
		t.Fatalf("CreatePrompt failed: %v", err)
	}

	got, err := store.GetPrompt(project.ID, prompt.ID)
	if err != nil {
		t.Fatalf("GetPrompt failed: %v", err)
	}
	if got.Content != "Summarize the input." {
		t.Errorf("Unexpected content: %q", got.Content)
	}

	if err := store.UpdatePrompt(prompt.ID, "", "Summarize briefly."); err != nil {
		t.Fatalf("UpdatePrompt failed: %v", err)
	}
	got, _ = store.GetPromptForUser(userID, prompt.ID)
	if got.Name != "Summarize" {
		t.Errorf("Expected name preserved, got %q", got.Name)
	}
	if got.Content != "Summarize briefly." {
		t.Errorf("Expected updated content, got %q", got.Content)
	}

	if err := store.DeletePrompt(prompt.ID); err != nil {
		t.Fatalf("DeletePrompt failed: %v", err)
	}
	if _, err := store.GetPrompt(project.ID, prompt.ID); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestFileStorage(t *testing.T) {
	store, userID, project := newTestStore(t)

	text := "extracted body"
	file, err := store.CreateFile(project.ID, "abc.txt", "notes.txt", "text/plain", 14, &text, "text")
	if err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}

	got, err := store.GetFile(project.ID, file.ID)
	if err != nil {
		t.Fatalf("GetFile failed: %v", err)
	}
	if got.ExtractedText == nil || *got.ExtractedText != text {
		t.Errorf("Unexpected extracted text: %v", got.ExtractedText)
	}
	if got.ExtractionMethod != "text" {
		t.Errorf("Expected method 'text', got %q", got.ExtractionMethod)
	}

	// Binary file with no extractable text.
	img, err := store.CreateFile(project.ID, "img.png", "img.png", "image/png", 1024, nil, "unsupported")
	if err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}
	got, _ = store.GetFileForUser(userID, img.ID)
	if got.ExtractedText != nil {
		t.Errorf("Expected nil extracted text for binary file, got %v", *got.ExtractedText)
	}

	files, err := store.ListFiles(project.ID)
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("Expected 2 files, got %d", len(files))
	}

	if err := store.DeleteFile(file.ID); err != nil {
		t.Fatalf("DeleteFile failed: %v", err)
	}
	if _, err := store.GetFile(project.ID, file.ID); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestUserLookup(t *testing.T) {
	store, userID, _ := newTestStore(t)

	user, err := store.GetUser(userID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user.Email != "test@example.com" {
		t.Errorf("Unexpected email: %q", user.Email)
	}

	if _, err := store.GetUserByEmail("missing@example.com"); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
