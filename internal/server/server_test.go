package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grudai/internal/chat"
	"grudai/internal/relay"
	"grudai/internal/store"
)

// scriptedUpstream replays fixed events for every streaming turn.
type scriptedUpstream struct {
	events       []relay.Event
	completeText string
}

func (u *scriptedUpstream) Stream(ctx context.Context, model string, messages []relay.Message) <-chan relay.Event {
	out := make(chan relay.Event, len(u.events))
	for _, ev := range u.events {
		out <- ev
	}
	close(out)
	return out
}

func (u *scriptedUpstream) Complete(ctx context.Context, model string, messages []relay.Message) (string, *relay.Usage, error) {
	return u.completeText, &relay.Usage{PromptTokens: 2, CompletionTokens: 3, TotalTokens: 5}, nil
}

type testEnv struct {
	server  *httptest.Server
	store   *store.LocalStore
	userID  int64
	project *store.Project
}

func newTestEnv(t *testing.T, upstream chat.Upstream) *testEnv {
	t.Helper()

	st, err := store.NewLocalStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	userID, err := st.CreateUser("test@example.com", "Test User", "")
	require.NoError(t, err)
	project, err := st.CreateProject(userID, "Test Project", "", "You are terse.", "test-model")
	require.NoError(t, err)

	handler := New(Options{
		Store:      st,
		Chat:       chat.NewService(st, upstream),
		Auth:       NewTokenAuthenticator(map[string]int64{"test-token": userID}),
		UploadsDir: t.TempDir(),
		Version:    "test",
	})
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, store: st, userID: userID, project: project}
}

func (e *testEnv) request(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer test-token")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeData(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()

	var envelope struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.True(t, envelope.Success)
	return envelope.Data
}

func TestHealthNoAuth(t *testing.T) {
	env := newTestEnv(t, &scriptedUpstream{})

	resp, err := http.Get(env.server.URL + "/api/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data := decodeData(t, resp)
	assert.Equal(t, "ok", data["status"])
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, &scriptedUpstream{})

	resp, err := http.Get(env.server.URL + "/api/projects")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/api/projects", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestChat_StreamEventSequence(t *testing.T) {
	env := newTestEnv(t, &scriptedUpstream{events: []relay.Event{
		{Content: "Hel"},
		{Content: "lo"},
		{Done: true},
	}})

	resp := env.request(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/chat", env.project.ID),
		map[string]string{"message": "hi"})
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `data: {"content":"Hel"}`, lines[0])
	assert.Equal(t, `data: {"content":"lo"}`, lines[1])
	assert.Equal(t, `data: {"done":true}`, lines[2])

	// Both turns persisted.
	count, err := env.store.CountMessages(env.project.ID, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestChat_NonStreamEnvelope(t *testing.T) {
	env := newTestEnv(t, &scriptedUpstream{completeText: "full reply"})

	resp := env.request(t, http.MethodPost,
		fmt.Sprintf("/api/projects/%d/chat?stream=false", env.project.ID),
		map[string]string{"message": "hi"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := decodeData(t, resp)
	assert.Equal(t, "full reply", data["message"])
	usage, ok := data["usage"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 5, usage["total_tokens"])
}

func TestChat_EmptyMessageRejected(t *testing.T) {
	env := newTestEnv(t, &scriptedUpstream{})

	resp := env.request(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/chat", env.project.ID),
		map[string]string{"message": "  "})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestChat_UnknownProject(t *testing.T) {
	env := newTestEnv(t, &scriptedUpstream{})

	resp := env.request(t, http.MethodPost, "/api/projects/999/chat",
		map[string]string{"message": "hi"})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMessages_HistoryBounds(t *testing.T) {
	env := newTestEnv(t, &scriptedUpstream{})

	for i := 1; i <= 5; i++ {
		_, err := env.store.CreateMessage(env.project.ID, nil, "user", fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	resp := env.request(t, http.MethodGet,
		fmt.Sprintf("/api/projects/%d/messages?limit=2&offset=1", env.project.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := decodeData(t, resp)
	assert.EqualValues(t, 5, data["total"])

	messages, ok := data["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 2)
	first := messages[0].(map[string]interface{})
	assert.Equal(t, "m2", first["content"])
}

func TestMessages_ClearConversationScope(t *testing.T) {
	env := newTestEnv(t, &scriptedUpstream{})

	conv, err := env.store.CreateConversation(env.project.ID, "Thread")
	require.NoError(t, err)
	env.store.CreateMessage(env.project.ID, nil, "user", "keep")
	env.store.CreateMessage(env.project.ID, &conv.ID, "user", "clear")

	resp := env.request(t, http.MethodDelete,
		fmt.Sprintf("/api/projects/%d/messages?conversationId=%d", env.project.ID, conv.ID), nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	count, _ := env.store.CountMessages(env.project.ID, &conv.ID)
	assert.EqualValues(t, 0, count)
	count, _ = env.store.CountMessages(env.project.ID, nil)
	assert.EqualValues(t, 1, count)
}

func TestProjects_CRUD(t *testing.T) {
	env := newTestEnv(t, &scriptedUpstream{})

	resp := env.request(t, http.MethodPost, "/api/projects", map[string]string{
		"name":         "Second",
		"systemPrompt": "Be brief.",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := decodeData(t, resp)
	project := data["project"].(map[string]interface{})
	id := int64(project["id"].(float64))
	assert.Equal(t, "Be brief.", project["system_prompt"])

	resp = env.request(t, http.MethodPut, fmt.Sprintf("/api/projects/%d", id),
		map[string]string{"name": "Renamed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data = decodeData(t, resp)
	assert.Equal(t, "Renamed", data["project"].(map[string]interface{})["name"])

	resp = env.request(t, http.MethodGet, "/api/projects", nil)
	data = decodeData(t, resp)
	assert.Len(t, data["projects"], 2)

	resp = env.request(t, http.MethodDelete, fmt.Sprintf("/api/projects/%d", id), nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.request(t, http.MethodGet, fmt.Sprintf("/api/projects/%d", id), nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProjects_MissingNameRejected(t *testing.T) {
	env := newTestEnv(t, &scriptedUpstream{})

	resp := env.request(t, http.MethodPost, "/api/projects", map[string]string{"name": " "})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFiles_UploadAndText(t *testing.T) {
	env := newTestEnv(t, &scriptedUpstream{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="notes.txt"`)
	header.Set("Content-Type", "text/plain")
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	part.Write([]byte("reference material"))
	mw.Close()

	req, err := http.NewRequest(http.MethodPost,
		env.server.URL+fmt.Sprintf("/api/projects/%d/files", env.project.ID), &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer test-token")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := decodeData(t, resp)
	file := data["file"].(map[string]interface{})
	fileID := int64(file["id"].(float64))
	assert.Equal(t, "notes.txt", file["original_name"])
	assert.Equal(t, "text", file["extraction_method"])

	resp = env.request(t, http.MethodGet, fmt.Sprintf("/api/files/%d/text", fileID), nil)
	data = decodeData(t, resp)
	assert.Equal(t, "reference material", data["text"])

	resp = env.request(t, http.MethodDelete, fmt.Sprintf("/api/files/%d", fileID), nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFiles_DisallowedType(t *testing.T) {
	env := newTestEnv(t, &scriptedUpstream{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="run.sh"`)
	header.Set("Content-Type", "application/x-sh")
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	part.Write([]byte("#!/bin/sh"))
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost,
		env.server.URL+fmt.Sprintf("/api/projects/%d/files", env.project.ID), &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer test-token")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConversations_Lifecycle(t *testing.T) {
	env := newTestEnv(t, &scriptedUpstream{})

	resp := env.request(t, http.MethodPost,
		fmt.Sprintf("/api/projects/%d/conversations", env.project.ID),
		map[string]string{"title": "Ideas"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := decodeData(t, resp)
	conv := data["conversation"].(map[string]interface{})
	id := int64(conv["id"].(float64))
	assert.Equal(t, "Ideas", conv["title"])

	resp = env.request(t, http.MethodPut, fmt.Sprintf("/api/conversations/%d", id),
		map[string]string{"title": "Better Ideas"})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.request(t, http.MethodGet,
		fmt.Sprintf("/api/projects/%d/conversations", env.project.ID), nil)
	data = decodeData(t, resp)
	list := data["conversations"].([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, "Better Ideas", list[0].(map[string]interface{})["title"])

	resp = env.request(t, http.MethodDelete, fmt.Sprintf("/api/conversations/%d", id), nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPrompts_Lifecycle(t *testing.T) {
	env := newTestEnv(t, &scriptedUpstream{})

	resp := env.request(t, http.MethodPost,
		fmt.Sprintf("/api/projects/%d/prompts", env.project.ID),
		map[string]string{"name": "Summarize", "content": "Summarize the input."})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := decodeData(t, resp)
	prompt := data["prompt"].(map[string]interface{})
	id := int64(prompt["id"].(float64))

	resp = env.request(t, http.MethodPut, fmt.Sprintf("/api/prompts/%d", id),
		map[string]string{"content": "Summarize briefly."})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.request(t, http.MethodGet,
		fmt.Sprintf("/api/projects/%d/prompts", env.project.ID), nil)
	data = decodeData(t, resp)
	list := data["prompts"].([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, "Summarize briefly.", list[0].(map[string]interface{})["content"])

	resp = env.request(t, http.MethodDelete, fmt.Sprintf("/api/prompts/%d", id), nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
