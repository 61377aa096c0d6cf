package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSigner struct{}

func (fakeSigner) Address() string { return "eth:00112233445566778899aabbccddeeff00112233" }

func (fakeSigner) SignMessage(message string) (string, error) {
	return "0xdeadbeef", nil
}

func newTestSession(t *testing.T, handler http.Handler) *Session {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "eth:00112233445566778899aabbccddeeff00112233", req.User)
		assert.Equal(t, "0xdeadbeef", req.Signature)
		assert.NotEmpty(t, req.Timestamp)
		json.NewEncoder(w).Encode(loginResponse{Token: "session-token"})
	})
	mux.Handle("/", handler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	session, err := Login(context.Background(), srv.URL, "manager.xnode.local", fakeSigner{})
	require.NoError(t, err)
	return session
}

func TestLoginSendsBearerToken(t *testing.T) {
	session := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer session-token", r.Header.Get("Authorization"))
		w.Write([]byte(`[]`))
	}))

	_, err := session.ListProcesses(context.Background(), "container:miniapp-factory-coder")
	require.NoError(t, err)
}

func TestSetContainerConfig(t *testing.T) {
	session := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/config/container/miniapp-factory-coder", r.URL.Path)

		var change ContainerChange
		require.NoError(t, json.NewDecoder(r.Body).Decode(&change))
		assert.Contains(t, change.Settings.Flake, "nixosConfigurations")
		assert.Equal(t, []int{0}, change.Settings.NvidiaGPUs)

		json.NewEncoder(w).Encode(requestIDResponse{RequestID: 42})
	}))

	network := "containernet"
	id, err := session.SetContainerConfig(context.Background(), "miniapp-factory-coder", ContainerChange{
		Settings: ContainerSettings{
			Flake:      `{ outputs = inputs: { nixosConfigurations.container = {}; }; }`,
			Network:    &network,
			NvidiaGPUs: []int{0},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(42), id)
}

func TestWriteFileEncodesContentAsByteArray(t *testing.T) {
	session := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req writeFileRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "/var/lib/miniapp-factory-coder/assignment.json", req.Path)
		assert.Equal(t, rawBytes("hi"), req.Content)
	}))

	err := session.WriteFile(context.Background(),
		"container:miniapp-factory-coder", "/var/lib/miniapp-factory-coder/assignment.json", []byte("hi"))
	require.NoError(t, err)
}

func TestReadFileContentUnion(t *testing.T) {
	session := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/path", r.URL.Query().Get("path"))
		w.Write([]byte(`{"content": {"UTF8": {"output": "{\"git_hash\":\"abc\"}"}}}`))
	}))

	content, err := session.ReadFile(context.Background(), "host", "/path")
	require.NoError(t, err)

	text, err := content.Text()
	require.NoError(t, err)
	assert.Equal(t, `{"git_hash":"abc"}`, text)
}

func TestReadFileBinaryContentRejectedAsText(t *testing.T) {
	content := FileContent{Bytes: &BytesContent{Output: rawBytes{0x00, 0xff}}}
	_, err := content.Text()
	assert.Error(t, err)
}

func TestRequestInfoStates(t *testing.T) {
	responses := map[string]string{
		"/request/1": `{"result": null}`,
		"/request/2": `{"result": {"Success": {"body": "done"}}}`,
		"/request/3": `{"result": {"Failure": {"error": "rebuild failed"}}}`,
	}
	session := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(responses[r.URL.Path]))
	}))

	pending, err := session.RequestInfo(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, pending.Succeeded())

	success, err := session.RequestInfo(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, success.Succeeded())
	assert.Equal(t, "done", success.Success.Body)

	failure, err := session.RequestInfo(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, failure.Succeeded())
	assert.Equal(t, "rebuild failed", failure.Failure.Error)
}

func TestEntityEncoding(t *testing.T) {
	perms := []Permission{
		{GrantedTo: UserEntity(993), Read: true},
		{GrantedTo: GroupEntity(991)},
		{GrantedTo: AnyEntity()},
	}

	data, err := json.Marshal(perms)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"granted_to": {"User": 993}, "read": true, "write": false, "execute": false},
		{"granted_to": {"Group": 991}, "read": false, "write": false, "execute": false},
		{"granted_to": "Any", "read": false, "write": false, "execute": false}
	]`, string(data))

	var decoded []Permission
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, perms, decoded)
}

func TestExecuteProcessPath(t *testing.T) {
	session := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/miniapp-factory-coder.service"))

		var req executeProcessRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, ProcessStart, req.Command)
	}))

	err := session.ExecuteProcess(context.Background(),
		"container:miniapp-factory-coder", "miniapp-factory-coder.service", ProcessStart)
	require.NoError(t, err)
}

func TestAgentErrorSurfacesStatus(t *testing.T) {
	session := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such scope", http.StatusNotFound)
	}))

	_, err := session.Users(context.Background(), "container:missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
