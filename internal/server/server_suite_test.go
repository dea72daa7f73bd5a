package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/opencode-ai/toolrun/internal/executor"
	"github.com/opencode-ai/toolrun/internal/server"
	"github.com/opencode-ai/toolrun/pkg/types"
)

func TestServer(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Server Suite")
}

// testServer is an httptest server in front of a fresh runtime.
type testServer struct {
	*httptest.Server
	runtime *executor.Runtime
}

func startTestServer() *testServer {
	cfg := &types.Config{Storage: &types.StorageConfig{Disabled: true}}
	rt, err := executor.NewRuntime(context.Background(), cfg, executor.RuntimeOptions{})
	Expect(err).NotTo(HaveOccurred())

	srv := server.New(server.DefaultConfig(), rt)
	return &testServer{Server: httptest.NewServer(srv.Router()), runtime: rt}
}

// response is a decoded HTTP response.
type response struct {
	Status int
	Body   []byte
}

func (r *response) JSON(v any) {
	ExpectWithOffset(1, json.Unmarshal(r.Body, v)).To(Succeed(), string(r.Body))
}

func (r *response) Error() server.ErrorDetail {
	var body server.ErrorResponse
	ExpectWithOffset(1, json.Unmarshal(r.Body, &body)).To(Succeed(), string(r.Body))
	return body.Error
}

func (ts *testServer) do(method, path string, body any) *response {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	return &response{Status: resp.StatusCode, Body: data}
}

func (ts *testServer) createSession(directory, parentID string) *types.Session {
	resp := ts.do(http.MethodPost, "/session", server.CreateSessionRequest{Directory: directory, ParentID: parentID})
	ExpectWithOffset(1, resp.Status).To(Equal(http.StatusCreated), string(resp.Body))

	var session types.Session
	resp.JSON(&session)
	return &session
}
