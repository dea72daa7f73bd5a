package server_test

import (
	"bufio"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/opencode-ai/toolrun/internal/server"
	"github.com/opencode-ai/toolrun/pkg/types"
)

var _ = Describe("HTTP API", func() {
	var (
		ts      *testServer
		workDir string
		session *types.Session
	)

	BeforeEach(func() {
		ts = startTestServer()
		workDir = GinkgoT().TempDir()
		session = ts.createSession(workDir, "")
	})

	AfterEach(func() {
		ts.Close()
	})

	invoke := func(tool string, params map[string]any) *response {
		return ts.do(http.MethodPost, "/session/"+session.ID+"/invoke", server.InvokeRequest{Tool: tool, Parameters: params})
	}

	Describe("GET /health", func() {
		It("reports ok", func() {
			resp := ts.do(http.MethodGet, "/health", nil)
			Expect(resp.Status).To(Equal(http.StatusOK))
			Expect(string(resp.Body)).To(ContainSubstring(`"status":"ok"`))
		})
	})

	Describe("GET /tool", func() {
		It("lists registered tools in name order", func() {
			resp := ts.do(http.MethodGet, "/tool", nil)
			Expect(resp.Status).To(Equal(http.StatusOK))

			var descs []types.ToolDescriptor
			resp.JSON(&descs)
			names := make([]string, len(descs))
			for i, d := range descs {
				names[i] = d.Name
			}
			Expect(names).To(Equal([]string{"edit", "glob", "list", "multiedit", "read", "write"}))
		})
	})

	Describe("Session endpoints", func() {
		It("creates active sessions with ulid ids", func() {
			Expect(session.ID).To(HavePrefix("ses_"))
			Expect(session.Status).To(Equal(types.SessionActive))
			Expect(session.Directory).To(Equal(workDir))
		})

		It("rejects a missing directory field", func() {
			resp := ts.do(http.MethodPost, "/session", map[string]string{})
			Expect(resp.Status).To(Equal(http.StatusBadRequest))
			Expect(resp.Error().Code).To(Equal(server.ErrCodeInvalidRequest))
		})

		It("rejects malformed JSON", func() {
			req, err := http.NewRequest(http.MethodPost, ts.URL+"/session", strings.NewReader("{"))
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects a directory that does not exist", func() {
			resp := ts.do(http.MethodPost, "/session", server.CreateSessionRequest{Directory: filepath.Join(workDir, "missing")})
			Expect(resp.Status).To(Equal(http.StatusBadRequest))
			Expect(resp.Error().Kind).To(Equal(string(types.KindInvalidWorkingDirectory)))
			Expect(string(resp.Body)).NotTo(ContainSubstring(workDir))
		})

		It("rejects an unknown parent", func() {
			resp := ts.do(http.MethodPost, "/session", server.CreateSessionRequest{Directory: workDir, ParentID: "ses_missing"})
			Expect(resp.Status).To(Equal(http.StatusBadRequest))
			Expect(resp.Error().Kind).To(Equal(string(types.KindUnknownParent)))
		})

		It("gets and lists sessions", func() {
			resp := ts.do(http.MethodGet, "/session/"+session.ID, nil)
			Expect(resp.Status).To(Equal(http.StatusOK))

			var got types.Session
			resp.JSON(&got)
			Expect(got.ID).To(Equal(session.ID))

			other := ts.createSession(workDir, "")
			var list []types.Session
			ts.do(http.MethodGet, "/session", nil).JSON(&list)
			Expect(list).To(HaveLen(2))
			Expect(list[0].ID).To(Equal(session.ID))
			Expect(list[1].ID).To(Equal(other.ID))
		})

		It("returns 404 for unknown sessions", func() {
			resp := ts.do(http.MethodGet, "/session/ses_missing", nil)
			Expect(resp.Status).To(Equal(http.StatusNotFound))
			Expect(resp.Error().Code).To(Equal(server.ErrCodeNotFound))

			resp = ts.do(http.MethodDelete, "/session/ses_missing", nil)
			Expect(resp.Status).To(Equal(http.StatusNotFound))
		})

		It("lists children and keeps them when the parent is closed", func() {
			child := ts.createSession(workDir, session.ID)
			Expect(child.ParentID).NotTo(BeNil())
			Expect(*child.ParentID).To(Equal(session.ID))

			var children []types.Session
			ts.do(http.MethodGet, "/session/"+session.ID+"/children", nil).JSON(&children)
			Expect(children).To(HaveLen(1))
			Expect(children[0].ID).To(Equal(child.ID))

			Expect(ts.do(http.MethodDelete, "/session/"+session.ID, nil).Status).To(Equal(http.StatusOK))

			var got types.Session
			ts.do(http.MethodGet, "/session/"+child.ID, nil).JSON(&got)
			Expect(got.Status).To(Equal(types.SessionActive))
		})

		It("refuses invocations on a closed session", func() {
			Expect(ts.do(http.MethodDelete, "/session/"+session.ID, nil).Status).To(Equal(http.StatusOK))

			var got types.Session
			ts.do(http.MethodGet, "/session/"+session.ID, nil).JSON(&got)
			Expect(got.Status).To(Equal(types.SessionClosed))

			resp := invoke("list", map[string]any{})
			Expect(resp.Status).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /session/{id}/invoke", func() {
		It("writes and reads a file", func() {
			resp := invoke("write", map[string]any{"filePath": "notes/a.txt", "content": "hello\n"})
			Expect(resp.Status).To(Equal(http.StatusOK), string(resp.Body))

			var result types.ToolResult
			resp.JSON(&result)
			Expect(result.Outcome).To(Equal(types.OutcomeSuccess))
			Expect(result.CallID).To(HavePrefix("call_"))

			data, err := os.ReadFile(filepath.Join(workDir, "notes", "a.txt"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("hello\n"))

			resp = invoke("read", map[string]any{"filePath": "notes/a.txt"})
			resp.JSON(&result)
			Expect(result.Outcome).To(Equal(types.OutcomeSuccess))
			Expect(result.Payload["content"]).To(Equal("hello\n"))
		})

		It("maps an unknown tool to 400", func() {
			resp := invoke("bash", map[string]any{"command": "ls"})
			Expect(resp.Status).To(Equal(http.StatusBadRequest))
			Expect(resp.Error().Kind).To(Equal(string(types.KindUnknownTool)))
		})

		It("maps invalid parameters to 400", func() {
			resp := invoke("write", map[string]any{"filePath": "a.txt"})
			Expect(resp.Status).To(Equal(http.StatusBadRequest))
			Expect(resp.Error().Kind).To(Equal(string(types.KindInvalidParameters)))
		})

		It("maps traversal to 403 without leaking paths", func() {
			resp := invoke("write", map[string]any{"filePath": "../escape.txt", "content": "x"})
			Expect(resp.Status).To(Equal(http.StatusForbidden))
			Expect(resp.Error().Kind).To(Equal(string(types.KindPermissionDenied)))
			Expect(string(resp.Body)).NotTo(ContainSubstring(filepath.Dir(workDir)))

			_, err := os.Stat(filepath.Join(filepath.Dir(workDir), "escape.txt"))
			Expect(os.IsNotExist(err)).To(BeTrue())
		})

		It("returns execution failures with 200", func() {
			Expect(os.WriteFile(filepath.Join(workDir, "a.txt"), []byte("alpha\n"), 0644)).To(Succeed())

			resp := invoke("edit", map[string]any{"filePath": "a.txt", "oldString": "omega", "newString": "beta"})
			Expect(resp.Status).To(Equal(http.StatusOK))

			var result types.ToolResult
			resp.JSON(&result)
			Expect(result.Outcome).To(Equal(types.OutcomeFailure))
			Expect(result.Error).NotTo(BeNil())
			Expect(result.Error.Kind).To(Equal(types.KindNoMatch))
		})

		It("returns cancelled when the deadline has passed", func() {
			past := time.Now().Add(-time.Second)
			resp := ts.do(http.MethodPost, "/session/"+session.ID+"/invoke", server.InvokeRequest{
				Tool:       "write",
				Parameters: map[string]any{"filePath": "late.txt", "content": "x"},
				Deadline:   &past,
			})
			Expect(resp.Status).To(Equal(http.StatusOK))

			var result types.ToolResult
			resp.JSON(&result)
			Expect(result.Outcome).To(Equal(types.OutcomeCancelled))
			_, err := os.Stat(filepath.Join(workDir, "late.txt"))
			Expect(os.IsNotExist(err)).To(BeTrue())
		})

		It("validates the timeout", func() {
			resp := ts.do(http.MethodPost, "/session/"+session.ID+"/invoke", server.InvokeRequest{Tool: "list", TimeoutMs: -5})
			Expect(resp.Status).To(Equal(http.StatusBadRequest))
			Expect(resp.Error().Details).To(HaveKey("InvokeRequest.TimeoutMs"))
		})
	})

	Describe("POST /session/{id}/chain", func() {
		It("runs steps sequentially", func() {
			resp := ts.do(http.MethodPost, "/session/"+session.ID+"/chain", server.StepsRequest{Steps: []server.StepRequest{
				{Tool: "write", Parameters: map[string]any{"filePath": "c.txt", "content": "one\n"}},
				{Tool: "edit", Parameters: map[string]any{"filePath": "c.txt", "oldString": "one", "newString": "two"}},
				{Tool: "read", Parameters: map[string]any{"filePath": "c.txt"}},
			}})
			Expect(resp.Status).To(Equal(http.StatusOK))

			var body server.StepsResponse
			resp.JSON(&body)
			Expect(body.Results).To(HaveLen(3))
			for _, r := range body.Results {
				Expect(r.Outcome).To(Equal(types.OutcomeSuccess))
			}
			Expect(body.Results[2].Payload["content"]).To(Equal("two\n"))
		})

		It("skips steps after a failure", func() {
			resp := ts.do(http.MethodPost, "/session/"+session.ID+"/chain", server.StepsRequest{Steps: []server.StepRequest{
				{Tool: "read", Parameters: map[string]any{"filePath": "missing.txt"}},
				{Tool: "write", Parameters: map[string]any{"filePath": "after.txt", "content": "x"}},
			}})

			var body server.StepsResponse
			resp.JSON(&body)
			Expect(body.Results[0].Outcome).To(Equal(types.OutcomeFailure))
			Expect(body.Results[1].Outcome).To(Equal(types.OutcomeSkipped))
		})

		It("requires at least one step", func() {
			resp := ts.do(http.MethodPost, "/session/"+session.ID+"/chain", server.StepsRequest{})
			Expect(resp.Status).To(Equal(http.StatusBadRequest))
		})

		It("returns 404 for unknown sessions", func() {
			resp := ts.do(http.MethodPost, "/session/ses_missing/chain", server.StepsRequest{Steps: []server.StepRequest{{Tool: "list"}}})
			Expect(resp.Status).To(Equal(http.StatusNotFound))
		})
	})

	Describe("POST /session/{id}/batch", func() {
		It("runs read-only tools and rejects mutating ones", func() {
			Expect(os.WriteFile(filepath.Join(workDir, "b.txt"), []byte("b"), 0644)).To(Succeed())

			resp := ts.do(http.MethodPost, "/session/"+session.ID+"/batch", server.StepsRequest{Steps: []server.StepRequest{
				{Tool: "read", Parameters: map[string]any{"filePath": "b.txt"}},
				{Tool: "list", Parameters: map[string]any{}},
				{Tool: "write", Parameters: map[string]any{"filePath": "w.txt", "content": "x"}},
			}})
			Expect(resp.Status).To(Equal(http.StatusOK))

			var body server.StepsResponse
			resp.JSON(&body)
			Expect(body.Results).To(HaveLen(3))
			Expect(body.Results[0].Outcome).To(Equal(types.OutcomeSuccess))
			Expect(body.Results[1].Outcome).To(Equal(types.OutcomeSuccess))
			Expect(body.Results[2].Outcome).To(Equal(types.OutcomeFailure))
			Expect(body.Results[2].Error.Kind).To(Equal(types.KindInvalidParameters))
		})
	})

	Describe("POST /session/{id}/message", func() {
		It("returns tool parts", func() {
			resp := ts.do(http.MethodPost, "/session/"+session.ID+"/message", server.MessageRequest{Parts: []server.MessagePart{
				{Type: "tool", Tool: "write", Parameters: map[string]any{"filePath": "m.txt", "content": "m"}},
				{Tool: "read", Parameters: map[string]any{"filePath": "m.txt"}},
			}})
			Expect(resp.Status).To(Equal(http.StatusOK), string(resp.Body))

			var body server.MessageResponse
			resp.JSON(&body)
			Expect(body.SessionID).To(Equal(session.ID))
			Expect(body.Parts).To(HaveLen(2))
			Expect(body.Parts[0].Type).To(Equal("tool"))
			Expect(body.Parts[0].State.Status).To(Equal("completed"))
			Expect(body.Parts[1].State.Input).To(HaveKeyWithValue("filePath", "m.txt"))
		})

		It("rejects unknown part types", func() {
			resp := ts.do(http.MethodPost, "/session/"+session.ID+"/message", server.MessageRequest{Parts: []server.MessagePart{
				{Type: "text", Tool: "read"},
			}})
			Expect(resp.Status).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /metrics", func() {
		It("exposes invocation counters", func() {
			invoke("list", map[string]any{})

			resp := ts.do(http.MethodGet, "/metrics", nil)
			Expect(resp.Status).To(Equal(http.StatusOK))
			Expect(string(resp.Body)).To(ContainSubstring(`toolrun_tool_invocations_total{outcome="success",tool="list"} 1`))
		})
	})

	Describe("GET /event", func() {
		It("streams events of the requested session", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/event?sessionID="+session.ID, nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream"))

			frames := make(chan string, 32)
			go func() {
				defer GinkgoRecover()
				defer close(frames)
				scanner := bufio.NewScanner(resp.Body)
				for scanner.Scan() {
					if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
						frames <- strings.TrimPrefix(line, "data: ")
					}
				}
			}()

			Eventually(frames).Should(Receive(ContainSubstring("server.connected")))

			// Events of another session must be filtered out.
			other := ts.createSession(workDir, "")
			ts.do(http.MethodPost, "/session/"+other.ID+"/invoke", server.InvokeRequest{Tool: "list"})
			invoke("list", map[string]any{})

			// Delivery order across events is not guaranteed.
			seen := map[string]bool{}
			var foreign []string
			Eventually(func(g Gomega) {
				select {
				case frame, ok := <-frames:
					g.Expect(ok).To(BeTrue(), "stream closed")
					if !strings.Contains(frame, session.ID) {
						foreign = append(foreign, frame)
					}
					for _, t := range []string{"tool.invoked", "tool.completed"} {
						if strings.Contains(frame, `"type":"`+t+`"`) {
							seen[t] = true
						}
					}
				default:
				}
				g.Expect(seen).To(HaveLen(2))
			}, 3*time.Second, 10*time.Millisecond).Should(Succeed())
			Expect(foreign).To(BeEmpty())
		})
	})
})
