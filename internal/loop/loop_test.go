package loop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/szaher/infraagent/internal/llm"
	"github.com/szaher/infraagent/internal/telemetry"
	"github.com/szaher/infraagent/internal/testutil"
	"github.com/szaher/infraagent/internal/tools"
)

const bucketAction = "Thought: the user gave a bucket name.\n" +
	"Action: create_oss_bucket\n" +
	`Action Input: {"bucket_name": "test-bucket-99", "acl": "private"}`

type fakeRecorder struct {
	mu         sync.Mutex
	outcomes   []string
	iterations []int
	toolCalls  []string
}

func (r *fakeRecorder) RecordRequest(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *fakeRecorder) RecordIterations(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.iterations = append(r.iterations, n)
}

func (r *fakeRecorder) RecordToolCall(tool, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toolCalls = append(r.toolCalls, tool+":"+status)
}

func bucketTool(t *testing.T, calls *[]tools.Params) tools.Descriptor {
	t.Helper()
	var mu sync.Mutex
	return tools.Descriptor{
		Name:        "create_oss_bucket",
		Description: "Create an OSS bucket. Parameters: bucket_name, acl.",
		Invoke: func(_ context.Context, p tools.Params) (*tools.Observation, error) {
			mu.Lock()
			if calls != nil {
				*calls = append(*calls, p)
			}
			mu.Unlock()
			name, _ := p.String("bucket_name")
			return &tools.Observation{
				ResourceType: "oss",
				Status:       tools.StatusSuccess,
				ResourceID:   name,
				Message:      "OSS bucket created",
			}, nil
		},
	}
}

func failingTool() tools.Descriptor {
	return tools.Descriptor{
		Name:        "check_ecs_status",
		Description: "Check the status of an ECS instance.",
		Invoke: func(context.Context, tools.Params) (*tools.Observation, error) {
			return nil, errors.New("connection reset")
		},
	}
}

func newAgent(t *testing.T, mock *llm.MockCompleter, opts ...Option) (*Agent, *[]tools.Params) {
	t.Helper()
	var calls []tools.Params
	reg, err := tools.NewRegistry(bucketTool(t, &calls), failingTool())
	require.NoError(t, err)
	opts = append([]Option{WithLogger(testutil.DiscardLogger())}, opts...)
	return New(llm.NewGateway(mock, llm.WithLogger(testutil.DiscardLogger())), reg, opts...), &calls
}

func TestProcessRequest_CreatesBucket(t *testing.T) {
	mock := llm.NewMockCompleter(
		llm.MockResponse{Content: bucketAction},
		llm.MockResponse{Content: "Thought: done.\nFinal Answer: The OSS bucket test-bucket-99 was created successfully."},
	)
	rec := &fakeRecorder{}
	agent, calls := newAgent(t, mock, WithMetrics(rec))

	out := agent.ProcessRequest(context.Background(), "create an OSS bucket named test-bucket-99", 3)

	assert.Equal(t, "The OSS bucket test-bucket-99 was created successfully.", out)
	assert.LessOrEqual(t, len(mock.Calls()), 3)
	require.Len(t, *calls, 1)
	name, _ := (*calls)[0].String("bucket_name")
	assert.Equal(t, "test-bucket-99", name)

	second := mock.Calls()[1]
	require.Len(t, second, 4)
	assert.Equal(t, llm.RoleAssistant, second[2].Role)
	assert.Equal(t, bucketAction, second[2].Content)
	assert.Equal(t, llm.RoleUser, second[3].Role)
	assert.True(t, strings.HasPrefix(second[3].Content, "Observation: {"))
	assert.Contains(t, second[3].Content, `"resource_id":"test-bucket-99"`)
	assert.Contains(t, second[3].Content, `"request_id":"`)

	assert.Equal(t, []string{"final"}, rec.outcomes)
	assert.Equal(t, []int{2}, rec.iterations)
	assert.Equal(t, []string{"create_oss_bucket:success"}, rec.toolCalls)
}

func TestProcessRequest_SeedsConversation(t *testing.T) {
	mock := llm.NewMockCompleter(llm.MockResponse{Content: "Final Answer: hi"})
	agent, _ := newAgent(t, mock)

	agent.ProcessRequest(context.Background(), "hello", 3)

	first := mock.Calls()[0]
	require.Len(t, first, 2)
	assert.Equal(t, llm.RoleSystem, first[0].Role)
	assert.Equal(t, agent.Instructions(), first[0].Content)
	assert.Contains(t, first[0].Content, "- create_oss_bucket: Create an OSS bucket.")
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "Question: hello"}, first[1])
}

func TestProcessRequest_BudgetExhausted(t *testing.T) {
	for _, budget := range []int{1, 3, 5} {
		t.Run(fmt.Sprintf("budget=%d", budget), func(t *testing.T) {
			mock := llm.NewMockCompleter(llm.MockResponse{Content: bucketAction})
			rec := &fakeRecorder{}
			agent, calls := newAgent(t, mock, WithMetrics(rec))

			res := agent.Run(context.Background(), "create test-bucket-99", budget)

			assert.Equal(t, ExhaustedMessage, res.Output)
			assert.True(t, res.Exhausted)
			assert.Equal(t, budget, res.Iterations)
			assert.Len(t, mock.Calls(), budget)
			assert.Len(t, *calls, budget)
			assert.Len(t, res.ToolCalls, budget)
			assert.Equal(t, []string{"exhausted"}, rec.outcomes)
		})
	}
}

func TestProcessRequest_DefaultBudget(t *testing.T) {
	mock := llm.NewMockCompleter(llm.MockResponse{Content: bucketAction})
	agent, _ := newAgent(t, mock)
	assert.Equal(t, ExhaustedMessage, agent.ProcessRequest(context.Background(), "x", 0))
	assert.Len(t, mock.Calls(), DefaultMaxIterations)

	mock.Reset()
	agent, _ = newAgent(t, mock, WithMaxIterations(5))
	agent.ProcessRequest(context.Background(), "x", 0)
	assert.Len(t, mock.Calls(), 5)
	assert.Equal(t, 5, agent.MaxIterations())
}

func TestProcessRequest_ToolErrorBecomesTurn(t *testing.T) {
	mock := llm.NewMockCompleter(
		llm.MockResponse{Content: "Action: check_ecs_status\nAction Input: i-123"},
		llm.MockResponse{Content: "Final Answer: I could not check the instance."},
	)
	rec := &fakeRecorder{}
	agent, _ := newAgent(t, mock, WithMetrics(rec))

	res := agent.Run(context.Background(), "status of i-123?", 3)

	assert.Equal(t, "I could not check the instance.", res.Output)
	second := mock.Calls()[1]
	require.Len(t, second, 3, "error turns do not append the assistant reply")
	assert.Equal(t, llm.Message{
		Role:    llm.RoleUser,
		Content: "Error: executing tool check_ecs_status failed: connection reset",
	}, second[2])
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "executing tool check_ecs_status failed: connection reset", res.ToolCalls[0].Error)
	assert.Equal(t, []string{"check_ecs_status:error"}, rec.toolCalls)
}

func TestProcessRequest_PanickingTool(t *testing.T) {
	reg, err := tools.NewRegistry(tools.Descriptor{
		Name: "create_ecs_instance",
		Invoke: func(context.Context, tools.Params) (*tools.Observation, error) {
			panic("nil map")
		},
	})
	require.NoError(t, err)
	mock := llm.NewMockCompleter(
		llm.MockResponse{Content: "Action: create_ecs_instance\nAction Input: {}"},
		llm.MockResponse{Content: "Final Answer: failed"},
	)
	agent := New(llm.NewGateway(mock), reg)

	assert.Equal(t, "failed", agent.ProcessRequest(context.Background(), "make a server", 3))
	last := mock.Calls()[1][2]
	assert.True(t, strings.HasPrefix(last.Content, "Error: executing tool create_ecs_instance failed: "))
	assert.Contains(t, last.Content, "nil map")
}

func TestProcessRequest_UnknownTool(t *testing.T) {
	mock := llm.NewMockCompleter(
		llm.MockResponse{Content: "Action: delete_everything\nAction Input: {}"},
		llm.MockResponse{Content: "Final Answer: sorry"},
	)
	rec := &fakeRecorder{}
	agent, calls := newAgent(t, mock, WithMetrics(rec))

	assert.Equal(t, "sorry", agent.ProcessRequest(context.Background(), "wipe", 3))
	assert.Empty(t, *calls)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "Error: unknown tool delete_everything"}, mock.Calls()[1][2])
	assert.Equal(t, []string{"_unknown:unknown"}, rec.toolCalls)
}

func TestProcessRequest_UnknownToolNamesShareOneLabel(t *testing.T) {
	mock := llm.NewMockCompleter(
		llm.MockResponse{Content: "Action: drop_db\nAction Input: {}"},
		llm.MockResponse{Content: "Action: rm_rf\nAction Input: {}"},
		llm.MockResponse{Content: "Action: format_disk\nAction Input: {}"},
	)
	metrics := telemetry.NewMetrics()
	agent, _ := newAgent(t, mock, WithMetrics(metrics))

	assert.Equal(t, ExhaustedMessage, agent.ProcessRequest(context.Background(), "break things", 3))
	expected := `
# HELP infraagent_tool_calls_total Tool dispatches by tool and status.
# TYPE infraagent_tool_calls_total counter
infraagent_tool_calls_total{status="unknown",tool="_unknown"} 3
`
	require.NoError(t, promtestutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected), "infraagent_tool_calls_total"))
}

func TestProcessRequest_GatewayFailureIsText(t *testing.T) {
	mock := llm.NewMockCompleter(llm.MockResponse{Error: errors.New("dial tcp: connection refused")})
	agent, _ := newAgent(t, mock)

	out := agent.ProcessRequest(context.Background(), "hello", 3)
	assert.Equal(t, "Model call failed: dial tcp: connection refused", out)
	assert.Len(t, mock.Calls(), 1)
}

func TestProcessRequest_ClarifiesMissingBucketName(t *testing.T) {
	mock := llm.NewMockCompleter(llm.MockResponse{Content: "Action: create_oss_bucket\nAction Input: please create a bucket for me"})
	agent, calls := newAgent(t, mock)

	out := agent.ProcessRequest(context.Background(), "I need an OSS bucket", 3)
	assert.Contains(t, out, "Please provide the name of the OSS bucket")
	assert.Empty(t, *calls)
	assert.Len(t, mock.Calls(), 1)
}

func TestProcessRequest_ConcurrentRequestsAreIndependent(t *testing.T) {
	mock := llm.NewMockCompleter(llm.MockResponse{Content: "Final Answer: ok"})
	agent, _ := newAgent(t, mock)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.Equal(t, "ok", agent.ProcessRequest(context.Background(), fmt.Sprintf("q%d", i), 3))
		}(i)
	}
	wg.Wait()

	for _, call := range mock.Calls() {
		assert.Len(t, call, 2, "no request sees another request's turns")
	}
}

func TestConversation(t *testing.T) {
	c := NewConversation("sys", "q")
	msgs := c.Messages()
	msgs[0].Content = "mutated"
	assert.Equal(t, "sys", c.Messages()[0].Content)

	c.Append(llm.Message{Role: llm.RoleAssistant, Content: "a"}, llm.Message{Role: llm.RoleUser, Content: "b"})
	assert.Equal(t, 4, c.Len())
	assert.Equal(t, "b", c.Messages()[3].Content)
}

func TestBuildInstructions(t *testing.T) {
	var calls []tools.Params
	reg, err := tools.NewRegistry(bucketTool(t, &calls), failingTool())
	require.NoError(t, err)

	got := BuildInstructions(reg)
	assert.Contains(t, got, "Alibaba Cloud")
	idxBucket := strings.Index(got, "- create_oss_bucket:")
	idxECS := strings.Index(got, "- check_ecs_status:")
	assert.True(t, idxBucket >= 0 && idxBucket < idxECS, "tools listed in registration order")
	for _, marker := range []string{"Question:", "Thought:", "Action:", "Action Input:", "Observation:", "Final Answer:"} {
		assert.Contains(t, got, marker)
	}
	assert.Contains(t, got, "bucket_name")
}
