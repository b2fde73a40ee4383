package action

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/szaher/infraagent/internal/tools"
)

func TestExtract_StructuredAction(t *testing.T) {
	p := NewParser()

	reply := `Thought: the user wants an instance.
Action: create_ecs_instance
Action Input: {"instance_type": "ecs.g6.large", "instance_name": "web-01", "system_disk_size": 40}
Observation: [waiting]`

	d := p.Extract(reply)
	require.Equal(t, KindAction, d.Kind)
	assert.Equal(t, "create_ecs_instance", d.Name)
	assert.Equal(t, map[string]interface{}{
		"instance_type":    "ecs.g6.large",
		"instance_name":    "web-01",
		"system_disk_size": float64(40),
	}, d.Params.Object)
}

func TestExtract_CodeFencedPayload(t *testing.T) {
	reply := "Action: create_oss_bucket\nAction Input: ```json\n{\"bucket_name\": \"my-bucket-01\", \"acl\": \"private\"}\n```"

	d := NewParser().Extract(reply)
	require.Equal(t, KindAction, d.Kind)
	assert.Equal(t, "create_oss_bucket", d.Name)
	assert.Equal(t, "my-bucket-01", d.Params.Object["bucket_name"])
}

func TestExtract_FenceInfoStrings(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"uppercase", "```JSON\n{\"instance_id\": \"i-1\"}\n```"},
		{"other language", "```javascript\n{\"instance_id\": \"i-1\"}\n```"},
		{"bare fence", "```\n{\"instance_id\": \"i-1\"}\n```"},
		{"single line", "```json {\"instance_id\": \"i-1\"}```"},
		{"crlf", "```json\r\n{\"instance_id\": \"i-1\"}\r\n```"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := NewParser().Extract("Action: check_ecs_status\nAction Input: " + tc.payload)
			require.Equal(t, KindAction, d.Kind)
			require.True(t, d.Params.IsObject(), "payload left as text: %q", d.Params.Text)
			assert.Equal(t, map[string]interface{}{"instance_id": "i-1"}, d.Params.Object)
		})
	}
}

func TestExtract_BackticksInsideValuesKept(t *testing.T) {
	reply := "Action: create_ecs_instance\nAction Input: ```json\n{\"instance_name\": \"web-`01`\"}\n```"
	d := NewParser().Extract(reply)
	require.Equal(t, KindAction, d.Kind)
	assert.Equal(t, "web-`01`", d.Params.Object["instance_name"])
}

func TestExtract_QuotedBucketWord(t *testing.T) {
	d := NewParser().Extract("Action: create_oss_bucket\nAction Input: create bucket \"mydata\"")
	require.Equal(t, KindAction, d.Kind)
	assert.Equal(t, "mydata", d.Params.Object["bucket_name"])
}

func TestExtract_ActionBeatsFinalAnswer(t *testing.T) {
	reply := `Thought: I will create the bucket first and then give the Final Answer: after observing.
Action: create_oss_bucket
Action Input: {"bucket_name": "test-bucket-99"}
Observation: pending
Final Answer: the bucket test-bucket-99 was created`

	d := NewParser().Extract(reply)
	require.Equal(t, KindAction, d.Kind)
	assert.Equal(t, "test-bucket-99", d.Params.Object["bucket_name"])
}

func TestExtract_LeadingObjectRecovered(t *testing.T) {
	reply := `Action: create_ecs_instance
Action Input: {"instance_name": "web-01"} and then I will wait`

	d := NewParser().Extract(reply)
	require.Equal(t, KindAction, d.Kind)
	assert.Equal(t, map[string]interface{}{"instance_name": "web-01"}, d.Params.Object)
}

func TestExtract_BucketTextFallback(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"chinese phrasing", `创建名称为 "my-bucket-01" 的Bucket`},
		{"broken json", `{"bucket_name": "my-bucket-01", acl: private`},
		{"single quotes", `{'bucket_name': 'my-bucket-01'}`},
		{"bare", `my-bucket-01`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := NewParser().Extract("Action: create_oss_bucket\nAction Input: " + tc.input)
			require.Equal(t, KindAction, d.Kind)
			assert.Equal(t, "create_oss_bucket", d.Name)
			assert.Equal(t, map[string]interface{}{
				"bucket_name": "my-bucket-01",
				"acl":         "private",
			}, d.Params.Object)
		})
	}
}

func TestExtract_BucketUnrecoverable(t *testing.T) {
	p := NewParser()

	// Falls through to the topic clarification; no name is synthesized.
	d := p.Extract("Action: create_oss_bucket\nAction Input: a private bucket for logs")
	require.Equal(t, KindFinal, d.Kind)
	assert.Equal(t, ClarifyBucketName, d.Content)

	// Falls through to the final-answer marker when one is present.
	d = p.Extract("Action: create_oss_bucket\nAction Input: please pick one\nFinal Answer: which name should I use?")
	require.Equal(t, KindFinal, d.Kind)
	assert.Equal(t, "which name should I use?", d.Content)
}

func TestExtract_CustomBucketTool(t *testing.T) {
	p := NewParser(WithBucketTool("make_bucket"))
	d := p.Extract("Action: make_bucket\nAction Input: named store-01")
	require.Equal(t, KindAction, d.Kind)
	assert.Equal(t, "store-01", d.Params.Object["bucket_name"])

	// The default bucket tool is now an ordinary tool and receives the text.
	d = p.Extract("Action: create_oss_bucket\nAction Input: named store-01")
	require.Equal(t, KindAction, d.Kind)
	assert.False(t, d.Params.IsObject())
	assert.Equal(t, "named store-01", d.Params.Text)
}

func TestExtract_OpaquePassThrough(t *testing.T) {
	d := NewParser().Extract("Action: check_ecs_status\nAction Input: i-bp1abcdef\nObservation:")
	require.Equal(t, KindAction, d.Kind)
	assert.Equal(t, "check_ecs_status", d.Name)
	assert.False(t, d.Params.IsObject())
	assert.Equal(t, "i-bp1abcdef", d.Params.Text)
}

func TestExtract_FinalAnswer(t *testing.T) {
	reply := "Thought: done\nFinal Answer: first\nmore thinking\nFinal Answer:  The bucket is ready. "
	d := NewParser().Extract(reply)
	require.Equal(t, KindFinal, d.Kind)
	assert.Equal(t, "The bucket is ready.", d.Content)
}

func TestExtract_TopicSniff(t *testing.T) {
	d := NewParser().Extract("I can create an OSS Bucket for you.")
	require.Equal(t, KindFinal, d.Kind)
	assert.Equal(t, ClarifyBucketName, d.Content)
}

func TestExtract_Default(t *testing.T) {
	for _, reply := range []string{"  Hello there.  ", "", "Action: no input here", "Model call failed: timeout"} {
		d := NewParser().Extract(reply)
		require.Equal(t, KindFinal, d.Kind)
		assert.Equal(t, strings.TrimSpace(reply), d.Content)
	}
}

func TestExtract_CustomMatchers(t *testing.T) {
	always := func(string) (Decision, bool) { return Action("noop", tools.TextParams("")), true }
	d := NewParser(WithMatchers(always)).Extract("Final Answer: ignored")
	assert.Equal(t, KindAction, d.Kind)

	d = NewParser(WithMatchers()).Extract("Action: x\nAction Input: {}")
	assert.Equal(t, KindFinal, d.Kind, "an empty cascade degrades to the raw text")
}

func TestMatchers_Individually(t *testing.T) {
	_, ok := StructuredAction(DefaultBucketTool)("Final Answer: nothing to do")
	assert.False(t, ok)

	_, ok = FinalAnswer("no marker")
	assert.False(t, ok)

	_, ok = BucketTopic("an ECS instance")
	assert.False(t, ok)

	d, ok := StructuredAction(DefaultBucketTool)("Action: create_ecs_instance\nAction Input: {}")
	require.True(t, ok)
	assert.True(t, d.Params.IsObject())
	assert.Empty(t, d.Params.Object)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "final", KindFinal.String())
	assert.Equal(t, "action", KindAction.String())
	assert.Equal(t, "kind(7)", Kind(7).String())
}
