package action

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/szaher/infraagent/internal/tools"
)

// DefaultBucketTool is the tool whose free-text payloads get bucket-name recovery.
const DefaultBucketTool = "create_oss_bucket"

// ClarifyBucketName is the final answer given when a bucket request is
// recognizable but no valid name could be recovered.
const ClarifyBucketName = "Please provide the name of the OSS bucket to create " +
	"(3-63 characters: lowercase letters, digits and hyphens; must start and end with a letter or digit)."

const finalAnswerMarker = "Final Answer:"

// actionPattern finds "Action: <name>" followed by "Action Input: <payload>";
// the payload runs to the next "Observation:" or the end of the reply.
var (
	openingFence = regexp.MustCompile("^```(?:[\\w+.-]*[ \\t]*\\r?\\n|(?i:json)\\b)?")
	closingFence = regexp.MustCompile("\\r?\\n?```$")
)

var actionPattern = regexp.MustCompile(`(?s)Action:\s*(\w+)\s*Action Input:\s*(.+?)(?:\s+Observation:|$)`)

// Matcher inspects a trimmed reply and reports a decision when it applies.
type Matcher func(reply string) (Decision, bool)

// Parser applies an ordered list of matchers; the first match wins and a
// reply no matcher claims becomes the final answer verbatim. Extract is total
// and deterministic. A Parser is safe for concurrent use.
type Parser struct {
	matchers []Matcher
}

// Option configures a Parser.
type Option func(*parserConfig)

type parserConfig struct {
	bucketTool string
	matchers   []Matcher
	custom     bool
}

// WithBucketTool names the bucket-creation tool. Defaults to DefaultBucketTool.
func WithBucketTool(name string) Option {
	return func(c *parserConfig) { c.bucketTool = name }
}

// WithMatchers replaces the default cascade.
func WithMatchers(ms ...Matcher) Option {
	return func(c *parserConfig) {
		c.matchers = ms
		c.custom = true
	}
}

// NewParser builds the default cascade: structured action (with bucket-name
// recovery), final-answer marker, bucket topic clarification.
func NewParser(opts ...Option) *Parser {
	cfg := parserConfig{bucketTool: DefaultBucketTool}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.custom {
		cfg.matchers = []Matcher{
			StructuredAction(cfg.bucketTool),
			FinalAnswer,
			BucketTopic,
		}
	}
	return &Parser{matchers: cfg.matchers}
}

// Extract classifies one model reply.
func (p *Parser) Extract(reply string) Decision {
	text := strings.TrimSpace(reply)
	for _, m := range p.matchers {
		if d, ok := m(text); ok {
			return d
		}
	}
	return Final(text)
}

// StructuredAction matches an Action/Action Input pair. A payload that
// decodes as a JSON object becomes object params. Otherwise the bucket tool's
// payload goes through bucket-name recovery and falls through when nothing
// validates, while any other tool receives the payload as opaque text.
func StructuredAction(bucketTool string) Matcher {
	return func(reply string) (Decision, bool) {
		m := actionPattern.FindStringSubmatch(reply)
		if m == nil {
			return Decision{}, false
		}
		name := strings.TrimSpace(m[1])
		payload := stripCodeFence(m[2])

		if obj, ok := decodeObject(payload); ok {
			return Action(name, tools.ObjectParams(obj)), true
		}

		if name == bucketTool {
			if bucket, ok := ExtractBucketName(payload); ok {
				return Action(name, tools.ObjectParams(map[string]interface{}{
					"bucket_name": bucket,
					"acl":         "private",
				})), true
			}
			return Decision{}, false
		}

		return Action(name, tools.TextParams(payload)), true
	}
}

// FinalAnswer matches the "Final Answer:" marker; the text after its last
// occurrence is the answer.
func FinalAnswer(reply string) (Decision, bool) {
	i := strings.LastIndex(reply, finalAnswerMarker)
	if i < 0 {
		return Decision{}, false
	}
	return Final(strings.TrimSpace(reply[i+len(finalAnswerMarker):])), true
}

// BucketTopic asks for a bucket name when the reply talks about OSS buckets
// but carried no usable action.
func BucketTopic(reply string) (Decision, bool) {
	lower := strings.ToLower(reply)
	if strings.Contains(lower, "oss") && strings.Contains(lower, "bucket") {
		return Final(ClarifyBucketName), true
	}
	return Decision{}, false
}

// stripCodeFence removes a surrounding Markdown fence, whatever its info
// string. Backticks inside the payload are left alone.
func stripCodeFence(payload string) string {
	payload = strings.TrimSpace(payload)
	payload = openingFence.ReplaceAllString(payload, "")
	payload = closingFence.ReplaceAllString(payload, "")
	return strings.TrimSpace(payload)
}

// decodeObject parses payload as a JSON object. When the whole payload is not
// valid JSON it retries with the leading object only, which recovers replies
// where the model kept writing after the closing brace.
func decodeObject(payload string) (map[string]interface{}, bool) {
	if !strings.HasPrefix(payload, "{") {
		return nil, false
	}

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &obj); err == nil {
		return nonNil(obj), true
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	obj = nil
	if err := dec.Decode(&obj); err != nil {
		return nil, false
	}
	return nonNil(obj), true
}

func nonNil(obj map[string]interface{}) map[string]interface{} {
	if obj == nil {
		return map[string]interface{}{}
	}
	return obj
}
