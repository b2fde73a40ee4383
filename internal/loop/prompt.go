package loop

import (
	"strings"

	"github.com/szaher/infraagent/internal/tools"
)

// BuildInstructions renders the system message: role, available tools in
// registration order, operating rules and the reply format the action
// parser understands.
func BuildInstructions(reg *tools.Registry) string {
	var b strings.Builder
	b.WriteString("You are a cloud infrastructure operations assistant responsible for automated delivery of Alibaba Cloud resources.\n\n")

	b.WriteString("Available tools:\n")
	b.WriteString(reg.Describe())
	b.WriteString("\n\n")

	b.WriteString(`Rules:
- To create an OSS bucket the user must supply bucket_name; never invent one. If it is missing, ask the user for it in a Final Answer.
- bucket_name must be globally unique and use 3-63 characters: lowercase letters, digits and hyphens, starting and ending with a letter or digit.
- Pass tool parameters as a JSON object.
- Do not assume the result of an operation; wait for the actual Observation.

Response format:
Question: the user's input
Thought: analyse what is needed
Action: the tool name
Action Input: {"bucket_name": "bucket name", "acl": "private"}
Observation: [wait for the actual result]
Final Answer: the final answer, based on the actual results

Start handling the user's request now:`)
	return b.String()
}
