package expr

import (
	"strings"
	"testing"
)

func toolEnv(tool string, params map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"tool": tool, "params": params}
}

func TestCompile(t *testing.T) {
	env := toolEnv("", map[string]interface{}{})
	tests := []struct {
		name    string
		source  string
		wantErr string
	}{
		{name: "valid", source: `params.acl == "private"`},
		{name: "membership", source: `params.instance_type in ["ecs.g6.large"]`},
		{name: "empty", source: "  ", wantErr: "empty expression"},
		{name: "syntax", source: "tool ++ +", wantErr: "expression compile error"},
		{name: "unknown name", source: `parms.acl == "private"`, wantErr: "unknown name parms"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, err := Compile(tc.source, env)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("error = %v, want it to contain %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.Source != tc.source {
				t.Errorf("Source = %q, want %q", c.Source, tc.source)
			}
		})
	}
}

func TestEvalBool(t *testing.T) {
	c, err := Compile(`tool == "create_oss_bucket" && params.acl != "public-read-write"`, toolEnv("", map[string]interface{}{}))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		tool   string
		params map[string]interface{}
		want   bool
	}{
		{"private", "create_oss_bucket", map[string]interface{}{"acl": "private"}, true},
		{"public", "create_oss_bucket", map[string]interface{}{"acl": "public-read-write"}, false},
		{"missing acl", "create_oss_bucket", map[string]interface{}{}, true},
		{"other tool", "check_ecs_status", map[string]interface{}{"acl": "private"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EvalBool(c, toolEnv(tc.tool, tc.params))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEvalBool_NonBool(t *testing.T) {
	c, err := Compile(`params.size`, toolEnv("", map[string]interface{}{}))
	if err != nil {
		t.Fatal(err)
	}
	_, err = EvalBool(c, toolEnv("t", map[string]interface{}{"size": 40}))
	if err == nil || !strings.Contains(err.Error(), "expected bool") {
		t.Fatalf("error = %v, want expected bool", err)
	}
}

func TestEval_Nil(t *testing.T) {
	if _, err := Eval(nil, nil); err == nil {
		t.Fatal("expected error for nil expression")
	}
}
