package config

import (
	"reflect"
	"strings"
	"testing"
)

var readCases = []struct {
	name string
	cfg  string
	tree []Node
	fail bool
}{
	{
		"single directive without args",
		`a`,
		[]Node{{Name: "a", File: "test", Line: 1}},
		false,
	},
	{
		"single directive with args",
		`a a1 a2`,
		[]Node{{Name: "a", Args: []string{"a1", "a2"}, File: "test", Line: 1}},
		false,
	},
	{
		"two directives on separate lines",
		"a\nb b1",
		[]Node{
			{Name: "a", File: "test", Line: 1},
			{Name: "b", Args: []string{"b1"}, File: "test", Line: 2},
		},
		false,
	},
	{
		"comment strips rest of line",
		"a a1 # trailing comment\nb",
		[]Node{
			{Name: "a", Args: []string{"a1"}, File: "test", Line: 1},
			{Name: "b", File: "test", Line: 2},
		},
		false,
	},
	{
		"quoted argument preserves internal spaces",
		`a "hello world" b`,
		[]Node{{Name: "a", Args: []string{"hello world", "b"}, File: "test", Line: 1}},
		false,
	},
	{
		"block with children",
		"a {\n\tc1\n\tc2 x\n}",
		[]Node{
			{
				Name: "a",
				Children: []Node{
					{Name: "c1", File: "test", Line: 2},
					{Name: "c2", Args: []string{"x"}, File: "test", Line: 3},
				},
				File: "test",
				Line: 1,
			},
		},
		false,
	},
	{
		"nested blocks",
		"outer {\n\tinner {\n\t\tleaf v\n\t}\n}",
		[]Node{
			{
				Name: "outer",
				Children: []Node{
					{
						Name: "inner",
						Children: []Node{
							{Name: "leaf", Args: []string{"v"}, File: "test", Line: 3},
						},
						File: "test",
						Line: 2,
					},
				},
				File: "test",
				Line: 1,
			},
		},
		false,
	},
	{
		"empty block",
		"a { }",
		[]Node{{Name: "a", File: "test", Line: 1}},
		false,
	},
	{
		"unclosed block",
		"a {\n\tc1",
		nil,
		true,
	},
	{
		"unmatched closing brace",
		"a }",
		nil,
		true,
	},
	{
		"unterminated quoted string",
		`a "unterminated`,
		nil,
		true,
	},
}

func TestRead(t *testing.T) {
	for _, tc := range readCases {
		t.Run(tc.name, func(t *testing.T) {
			tree, err := Read(strings.NewReader(tc.cfg), "test")
			if tc.fail {
				if err == nil {
					t.Fatalf("expected failure, got tree %+v", tree)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected failure: %v", err)
			}
			if !reflect.DeepEqual(tc.tree, tree) {
				t.Fatalf("tree mismatch\nwant: %+v\ngot:  %+v", tc.tree, tree)
			}
		})
	}
}

func TestNodeErrIncludesLocation(t *testing.T) {
	n := Node{File: "lbbsd.conf", Line: 7}
	err := NodeErr(n, "bad directive %q", "foo")
	want := `lbbsd.conf:7: bad directive "foo"`
	if err.Error() != want {
		t.Fatalf("NodeErr = %q, want %q", err.Error(), want)
	}
}

func TestNodeErrWithoutFile(t *testing.T) {
	err := NodeErr(Node{}, "bad directive")
	if err.Error() != "bad directive" {
		t.Fatalf("NodeErr = %q, want %q", err.Error(), "bad directive")
	}
}
