package netconf

import (
	"strings"
	"testing"
)

const deleteConfigRPC = `
<rpc message-id="101">
  <delete-config>
    <target>
      <startup/>
    </target>
  </delete-config>
</rpc>`

func TestParseBuildsTree(t *testing.T) {
	root, err := ParseString(deleteConfigRPC)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if root.Name != "rpc" {
		t.Fatalf("root = %q, want rpc", root.Name)
	}
	op := root.Child("delete-config")
	if op == nil {
		t.Fatalf("missing delete-config child")
	}
	tgt := op.Child("target")
	if tgt == nil || len(tgt.Children) != 1 {
		t.Fatalf("unexpected target node: %+v", tgt)
	}
	if tgt.Children[0].Name != "startup" {
		t.Fatalf("target child = %q, want startup", tgt.Children[0].Name)
	}
}

func TestParseLeafValue(t *testing.T) {
	root, err := ParseString(`<target><url>  file:///tmp/cfg.xml  </url></target>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	url := root.Child("url")
	if url == nil {
		t.Fatalf("missing url child")
	}
	if url.Value != "file:///tmp/cfg.xml" {
		t.Fatalf("url value = %q", url.Value)
	}
}

func TestParseDropsNamespacePrefixes(t *testing.T) {
	root, err := ParseString(`<nc:rpc xmlns:nc="urn:ietf:params:xml:ns:netconf:base:1.0"><nc:delete-config/></nc:rpc>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if root.Name != "rpc" || root.Child("delete-config") == nil {
		t.Fatalf("prefixed names not normalized: %+v", root)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"<rpc><unclosed></rpc>",
		"<a/><b/>",
	}
	for _, doc := range cases {
		if _, err := ParseString(doc); err == nil {
			t.Fatalf("expected parse error for %q", doc)
		}
	}
}

func TestFindPath(t *testing.T) {
	root, err := ParseString(deleteConfigRPC)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	op := root.Child("delete-config")

	nodes := FindPath(op, "/delete-config/target/*")
	if len(nodes) != 1 || nodes[0].Name != "startup" {
		t.Fatalf("wildcard lookup = %+v", nodes)
	}

	nodes = FindPath(op, "/ietf-netconf:delete-config/target/*")
	if len(nodes) != 1 || nodes[0].Name != "startup" {
		t.Fatalf("qualified lookup = %+v", nodes)
	}

	if got := FindPath(op, "/edit-config/target/*"); got != nil {
		t.Fatalf("mismatched root matched: %+v", got)
	}
	if got := FindPath(op, "/delete-config/source/*"); got != nil {
		t.Fatalf("missing segment matched: %+v", got)
	}
	if got := FindPath(nil, "/delete-config"); got != nil {
		t.Fatalf("nil node matched: %+v", got)
	}
}

func TestFindPathDeterministic(t *testing.T) {
	root, err := ParseString(deleteConfigRPC)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	op := root.Child("delete-config")
	first := FindPath(op, "/delete-config/target/*")
	second := FindPath(op, "/delete-config/target/*")
	if len(first) != len(second) || first[0] != second[0] {
		t.Fatalf("repeated lookup diverged: %+v vs %+v", first, second)
	}
}

func TestParseReader(t *testing.T) {
	root, err := Parse(strings.NewReader("<config><system><hostname>r1</hostname></system></config>"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	host := root.Child("system").Child("hostname")
	if host == nil || host.Value != "r1" {
		t.Fatalf("nested leaf = %+v", host)
	}
}
