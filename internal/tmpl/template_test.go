package tmpl

import (
	"strings"
	"testing"
)

// TestScenario3BootTemplate reproduces the literal rendering example.
func TestScenario3BootTemplate(t *testing.T) {
	r := NewRenderer()
	src := "#!ipxe\nkernel http://{{host}}:{{port}}/iso/{{release}}/casper/vmlinuz ip=dhcp\ninitrd http://{{host}}:{{port}}/iso/{{release}}/casper/initrd\nboot\n"
	ctx := map[string]string{"host": "10.0.0.1", "port": "8080", "release": "ubuntu-22.04"}

	out, err := r.Render(src, ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := "#!ipxe\nkernel http://10.0.0.1:8080/iso/ubuntu-22.04/casper/vmlinuz ip=dhcp\ninitrd http://10.0.0.1:8080/iso/ubuntu-22.04/casper/initrd\nboot\n"
	if string(out) != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestIfElseControlTag(t *testing.T) {
	r := NewRenderer()
	src := "{% if automation %}automation={{automation}}{% else %}no automation{% endif %}"

	out, err := r.Render(src, map[string]string{"automation": "cloud"})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "automation=cloud" {
		t.Fatalf("got %q", out)
	}

	out, err = r.Render(src, map[string]string{})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "no automation" {
		t.Fatalf("got %q", out)
	}
}

func TestCommentStripped(t *testing.T) {
	r := NewRenderer()
	out, err := r.Render("before{# this is dropped #}after", nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "beforeafter" {
		t.Fatalf("got %q", out)
	}
}

func TestUndefinedNameRendersEmpty(t *testing.T) {
	r := NewRenderer()
	out, err := r.Render("[{{missing}}]", map[string]string{})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "[]" {
		t.Fatalf("got %q", out)
	}
}

func TestSyntaxErrorSurfacesAsTemplateKind(t *testing.T) {
	r := NewRenderer()
	_, err := r.Render("{{ not a valid expression }}", nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "template:") {
		t.Fatalf("expected a Template-kind error, got %v", err)
	}
}

func TestSprigFunctionAvailable(t *testing.T) {
	r := NewRenderer()
	out, err := r.Render("{{ hostname | upper }}", map[string]string{"hostname": "web01"})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "WEB01" {
		t.Fatalf("got %q", out)
	}
}
