package chromepage

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"alpha-volume-bot/internal/page"
)

func element(t *testing.T, html, selector string) page.Element {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}
	sel := doc.Find(selector)
	if sel.Length() == 0 {
		t.Fatalf("Expected %s in fixture", selector)
	}
	return page.NewElement(sel.First())
}

func TestScriptsQuotePaths(t *testing.T) {
	path := `html > body:nth-child(2) > input[role="slider"]`
	el := page.Element{Path: path}

	for name, script := range map[string]string{
		"click": clickScript(el),
		"set":   setValueScript(el, `1"0`),
		"value": valueScript(path),
	} {
		if !strings.Contains(script, `document.querySelector("html > body:nth-child(2) > input[role=\"slider\"]")`) {
			t.Errorf("%s: expected JSON-quoted selector, got %s", name, script)
		}
	}

	if !strings.Contains(setValueScript(el, `1"0`), `setter.call(el, "1\"0")`) {
		t.Error("Expected value to be JSON-quoted")
	}
}

func TestScriptsCarryFingerprint(t *testing.T) {
	buy := element(t, `<html><body><div><button id="buy">  买入
	ALPHA </button></div></body></html>`, "#buy")

	script := clickScript(buy)
	if !strings.Contains(script, `const fp = {"tag":"button","id":"buy","text":"买入 ALPHA"};`) {
		t.Errorf("Expected button fingerprint in click script, got %s", script)
	}
	if !strings.Contains(script, `return "changed"`) || !strings.Contains(script, `return "missing"`) {
		t.Errorf("Expected changed and missing results, got %s", script)
	}
	if strings.Index(script, `return "changed"`) > strings.Index(script, "el.click()") {
		t.Error("Expected the fingerprint check before the click")
	}
}

func TestSetValueFocusesClearsAndBlurs(t *testing.T) {
	price := element(t, `<html><body><input id="limitPrice" value="1.2"/></body></html>`, "#limitPrice")
	script := setValueScript(price, "1.5")

	steps := []string{
		`"tag":"input","id":"limitPrice"`,
		"el.focus();",
		`setter.call(el, "");`,
		`setter.call(el, "1.5");`,
		`new Event("change"`,
		"el.blur();",
	}
	last := -1
	for _, step := range steps {
		i := strings.Index(script, step)
		if i < 0 {
			t.Fatalf("Expected %q in script, got %s", step, script)
		}
		if i < last {
			t.Errorf("Expected %q after the previous step", step)
		}
		last = i
	}
}
