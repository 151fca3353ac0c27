package eval

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/OneInX/Manifest-InX/internal/assets"
	"github.com/OneInX/Manifest-InX/internal/catalog"
	"github.com/OneInX/Manifest-InX/internal/gate"
	"github.com/OneInX/Manifest-InX/internal/rules"
	"github.com/OneInX/Manifest-InX/internal/selector"
)

type mapCatalog map[string]string

func (m mapCatalog) IDs() []string {
	var ids []string
	for id := range m {
		ids = append(ids, id)
	}
	return ids
}

func (m mapCatalog) Text(id string) (string, bool) {
	t, ok := m[id]
	return t, ok
}

func policy(t *testing.T) rules.Policy {
	t.Helper()
	b, err := fs.ReadFile(assets.FS(), assets.RulesKey)
	if err != nil {
		t.Fatal(err)
	}
	r, err := rules.Load(b)
	if err != nil {
		t.Fatal(err)
	}
	return r.Policy
}

func TestEvalPassesOnBundledCatalog(t *testing.T) {
	b, err := fs.ReadFile(assets.FS(), assets.TemplatesKey)
	if err != nil {
		t.Fatal(err)
	}
	cat, err := catalog.Load(b)
	if err != nil {
		t.Fatal(err)
	}
	g, err := gate.NewGate(cat, policy(t))
	if err != nil {
		t.Fatal(err)
	}

	h := NewEvalHarness(DefaultEvalConfig(selector.Reachable(), catalog.Size))
	result := h.Run(cat, g)

	if !result.Passed {
		t.Fatalf("expected pass, got fail: %s", result.Reason)
	}
	// 1 size + 11 reachable + 15 templates
	if len(result.Metrics) != 1+len(selector.Reachable())+catalog.Size {
		t.Fatalf("expected %d metrics, got %d", 1+len(selector.Reachable())+catalog.Size, len(result.Metrics))
	}
	if flagged := FlaggedTemplates(result); len(flagged) != 0 {
		t.Errorf("canonical templates should carry no flags, got %v", flagged)
	}
}

func TestEvalFailsOnBannedTemplate(t *testing.T) {
	cat := mapCatalog{"T01": "You should stop.", "T02": "You stop."}
	g, err := gate.NewGate(cat, policy(t))
	if err != nil {
		t.Fatal(err)
	}
	result := NewEvalHarness(DefaultEvalConfig(nil, 0)).Run(cat, g)

	if result.Passed {
		t.Fatal("expected fail on banned vocabulary")
	}
	if !strings.Contains(result.Reason, "template T01") {
		t.Errorf("reason should name T01: %s", result.Reason)
	}
}

func TestEvalFailsOnMissingRequiredID(t *testing.T) {
	cat := mapCatalog{"T01": "You stop."}
	g, err := gate.NewGate(cat, policy(t))
	if err != nil {
		t.Fatal(err)
	}
	result := NewEvalHarness(DefaultEvalConfig([]string{"T01", "T02"}, 2)).Run(cat, g)

	if result.Passed {
		t.Fatal("expected fail")
	}
	if !strings.Contains(result.Reason, "2 checks") {
		t.Errorf("expected size and coverage failures, got %s", result.Reason)
	}
}

func TestEvalFlagsBlockOnlyWhenConfigured(t *testing.T) {
	cat := mapCatalog{"T01": "We stop."}
	g, err := gate.NewGate(cat, policy(t))
	if err != nil {
		t.Fatal(err)
	}

	relaxed := NewEvalHarness(DefaultEvalConfig(nil, 0)).Run(cat, g)
	if !relaxed.Passed {
		t.Fatalf("flags should not block by default: %s", relaxed.Reason)
	}
	if got := FlaggedTemplates(relaxed); len(got) != 1 || got[0] != "template_T01" {
		t.Errorf("flagged = %v", got)
	}

	strict := DefaultEvalConfig(nil, 0)
	strict.FailOnFlags = true
	if NewEvalHarness(strict).Run(cat, g).Passed {
		t.Fatal("expected fail with FailOnFlags")
	}
}
