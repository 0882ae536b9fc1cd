package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/caardbot/caard/internal/types"
)

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder("America/Argentina/Buenos_Aires")
	if err != nil {
		t.Fatalf("NewBuilder returned error: %v", err)
	}
	return b
}

func TestBuildIncludesCharacterFields(t *testing.T) {
	b := newTestBuilder(t)
	got := b.Build(Input{
		Character: &types.Character{
			Name:        "Aria",
			Age:         "23",
			Gender:      "female",
			Appearance:  "silver hair",
			Personality: "playful",
			Scenario:    "a seaside cafe",
			Goal:        "keep the user company",
		},
		Now: time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC),
	})

	for _, want := range []string{
		"You are roleplaying as Aria",
		"- Name: Aria.",
		"- Age: 23.",
		"- Gender: female.",
		"- Appearance: silver hair.",
		"- Personality: playful.",
		"- Scenario: a seaside cafe.",
		"- Goal: keep the user company.",
		"### Tool Invocation Rules",
		"stay in character",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt missing %q:\n%s", want, got)
		}
	}
}

func TestBuildFallbackDefaults(t *testing.T) {
	b := newTestBuilder(t)
	got := b.Build(Input{
		Character: &types.Character{Name: "Aria"},
		Now:       time.Now(),
	})

	if !strings.Contains(got, "- Age: unknown.") {
		t.Fatalf("expected age fallback, got:\n%s", got)
	}
	if !strings.Contains(got, "- Birthday: none.") {
		t.Fatalf("expected birthday fallback, got:\n%s", got)
	}
	if !strings.Contains(got, "- Personality: Neutral.") {
		t.Fatalf("expected personality fallback, got:\n%s", got)
	}
	for _, forbidden := range []string{"<nil>", "- Age: .", "- Gender: ."} {
		if strings.Contains(got, forbidden) {
			t.Fatalf("prompt rendered an empty slot %q:\n%s", forbidden, got)
		}
	}
}

func TestBuildNilCharacterUsesAssistant(t *testing.T) {
	b := newTestBuilder(t)
	got := b.Build(Input{Now: time.Now()})
	if !strings.Contains(got, "You are roleplaying as assistant") {
		t.Fatalf("expected assistant fallback, got:\n%s", got)
	}
}

func TestBuildAdminTone(t *testing.T) {
	b := newTestBuilder(t)

	admin := b.Build(Input{
		Character:     &types.Character{Name: "Aria"},
		RequesterName: "vee",
		AdminName:     "Vivian",
		IsAdmin:       true,
		Now:           time.Now(),
	})
	if !strings.Contains(admin, "You are talking to Vivian, please be extra intimate.") {
		t.Fatalf("expected intimate admin tone, got:\n%s", admin)
	}

	regular := b.Build(Input{
		Character:     &types.Character{Name: "Aria"},
		RequesterName: "sam",
		Now:           time.Now(),
	})
	if !strings.Contains(regular, "You are talking to sam, who's a user of this site.") {
		t.Fatalf("expected regular user tone, got:\n%s", regular)
	}
	if strings.Contains(regular, "extra intimate") {
		t.Fatal("regular users must not get the intimate tone")
	}
}

func TestBuildKnowledgeSection(t *testing.T) {
	b := newTestBuilder(t)

	with := b.Build(Input{
		Character: &types.Character{Name: "Aria"},
		Knowledge: "Here's what I found:<br><br>The service launched in 2024.",
		Now:       time.Now(),
	})
	if !strings.Contains(with, "### Knowledge Base") {
		t.Fatalf("expected knowledge section, got:\n%s", with)
	}
	if !strings.Contains(with, "If the user asks in the 3rd person (e.g. Who is Aria)") {
		t.Fatalf("expected person disambiguation, got:\n%s", with)
	}

	without := b.Build(Input{
		Character: &types.Character{Name: "Aria"},
		Now:       time.Now(),
	})
	if strings.Contains(without, "### Knowledge Base") {
		t.Fatal("knowledge section must be omitted without a match")
	}
}

func TestBuildDeterministic(t *testing.T) {
	b := newTestBuilder(t)
	in := Input{
		Character: &types.Character{Name: "Aria"},
		Now:       time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC),
	}
	if b.Build(in) != b.Build(in) {
		t.Fatal("Build must be deterministic for identical input")
	}
}
