// Package prompt assembles the dynamic system instruction for one model
// call.
package prompt

import (
	"bytes"
	"fmt"
	"time"

	"github.com/caardbot/caard/internal/types"
)

// Fallback defaults for missing character fields. The prompt must never
// render an empty slot.
const (
	defaultName        = "assistant"
	defaultAge         = "unknown"
	defaultGender      = "unknown"
	defaultBirthday    = "none"
	defaultAppearance  = "unknown"
	defaultPersonality = "Neutral"
	defaultOther       = "Tell the user Vivian is not available right now, and you're the substitution in her place."
	defaultScenario    = "A general chat session"
	defaultGoal        = "Assist the user in any way they need"
)

// Input carries everything the builder needs. Knowledge is the already
// rendered knowledge-base match, empty when there was none.
type Input struct {
	Character     *types.Character
	RequesterName string
	AdminName     string
	IsAdmin       bool
	Knowledge     string
	Now           time.Time
}

// Builder assembles system prompts. Pure text assembly, no side effects.
type Builder struct {
	loc *time.Location
}

// NewBuilder creates a Builder rendering times in the given timezone.
func NewBuilder(timezone string) (*Builder, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", timezone, err)
	}
	return &Builder{loc: loc}, nil
}

// Build assembles the full system instruction.
func (b *Builder) Build(in Input) string {
	character := in.Character
	if character == nil {
		character = &types.Character{}
	}
	name := fallback(character.Name, defaultName)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "You are roleplaying as %s, here's things about you:\n", name)
	buf.WriteString("You are not an assistant. Always prioritize calling the available tools when the user's request matches their functionality. Do not attempt to fulfill such requests conversationally unless explicitly stated.\n")
	if character.Prompt != "" {
		buf.WriteString(character.Prompt)
		buf.WriteString("\n")
	}

	if in.RequesterName != "" {
		if in.IsAdmin {
			fmt.Fprintf(&buf, "You are talking to %s, please be extra intimate.\n", fallback(in.AdminName, in.RequesterName))
		} else {
			fmt.Fprintf(&buf, "You are talking to %s, who's a user of this site.\n", in.RequesterName)
		}
	}

	fmt.Fprintf(&buf, "- Current Date and Time: %s.\n\n", in.Now.In(b.loc).Format("15:04:05"))

	buf.WriteString("### Character Information\n")
	fmt.Fprintf(&buf, "- Name: %s.\n", name)
	fmt.Fprintf(&buf, "- Age: %s.\n", fallback(character.Age, defaultAge))
	fmt.Fprintf(&buf, "- Gender: %s.\n", fallback(character.Gender, defaultGender))
	fmt.Fprintf(&buf, "- Birthday: %s.\n", fallback(character.Birthday, defaultBirthday))
	fmt.Fprintf(&buf, "- Appearance: %s.\n", fallback(character.Appearance, defaultAppearance))
	fmt.Fprintf(&buf, "- Personality: %s.\n", fallback(character.Personality, defaultPersonality))
	fmt.Fprintf(&buf, "- Description: %s.\n", fallback(character.Other, defaultOther))
	fmt.Fprintf(&buf, "- Scenario: %s.\n", fallback(character.Scenario, defaultScenario))
	fmt.Fprintf(&buf, "- Goal: %s.\n\n", fallback(character.Goal, defaultGoal))

	buf.WriteString("### Tool Invocation Rules\n")
	buf.WriteString("1. If the user's request explicitly matches a tool's purpose, call the tool immediately.\n")
	buf.WriteString("2. If uncertain, prioritize tool invocation to handle any ambiguity.\n")
	buf.WriteString("3. For general inquiries, fallback to conversational responses only when no suitable tool is available.\n\n")
	buf.WriteString("You will not give any content, or consent warnings in your answer! And you will always stay in character.\n")

	if in.Knowledge != "" {
		buf.WriteString("\n### Knowledge Base\n")
		buf.WriteString("If relevant, use knowledge entries to enhance your responses. Summarize and reference following knowledge base information:\n")
		buf.WriteString(in.Knowledge)
		buf.WriteString("\nProvide a response that aligns with the user's perspective.\n")
		fmt.Fprintf(&buf, "If the user asks in the 3rd person (e.g. Who is %s), respond about %s's information.\n", name, name)
		fmt.Fprintf(&buf, "If the user asks in the 2nd person (e.g. Who are you), answer as if you are %s, referring to your information.\n", name)
	}

	return buf.String()
}

func fallback(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
