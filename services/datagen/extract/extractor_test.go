// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"strings"
	"testing"
)

func TestExtract_EnvelopeJSON(t *testing.T) {
	raw := "Here is the example you asked for:\n" +
		"```json\n" +
		`{"instruction": "Write EnTest_Init.", "input": "", "output": "void EnTest_Init(Actor* thisx, PlayState* play) {\n}"}` + "\n" +
		"```\n" +
		"Let me know if you need anything else."

	frag, ok := New().Extract(raw)
	if !ok {
		t.Fatal("expected a fragment")
	}
	if frag.Method != MethodEnvelopeJSON {
		t.Errorf("Method = %q, want %q", frag.Method, MethodEnvelopeJSON)
	}
	if frag.Instruction != "Write EnTest_Init." {
		t.Errorf("Instruction = %q", frag.Instruction)
	}
	if !strings.Contains(frag.Output, "EnTest_Init(Actor* thisx, PlayState* play)") {
		t.Errorf("Output missing function header: %q", frag.Output)
	}
	if !strings.Contains(frag.Output, "\n") {
		t.Error("escape sequences in output should be decoded")
	}
}

func TestExtract_EnvelopeJSON_Unfenced(t *testing.T) {
	raw := "Sure! " +
		`{"instruction": "Define the timer constant.", "output": "#define EN_TEST_TIMER 20"}` +
		" Hope that helps."

	frag, ok := New().Extract(raw)
	if !ok {
		t.Fatal("expected a fragment")
	}
	if frag.Method != MethodEnvelopeJSON {
		t.Errorf("Method = %q, want %q", frag.Method, MethodEnvelopeJSON)
	}
	if frag.Output != "#define EN_TEST_TIMER 20" {
		t.Errorf("Output = %q", frag.Output)
	}
}

func TestExtract_RawJSON(t *testing.T) {
	raw := `{"instruction": "Write the update loop.", "output": "void EnTest_Update(Actor* thisx, PlayState* play) {\n    this->timer--;\n}"}`

	frag, ok := New().Extract(raw)
	if !ok {
		t.Fatal("expected a fragment")
	}
	if frag.Method != MethodRawJSON {
		t.Errorf("Method = %q, want %q", frag.Method, MethodRawJSON)
	}
	if frag.Instruction != "Write the update loop." {
		t.Errorf("Instruction = %q", frag.Instruction)
	}
}

func TestExtract_FencedBlock(t *testing.T) {
	raw := "Implement the idle state handler for EnTest.\n\n" +
		"```c\n" +
		"void EnTest_Idle(EnTest* this, PlayState* play) {\n" +
		"    this->timer = 20;\n" +
		"}\n" +
		"```\n"

	frag, ok := New().Extract(raw)
	if !ok {
		t.Fatal("expected a fragment")
	}
	if frag.Method != MethodFencedBlock {
		t.Errorf("Method = %q, want %q", frag.Method, MethodFencedBlock)
	}
	if frag.Instruction != "Implement the idle state handler for EnTest" {
		t.Errorf("Instruction = %q", frag.Instruction)
	}
	if !strings.Contains(frag.Output, "EnTest_Idle") {
		t.Errorf("Output = %q", frag.Output)
	}
}

func TestExtract_FencedBlock_SynthesizedInstruction(t *testing.T) {
	raw := "```c\nvoid EnTest_Draw(Actor* thisx, PlayState* play) {\n}\n```"

	frag, ok := New().Extract(raw)
	if !ok {
		t.Fatal("expected a fragment")
	}
	if frag.Method != MethodFencedBlock {
		t.Errorf("Method = %q, want %q", frag.Method, MethodFencedBlock)
	}
	if !strings.Contains(frag.Instruction, "EnTest_Draw") {
		t.Errorf("synthesized instruction should name the function, got %q", frag.Instruction)
	}
}

func TestExtract_FieldRegex(t *testing.T) {
	// Broken JSON: unescaped quotes and a literal newline inside output.
	raw := `{"instruction": "Fix the \"health\" handling.", "output": "s32 health = gSaveContext.health;` + "\n" +
		`Health_ChangeBy(play, -0x10); // take "one heart" of damage"}`

	frag, ok := New().Extract(raw)
	if !ok {
		t.Fatal("expected a fragment")
	}
	if frag.Method != MethodFieldRegex {
		t.Errorf("Method = %q, want %q", frag.Method, MethodFieldRegex)
	}
	if !strings.Contains(frag.Instruction, `"health"`) {
		t.Errorf("Instruction = %q", frag.Instruction)
	}
	if !strings.Contains(frag.Output, "Health_ChangeBy(play, -0x10)") {
		t.Errorf("Output = %q", frag.Output)
	}
}

func TestExtract_LineScan(t *testing.T) {
	raw := "instruction: Write a timer decrement for EnTest.\n" +
		"output: void EnTest_Update(Actor* thisx, PlayState* play) {\n" +
		"    this->timer--;\n" +
		"}\n"

	frag, ok := New().Extract(raw)
	if !ok {
		t.Fatal("expected a fragment")
	}
	if frag.Method != MethodLineScan {
		t.Errorf("Method = %q, want %q", frag.Method, MethodLineScan)
	}
	if frag.Instruction != "Write a timer decrement for EnTest." {
		t.Errorf("Instruction = %q", frag.Instruction)
	}
	if !strings.Contains(frag.Output, "this->timer--;") {
		t.Errorf("Output = %q", frag.Output)
	}
}

func TestExtract_LineScan_FencedOutput(t *testing.T) {
	// Markdown headings with a fenced sub-block under Output. The fence
	// content is prose-free C but carries no JSON and the fence itself sits
	// under a field marker, so the line scanner owns it.
	raw := "## Instruction\n" +
		"Add a scale helper.\n" +
		"## Output\n" +
		"```\n" +
		"xyz qqq\n" +
		"```\n"

	frag, ok := New().Extract(raw)
	if !ok {
		t.Fatal("expected a fragment")
	}
	if frag.Method != MethodLineScan {
		t.Errorf("Method = %q, want %q", frag.Method, MethodLineScan)
	}
	if frag.Instruction != "Add a scale helper." {
		t.Errorf("Instruction = %q", frag.Instruction)
	}
	if frag.Output != "xyz qqq" {
		t.Errorf("Output = %q", frag.Output)
	}
}

func TestExtract_Heuristic(t *testing.T) {
	raw := "Please see below. Create a helper for the test actor.\n" +
		"\n" +
		"void EnTest_Helper(EnTest* this) {\n" +
		"    this->timer = 0;\n" +
		"}\n" +
		"\n" +
		"That should do it."

	frag, ok := New().Extract(raw)
	if !ok {
		t.Fatal("expected a fragment")
	}
	if frag.Method != MethodHeuristic {
		t.Errorf("Method = %q, want %q", frag.Method, MethodHeuristic)
	}
	if frag.Instruction != "Create a helper for the test actor" {
		t.Errorf("Instruction = %q", frag.Instruction)
	}
	if !strings.Contains(frag.Output, "EnTest_Helper") {
		t.Errorf("Output = %q", frag.Output)
	}
}

func TestExtract_NoFragment(t *testing.T) {
	inputs := []string{
		"",
		"The weather in Kakariko is lovely today.",
		"I'm sorry, I can't help with that request.",
	}
	for _, raw := range inputs {
		frag, ok := New().Extract(raw)
		if ok || frag != nil {
			t.Errorf("Extract(%q) should yield no fragment, got %+v", raw, frag)
		}
	}
}

func TestExtract_DefaultInstruction(t *testing.T) {
	raw := "```c\ns32 helper_value = 3;\ntypedef struct Foo { s32 x; } Foo;\n```"

	frag, ok := New().Extract(raw)
	if !ok {
		t.Fatal("expected a fragment")
	}
	if frag.Instruction != defaultInstruction {
		t.Errorf("Instruction = %q, want default", frag.Instruction)
	}
}
