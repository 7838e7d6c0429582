// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLookup map[string]bool

func (s stubLookup) HasFunction(name string) bool { return s[name] }

// idiomaticFragment hits every required idiom and nothing forbidden.
const idiomaticFragment = `void EnTest_Init(Actor* thisx, PlayState* play) {
    EnTest* this = (EnTest*)thisx;

    this->actor.category = ACTORCAT_ENEMY;
    Actor_SetScale(&this->actor, 0.01f);
    Collider_InitCylinder(play, &this->collider);
}`

func ruleIDs(findings []Finding) []string {
	ids := make([]string, 0, len(findings))
	for _, f := range findings {
		ids = append(ids, f.RuleID)
	}
	return ids
}

func TestValidate_CleanFragment(t *testing.T) {
	v := New(stubLookup{
		"Actor_SetScale":        true,
		"Collider_InitCylinder": true,
	})

	report := v.Validate("Write the EnTest init function.", idiomaticFragment)

	assert.Empty(t, report.Findings)
	assert.Equal(t, idiomaticFragment, report.Corrected)
	assert.Equal(t, len(RequiredPatterns), report.RequiredMatched)
	assert.Equal(t, 1.0, report.RequiredCoverage())
	assert.Equal(t, 2, report.TotalCalls)
	assert.Equal(t, 2, report.AuthenticCalls)
	assert.False(t, report.HasCritical())
}

func TestValidate_ParamOrderCorrection(t *testing.T) {
	v := New(nil)
	output := `void EnTest_Init(PlayState* play, Actor* thisx) {
}`

	report := v.Validate("", output)

	assert.Contains(t, ruleIDs(report.Findings), "param-order-swapped")
	assert.True(t, report.HasCritical())
	assert.Contains(t, report.Corrected, "(Actor* thisx, PlayState* play)")

	// A corrected fragment no longer triggers the rule.
	again := v.Validate("", report.Corrected)
	assert.NotContains(t, ruleIDs(again.Findings), "param-order-swapped")
}

func TestValidate_GlobalContextCorrection(t *testing.T) {
	v := New(nil)
	output := `void EnTest_Update(Actor* thisx, GlobalContext* globalCtx) {
    func_8002F580(&this->actor, globalCtx);
}`

	report := v.Validate("", output)

	ids := ruleIDs(report.Findings)
	assert.Contains(t, ids, "globalcontext-type")
	assert.Contains(t, ids, "globalctx-name")
	assert.Contains(t, report.Corrected, "PlayState* play")
	assert.Contains(t, report.Corrected, "&this->actor, play)")
	assert.NotContains(t, report.Corrected, "GlobalContext")
	assert.NotContains(t, report.Corrected, "globalCtx")

	again := v.Validate("", report.Corrected)
	assert.Empty(t, again.Findings)
}

func TestValidate_DirectHealthWrite(t *testing.T) {
	v := New(nil)

	for _, output := range []string{
		"gSaveContext.health -= 0x10;",
		"gSaveContext.save.info.playerData.health += 0x10;",
	} {
		report := v.Validate("", output)
		assert.Contains(t, ruleIDs(report.Findings), "direct-health-write", "output: %s", output)
	}

	report := v.Validate("", "Health_ChangeBy(play, -0x10);")
	assert.NotContains(t, ruleIDs(report.Findings), "direct-health-write")
}

func TestValidate_FabricatedAPI(t *testing.T) {
	v := New(nil)

	for _, output := range []string{
		"Actor_CreateNew(play, ACTOR_EN_TEST);",
		"Zelda_SpawnEnemy(play, 3);",
		"OoT_GetPlayer(play);",
		"Game_SpawnActor(play, ACTOR_EN_TEST);",
	} {
		report := v.Validate("", output)
		require.Contains(t, ruleIDs(report.Findings), "fabricated-api", "output: %s", output)
		assert.True(t, report.HasCritical())
	}
}

func TestValidate_CrossReference(t *testing.T) {
	v := New(stubLookup{"Foo_Bar": true})
	output := `void EnTest_Update(Actor* thisx, PlayState* play) {
    Foo_Bar(play);
    Fabricated_Call(play);
}`

	report := v.Validate("", output)

	assert.Equal(t, 2, report.TotalCalls)
	assert.Equal(t, 1, report.AuthenticCalls)
	assert.Contains(t, ruleIDs(report.Findings), "xref-unknown-call")
	for _, f := range report.Findings {
		if f.RuleID == "xref-unknown-call" {
			assert.Equal(t, CategoryCrossRef, f.Category)
			assert.Contains(t, f.Message, "Fabricated_Call")
		}
	}
}

func TestValidate_CrossReferenceFilters(t *testing.T) {
	v := New(stubLookup{"Math_StepToF": true})
	output := `if (this->timer > 0) {
    Math_StepToF(&this->actor.speed, 0.0f, 1.0f);
    CLAMP_MAX(this->timer, 100);
    abs(x);
}`

	report := v.Validate("", output)

	// Keywords, macros, and short names are not cross-referenced.
	assert.Equal(t, 1, report.TotalCalls)
	assert.Equal(t, 1, report.AuthenticCalls)
	assert.Empty(t, report.Findings)
}

func TestValidate_CrossReferenceSkipsSelfDefined(t *testing.T) {
	v := New(stubLookup{})
	output := `static void EnTest_Helper(EnTest* this) {
    this->timer = 0;
}

void EnTest_Update(Actor* thisx, PlayState* play) {
    EnTest_Helper((EnTest*)thisx);
}`

	report := v.Validate("", output)

	assert.Equal(t, 0, report.TotalCalls)
	assert.Empty(t, report.Findings)
}

func TestValidate_ConceptRules(t *testing.T) {
	v := New(nil)
	instruction := "Write a function that drops a rupee when the enemy dies."

	report := v.Validate(instruction, "void EnTest_Die(EnTest* this, PlayState* play) {\n}")
	require.Contains(t, ruleIDs(report.Findings), "concept-collectible")
	for _, f := range report.Findings {
		if f.RuleID == "concept-collectible" {
			assert.Equal(t, SeverityWarning, f.Severity)
			assert.Equal(t, CategoryArchitecture, f.Category)
		}
	}

	withDrop := "void EnTest_Die(EnTest* this, PlayState* play) {\n" +
		"    Item_DropCollectible(play, &this->actor.world.pos, ITEM00_RUPEE_GREEN);\n}"
	report = v.Validate(instruction, withDrop)
	assert.NotContains(t, ruleIDs(report.Findings), "concept-collectible")
}

func TestValidate_NilLookupSkipsCrossReference(t *testing.T) {
	v := New(nil)

	report := v.Validate("", "Totally_Unknown_Function(play);")

	assert.Equal(t, 0, report.TotalCalls)
	assert.NotContains(t, ruleIDs(report.Findings), "xref-unknown-call")
}
