// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const actorSource = `#include "z_en_test.h"

#define FLAGS (ACTOR_FLAG_ATTENTION_ENABLED | ACTOR_FLAG_FRIENDLY)
#define EN_TEST_SCALE 0.01f

typedef struct EnTest {
    Actor actor;
    ColliderCylinder collider; // hitbox
    s16 timer;
} EnTest;

typedef enum {
    /* 0 */ EN_TEST_STATE_IDLE,
    /* 1 */ EN_TEST_STATE_ATTACK
} EnTestState;

void EnTest_Init(Actor* thisx, PlayState* play) {
    EnTest* this = (EnTest*)thisx;

    Actor_SetScale(&this->actor, EN_TEST_SCALE);
    Collider_InitCylinder(play, &this->collider);
}

void EnTest_Update(Actor* thisx, PlayState* play) {
    EnTest* this = (EnTest*)thisx;

    if (this->timer > 0) {
        this->timer--;
    }
}

const ActorProfile En_Test_Profile = {
    ACTOR_EN_TEST,
    ACTORCAT_ENEMY,
    FLAGS,
    OBJECT_TEST,
    sizeof(EnTest),
    (ActorFunc)EnTest_Init,
    (ActorFunc)EnTest_Destroy,
    (ActorFunc)EnTest_Update,
    (ActorFunc)EnTest_Draw,
};
`

const headerSource = `#ifndef Z_EN_TEST_H
#define Z_EN_TEST_H

#define EN_TEST_GET_TYPE(thisx) ((thisx)->params & 0xFF)
#define EN_TEST_HEALTH 4

s32 Math_StepToF(f32* pValue, f32 target, f32 step) {
    return 0;
}

#endif
`

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func TestBuilder_Build_Counts(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"z_en_test.c": actorSource,
		"z_en_test.h": headerSource,
	})

	builder := NewBuilder([]SourceRoot{{Path: dir, Category: "overlay"}})
	knowledge, err := builder.Build(context.Background())
	require.NoError(t, err)

	stats := knowledge.Stats()
	assert.Equal(t, 2, stats.FilesAnalyzed)
	assert.Equal(t, 0, stats.FilesSkipped)

	// EnTest_Init, EnTest_Update, Math_StepToF.
	assert.Equal(t, 3, stats.Functions)
	assert.True(t, knowledge.HasFunction("EnTest_Init"))
	assert.True(t, knowledge.HasFunction("EnTest_Update"))
	assert.True(t, knowledge.HasFunction("Math_StepToF"))
	assert.False(t, knowledge.HasFunction("EnTest_Draw"))

	assert.Equal(t, 1, stats.Structs)
	assert.NotNil(t, knowledge.Struct("EnTest"))

	assert.Equal(t, 1, stats.Enums)
	require.NotNil(t, knowledge.Enum("EnTestState"))
	assert.Equal(t, []string{"EN_TEST_STATE_IDLE,", "EN_TEST_STATE_ATTACK"},
		knowledge.Enum("EnTestState").Values)

	// FLAGS, EN_TEST_SCALE, Z_EN_TEST_H is skipped (no value),
	// EN_TEST_GET_TYPE is function-like, EN_TEST_HEALTH counts.
	assert.Equal(t, 3, stats.Constants)
	assert.NotNil(t, knowledge.Constant("EN_TEST_HEALTH"))
	assert.Nil(t, knowledge.Constant("EN_TEST_GET_TYPE"))

	// One example per file key; z_en_test.c has both a profile and an
	// Init function, the Init block wins the key.
	assert.Equal(t, 1, stats.Examples)
	ex := knowledge.Example("z_en_test.c")
	require.NotNil(t, ex)
	assert.Contains(t, ex.Code, "EnTest_Init")
}

func TestBuilder_Build_FunctionDetails(t *testing.T) {
	dir := writeTree(t, map[string]string{"a.c": actorSource})

	knowledge, err := NewBuilder([]SourceRoot{{Path: dir, Category: "core"}}).
		Build(context.Background())
	require.NoError(t, err)

	fn := knowledge.Function("EnTest_Init")
	require.NotNil(t, fn)
	assert.Equal(t, "void", fn.ReturnType)
	require.Len(t, fn.Params, 2)
	assert.Equal(t, Param{Type: "Actor*", Name: "thisx"}, fn.Params[0])
	assert.Equal(t, Param{Type: "PlayState*", Name: "play"}, fn.Params[1])
	assert.Equal(t, "core", fn.Loc.Category)
	assert.Equal(t, "a.c", fn.Loc.File)
}

func TestBuilder_Build_Idempotent(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"z_en_test.c": actorSource,
		"z_en_test.h": headerSource,
	})
	roots := []SourceRoot{{Path: dir, Category: "overlay"}}

	first, err := NewBuilder(roots).Build(context.Background())
	require.NoError(t, err)
	second, err := NewBuilder(roots).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.FunctionNames(), second.FunctionNames())
	assert.Equal(t, first.StructNames(), second.StructNames())
	assert.Equal(t, first.EnumNames(), second.EnumNames())
	assert.Equal(t, first.ConstantNames(), second.ConstantNames())
	assert.Equal(t, first.ExampleKeys(), second.ExampleKeys())
	assert.Equal(t, first.Stats(), second.Stats())
	assert.Equal(t, first.Excerpt(10, 10), second.Excerpt(10, 10))
}

func TestBuilder_Build_DuplicateLastWins(t *testing.T) {
	// Sorted path order: a.c before b.c, so b.c's definition wins.
	dir := writeTree(t, map[string]string{
		"a.c": "#define SHARED_LIMIT 10\n",
		"b.c": "#define SHARED_LIMIT 20\n",
	})

	knowledge, err := NewBuilder([]SourceRoot{{Path: dir, Category: "core"}}).
		Build(context.Background())
	require.NoError(t, err)

	c := knowledge.Constant("SHARED_LIMIT")
	require.NotNil(t, c)
	assert.Equal(t, "20", c.Value)
	assert.Equal(t, 1, knowledge.Stats().Constants)
}

func TestBuilder_Build_SkipsUnreadableFiles(t *testing.T) {
	dir := writeTree(t, map[string]string{"ok.c": actorSource})
	bad := filepath.Join(dir, "bad.c")
	require.NoError(t, os.WriteFile(bad, []byte("void X_Init() {}\n"), 0644))
	require.NoError(t, os.Chmod(bad, 0000))
	t.Cleanup(func() { _ = os.Chmod(bad, 0644) })

	if os.Getuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}

	knowledge, err := NewBuilder([]SourceRoot{{Path: dir, Category: "core"}}).
		Build(context.Background())
	require.NoError(t, err)

	stats := knowledge.Stats()
	assert.Equal(t, 1, stats.FilesAnalyzed)
	assert.Equal(t, 1, stats.FilesSkipped)
}

func TestBuilder_Build_SkipsUnreadableSubdirectories(t *testing.T) {
	dir := writeTree(t, map[string]string{"ok.c": actorSource})
	locked := filepath.Join(dir, "locked")
	require.NoError(t, os.MkdirAll(locked, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(locked, "hidden.c"),
		[]byte("void Hidden_Init() {}\n"), 0644))
	require.NoError(t, os.Chmod(locked, 0000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0755) })

	if os.Getuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}

	knowledge, err := NewBuilder([]SourceRoot{{Path: dir, Category: "core"}}).
		Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, knowledge.Stats().FilesAnalyzed)
	assert.True(t, knowledge.HasFunction("EnTest_Init"))
	assert.False(t, knowledge.HasFunction("Hidden_Init"))
}

func TestBuilder_Build_NoRoots(t *testing.T) {
	_, err := NewBuilder(nil).Build(context.Background())
	assert.ErrorIs(t, err, ErrNoRoots)
}

func TestBuilder_Build_MissingRoot(t *testing.T) {
	_, err := NewBuilder([]SourceRoot{{Path: "/does/not/exist", Category: "core"}}).
		Build(context.Background())
	assert.ErrorIs(t, err, ErrRootUnreadable)
}

func TestKnowledgeBase_Excerpt(t *testing.T) {
	dir := writeTree(t, map[string]string{"z_en_test.c": actorSource})

	knowledge, err := NewBuilder([]SourceRoot{{Path: dir, Category: "overlay"}}).
		Build(context.Background())
	require.NoError(t, err)

	excerpt := knowledge.Excerpt(2, 2)
	assert.Contains(t, excerpt, "EnTest_Init(Actor* thisx, PlayState* play)")
	assert.Contains(t, excerpt, "#define EN_TEST_SCALE 0.01f")
	assert.Contains(t, excerpt, "Canonical example from z_en_test.c")
}
