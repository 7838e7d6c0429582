// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package compile performs an advisory syntax check of candidate fragments
// with a real C compiler.
//
// Fragments are compiled against a stub preamble standing in for the
// decompilation's headers. The check is best effort: a missing toolchain or
// an unknown struct field is information, not a pipeline failure, and the
// scorer weighs the outcome accordingly.
package compile

// PreambleVersion identifies the stub header below. Bump when a type or
// prototype is added or changed, so dataset metadata records which stubs a
// batch was checked against.
const PreambleVersion = "1.0.2"

// preamble approximates just enough of the decompilation's ultra64 and
// z64 headers for typical actor fragments to pass a syntax check. It is
// deliberately small; fragments touching obscure engine state fail the
// check and simply forgo the compile bonus.
const preamble = `typedef signed char s8;
typedef unsigned char u8;
typedef signed short s16;
typedef unsigned short u16;
typedef signed int s32;
typedef unsigned int u32;
typedef signed long long s64;
typedef unsigned long long u64;
typedef float f32;
typedef double f64;

typedef struct { f32 x, y, z; } Vec3f;
typedef struct { s16 x, y, z; } Vec3s;
typedef struct { Vec3f pos; Vec3s rot; } PosRot;

typedef struct PlayState PlayState;
typedef struct GraphicsContext GraphicsContext;

typedef struct {
    u8 health;
    u8 mass;
    u8 damage;
} CollisionCheckInfo;

typedef struct {
    Vec3s rot;
    f32 yOffset;
    void* shadowDraw;
    f32 shadowScale;
} ActorShape;

typedef struct Actor {
    s16 id;
    u8 category;
    s16 params;
    u32 flags;
    PosRot world;
    PosRot home;
    Vec3f velocity;
    f32 speed;
    Vec3f scale;
    ActorShape shape;
    CollisionCheckInfo colChkInfo;
    struct Actor* parent;
    struct Actor* child;
    void (*update)(struct Actor*, PlayState*);
    void (*draw)(struct Actor*, PlayState*);
} Actor;

typedef void (*ActorFunc)(Actor*, PlayState*);

typedef struct {
    s16 id;
    u8 category;
    u32 flags;
    s16 objectId;
    u32 instanceSize;
    ActorFunc init;
    ActorFunc destroy;
    ActorFunc update;
    ActorFunc draw;
} ActorProfile;

typedef struct {
    Actor* actor;
    u32 atFlags, acFlags, ocFlags1;
} Collider;

typedef struct {
    Collider base;
    struct { Vec3s pos; s16 radius, height, yShift; } dim;
} ColliderCylinder;

typedef struct {
    struct { struct { struct { s16 health; } playerData; } info; } save;
    s16 health;
} SaveContext;

extern SaveContext gSaveContext;

void Actor_Kill(Actor* actor);
void Actor_SetScale(Actor* actor, f32 scale);
void Actor_SetFocus(Actor* actor, f32 height);
Actor* Actor_Spawn(void* actorCtx, PlayState* play, s16 id, f32 x, f32 y, f32 z,
                   s16 rotX, s16 rotY, s16 rotZ, s16 params);
void Actor_PlaySfx(Actor* actor, u16 sfxId);
void Collider_InitCylinder(PlayState* play, ColliderCylinder* collider);
void Collider_DestroyCylinder(PlayState* play, ColliderCylinder* collider);
void Collider_UpdateCylinder(Actor* actor, ColliderCylinder* collider);
void CollisionCheck_SetOC(PlayState* play, void* colChkCtx, Collider* collider);
void Health_ChangeBy(PlayState* play, s16 amount);
void Item_DropCollectible(PlayState* play, Vec3f* spawnPos, s16 params);
s32 Math_StepToF(f32* pValue, f32 target, f32 step);
void Math_ApproachF(f32* pValue, f32 target, f32 fraction, f32 step);
f32 Math_SinS(s16 angle);
f32 Math_CosS(s16 angle);
s16 Math_Vec3f_Yaw(Vec3f* origin, Vec3f* point);

`
