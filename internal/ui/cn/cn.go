// Package cn builds HTML class attributes from ordered class fragments and
// resolves Tailwind utility conflicts so that later classes win.
package cn

import "strings"

// Class is one fragment of a class list: a literal, a conditional literal
// or a nested group. A nil Class contributes nothing.
type Class interface {
	appendTokens(dst []string) []string
}

type literal string

func (l literal) appendTokens(dst []string) []string {
	return append(dst, strings.Fields(string(l))...)
}

type conditional struct {
	on    bool
	value string
}

func (c conditional) appendTokens(dst []string) []string {
	if !c.on {
		return dst
	}
	return append(dst, strings.Fields(c.value)...)
}

type group []Class

func (g group) appendTokens(dst []string) []string {
	for _, c := range g {
		if c == nil {
			continue
		}
		dst = c.appendTokens(dst)
	}
	return dst
}

// Literal is an unconditional class string. It may hold several
// whitespace-separated classes.
func Literal(s string) Class { return literal(s) }

// If contributes s only when cond is true.
func If(cond bool, s string) Class { return conditional{on: cond, value: s} }

// Group nests fragments; they are flattened in order.
func Group(classes ...Class) Class { return group(classes) }

// Merge flattens classes and returns a single class string with falsy
// entries removed, duplicates dropped and conflicting utilities resolved in
// favour of the later class.
func Merge(classes ...Class) string {
	return resolve(group(classes).appendTokens(nil))
}

// Join is Merge for plain strings.
func Join(classes ...string) string {
	tokens := make([]string, 0, len(classes))
	for _, c := range classes {
		tokens = append(tokens, strings.Fields(c)...)
	}
	return resolve(tokens)
}

// Builder accumulates fragments in order.
//
//	var b cn.Builder
//	b.Add("rounded px-2").AddIf(active, "bg-primary")
//	class := b.String()
type Builder struct {
	parts []Class
}

func (b *Builder) Add(s string) *Builder {
	b.parts = append(b.parts, literal(s))
	return b
}

func (b *Builder) AddIf(cond bool, s string) *Builder {
	b.parts = append(b.parts, conditional{on: cond, value: s})
	return b
}

func (b *Builder) AddClass(c Class) *Builder {
	b.parts = append(b.parts, c)
	return b
}

// Class returns the accumulated fragments as a nested group.
func (b *Builder) Class() Class {
	return group(append([]Class(nil), b.parts...))
}

func (b *Builder) String() string {
	return Merge(b.parts...)
}
