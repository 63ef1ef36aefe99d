package cn

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestJoinLaterPaddingWins(t *testing.T) {
	got := Join("pt-14", "pt-16")
	if got != "pt-16" {
		t.Fatalf("Join = %q, want %q", got, "pt-16")
	}
}

func TestMergeSkipsFalsyEntries(t *testing.T) {
	got := Merge(If(false, "hidden"), nil, Literal(""), Literal("x"))
	if got != "x" {
		t.Fatalf("Merge = %q, want %q", got, "x")
	}
}

func TestMergeEmpty(t *testing.T) {
	if got := Merge(); got != "" {
		t.Fatalf("Merge() = %q, want empty", got)
	}
	if got := Join(); got != "" {
		t.Fatalf("Join() = %q, want empty", got)
	}
	if got := Join("   ", "\t"); got != "" {
		t.Fatalf("Join(whitespace) = %q, want empty", got)
	}
}

func TestMergeFlattensNestedGroups(t *testing.T) {
	got := Merge(
		Literal("flex items-center"),
		Group(If(true, "gap-2"), Group(Literal("text-sm"), nil), If(false, "gap-4")),
		Literal("gap-3"),
	)
	want := "flex items-center text-sm gap-3"
	if got != want {
		t.Fatalf("Merge = %q, want %q", got, want)
	}
}

func TestJoinRemovesDuplicates(t *testing.T) {
	got := Join("card shadow", "card", "shadow")
	if got != "card shadow" {
		t.Fatalf("Join = %q, want %q", got, "card shadow")
	}
}

func TestJoinConflictResolution(t *testing.T) {
	cases := []struct {
		in   []string
		want string
	}{
		{[]string{"px-2 py-1", "p-4"}, "p-4"},
		{[]string{"p-4", "px-2"}, "p-4 px-2"},
		{[]string{"pt-2 pb-2", "py-4"}, "py-4"},
		{[]string{"text-sm text-red-500", "text-lg"}, "text-red-500 text-lg"},
		{[]string{"text-red-500", "text-blue-600"}, "text-blue-600"},
		{[]string{"text-left", "text-center"}, "text-center"},
		{[]string{"bg-background", "bg-slate-900"}, "bg-slate-900"},
		{[]string{"bg-cover bg-red-500", "bg-contain"}, "bg-red-500 bg-contain"},
		{[]string{"border border-gray-200", "border-2"}, "border-gray-200 border-2"},
		{[]string{"border-t-2", "border-4"}, "border-4"},
		{[]string{"border-dashed", "border-solid"}, "border-solid"},
		{[]string{"flex", "hidden"}, "hidden"},
		{[]string{"flex flex-col", "flex-row"}, "flex flex-row"},
		{[]string{"min-h-screen h-4", "h-8"}, "min-h-screen h-8"},
		{[]string{"w-4 h-4", "size-8"}, "size-8"},
		{[]string{"font-bold font-mono", "font-medium"}, "font-mono font-medium"},
		{[]string{"leading-6", "text-xl"}, "text-xl"},
		{[]string{"rounded-t-lg", "rounded-md"}, "rounded-md"},
		{[]string{"shadow-sm shadow-black", "shadow-lg"}, "shadow-black shadow-lg"},
		{[]string{"inset-0", "top-2"}, "inset-0 top-2"},
		{[]string{"top-2 left-2", "inset-x-0"}, "top-2 inset-x-0"},
		{[]string{"-mt-2", "mt-4"}, "mt-4"},
		{[]string{"pt-14", "pt-[6.5rem]"}, "pt-[6.5rem]"},
		{[]string{"text-[14px] text-[#333]", "text-base"}, "text-[#333] text-base"},
		{[]string{"text-red-500", "text-[20dvh]"}, "text-red-500 text-[20dvh]"},
		{[]string{"text-[10vh]", "text-[20dvh]"}, "text-[20dvh]"},
		{[]string{"text-sm", "text-[1.5rem]"}, "text-[1.5rem]"},
		{[]string{"ring-offset-2", "ring-offset-red-500"}, "ring-offset-2 ring-offset-red-500"},
		{[]string{"ring-offset-2", "ring-offset-[3px]"}, "ring-offset-[3px]"},
		{[]string{"ring-offset-white", "ring-offset-black"}, "ring-offset-black"},
		{[]string{"ring-2 ring-blue-500", "ring-[3px]"}, "ring-blue-500 ring-[3px]"},
	}
	for _, tc := range cases {
		got := Join(tc.in...)
		if got != tc.want {
			t.Fatalf("Join(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestJoinVariantsAreSeparateAxes(t *testing.T) {
	got := Join("pt-14 md:pt-14 hover:md:bg-red-500", "pt-16", "md:hover:bg-blue-500")
	want := "md:pt-14 pt-16 md:hover:bg-blue-500"
	if got != want {
		t.Fatalf("Join = %q, want %q", got, want)
	}
}

func TestJoinImportantIsSeparateAxis(t *testing.T) {
	got := Join("!pt-2 pt-4", "pt-6", "pt-8!")
	want := "pt-6 pt-8!"
	if got != want {
		t.Fatalf("Join = %q, want %q", got, want)
	}
}

func TestJoinKeepsUnknownClasses(t *testing.T) {
	got := Join("calendar-grid", "day--today", "data-[state=open]:block", "calendar-grid")
	want := []string{"day--today", "data-[state=open]:block", "calendar-grid"}
	if diff := cmp.Diff(want, strings.Fields(got)); diff != "" {
		t.Fatalf("Join mismatch (-want +got):\n%s", diff)
	}
}

func TestBuilder(t *testing.T) {
	var b Builder
	b.Add("rounded px-2 text-sm").AddIf(true, "bg-primary").AddIf(false, "opacity-50").Add("px-4")
	if got, want := b.String(), "rounded text-sm bg-primary px-4"; got != want {
		t.Fatalf("Builder.String = %q, want %q", got, want)
	}
	if got := Merge(b.Class(), Literal("rounded-none")); got != "text-sm bg-primary px-4 rounded-none" {
		t.Fatalf("Merge(Builder.Class) = %q", got)
	}
}

func TestClassifyGroups(t *testing.T) {
	cases := map[string]string{
		"pt-14":           "pt",
		"min-h-screen":    "min-h",
		"inset-x-0":       "inset-x",
		"border-x-2":      "border-w-x",
		"border-t":        "border-w-t",
		"border-b-red-5":  "border-color-b",
		"gap-x-4":         "gap-x",
		"overflow-y-auto": "overflow-y",
		"ring-2":          "ring-w",
		"ring-offset-2":   "ring-offset-w",
		"ring-offset-red": "ring-offset-color",
		"calendar-grid":   "",
	}
	for in, want := range cases {
		if got := classify(in); got != want {
			t.Fatalf("classify(%q) = %q, want %q", in, got, want)
		}
	}
}
