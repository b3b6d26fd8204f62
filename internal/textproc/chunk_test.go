package textproc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunk_Units(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"words and spaces", "ab c", []string{"ab", " ", "c"}},
		{"newline is its own unit", "1번.\n2번.", []string{"1번.", "\n", "2번."}},
		{"punctuation stays attached", "끝입니다. 다음", []string{"끝입니다.", " ", "다음"}},
		{"tab preserved", "a\tb", []string{"a", "\t", "b"}},
		{"leading and trailing space", " 가 ", []string{" ", "가", " "}},
		{"empty", "", nil},
		{"only whitespace", "\n\n", []string{"\n", "\n"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Chunk(tc.in))
		})
	}
}

func TestChunk_Reconstruction(t *testing.T) {
	inputs := []string{
		"1. 2/5 × 10을 계산하시오.\n① 4\n② 2\n\n2. 다음은?",
		"한 줄 텍스트",
		"  공백   보존  ",
		"줄\n바꿈\n\n유지",
	}
	for _, in := range inputs {
		require.Equal(t, in, strings.Join(Chunk(in), ""), "concatenation must reproduce input: %q", in)
	}
}

func TestEmittable(t *testing.T) {
	require.True(t, Emittable("단어"))
	require.True(t, Emittable("3/4"))
	require.True(t, Emittable("\n"))
	require.True(t, Emittable(" "))
	require.True(t, Emittable("\t"))
	require.False(t, Emittable(""))
}
