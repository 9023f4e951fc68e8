package escape_test

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwool/gkfix/fixture/escape"
	"github.com/rwool/gkfix/test/helpers/goroutinechecker"
)

func TestProcessor(t *testing.T) {
	defer goroutinechecker.New(t)()

	tests := []struct {
		Name    string
		Input   string
		Escapes []string
		Counts  []int
	}{
		{Name: "Single Byte", Input: "a", Escapes: []string{"a"}, Counts: []int{1}},
		{Name: "Repeated Byte", Input: "aa", Escapes: []string{"aa"}, Counts: []int{1}},
		{Name: "Restart After Mismatch", Input: "baa", Escapes: []string{"aa"}, Counts: []int{1}},
		{Name: "No Overlap", Input: "aaa", Escapes: []string{"aa"}, Counts: []int{1}},
		{Name: "Back To Back", Input: "aaaa", Escapes: []string{"aa"}, Counts: []int{2}},
		{Name: "Disconnect", Input: "\n~.", Escapes: []string{"\n~."}, Counts: []int{1}},
		{Name: "After A Command", Input: "git status\t\n~.", Escapes: []string{"\n~."}, Counts: []int{1}},
		{Name: "Twice", Input: "ls\n~. \n whoami \n~. bye", Escapes: []string{"\n~."}, Counts: []int{2}},
		{Name: "Shared Prefix", Input: "\n~.\n~!", Escapes: []string{"\n~.", "\n~!"}, Counts: []int{1, 1}},
		{Name: "Only One Of Two", Input: "\n~.\n~.\n~.", Escapes: []string{"\n~.", "\n~!"}, Counts: []int{3, 0}},
		{
			Name:    "Mixed With Text",
			Input:   "\n\n~.cd\n~.\t\nmake\r\n~!  \n~. x\n~.y\n~!\n~",
			Escapes: []string{"\n~.", "\n~!"},
			Counts:  []int{4, 2},
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			require.Len(t, test.Counts, len(test.Escapes))

			counts := make([]int, len(test.Escapes))
			seqs := make([]escape.Sequence, len(test.Escapes))
			for i, e := range test.Escapes {
				seqs[i] = escape.Sequence{Bytes: []byte(e), Fn: func() { counts[i]++ }}
			}

			ep := escape.NewProcessor(seqs...)
			for _, b := range []byte(test.Input) {
				ep.InsertByte(b)
			}
			assert.Equal(t, test.Counts, counts)
		})
	}
}

func TestDisconnectReader(t *testing.T) {
	defer goroutinechecker.New(t)()

	tests := []struct {
		Name  string
		Input string
		Hits  int
	}{
		{Name: "Raw Mode Enter", Input: "ls\r~.", Hits: 1},
		{Name: "Newline", Input: "ls\n~.", Hits: 1},
		{Name: "Tilde Mid Line", Input: "cd ~.", Hits: 0},
		{Name: "Both", Input: "a\r~.b\n~.", Hits: 2},
	}

	for _, tc := range tests {
		t.Run(tc.Name, func(t *testing.T) {
			var hits int
			r := escape.NewReader(strings.NewReader(tc.Input), escape.Disconnect(func() { hits++ })...)

			out, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, tc.Input, string(out), "input is passed through unchanged")
			assert.Equal(t, tc.Hits, hits)
		})
	}
}

func TestAddPanicsOnNilFunction(t *testing.T) {
	ep := escape.NewProcessor()
	assert.Panics(t, func() {
		ep.Add(escape.Sequence{Bytes: []byte("x")})
	})
	assert.NotPanics(t, func() {
		ep.Add(escape.Sequence{})
	})
	assert.Nil(t, ep.InsertByte('x'))
}
