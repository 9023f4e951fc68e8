package blockingreader_test

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwool/gkfix/test/helpers/blockingreader"
	"github.com/rwool/gkfix/test/helpers/goroutinechecker"
)

func readAsync(r io.Reader) <-chan string {
	c := make(chan string, 1)
	go func() {
		b, _ := io.ReadAll(r)
		c <- string(b)
	}()
	return c
}

func TestRelease(t *testing.T) {
	defer goroutinechecker.New(t)()

	br := blockingreader.New(strings.NewReader("password: "))
	got := readAsync(br)

	select {
	case s := <-got:
		t.Fatalf("read %q before release", s)
	case <-time.After(50 * time.Millisecond):
	}

	br.Release()
	assert.Equal(t, "password: ", <-got)
	assert.NoError(t, br.Close(), "close after release is a no-op")
}

func TestClose(t *testing.T) {
	defer goroutinechecker.New(t)()

	br := blockingreader.New(strings.NewReader("never seen"))
	errC := make(chan error, 1)
	go func() {
		_, err := br.Read(make([]byte, 16))
		errC <- err
	}()

	require.NoError(t, br.Close())
	assert.Equal(t, blockingreader.ErrClosed, <-errC)

	br.Release()
	_, err := br.Read(make([]byte, 16))
	assert.Equal(t, blockingreader.ErrClosed, err)
}
