package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeClass(t *testing.T) {
	cases := []struct {
		n    int
		want int
	}{
		{0, 1024},
		{1, 1024},
		{1024, 1024},
		{1025, 2048},
		{5000, 5120},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, sizeClass(c.n), "sizeClass(%d)", c.n)
	}
}

func TestGetBytesLengthAndReuse(t *testing.T) {
	buf := GetBytes(300)
	require.Len(t, buf, 300)
	require.GreaterOrEqual(t, cap(buf), 1024)
	for i := range buf {
		buf[i] = 0xAB
	}
	PutBytes(buf)

	again := GetBytes(300)
	assert.Len(t, again, 300)
	PutBytes(again)
}

func TestPutBytesNil(t *testing.T) {
	PutBytes(nil) // must not panic
}

func TestGetSumsZeroed(t *testing.T) {
	buf := GetSums(2048)
	require.Len(t, buf, 2048)
	for i := range buf {
		buf[i] = uint64(i) + 1
	}
	PutSums(buf)

	clean := GetSums(2048)
	for i, v := range clean {
		if v != 0 {
			t.Fatalf("sum buffer not zeroed at %d: %d", i, v)
		}
	}
	PutSums(clean)
}

func TestConcurrentGetPut(t *testing.T) {
	var wg sync.WaitGroup
	for rangeIdx := 0; rangeIdx < 16; rangeIdx++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rangeIdx := 0; rangeIdx < 100; rangeIdx++ {
				b := GetBytes(4096)
				b[0] = 1
				PutBytes(b)
				s := GetSums(512)
				s[0] = 1
				PutSums(s)
			}
		}()
	}
	wg.Wait()
}
