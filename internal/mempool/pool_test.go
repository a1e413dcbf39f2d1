package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeClass(t *testing.T) {
	tests := []struct{ in, want int }{
		{1, 1024},
		{1024, 1024},
		{1025, 2048},
		{5000, 5120},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sizeClass(tt.in), "sizeClass(%d)", tt.in)
	}
}

func TestGetReturnsZeroedSlices(t *testing.T) {
	buf := GetFloat32(100)
	require.Len(t, buf, 100)
	for i := range buf {
		buf[i] = 1
	}
	PutFloat32(buf)

	again := GetFloat32(100)
	require.Len(t, again, 100)
	for _, v := range again {
		assert.Zero(t, v)
	}
	PutFloat32(again)

	mask := GetBool(10)
	mask[3] = true
	PutBool(mask)
	assert.Equal(t, make([]bool, 10), GetBool(10))

	labels := GetInt32(2000)
	assert.Len(t, labels, 2000)
	assert.GreaterOrEqual(t, cap(labels), 2048)
	PutInt32(labels)
}

func TestGetNonPositive(t *testing.T) {
	assert.Nil(t, GetFloat32(0))
	assert.Nil(t, GetBool(-1))
	PutFloat32(nil)
	PutBool(make([]bool, 3))
}

func TestPoolConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for i := range 200 {
				n := 1 + (seed*131+i*17)%5000
				b := GetFloat32(n)
				if len(b) != n {
					t.Errorf("len %d != %d", len(b), n)
				}
				PutFloat32(b)
			}
		}(g)
	}
	wg.Wait()
}
