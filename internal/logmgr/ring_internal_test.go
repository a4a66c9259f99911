package logmgr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingOverwritesOldestWhenFull(t *testing.T) {
	r := newRing(3)
	for i := 0; i < 5; i++ {
		r.add(Entry{Message: fmt.Sprintf("m%d", i)})
	}

	got := r.getRecent(10, "")
	require := []string{"m4", "m3", "m2"}
	assert.Len(t, got, 3)
	for i, e := range got {
		assert.Equal(t, require[i], e.Message)
	}
}

func TestRingFiltersByProcess(t *testing.T) {
	r := newRing(10)
	r.add(Entry{ProcessID: "a", Message: "1"})
	r.add(Entry{ProcessID: "b", Message: "2"})
	r.add(Entry{ProcessID: "a", Message: "3"})

	got := r.getRecent(10, "a")
	assert.Len(t, got, 2)
	assert.Equal(t, "3", got[0].Message)
	assert.Equal(t, "1", got[1].Message)
}
