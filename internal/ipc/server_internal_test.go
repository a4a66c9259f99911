package ipc

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestDrainMessagesPreservesTrailingPartialSegment(t *testing.T) {
	s := &Server{log: zap.NewNop(), handlers: make(map[MessageType]Handler)}
	seen := 0
	s.Handle(TypePing, func(req Request) (any, error) { seen++; return nil, nil })

	var out bytes.Buffer
	w := bufio.NewWriter(&out)

	buf := []byte(`{"id":"1","type":"ping","timestamp":"2020-01-01T00:00:00Z"}` + "\n" + `{"id":"2","type":"pi`)
	remainder := s.drainMessages(buf, w)

	assert.Equal(t, 1, seen)
	assert.Equal(t, `{"id":"2","type":"pi`, string(remainder))
}

func TestDrainMessagesHandlesMultipleCompleteSegments(t *testing.T) {
	s := &Server{log: zap.NewNop(), handlers: make(map[MessageType]Handler)}
	seen := 0
	s.Handle(TypePing, func(req Request) (any, error) { seen++; return nil, nil })

	var out bytes.Buffer
	w := bufio.NewWriter(&out)

	one := `{"id":"1","type":"ping","timestamp":"2020-01-01T00:00:00Z"}` + "\n"
	buf := []byte(one + one + one)
	remainder := s.drainMessages(buf, w)

	assert.Equal(t, 3, seen)
	assert.Empty(t, remainder)
}
