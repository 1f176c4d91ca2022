package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})
	Logf("frame [%d]", 7)
	assert.Equal(t, "frame [7]", got)

	got = ""
	SetLogger(nil)
	assert.NotPanics(t, func() { Logf("muted [%d]", 8) })
	assert.Empty(t, got)
}
